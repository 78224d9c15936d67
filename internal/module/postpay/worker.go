// Package postpay runs the side effects a paid order is owed: durable
// preview copies, the confirmation email, and the tracking email once a
// tracking number appears. Every step is guarded by a database flag or
// timestamp, commits independently, and is retried on the next poll if it
// fails, so the worker can crash at any point without losing or repeating
// work.
package postpay

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/printforge/server/internal/module/mailer"
	"github.com/printforge/server/internal/module/order"
	"github.com/printforge/server/internal/shared/metrics"
	"go.uber.org/zap"
)

// Step names, used as metric labels.
const (
	stepPreviews          = "previews"
	stepConfirmationEmail = "confirmation_email"
	stepTrackingEmail     = "tracking_email"
)

const defaultBatchSize = 25

// Worker drains post-payment work from the orders table.
type Worker struct {
	store     Store
	previews  *PreviewStore
	mailer    mailer.Sender
	batchSize int
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewWorker creates a new post-payment worker.
func NewWorker(store Store, previews *PreviewStore, sender mailer.Sender, batchSize int, m *metrics.Metrics, logger *zap.Logger) *Worker {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Worker{
		store:     store,
		previews:  previews,
		mailer:    sender,
		batchSize: batchSize,
		metrics:   m,
		logger:    logger,
	}
}

// Run polls for work until ctx is canceled.
func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		w.RunBatch(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunBatch processes up to batchSize orders and returns how many made
// progress. The batch stops at the first pass that achieves nothing, so an
// order that fails every step cannot spin the loop.
func (w *Worker) RunBatch(ctx context.Context) int {
	processed := 0
	for i := 0; i < w.batchSize; i++ {
		progressed, err := w.processOne(ctx)
		if err != nil {
			w.logger.Error("post-payment pass failed", zap.Error(err))
			w.metrics.WorkerOrdersTotal.WithLabelValues("failed").Inc()
		}
		if !progressed {
			break
		}
		processed++
		w.metrics.WorkerOrdersTotal.WithLabelValues("processed").Inc()
	}
	return processed
}

// claim captures what the email steps need after the claiming transaction
// has committed.
type claim struct {
	id               uuid.UUID
	orderNumber      string
	email            string
	needConfirmation bool
	needTracking     bool
}

// processOne claims one order and works through its outstanding steps.
// Returns whether any step made durable progress.
func (w *Worker) processOne(ctx context.Context) (bool, error) {
	var c *claim
	progressed := false

	claimed, err := w.store.ClaimNext(ctx, func(ctx context.Context, tx OrderSaver, o *order.Order) error {
		c = &claim{
			id:               o.ID,
			orderNumber:      o.OrderNumber,
			email:            o.CustomerEmail,
			needConfirmation: o.ConfirmationEmailSentAt == nil,
			needTracking:     o.TrackingNumber != nil && o.TrackingEmailSentAt == nil,
		}

		if !o.NeedPostProcess {
			return nil
		}
		if err := w.previews.Materialize(o); err != nil {
			w.metrics.WorkerStepsTotal.WithLabelValues(stepPreviews, "error").Inc()
			return err
		}
		o.NeedPostProcess = false
		if err := tx.Save(ctx, o); err != nil {
			return err
		}
		w.metrics.WorkerStepsTotal.WithLabelValues(stepPreviews, "ok").Inc()
		progressed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	w.logger.Info("claimed order for post-payment work",
		zap.String("order_number", c.orderNumber),
		zap.Bool("need_confirmation", c.needConfirmation),
		zap.Bool("need_tracking", c.needTracking))

	// Preview materialization is committed at this point. Each email step
	// commits on its own: a failed send stamps nothing, is logged, and the
	// next poll retries just that step.
	if c.needConfirmation {
		if err := w.sendConfirmation(ctx, c.id); err != nil {
			w.metrics.WorkerStepsTotal.WithLabelValues(stepConfirmationEmail, "error").Inc()
			w.logger.Error("confirmation email failed",
				zap.String("order_number", c.orderNumber), zap.Error(err))
		} else {
			w.metrics.WorkerStepsTotal.WithLabelValues(stepConfirmationEmail, "ok").Inc()
			progressed = true
		}
	}

	if c.needTracking {
		if err := w.sendTracking(ctx, c.id); err != nil {
			w.metrics.WorkerStepsTotal.WithLabelValues(stepTrackingEmail, "error").Inc()
			w.logger.Error("tracking email failed",
				zap.String("order_number", c.orderNumber), zap.Error(err))
		} else {
			w.metrics.WorkerStepsTotal.WithLabelValues(stepTrackingEmail, "ok").Inc()
			progressed = true
		}
	}

	return progressed, nil
}

func (w *Worker) sendConfirmation(ctx context.Context, id uuid.UUID) error {
	return w.store.WithOrder(ctx, id, func(ctx context.Context, tx OrderSaver, o *order.Order) error {
		if o.ConfirmationEmailSentAt != nil {
			return nil // another worker got there first
		}
		if err := w.mailer.SendConfirmation(ctx, o.CustomerEmail, o.OrderNumber); err != nil {
			return err
		}
		now := time.Now().UTC()
		o.ConfirmationEmailSentAt = &now
		return tx.Save(ctx, o)
	})
}

func (w *Worker) sendTracking(ctx context.Context, id uuid.UUID) error {
	return w.store.WithOrder(ctx, id, func(ctx context.Context, tx OrderSaver, o *order.Order) error {
		if o.TrackingNumber == nil || o.TrackingEmailSentAt != nil {
			return nil
		}
		if err := w.mailer.SendTracking(ctx, o.CustomerEmail, o.OrderNumber, *o.TrackingNumber); err != nil {
			return err
		}
		now := time.Now().UTC()
		o.TrackingEmailSentAt = &now
		return tx.Save(ctx, o)
	})
}
