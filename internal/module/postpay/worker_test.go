package postpay

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/printforge/server/internal/module/order"
	"github.com/printforge/server/internal/shared/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	metricsOnce sync.Once
	testMetrics *metrics.Metrics
)

func sharedMetrics() *metrics.Metrics {
	metricsOnce.Do(func() {
		testMetrics = metrics.New("printforge_postpay_test")
	})
	return testMetrics
}

// memStore is an in-memory Store with real claim semantics: per-order
// exclusive locks and rollback-on-error.
type memStore struct {
	mu     sync.Mutex
	orders []*order.Order
	locked map[uuid.UUID]bool
}

func newMemStore(orders ...*order.Order) *memStore {
	for _, o := range orders {
		if o.ID == uuid.Nil {
			o.ID = uuid.New()
		}
	}
	return &memStore{orders: orders, locked: make(map[uuid.UUID]bool)}
}

func claimable(o *order.Order) bool {
	return o.Status == order.StatusPaid &&
		(o.NeedPostProcess ||
			o.ConfirmationEmailSentAt == nil ||
			(o.TrackingNumber != nil && o.TrackingEmailSentAt == nil))
}

func cloneOrder(o *order.Order) *order.Order {
	c := *o
	c.Items = make([]*order.Item, len(o.Items))
	for i, it := range o.Items {
		ci := *it
		c.Items[i] = &ci
	}
	return &c
}

func (s *memStore) ClaimNext(ctx context.Context, fn func(ctx context.Context, tx OrderSaver, o *order.Order) error) (bool, error) {
	s.mu.Lock()
	var target *order.Order
	for _, o := range s.orders {
		if claimable(o) && !s.locked[o.ID] {
			target = o
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		return false, nil
	}
	s.locked[target.ID] = true
	snapshot := cloneOrder(target)
	s.mu.Unlock()

	err := fn(ctx, noopSaver{}, target)

	s.mu.Lock()
	if err != nil {
		*target = *snapshot
	}
	s.locked[target.ID] = false
	s.mu.Unlock()
	return true, err
}

func (s *memStore) WithOrder(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, tx OrderSaver, o *order.Order) error) error {
	for {
		s.mu.Lock()
		var target *order.Order
		for _, o := range s.orders {
			if o.ID == id {
				target = o
				break
			}
		}
		if target == nil {
			s.mu.Unlock()
			return order.ErrOrderNotFound
		}
		if !s.locked[id] {
			s.locked[id] = true
			snapshot := cloneOrder(target)
			s.mu.Unlock()

			err := fn(ctx, noopSaver{}, target)

			s.mu.Lock()
			if err != nil {
				*target = *snapshot
			}
			s.locked[id] = false
			s.mu.Unlock()
			return err
		}
		s.mu.Unlock()
		runtime.Gosched()
	}
}

// noopSaver: the mocks mutate the shared order in place; rollback is handled
// by the store snapshot.
type noopSaver struct{}

func (noopSaver) Save(context.Context, *order.Order) error { return nil }

// mockSender counts sends per order and can be told to fail.
type mockSender struct {
	mu               sync.Mutex
	confirmations    map[string]int
	trackings        map[string]int
	failConfirmation bool
}

func newMockSender() *mockSender {
	return &mockSender{
		confirmations: make(map[string]int),
		trackings:     make(map[string]int),
	}
}

func (m *mockSender) SendConfirmation(_ context.Context, _, orderNumber string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failConfirmation {
		return errors.New("smtp on fire")
	}
	m.confirmations[orderNumber]++
	return nil
}

func (m *mockSender) SendTracking(_ context.Context, _, orderNumber, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackings[orderNumber]++
	return nil
}

func paidOrder(t *testing.T, number string) *order.Order {
	t.Helper()
	return &order.Order{
		ID:              uuid.New(),
		OrderNumber:     number,
		Status:          order.StatusPaid,
		PaymentStatus:   order.PaymentPaid,
		CustomerEmail:   "buyer@example.com",
		NeedPostProcess: true,
	}
}

func newTestWorker(t *testing.T, store Store, sender *mockSender) *Worker {
	t.Helper()
	previews := NewPreviewStore(t.TempDir(), zap.NewNop())
	return NewWorker(store, previews, sender, 10, sharedMetrics(), zap.NewNop())
}

func TestRunBatch(t *testing.T) {
	t.Run("drains one paid order completely", func(t *testing.T) {
		o := paidOrder(t, "PF-1001")
		store := newMemStore(o)
		sender := newMockSender()

		n := newTestWorker(t, store, sender).RunBatch(context.Background())

		assert.Equal(t, 1, n)
		assert.False(t, o.NeedPostProcess)
		require.NotNil(t, o.ConfirmationEmailSentAt)
		assert.Equal(t, 1, sender.confirmations["PF-1001"])
		assert.Nil(t, o.TrackingEmailSentAt)
	})

	t.Run("nothing claimable", func(t *testing.T) {
		store := newMemStore(paidOrderDone(t, "PF-1001"))
		n := newTestWorker(t, store, newMockSender()).RunBatch(context.Background())
		assert.Equal(t, 0, n)
	})

	t.Run("email failure does not undo materialization", func(t *testing.T) {
		o := paidOrder(t, "PF-1001")
		store := newMemStore(o)
		sender := newMockSender()
		sender.failConfirmation = true
		w := newTestWorker(t, store, sender)

		w.RunBatch(context.Background())

		// Preview step committed, email step did not.
		assert.False(t, o.NeedPostProcess)
		assert.Nil(t, o.ConfirmationEmailSentAt)

		// Next poll retries only the email.
		sender.failConfirmation = false
		n := w.RunBatch(context.Background())

		assert.Equal(t, 1, n)
		require.NotNil(t, o.ConfirmationEmailSentAt)
		assert.Equal(t, 1, sender.confirmations["PF-1001"])
	})

	t.Run("stops when a poison order makes no progress", func(t *testing.T) {
		o := paidOrder(t, "PF-1001")
		o.NeedPostProcess = false
		store := newMemStore(o)
		sender := newMockSender()
		sender.failConfirmation = true

		n := newTestWorker(t, store, sender).RunBatch(context.Background())

		assert.Equal(t, 0, n)
	})

	t.Run("tracking email goes out once a tracking number appears", func(t *testing.T) {
		o := paidOrder(t, "PF-1001")
		store := newMemStore(o)
		sender := newMockSender()
		w := newTestWorker(t, store, sender)

		w.RunBatch(context.Background())
		assert.Equal(t, 0, sender.trackings["PF-1001"])

		tracking := "TRK-42"
		store.mu.Lock()
		o.TrackingNumber = &tracking
		store.mu.Unlock()

		n := w.RunBatch(context.Background())

		assert.Equal(t, 1, n)
		require.NotNil(t, o.TrackingEmailSentAt)
		assert.Equal(t, 1, sender.trackings["PF-1001"])
		assert.Equal(t, 1, sender.confirmations["PF-1001"])
	})

	t.Run("duplicate confirmation is impossible on rerun", func(t *testing.T) {
		o := paidOrder(t, "PF-1001")
		store := newMemStore(o)
		sender := newMockSender()
		w := newTestWorker(t, store, sender)

		w.RunBatch(context.Background())
		w.RunBatch(context.Background())

		assert.Equal(t, 1, sender.confirmations["PF-1001"])
	})
}

func paidOrderDone(t *testing.T, number string) *order.Order {
	o := paidOrder(t, number)
	o.NeedPostProcess = false
	now := time.Now().UTC()
	o.ConfirmationEmailSentAt = &now
	return o
}

func TestConcurrentWorkersNeverDoubleProcess(t *testing.T) {
	var orders []*order.Order
	for i := 0; i < 20; i++ {
		orders = append(orders, paidOrder(t, fmt.Sprintf("PF-%04d", i)))
	}
	store := newMemStore(orders...)
	sender := newMockSender()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		w := newTestWorker(t, store, sender)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if w.RunBatch(context.Background()) == 0 {
					return
				}
			}
		}()
	}
	wg.Wait()

	for _, o := range orders {
		assert.Equal(t, 1, sender.confirmations[o.OrderNumber],
			"order %s must get exactly one confirmation", o.OrderNumber)
		assert.False(t, o.NeedPostProcess)
		assert.NotNil(t, o.ConfirmationEmailSentAt)
	}
}
