// Package mailer sends transactional order emails through the Mailgun
// messages API. Delivery is best-effort: callers decide whether a send
// failure blocks them, and a circuit breaker keeps a broken upstream from
// stalling the post-payment worker on every order.
package mailer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/printforge/server/internal/shared/config"
	"github.com/printforge/server/internal/shared/metrics"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Email kinds, used as metric labels.
const (
	KindConfirmation = "confirmation"
	KindTracking     = "tracking"
)

// Sender defines the interface for sending order emails.
type Sender interface {
	SendConfirmation(ctx context.Context, to, orderNumber string) error
	SendTracking(ctx context.Context, to, orderNumber, trackingNumber string) error
}

// Mailgun sends emails through the Mailgun HTTP API.
type Mailgun struct {
	cfg     config.MailerConfig
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New creates a new Mailgun sender.
func New(cfg config.MailerConfig, m *metrics.Metrics, logger *zap.Logger) *Mailgun {
	settings := gobreaker.Settings{
		Name:        "mailgun",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &Mailgun{
		cfg:     cfg,
		baseURL: "https://api.mailgun.net/v3",
		client:  &http.Client{Timeout: 15 * time.Second},
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
		metrics: m,
		logger:  logger,
	}
}

// SendConfirmation sends the order confirmation email.
func (mg *Mailgun) SendConfirmation(ctx context.Context, to, orderNumber string) error {
	subject := fmt.Sprintf("Your order %s is confirmed", orderNumber)
	text := fmt.Sprintf(
		"Thank you for your order!\n\nWe received your payment for order %s and started production.\nTrack your order at %s/orders/%s\n",
		orderNumber, mg.cfg.SiteURL, orderNumber)
	return mg.send(ctx, KindConfirmation, to, subject, text)
}

// SendTracking sends the shipping notification with the tracking number.
func (mg *Mailgun) SendTracking(ctx context.Context, to, orderNumber, trackingNumber string) error {
	subject := fmt.Sprintf("Your order %s has shipped", orderNumber)
	text := fmt.Sprintf(
		"Good news, your order %s is on its way!\n\nTracking number: %s\nTrack your order at %s/orders/%s\n",
		orderNumber, trackingNumber, mg.cfg.SiteURL, orderNumber)
	return mg.send(ctx, KindTracking, to, subject, text)
}

func (mg *Mailgun) send(ctx context.Context, kind, to, subject, text string) error {
	if mg.cfg.Disabled {
		mg.logger.Info("mailer disabled, skipping email",
			zap.String("kind", kind),
			zap.String("to", to))
		mg.metrics.EmailsTotal.WithLabelValues(kind, "skipped").Inc()
		return nil
	}

	_, err := mg.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, mg.post(ctx, to, subject, text)
	})
	if err != nil {
		mg.metrics.EmailsTotal.WithLabelValues(kind, "error").Inc()
		return fmt.Errorf("send %s email: %w", kind, err)
	}

	mg.metrics.EmailsTotal.WithLabelValues(kind, "sent").Inc()
	mg.logger.Info("email sent",
		zap.String("kind", kind),
		zap.String("to", to))
	return nil
}

func (mg *Mailgun) post(ctx context.Context, to, subject, text string) error {
	form := url.Values{}
	form.Set("from", mg.cfg.From)
	form.Set("to", to)
	form.Set("subject", subject)
	form.Set("text", text)

	endpoint := fmt.Sprintf("%s/%s/messages", mg.baseURL, mg.cfg.Domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", mg.cfg.APIKey)

	resp, err := mg.client.Do(req)
	if err != nil {
		return fmt.Errorf("mailgun request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mailgun responded %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
