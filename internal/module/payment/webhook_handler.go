package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/printforge/server/internal/module/order"
	"github.com/printforge/server/internal/module/twocheckout"
	"github.com/printforge/server/internal/shared/config"
	"github.com/printforge/server/internal/shared/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WebhookHandler handles 2Checkout server-to-server notifications and the
// browser return redirect.
//
// The notification endpoint always answers 200. The provider retries on any
// other status, and a malformed or forged payload will stay malformed on
// every retry; failures are logged and counted instead of bounced back.
type WebhookHandler struct {
	cfg       config.TwoCheckoutConfig
	provider  twocheckout.Config
	tolerance decimal.Decimal
	store     Store
	cache     *StatusCache
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(cfg config.TwoCheckoutConfig, store Store, cache *StatusCache, m *metrics.Metrics, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		cfg: cfg,
		provider: twocheckout.Config{
			MerchantCode: cfg.MerchantCode,
			SecretWord:   cfg.SecretWord,
			SecretKey:    cfg.SecretKey,
			Demo:         cfg.Demo,
		},
		tolerance: cfg.Tolerance(),
		store:     store,
		cache:     cache,
		metrics:   m,
		logger:    logger,
	}
}

// RegisterRoutes registers the provider-facing routes. These live outside the
// /api group: the paths are configured in the 2Checkout merchant dashboard.
func (h *WebhookHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/webhooks/2co/ipn", h.Probe)
	r.HEAD("/webhooks/2co/ipn", h.Probe)
	r.POST("/webhooks/2co/ipn", h.HandleNotification)
	r.GET("/payment/2co/return", h.HandleReturn)
	r.POST("/payment/2co/return", h.HandleReturn)
}

// Probe answers the provider's endpoint liveness checks.
func (h *WebhookHandler) Probe(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// HandleNotification processes one INS/IPN notification.
func (h *WebhookHandler) HandleNotification(c *gin.Context) {
	fields, err := twocheckout.ParseFields(c.Request.Body)
	if err != nil || len(fields) == 0 {
		h.logger.Error("webhook body unreadable", zap.Error(err))
		h.metrics.RecordWebhookEvent(twocheckout.Provider, metrics.WebhookFailed)
		c.String(http.StatusOK, "OK")
		return
	}

	if !h.verify(fields) {
		h.logger.Error("webhook signature rejected",
			zap.Any("payload", fields.Sanitize()))
		h.metrics.RecordWebhookEvent(twocheckout.Provider, metrics.WebhookRejectedSignature)
		c.String(http.StatusOK, "OK")
		return
	}

	outcome, err := h.apply(c.Request.Context(), fields)
	if err != nil {
		h.logger.Error("webhook apply failed",
			zap.Error(err),
			zap.Any("payload", fields.Sanitize()))
		outcome = metrics.WebhookFailed
	}
	h.metrics.RecordWebhookEvent(twocheckout.Provider, outcome)

	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(h.ack(fields)))
}

// verify checks the notification authenticity. The HMAC signature field is
// authoritative; older invoice-linked notifications carry the HASH variant
// instead, which is accepted only when the signature field is absent.
func (h *WebhookHandler) verify(fields twocheckout.Fields) bool {
	if fields.Pick(twocheckout.SignatureField) != "" {
		return twocheckout.VerifyNotificationSignature(h.cfg.SecretKey, fields)
	}
	if fields.Pick("hash", "HASH") != "" {
		return twocheckout.VerifyInvoiceHash(h.provider, fields)
	}
	return false
}

// ack builds the acknowledgment body the provider expects. The notification
// date is echoed verbatim, empty included: the provider verifies the ack
// hash against the date it sent, so substituting our own clock would only
// produce a hash it cannot match. Without a well-formed ack the provider
// keeps re-delivering the same notification.
func (h *WebhookHandler) ack(fields twocheckout.Fields) string {
	return twocheckout.AckBody(h.cfg.SecretKey, fields.Pick("IPN_DATE", "ipn_date"))
}

// apply locates the order and payment the notification refers to and applies
// the mapped status inside one transaction. Returns the metrics outcome.
func (h *WebhookHandler) apply(ctx context.Context, fields twocheckout.Fields) (string, error) {
	status, extracted := twocheckout.MapStatus(fields)

	merchantRef := strings.TrimSpace(fields.Pick("REFNOEXT", "refnoext", "merchant_order_id"))
	providerRef := strings.TrimSpace(fields.Pick("REFNO", "ORDERNO", "sale_id"))
	invoiceID := strings.TrimSpace(fields.Pick("invoice_id", "INVOICE_ID"))

	outcome := metrics.WebhookNoStatus
	var invalidate string

	err := h.store.Atomically(ctx, func(orders order.Repository, payments Repository) error {
		var ord *order.Order
		if merchantRef != "" {
			o, err := orders.GetByNumber(ctx, merchantRef)
			switch {
			case errors.Is(err, order.ErrOrderNotFound):
				// The merchant reference is ours; if we don't know it, no
				// guessing. Ack so the provider stops retrying, touch nothing.
				h.logger.Error("webhook references unknown order",
					zap.String("order_number", merchantRef),
					zap.String("provider_ref", providerRef))
				outcome = metrics.WebhookUnmatchedOrder
				return nil
			case err != nil:
				return err
			default:
				ord = o
			}
		}

		pay, err := h.locatePayment(ctx, payments, ord, providerRef)
		if err != nil {
			return err
		}

		if ord == nil && pay == nil {
			h.logger.Error("webhook matches no order or payment",
				zap.String("provider_ref", providerRef),
				zap.Any("payload", fields.Sanitize()))
			outcome = metrics.WebhookUnmatchedOrder
			return nil
		}
		if ord == nil {
			o, err := orders.GetByID(ctx, pay.OrderID)
			if err != nil {
				return err
			}
			ord = o
		}

		allowed := true
		if status == order.PaymentPaid {
			allowed = h.amountGate(fields, ord, pay)
			if !allowed {
				outcome = metrics.WebhookVerificationFailed
			}
		}

		if status == "" {
			h.logger.Warn("webhook carries no recognizable status",
				zap.String("order_number", ord.OrderNumber),
				zap.String("message_type", extracted.MessageType),
				zap.Any("payload", fields.Sanitize()))
		}

		if status != "" && allowed {
			before := ord.PaymentStatus
			enteredPaid := ord.ApplyPaymentStatus(status)
			if err := orders.Update(ctx, ord); err != nil {
				return err
			}
			invalidate = ord.OrderNumber
			outcome = metrics.WebhookApplied
			h.logger.Info("payment status applied",
				zap.String("order_number", ord.OrderNumber),
				zap.String("from", before.String()),
				zap.String("to", ord.PaymentStatus.String()),
				zap.Bool("entered_paid", enteredPaid))
		}

		if pay != nil {
			h.mirrorPayment(pay, fields, extracted, status, allowed, providerRef, invoiceID)
			if err := payments.Update(ctx, pay); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return metrics.WebhookFailed, err
	}

	if invalidate != "" {
		h.cache.Invalidate(ctx, invalidate)
	}
	return outcome, nil
}

// locatePayment resolves the payment row a notification refers to: first by
// the provider's own order number, then by the newest payment on the matched
// order. A webhook with no resolvable payment row still updates the order.
func (h *WebhookHandler) locatePayment(ctx context.Context, payments Repository, ord *order.Order, providerRef string) (*Payment, error) {
	if providerRef != "" {
		p, err := payments.GetByProviderOrder(ctx, twocheckout.Provider, providerRef)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrPaymentNotFound) {
			return nil, err
		}
	}
	if ord != nil {
		p, err := payments.GetLatestForOrder(ctx, ord.ID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrPaymentNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// amountGate decides whether a paid transition is allowed given the amount
// and currency the provider reports. The expected side comes from the payment
// row when it carries an amount, otherwise from the order total. A signed
// notification missing either side fails the gate; only the invoice-hash
// variant, which structurally carries no totals, is exempt. Currency is
// compared only when both sides are known.
func (h *WebhookHandler) amountGate(fields twocheckout.Fields, ord *order.Order, pay *Payment) bool {
	raw := strings.TrimSpace(fields.Pick("IPN_TOTALGENERAL", "total", "TOTAL"))
	if raw == "" {
		if fields.Pick(twocheckout.SignatureField) == "" {
			h.logger.Warn("invoice notification carries no amount, skipping amount check",
				zap.String("order_number", ord.OrderNumber))
			return true
		}
		h.logger.Error("paid notification carries no amount",
			zap.String("order_number", ord.OrderNumber))
		return false
	}

	received, err := decimal.NewFromString(raw)
	if err != nil {
		h.logger.Error("paid notification amount unparsable",
			zap.String("order_number", ord.OrderNumber),
			zap.String("amount", raw))
		return false
	}

	expected := ord.Total
	expectedCurrency := ord.Currency
	if pay != nil && !pay.Amount.IsZero() {
		expected = pay.Amount
		if pay.Currency != "" {
			expectedCurrency = pay.Currency
		}
	}
	if expected.IsZero() {
		h.logger.Error("no expected amount on record for paid notification",
			zap.String("order_number", ord.OrderNumber),
			zap.String("received", received.StringFixed(2)))
		return false
	}

	if received.Sub(expected).Abs().GreaterThan(h.tolerance) {
		h.logger.Error("paid notification amount mismatch",
			zap.String("order_number", ord.OrderNumber),
			zap.String("expected", expected.StringFixed(2)),
			zap.String("received", received.StringFixed(2)))
		return false
	}

	receivedCurrency := strings.ToUpper(strings.TrimSpace(fields.Pick("CURRENCY", "currency")))
	if receivedCurrency != "" && expectedCurrency != "" &&
		receivedCurrency != strings.ToUpper(expectedCurrency) {
		h.logger.Error("paid notification currency mismatch",
			zap.String("order_number", ord.OrderNumber),
			zap.String("expected", expectedCurrency),
			zap.String("received", receivedCurrency))
		return false
	}
	return true
}

// mirrorPayment copies the notification's correlation ids, provider
// vocabulary and sanitized payload onto the payment row for audit.
func (h *WebhookHandler) mirrorPayment(pay *Payment, fields twocheckout.Fields, extracted twocheckout.Extracted, status order.PaymentStatus, allowed bool, providerRef, invoiceID string) {
	if status != "" && allowed {
		pay.Status = order.ReconcilePaymentStatus(pay.Status, status)
	}
	if providerRef != "" && pay.ProviderOrderNumber == nil {
		pay.ProviderOrderNumber = &providerRef
	}
	if invoiceID != "" && pay.ProviderInvoiceID == nil {
		pay.ProviderInvoiceID = &invoiceID
	}
	setIfPresent(&pay.ProviderMessageType, extracted.MessageType)
	setIfPresent(&pay.ProviderOrderStatus, extracted.OrderStatus)
	setIfPresent(&pay.ProviderInvoiceStatus, extracted.InvoiceStatus)
	setIfPresent(&pay.ProviderFraudStatus, extracted.FraudStatus)

	if raw, err := json.Marshal(fields.Sanitize()); err == nil {
		pay.RawPayload = string(raw)
	}
}

func setIfPresent(dst **string, v string) {
	if v != "" {
		s := v
		*dst = &s
	}
}
