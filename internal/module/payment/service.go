package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/printforge/server/internal/module/order"
	"github.com/printforge/server/internal/module/twocheckout"
	"github.com/printforge/server/internal/shared/config"
	"go.uber.org/zap"
)

// CheckoutResult is the outcome of starting a hosted checkout.
type CheckoutResult struct {
	PaymentID uuid.UUID `json:"payment_id"`
	PayURL    string    `json:"pay_url"`
}

// OrderStatusResult is the client-facing view of an order's progress.
type OrderStatusResult struct {
	OrderNumber    string  `json:"order_number"`
	Status         string  `json:"status"`
	PaymentStatus  string  `json:"payment_status"`
	Total          string  `json:"total"`
	Currency       string  `json:"currency"`
	TrackingNumber *string `json:"tracking_number,omitempty"`
}

// Service defines the payment business logic interface.
type Service interface {
	// Checkout moves a draft order to pending_payment, records a payment
	// attempt and returns the hosted checkout URL to redirect the buyer to.
	Checkout(ctx context.Context, orderNumber string) (*CheckoutResult, error)

	// OrderStatus returns the current order progress, served from cache when
	// fresh.
	OrderStatus(ctx context.Context, orderNumber string) (*OrderStatusResult, error)
}

type service struct {
	cfg      config.TwoCheckoutConfig
	provider twocheckout.Config
	baseURL  string
	orders   order.Repository
	payments Repository
	cache    *StatusCache
	logger   *zap.Logger
}

// NewService creates a new payment service.
func NewService(cfg config.TwoCheckoutConfig, baseURL string, orders order.Repository, payments Repository, cache *StatusCache, logger *zap.Logger) Service {
	return &service{
		cfg: cfg,
		provider: twocheckout.Config{
			MerchantCode: cfg.MerchantCode,
			SecretWord:   cfg.SecretWord,
			SecretKey:    cfg.SecretKey,
			Demo:         cfg.Demo,
		},
		baseURL:  strings.TrimRight(baseURL, "/"),
		orders:   orders,
		payments: payments,
		cache:    cache,
		logger:   logger,
	}
}

func (s *service) Checkout(ctx context.Context, orderNumber string) (*CheckoutResult, error) {
	ord, err := s.orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	switch ord.Status {
	case order.StatusDraft, order.StatusPendingPayment:
	default:
		return nil, fmt.Errorf("%w: order %s is %s", ErrOrderNotCheckoutable, ord.OrderNumber, ord.Status)
	}

	if ord.Status == order.StatusDraft {
		ord.Status = order.StatusPendingPayment
		if err := s.orders.Update(ctx, ord); err != nil {
			return nil, err
		}
	}

	pay := &Payment{
		OrderID:  ord.ID,
		Provider: twocheckout.Provider,
		Status:   order.PaymentPending,
		Amount:   ord.Total,
		Currency: ord.Currency,
	}
	if err := s.payments.Create(ctx, pay); err != nil {
		return nil, err
	}

	returnURL := s.cfg.ReturnURL
	if returnURL == "" {
		returnURL = s.baseURL + "/payment/2co/return"
	}

	payURL := twocheckout.CheckoutURL(
		s.provider, ord.OrderNumber, ord.Total, ord.Currency, checkoutTitle(ord), returnURL)

	s.logger.Info("checkout started",
		zap.String("order_number", ord.OrderNumber),
		zap.String("payment_id", pay.ID.String()))

	return &CheckoutResult{PaymentID: pay.ID, PayURL: payURL}, nil
}

func (s *service) OrderStatus(ctx context.Context, orderNumber string) (*OrderStatusResult, error) {
	if data, ok := s.cache.Get(ctx, orderNumber); ok {
		var result OrderStatusResult
		if err := json.Unmarshal(data, &result); err == nil {
			return &result, nil
		}
	}

	ord, err := s.orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	result := &OrderStatusResult{
		OrderNumber:    ord.OrderNumber,
		Status:         ord.Status.String(),
		PaymentStatus:  ord.PaymentStatus.String(),
		Total:          ord.Total.StringFixed(2),
		Currency:       ord.Currency,
		TrackingNumber: ord.TrackingNumber,
	}

	if data, err := json.Marshal(result); err == nil {
		s.cache.Set(ctx, orderNumber, data)
	}
	return result, nil
}

// checkoutTitle summarizes the order for the hosted checkout line item.
func checkoutTitle(ord *order.Order) string {
	if len(ord.Items) == 0 {
		return "Order " + ord.OrderNumber
	}
	title := ord.Items[0].Title
	if len(ord.Items) > 1 {
		title = fmt.Sprintf("%s and %d more", title, len(ord.Items)-1)
	}
	return title
}
