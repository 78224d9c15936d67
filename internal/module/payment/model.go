package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/printforge/server/internal/module/order"
	"github.com/shopspring/decimal"
)

// Payment represents one payment attempt against an order. At steady state
// a payment maps 1:1 to a provider transaction, but retried checkouts can
// leave several rows per order; the one matching the provider's correlation
// id, or the most recent, is authoritative for a given webhook.
type Payment struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderID uuid.UUID `gorm:"type:uuid;not null;index"`

	Provider string              `gorm:"size:32;not null;default:2checkout"`
	Status   order.PaymentStatus `gorm:"size:32;not null;default:pending"`

	Amount   decimal.Decimal `gorm:"type:numeric(10,2)"`
	Currency string          `gorm:"size:8"`

	ProviderOrderNumber *string `gorm:"size:64;index:idx_payments_provider_order"`
	ProviderInvoiceID   *string `gorm:"size:64"`

	// Last provider vocabulary seen, kept verbatim for audit.
	ProviderMessageType   *string `gorm:"size:64"`
	ProviderOrderStatus   *string `gorm:"size:64"`
	ProviderInvoiceStatus *string `gorm:"size:64"`
	ProviderFraudStatus   *string `gorm:"size:64"`

	// RawPayload is the last webhook payload applied to this payment, for
	// replay diagnosis.
	RawPayload string `gorm:"type:jsonb"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the database table name.
func (Payment) TableName() string {
	return "payments"
}
