package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the business status of an order.
type Status string

const (
	StatusDraft          Status = "draft"
	StatusPendingPayment Status = "pending_payment"
	StatusPaid           Status = "paid"
	StatusRefunded       Status = "refunded"
	StatusCanceled       Status = "canceled"
	StatusError          Status = "error"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the status is a valid order status.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPendingPayment, StatusPaid, StatusRefunded, StatusCanceled, StatusError:
		return true
	}
	return false
}

// PaymentStatus represents the payment status of an order. It is tracked
// independently from the business status: a single order can receive
// multiple, possibly contradictory, payment events over its lifetime.
type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "unpaid"
	PaymentPending       PaymentStatus = "pending"
	PaymentAuthorized    PaymentStatus = "authorized"
	PaymentPendingReview PaymentStatus = "pending_review"
	PaymentFraud         PaymentStatus = "fraud"
	PaymentPaid          PaymentStatus = "paid"
	PaymentRefunded      PaymentStatus = "refunded"
	PaymentCanceled      PaymentStatus = "canceled"
	PaymentReversed      PaymentStatus = "reversed"
)

// String returns the string representation of the payment status.
func (s PaymentStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid payment status.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentUnpaid, PaymentPending, PaymentAuthorized, PaymentPendingReview,
		PaymentFraud, PaymentPaid, PaymentRefunded, PaymentCanceled, PaymentReversed:
		return true
	}
	return false
}

// Order represents a customer order.
type Order struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderNumber string    `gorm:"uniqueIndex;not null"`

	Status        Status        `gorm:"not null;default:draft;index"`
	PaymentStatus PaymentStatus `gorm:"not null;default:unpaid;index"`

	CustomerEmail string
	CustomerName  string

	Subtotal decimal.Decimal `gorm:"type:numeric(10,2)"`
	Total    decimal.Decimal `gorm:"type:numeric(10,2)"`
	Currency string          `gorm:"size:8;default:USD"`

	// Post-payment side-effect bookkeeping. These are the only signals the
	// post-payment worker acts on.
	NeedPostProcess         bool `gorm:"not null;default:false;index"`
	ConfirmationEmailSentAt *time.Time
	TrackingNumber          *string
	TrackingEmailSentAt     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	Items []*Item `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name.
func (Order) TableName() string {
	return "orders"
}

// IsPendingPayment returns true if the order is awaiting payment.
func (o *Order) IsPendingPayment() bool {
	return o.Status == StatusPendingPayment
}

// IsPaid returns true if the order has been paid.
func (o *Order) IsPaid() bool {
	return o.Status == StatusPaid
}

// Item represents a line item in an order. Items are owned exclusively by
// their order.
type Item struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderID uuid.UUID `gorm:"type:uuid;not null;index"`

	Title      string          `gorm:"not null"`
	Quantity   int             `gorm:"default:1"`
	UnitPrice  decimal.Decimal `gorm:"type:numeric(10,2)"`
	PreviewURL string
}

// TableName returns the database table name.
func (Item) TableName() string {
	return "order_items"
}
