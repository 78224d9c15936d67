package twocheckout

import (
	"strings"

	"github.com/printforge/server/internal/module/order"
)

// Extracted holds the raw provider status vocabulary pulled from a
// notification, kept for audit on the payment record.
type Extracted struct {
	MessageType   string
	OrderStatus   string
	InvoiceStatus string
	FraudStatus   string
}

// Provider vocabulary. The same concept arrives under different values
// depending on integration mode, so each internal status matches a word set.
var (
	paidWords = map[string]bool{
		"PAID": true, "DEPOSITED": true, "COMPLETE": true, "COMPLETED": true,
		"PAYMENT_RECEIVED": true,
	}
	// Funds held but not captured. Distinct from paid: goods must not ship
	// on mere authorization.
	authorizedWords = map[string]bool{
		"PAYMENT_AUTHORIZED": true, "AUTHRECEIVED": true, "PENDING_CAPTURE": true,
	}
	fraudDeniedWords  = map[string]bool{"DENIED": true, "REJECTED": true}
	pendingFraudWords = map[string]bool{"UNDER_REVIEW": true, "PENDING": true}
	canceledWords     = map[string]bool{"CANCELED": true, "CANCELLED": true}
)

// MapStatus translates the provider's status vocabulary into the internal
// payment status, applying a fixed precedence when several signals are
// present at once: fraud-denied > refund > canceled > paid > authorized >
// pending-review. It never fails; an unrecognized payload maps to the empty
// status, meaning no information.
func MapStatus(fields Fields) (order.PaymentStatus, Extracted) {
	extracted := Extracted{
		MessageType:   strings.ToUpper(fields.Pick("MESSAGE_TYPE", "message_type")),
		OrderStatus:   fields.Pick("ORDERSTATUS", "order_status", "status"),
		InvoiceStatus: fields.Pick("INVOICESTATUS", "invoice_status", "invoiceStatus"),
		FraudStatus:   fields.Pick("FRAUD_STATUS", "fraud_status", "approve_status"),
	}

	messageType := extracted.MessageType
	orderStatus := strings.ToUpper(extracted.OrderStatus)
	invoiceStatus := strings.ToUpper(extracted.InvoiceStatus)
	fraudStatus := strings.ToUpper(extracted.FraudStatus)

	isFraud := strings.Contains(messageType, "FRAUD") || fraudDeniedWords[fraudStatus]
	isRefund := strings.Contains(messageType, "REFUND") ||
		orderStatus == "REFUND" || invoiceStatus == "REFUNDED"
	isCanceled := canceledWords[orderStatus]
	isPaid := paidWords[orderStatus] || paidWords[invoiceStatus]
	isAuthorized := authorizedWords[orderStatus] || authorizedWords[invoiceStatus]
	isPendingReview := pendingFraudWords[fraudStatus]

	switch {
	case isFraud:
		return order.PaymentFraud, extracted
	case isRefund:
		return order.PaymentRefunded, extracted
	case isCanceled:
		return order.PaymentCanceled, extracted
	case isPaid:
		return order.PaymentPaid, extracted
	case isAuthorized:
		return order.PaymentAuthorized, extracted
	case isPendingReview:
		return order.PaymentPendingReview, extracted
	}

	return "", extracted
}
