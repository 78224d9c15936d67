package twocheckout

import (
	"testing"

	"github.com/printforge/server/internal/module/order"
	"github.com/stretchr/testify/assert"
)

func TestMapStatus(t *testing.T) {
	tests := []struct {
		name   string
		fields Fields
		want   order.PaymentStatus
	}{
		{
			"complete order status maps to paid",
			Fields{{"ORDERSTATUS", "COMPLETE"}},
			order.PaymentPaid,
		},
		{
			"lowercase alias keys work",
			Fields{{"order_status", "PAID"}},
			order.PaymentPaid,
		},
		{
			"invoice status deposited maps to paid",
			Fields{{"INVOICESTATUS", "DEPOSITED"}},
			order.PaymentPaid,
		},
		{
			"authorization without capture is not paid",
			Fields{{"ORDERSTATUS", "PAYMENT_AUTHORIZED"}},
			order.PaymentAuthorized,
		},
		{
			"fraud denial beats a paid signal",
			Fields{{"ORDERSTATUS", "COMPLETE"}, {"FRAUD_STATUS", "DENIED"}},
			order.PaymentFraud,
		},
		{
			"fraud message type beats everything",
			Fields{{"MESSAGE_TYPE", "FRAUD_STATUS_CHANGED"}, {"ORDERSTATUS", "COMPLETE"}, {"FRAUD_STATUS", "DENIED"}},
			order.PaymentFraud,
		},
		{
			"refund message type",
			Fields{{"MESSAGE_TYPE", "REFUND_ISSUED"}, {"ORDERSTATUS", "COMPLETE"}},
			order.PaymentRefunded,
		},
		{
			"refunded invoice status",
			Fields{{"INVOICESTATUS", "REFUNDED"}},
			order.PaymentRefunded,
		},
		{
			"refund beats cancel",
			Fields{{"ORDERSTATUS", "CANCELED"}, {"INVOICESTATUS", "REFUNDED"}},
			order.PaymentRefunded,
		},
		{
			"canceled with both spellings",
			Fields{{"ORDERSTATUS", "CANCELLED"}},
			order.PaymentCanceled,
		},
		{
			"cancel beats paid invoice echo",
			Fields{{"ORDERSTATUS", "CANCELED"}, {"INVOICESTATUS", "PAID"}},
			order.PaymentCanceled,
		},
		{
			"fraud review pending",
			Fields{{"FRAUD_STATUS", "UNDER_REVIEW"}},
			order.PaymentPendingReview,
		},
		{
			"paid beats pending review",
			Fields{{"ORDERSTATUS", "COMPLETE"}, {"FRAUD_STATUS", "PENDING"}},
			order.PaymentPaid,
		},
		{
			"approve_status alias feeds fraud status",
			Fields{{"approve_status", "REJECTED"}},
			order.PaymentFraud,
		},
		{
			"unknown vocabulary maps to none",
			Fields{{"ORDERSTATUS", "SHIPPING_SOON"}},
			"",
		},
		{
			"empty payload maps to none",
			Fields{},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := MapStatus(tt.fields)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMapStatus_Extracted(t *testing.T) {
	fields := Fields{
		{"MESSAGE_TYPE", "order_notification"},
		{"ORDERSTATUS", "Complete"},
		{"INVOICESTATUS", "Deposited"},
		{"FRAUD_STATUS", "APPROVED"},
	}

	_, extracted := MapStatus(fields)

	assert.Equal(t, "ORDER_NOTIFICATION", extracted.MessageType)
	assert.Equal(t, "Complete", extracted.OrderStatus)
	assert.Equal(t, "Deposited", extracted.InvoiceStatus)
	assert.Equal(t, "APPROVED", extracted.FraudStatus)
}
