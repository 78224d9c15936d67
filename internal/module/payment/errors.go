package payment

import "errors"

// Module errors.
var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrOrderNotCheckoutable = errors.New("order cannot be checked out")
)
