package order

import "errors"

// Module errors.
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderNotDraft     = errors.New("order is not a draft")
	ErrOrderNotPending   = errors.New("order is not pending payment")
	ErrNoClaimableOrder  = errors.New("no claimable order")
	ErrInvalidTransition = errors.New("invalid order status transition")
)
