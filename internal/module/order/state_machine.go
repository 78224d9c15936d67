package order

// ReconcilePaymentStatus resolves an incoming payment event against the
// current payment status and returns the resulting status. It is a total,
// pure function: provider notifications arrive at-least-once and possibly
// out of order, so the result must converge to the same final state
// regardless of delivery order, and applying the same event twice must be
// a no-op.
//
// refunded is absorbing. canceled is absorbing except for an explicit paid
// confirming a capture the cancel raced ahead of. A captured payment is
// never rolled back by a stray cancel event.
func ReconcilePaymentStatus(current, incoming PaymentStatus) PaymentStatus {
	if current == "" {
		current = PaymentUnpaid
	}
	if incoming == "" {
		return current
	}

	if current == PaymentPaid && incoming == PaymentRefunded {
		return PaymentRefunded
	}

	// Cannot un-pay a captured payment via a cancel event.
	if current == PaymentPaid && incoming == PaymentCanceled {
		return PaymentPaid
	}

	if current == PaymentRefunded {
		return PaymentRefunded
	}

	if current == PaymentCanceled {
		if incoming == PaymentPaid {
			// A paid arriving after canceled means the cancel raced a
			// delayed capture notification; the capture wins.
			return PaymentPaid
		}
		return PaymentCanceled
	}

	switch incoming {
	case PaymentFraud:
		// Fraud denial only makes sense before capture; a paid payment is
		// clawed back via refunded or reversed, not fraud.
		switch current {
		case PaymentUnpaid, PaymentPending, PaymentAuthorized, PaymentPendingReview:
			return PaymentFraud
		}
		return current
	case PaymentReversed:
		return PaymentReversed
	case PaymentPaid:
		return PaymentPaid
	case PaymentUnpaid, PaymentPending:
		// No information gained.
		return current
	case PaymentRefunded, PaymentCanceled, PaymentAuthorized, PaymentPendingReview:
		return incoming
	}

	return current
}

// ApplyPaymentStatus reconciles an incoming payment event onto the order and
// cascades the business status. It returns true when the order entered paid
// for the first time, which is also the only edge that arms the post-payment
// worker via NeedPostProcess.
func (o *Order) ApplyPaymentStatus(incoming PaymentStatus) (enteredPaid bool) {
	o.PaymentStatus = ReconcilePaymentStatus(o.PaymentStatus, incoming)

	if o.PaymentStatus == PaymentPaid && o.Status == StatusPendingPayment {
		o.Status = StatusPaid
		o.NeedPostProcess = true
		enteredPaid = true
	}
	if o.PaymentStatus == PaymentRefunded && o.Status != StatusRefunded {
		o.Status = StatusRefunded
	}
	if o.PaymentStatus == PaymentCanceled && o.Status != StatusCanceled {
		o.Status = StatusCanceled
	}

	return enteredPaid
}
