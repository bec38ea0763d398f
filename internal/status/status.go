package status

import (
	"errors"
	"fmt"
)

var (
	ErrEventNotFound        = errors.New("event: event not found")
	ErrEventIsFree          = errors.New("event: event is free, no payment required")
	ErrCapacityExceeded     = errors.New("event: event is at full capacity")
	ErrRSVPNotFound         = errors.New("rsvp: rsvp not found")
	ErrPaymentNotFound      = errors.New("payment: payment not found")
	ErrPaymentRequired      = errors.New("payment: a completed payment is required to attend")
	ErrAlreadyRefunded      = errors.New("payment: payment already refunded")
	ErrNoProcessorID        = errors.New("payment: no processor intent id on record")
	ErrProcessorUnavailable = errors.New("processor: payment processor unavailable")
	ErrSignatureInvalid     = errors.New("webhook: invalid signature")
)

// AmountBelowMinimumError reports a pay-what-you-can amount under the
// event's minimum. The minimum is in minor currency units so callers can
// re-prompt with it.
type AmountBelowMinimumError struct {
	Minimum int64
}

func (e *AmountBelowMinimumError) Error() string {
	return fmt.Sprintf("payment: amount below minimum of %d", e.Minimum)
}
