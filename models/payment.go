package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentPending   = "pending"
	PaymentSucceeded = "succeeded"
	PaymentFailed    = "failed"
	PaymentRefunded  = "refunded"
)

type Payment struct {
	ID       string    `json:"payment_id"`
	UserID   string    `json:"user_id"`
	EventID  string    `json:"event_id"`
	Amount   int64     `json:"amount"` // minor currency units
	Status   string    `json:"status"` // pending, succeeded, failed, refunded
	StripeID string    `json:"stripe_id"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`
}

// DisplayAmount converts the minor-unit amount to currency units,
// e.g. 1250 -> 12.50.
func (p *Payment) DisplayAmount() decimal.Decimal {
	return decimal.NewFromInt(p.Amount).Div(decimal.NewFromInt(100))
}

// Settled reports whether the payment reached a terminal state.
func (p *Payment) Settled() bool {
	return p.Status != PaymentPending
}
