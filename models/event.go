package models

import (
	"time"
)

type Event struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Location      string    `json:"location"`
	StartAt       time.Time `json:"start_at"`
	MaxCapacity   int       `json:"max_capacity"`     // 0 = unlimited
	Price         int64     `json:"price"`            // minor currency units, 0 = free
	PayWhatYouCan bool      `json:"pay_what_you_can"`
	MinPrice      int64     `json:"min_price"` // minor units, meaningful only with PayWhatYouCan
}

// Unlimited reports whether the event has no capacity cap.
func (e *Event) Unlimited() bool {
	return e.MaxCapacity <= 0
}

// Free reports whether no payment is required to attend.
func (e *Event) Free() bool {
	return e.Price == 0 && !e.PayWhatYouCan
}

// Paid reports whether a completed payment must precede a "going" RSVP.
func (e *Event) Paid() bool {
	return !e.Free()
}
