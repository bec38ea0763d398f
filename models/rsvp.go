package models

import (
	"time"
)

const (
	RSVPGoing      = "going"
	RSVPInterested = "interested"
	RSVPNotGoing   = "not_going"
)

type RSVP struct {
	ID      string    `json:"id"`
	UserID  string    `json:"user_id"`
	EventID string    `json:"event_id"`
	Status  string    `json:"status"` // going, interested, not_going
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// ValidRSVPStatus reports whether s is one of the accepted RSVP statuses.
func ValidRSVPStatus(s string) bool {
	switch s {
	case RSVPGoing, RSVPInterested, RSVPNotGoing:
		return true
	}
	return false
}
