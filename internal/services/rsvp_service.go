package services

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"screening-system/internal/status"
	"screening-system/models"
	"sort"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

// RSVPService is the durable ledger of (user, event) -> status. Every
// "going" admission goes through the capacity guard inside the same
// transaction as the write.
type RSVPService struct {
	app core.App
}

func NewRSVPService(app core.App) *RSVPService {
	return &RSVPService{app: app}
}

// CanAdmit is the capacity guard: one more "going" admission is allowed
// when the event is uncapped or the current going count is below the cap.
// The count must exclude the requesting user's own prior RSVP and the
// decision must share a transaction with the write that acts on it.
func CanAdmit(maxCapacity int, goingCount int64) bool {
	return maxCapacity <= 0 || goingCount < int64(maxCapacity)
}

// ChangeOp is the storage operation a status request resolves to,
// computed before anything is written.
type ChangeOp int

const (
	OpCreate ChangeOp = iota
	OpUpdate
	OpDelete
)

// DecideChange maps an incoming status request onto a storage operation.
// Requesting the status the user already holds means "remove my RSVP",
// not a no-op.
func DecideChange(existing string, exists bool, requested string) ChangeOp {
	if !exists {
		return OpCreate
	}
	if existing == requested {
		return OpDelete
	}
	return OpUpdate
}

// SetStatus applies a user's status request under the toggle rule.
// Returns the resulting RSVP, or removed=true when the toggle cleared it.
func (s *RSVPService) SetStatus(userID, eventID, requested string) (rsvp *models.RSVP, removed bool, err error) {
	if !models.ValidRSVPStatus(requested) {
		return nil, false, fmt.Errorf("invalid rsvp status %q", requested)
	}

	event, err := s.GetEvent(eventID)
	if err != nil {
		return nil, false, err
	}

	txErr := s.app.RunInTransaction(func(txApp core.App) error {
		record, findErr := findRSVPRecord(txApp, userID, eventID)
		if findErr != nil {
			return findErr
		}

		op := DecideChange(statusOf(record), record != nil, requested)
		if op == OpDelete {
			if delErr := txApp.Delete(record); delErr != nil {
				return fmt.Errorf("delete rsvp: %w", delErr)
			}
			removed = true
			return nil
		}

		if requested == models.RSVPGoing {
			count, countErr := goingCountExcluding(txApp, eventID, userID)
			if countErr != nil {
				return countErr
			}
			if !CanAdmit(event.MaxCapacity, count) {
				return status.ErrCapacityExceeded
			}
			if event.Paid() {
				if payErr := requireSucceededPayment(txApp, userID, eventID); payErr != nil {
					return payErr
				}
			}
		}

		if op == OpCreate {
			collection, colErr := txApp.FindCollectionByNameOrId("rsvps")
			if colErr != nil {
				return colErr
			}
			record = core.NewRecord(collection)
			record.Set("user", userID)
			record.Set("event", eventID)
		}
		record.Set("status", requested)

		if saveErr := txApp.Save(record); saveErr != nil {
			return fmt.Errorf("save rsvp: %w", saveErr)
		}

		rsvp = rsvpFromRecord(record)
		return nil
	})
	if txErr != nil {
		return nil, false, txErr
	}

	return rsvp, removed, nil
}

// ConfirmAttendance upserts the RSVP to "going" on behalf of a confirmed
// payment. Safe to call repeatedly; the webhook path and the poller
// fallback both land here. Must run inside the caller's transaction.
func (s *RSVPService) ConfirmAttendance(txApp core.App, userID, eventID string) error {
	record, err := findRSVPRecord(txApp, userID, eventID)
	if err != nil {
		return err
	}
	if record != nil && record.GetString("status") == models.RSVPGoing {
		return nil
	}

	event, err := getEvent(txApp, eventID)
	if err != nil {
		return err
	}

	count, err := goingCountExcluding(txApp, eventID, userID)
	if err != nil {
		return err
	}
	if !CanAdmit(event.MaxCapacity, count) {
		return status.ErrCapacityExceeded
	}

	if record == nil {
		collection, err := txApp.FindCollectionByNameOrId("rsvps")
		if err != nil {
			return err
		}
		record = core.NewRecord(collection)
		record.Set("user", userID)
		record.Set("event", eventID)
	}
	record.Set("status", models.RSVPGoing)

	if err := txApp.Save(record); err != nil {
		return fmt.Errorf("confirm attendance: %w", err)
	}
	return nil
}

// WithdrawAttendance flips an existing RSVP to "not_going" after a refund.
// Absence of an RSVP is not an error. Must run inside the caller's
// transaction.
func (s *RSVPService) WithdrawAttendance(txApp core.App, userID, eventID string) error {
	record, err := findRSVPRecord(txApp, userID, eventID)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}

	record.Set("status", models.RSVPNotGoing)
	if err := txApp.Save(record); err != nil {
		return fmt.Errorf("withdraw attendance: %w", err)
	}
	return nil
}

// Remove deletes the user's RSVP for the event.
func (s *RSVPService) Remove(userID, eventID string) error {
	record, err := findRSVPRecord(s.app, userID, eventID)
	if err != nil {
		return err
	}
	if record == nil {
		return status.ErrRSVPNotFound
	}

	if err := s.app.Delete(record); err != nil {
		return fmt.Errorf("delete rsvp: %w", err)
	}
	return nil
}

// GetForUser returns the user's RSVP for one event.
func (s *RSVPService) GetForUser(userID, eventID string) (*models.RSVP, error) {
	record, err := findRSVPRecord(s.app, userID, eventID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, status.ErrRSVPNotFound
	}
	return rsvpFromRecord(record), nil
}

// UserRSVP is an RSVP joined with its event summary for the user view.
type UserRSVP struct {
	RSVP  *models.RSVP  `json:"rsvp"`
	Event *models.Event `json:"event"`
}

// ListForUser returns the user's RSVPs ordered by event date ascending.
func (s *RSVPService) ListForUser(userID string) ([]UserRSVP, error) {
	records, err := s.app.FindRecordsByFilter(
		"rsvps",
		"user = {:userId}",
		"-created",
		0,
		0,
		map[string]any{"userId": userID},
	)
	if err != nil {
		return nil, fmt.Errorf("list rsvps: %w", err)
	}

	result := make([]UserRSVP, 0, len(records))
	for _, record := range records {
		event, err := getEvent(s.app, record.GetString("event"))
		if err != nil {
			slog.Error("ListForUser: missing event for rsvp", "rsvp", record.Id, "error", err)
			continue
		}
		result = append(result, UserRSVP{RSVP: rsvpFromRecord(record), Event: event})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Event.StartAt.Before(result[j].Event.StartAt)
	})

	return result, nil
}

// ListForEvent returns RSVPs for an event, optionally filtered by status.
func (s *RSVPService) ListForEvent(eventID, statusFilter string) ([]*models.RSVP, error) {
	filter := "event = {:eventId}"
	params := map[string]any{"eventId": eventID}
	if statusFilter != "" {
		filter += " && status = {:status}"
		params["status"] = statusFilter
	}

	records, err := s.app.FindRecordsByFilter("rsvps", filter, "-created", 0, 0, params)
	if err != nil {
		return nil, fmt.Errorf("list event rsvps: %w", err)
	}

	result := make([]*models.RSVP, 0, len(records))
	for _, record := range records {
		result = append(result, rsvpFromRecord(record))
	}
	return result, nil
}

// GoingCount returns the current number of admitted attendees.
func (s *RSVPService) GoingCount(eventID string) (int64, error) {
	return s.app.CountRecords("rsvps", dbx.HashExp{"event": eventID, "status": models.RSVPGoing})
}

// GetEvent loads an event by id.
func (s *RSVPService) GetEvent(eventID string) (*models.Event, error) {
	return getEvent(s.app, eventID)
}

func getEvent(app core.App, eventID string) (*models.Event, error) {
	record, err := app.FindRecordById("events", eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrEventNotFound
		}
		return nil, fmt.Errorf("find event: %w", err)
	}
	return eventFromRecord(record), nil
}

func findRSVPRecord(app core.App, userID, eventID string) (*core.Record, error) {
	record, err := app.FindFirstRecordByFilter(
		"rsvps",
		"user = {:userId} && event = {:eventId}",
		map[string]any{"userId": userID, "eventId": eventID},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find rsvp: %w", err)
	}
	return record, nil
}

func goingCountExcluding(app core.App, eventID, excludeUserID string) (int64, error) {
	count, err := app.CountRecords(
		"rsvps",
		dbx.HashExp{"event": eventID, "status": models.RSVPGoing},
		dbx.NewExp("user != {:user}", dbx.Params{"user": excludeUserID}),
	)
	if err != nil {
		return 0, fmt.Errorf("count going rsvps: %w", err)
	}
	return count, nil
}

func requireSucceededPayment(app core.App, userID, eventID string) error {
	_, err := app.FindFirstRecordByFilter(
		"payments",
		"user = {:userId} && event = {:eventId} && status = {:status}",
		map[string]any{"userId": userID, "eventId": eventID, "status": models.PaymentSucceeded},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return status.ErrPaymentRequired
		}
		return fmt.Errorf("find succeeded payment: %w", err)
	}
	return nil
}

func statusOf(record *core.Record) string {
	if record == nil {
		return ""
	}
	return record.GetString("status")
}
