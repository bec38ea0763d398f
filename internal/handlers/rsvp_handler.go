package handlers

import (
	"errors"
	"net/http"
	"screening-system/internal/services"
	"screening-system/internal/status"
	"screening-system/models"
	"screening-system/monitoring"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type RSVPHandler struct {
	app         *pocketbase.PocketBase
	rsvpService *services.RSVPService
}

func NewRSVPHandler(app *pocketbase.PocketBase, rsvpService *services.RSVPService) *RSVPHandler {
	return &RSVPHandler{
		app:         app,
		rsvpService: rsvpService,
	}
}

// SetRSVP - Create, update or toggle away the caller's RSVP
func (h *RSVPHandler) SetRSVP(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.PathValue("eventId")

	var req struct {
		Status string `json:"status"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if !models.ValidRSVPStatus(req.Status) {
		return apis.NewBadRequestError("Invalid RSVP status", nil)
	}

	rsvp, removed, err := h.rsvpService.SetStatus(e.Auth.Id, eventID, req.Status)
	if err != nil {
		monitoring.TrackRSVPOperation(req.Status, "rejected")
		switch {
		case errors.Is(err, status.ErrEventNotFound):
			return apis.NewNotFoundError("Event not found", err)
		case errors.Is(err, status.ErrCapacityExceeded):
			return apis.NewBadRequestError("Event is at full capacity", nil)
		case errors.Is(err, status.ErrPaymentRequired):
			return apis.NewBadRequestError("A completed payment is required to attend this event", nil)
		}
		return apis.NewBadRequestError("Failed to update RSVP", err)
	}

	if removed {
		monitoring.TrackRSVPOperation(req.Status, "removed")
		return e.JSON(http.StatusOK, map[string]any{"removed": true})
	}

	monitoring.TrackRSVPOperation(req.Status, "applied")
	return e.JSON(http.StatusCreated, rsvp)
}

// DeleteRSVP - Remove the caller's RSVP
func (h *RSVPHandler) DeleteRSVP(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.PathValue("eventId")

	if err := h.rsvpService.Remove(e.Auth.Id, eventID); err != nil {
		if errors.Is(err, status.ErrRSVPNotFound) {
			return apis.NewNotFoundError("RSVP not found", nil)
		}
		return apis.NewBadRequestError("Failed to delete RSVP", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "RSVP removed"})
}

// GetMyRSVP - The caller's RSVP for one event (used by the payment poller)
func (h *RSVPHandler) GetMyRSVP(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	rsvp, err := h.rsvpService.GetForUser(e.Auth.Id, e.Request.PathValue("eventId"))
	if err != nil {
		if errors.Is(err, status.ErrRSVPNotFound) {
			return apis.NewNotFoundError("RSVP not found", nil)
		}
		return apis.NewBadRequestError("Failed to get RSVP", err)
	}

	return e.JSON(http.StatusOK, rsvp)
}

// ListMyRSVPs - The caller's RSVPs ordered by event date
func (h *RSVPHandler) ListMyRSVPs(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	list, err := h.rsvpService.ListForUser(e.Auth.Id)
	if err != nil {
		return apis.NewBadRequestError("Failed to list RSVPs", err)
	}

	return e.JSON(http.StatusOK, list)
}

// ListAttendees - RSVPs for an event, optionally filtered by status
func (h *RSVPHandler) ListAttendees(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	statusFilter := e.Request.URL.Query().Get("status")
	if statusFilter != "" && !models.ValidRSVPStatus(statusFilter) {
		return apis.NewBadRequestError("Invalid status filter", nil)
	}

	list, err := h.rsvpService.ListForEvent(eventID, statusFilter)
	if err != nil {
		return apis.NewBadRequestError("Failed to list attendees", err)
	}

	count, err := h.rsvpService.GoingCount(eventID)
	if err != nil {
		return apis.NewBadRequestError("Failed to count attendees", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"rsvps":       list,
		"going_count": count,
	})
}
