package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"screening-system/internal/services"
	"screening-system/internal/status"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

const webhookBodyLimit = 1 << 20 // 1MiB

type PaymentHandler struct {
	app            *pocketbase.PocketBase
	paymentService *services.PaymentService
	webhookService *services.WebhookService
}

func NewPaymentHandler(app *pocketbase.PocketBase, paymentService *services.PaymentService, webhookService *services.WebhookService) *PaymentHandler {
	return &PaymentHandler{
		app:            app,
		paymentService: paymentService,
		webhookService: webhookService,
	}
}

// CreateIntent - Resolve the amount and create a processor payment intent
func (h *PaymentHandler) CreateIntent(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		EventID string `json:"event_id"`
		Amount  *int64 `json:"amount"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.EventID == "" {
		return apis.NewBadRequestError("event_id is required", nil)
	}

	result, err := h.paymentService.CreateIntent(e.Request.Context(), e.Auth.Id, req.EventID, req.Amount)
	if err != nil {
		var belowMin *status.AmountBelowMinimumError
		switch {
		case errors.Is(err, status.ErrEventNotFound):
			return apis.NewNotFoundError("Event not found", err)
		case errors.Is(err, status.ErrEventIsFree):
			return apis.NewBadRequestError("Event is free, no payment required", nil)
		case errors.As(err, &belowMin):
			return apis.NewBadRequestError(fmt.Sprintf("Amount is below the minimum of %d", belowMin.Minimum), nil)
		case errors.Is(err, status.ErrCapacityExceeded):
			return apis.NewBadRequestError("Event is at full capacity", nil)
		case errors.Is(err, status.ErrProcessorUnavailable):
			return apis.NewApiError(http.StatusServiceUnavailable, "Payment processor unavailable, please try again later", nil)
		}
		return apis.NewBadRequestError("Failed to create payment intent", err)
	}

	return e.JSON(http.StatusOK, result)
}

// CheckPaymentStatus - Check payment status (served from the session cache)
func (h *PaymentHandler) CheckPaymentStatus(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	st, err := h.paymentService.IntentStatus(e.Request.Context(), e.Auth.Id, e.Request.PathValue("intentId"))
	if err != nil {
		return apis.NewNotFoundError("Payment not found", nil)
	}

	return e.JSON(http.StatusOK, map[string]any{"status": st})
}

// SyncIntent - Reconciliation fallback when the webhook lags
func (h *PaymentHandler) SyncIntent(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	payment, err := h.paymentService.SyncIntent(e.Request.Context(), e.Auth.Id, e.Request.PathValue("intentId"))
	if err != nil {
		switch {
		case errors.Is(err, status.ErrPaymentNotFound):
			return apis.NewNotFoundError("Payment not found", nil)
		case errors.Is(err, status.ErrProcessorUnavailable):
			return apis.NewApiError(http.StatusServiceUnavailable, "Payment processor unavailable, please try again later", nil)
		}
		return apis.NewBadRequestError("Failed to sync payment", err)
	}

	return e.JSON(http.StatusOK, payment)
}

// CancelIntent - Cancel a still-pending payment
func (h *PaymentHandler) CancelIntent(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	err := h.paymentService.CancelIntent(e.Request.Context(), e.Auth.Id, e.Request.PathValue("intentId"))
	if err != nil {
		if errors.Is(err, status.ErrPaymentNotFound) {
			return apis.NewNotFoundError("Payment not found", nil)
		}
		return apis.NewBadRequestError("Cannot cancel payment: "+err.Error(), err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Payment cancelled"})
}

// GetPaymentHistory - The caller's payments with event summaries
func (h *PaymentHandler) GetPaymentHistory(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	history, err := h.paymentService.History(e.Auth.Id)
	if err != nil {
		return apis.NewBadRequestError("Failed to get payment history", err)
	}

	return e.JSON(http.StatusOK, history)
}

// RefundPayment - Privileged refund; admin key enforced by middleware
func (h *PaymentHandler) RefundPayment(e *core.RequestEvent) error {
	var req struct {
		Amount *int64 `json:"amount"`
		Reason string `json:"reason"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	payment, err := h.paymentService.Refund(e.Request.Context(), e.Request.PathValue("paymentId"), req.Amount, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, status.ErrPaymentNotFound):
			return apis.NewNotFoundError("Payment not found", nil)
		case errors.Is(err, status.ErrAlreadyRefunded):
			return apis.NewBadRequestError("Payment already refunded", nil)
		case errors.Is(err, status.ErrNoProcessorID):
			return apis.NewBadRequestError("No processor payment id on record", nil)
		case errors.Is(err, status.ErrProcessorUnavailable):
			return apis.NewApiError(http.StatusServiceUnavailable, "Payment processor unavailable, please try again later", nil)
		}
		return apis.NewBadRequestError("Failed to refund payment: "+err.Error(), err)
	}

	return e.JSON(http.StatusOK, payment)
}

// HandleWebhook - Processor callback; signature verified over the raw body
func (h *PaymentHandler) HandleWebhook(e *core.RequestEvent) error {
	r := e.Request
	r.Body = http.MaxBytesReader(e.Response, r.Body, webhookBodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return apis.NewBadRequestError("Failed to read request body", nil)
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		return apis.NewBadRequestError("Missing signature", nil)
	}

	if err := h.webhookService.Handle(r.Context(), payload, signature); err != nil {
		if errors.Is(err, status.ErrSignatureInvalid) {
			return apis.NewBadRequestError("Invalid signature", nil)
		}
		// Non-2xx so the processor redelivers.
		return apis.NewApiError(http.StatusInternalServerError, "Failed to process webhook event", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"received": true})
}
