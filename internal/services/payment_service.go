package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"screening-system/config"
	"screening-system/internal/services/processor"
	"screening-system/internal/status"
	"screening-system/models"
	"screening-system/monitoring"
	"screening-system/utils"
	"time"

	pubnub "github.com/pubnub/go"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

// PaymentService owns the payment-intent lifecycle: amount resolution,
// intent creation against the processor, and the idempotent transitions
// driven by webhook events and the reconciliation fallback.
type PaymentService struct {
	app       core.App
	Redis     *redis.Client
	PubNub    *pubnub.PubNub
	rsvps     *RSVPService
	processor processor.Processor
	breaker   *utils.CircuitBreaker
	cfg       *config.Config
}

func NewPaymentService(app core.App, redisClient *redis.Client, pn *pubnub.PubNub, rsvps *RSVPService, proc processor.Processor, cfg *config.Config) *PaymentService {
	return &PaymentService{
		app:       app,
		Redis:     redisClient,
		PubNub:    pn,
		rsvps:     rsvps,
		processor: proc,
		breaker:   utils.NewCircuitBreaker(proc.Provider()),
		cfg:       cfg,
	}
}

// IntentResult is returned to the caller so the client can complete the
// payment UI.
type IntentResult struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
	Amount          int64  `json:"amount"`
}

// ResolveAmount computes the amount to charge in minor units.
// Fixed-price events ignore any client-supplied amount; pay-what-you-can
// events require one at or above the configured minimum (default 0).
func ResolveAmount(event *models.Event, requested *int64) (int64, error) {
	if event.Free() {
		return 0, status.ErrEventIsFree
	}

	if event.PayWhatYouCan {
		if requested == nil {
			return 0, errors.New("amount is required for pay-what-you-can events")
		}
		if *requested < event.MinPrice {
			return 0, &status.AmountBelowMinimumError{Minimum: event.MinPrice}
		}
		return *requested, nil
	}

	return event.Price, nil
}

// CreateIntent validates the amount, re-checks capacity, creates the
// processor-side intent carrying {user, event, title} metadata, and
// records a local pending payment keyed by the intent id.
func (s *PaymentService) CreateIntent(ctx context.Context, userID, eventID string, requested *int64) (*IntentResult, error) {
	event, err := getEvent(s.app, eventID)
	if err != nil {
		return nil, err
	}

	amount, err := ResolveAmount(event, requested)
	if err != nil {
		return nil, err
	}

	// The webhook may land minutes later; refusing a doomed intent now is
	// kinder than refunding after the event fills up.
	count, err := goingCountExcluding(s.app, eventID, userID)
	if err != nil {
		return nil, err
	}
	if !CanAdmit(event.MaxCapacity, count) {
		return nil, status.ErrCapacityExceeded
	}

	idemKey, _ := utils.GenerateCode(8)

	var intent *processor.Intent
	callErr := s.breaker.Execute(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProcessorTimeout)
		defer cancel()

		var procErr error
		intent, procErr = s.processor.CreateIntent(callCtx, &processor.IntentRequest{
			Amount: amount,
			Metadata: map[string]string{
				"user_id":     userID,
				"event_id":    eventID,
				"event_title": event.Title,
			},
			IdempotencyKey: idemKey,
		})
		return procErr
	})
	if callErr != nil {
		if errors.Is(callErr, utils.ErrCircuitOpen) {
			return nil, fmt.Errorf("%w: %v", status.ErrProcessorUnavailable, callErr)
		}
		return nil, callErr
	}

	collection, err := s.app.FindCollectionByNameOrId("payments")
	if err != nil {
		return nil, err
	}
	record := core.NewRecord(collection)
	record.Set("user", userID)
	record.Set("event", eventID)
	record.Set("amount", amount)
	record.Set("status", models.PaymentPending)
	record.Set("stripe_id", intent.ID)
	if err := s.app.Save(record); err != nil {
		return nil, fmt.Errorf("save payment: %w", err)
	}

	s.cacheSession(ctx, intent.ID, userID, eventID, amount, models.PaymentPending)
	monitoring.TrackPaymentIntent(paymentMode(event))

	return &IntentResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Amount:          amount,
	}, nil
}

// RSVPAction is the ledger side effect a transition carries.
type RSVPAction int

const (
	RSVPNone RSVPAction = iota
	RSVPConfirm
	RSVPWithdraw
)

// Transition is a reducer decision: the payment status to write (empty =
// leave untouched) and the RSVP side effect.
type Transition struct {
	PaymentStatus string
	RSVPAction    RSVPAction
}

// Reduce maps (webhook variant, current payment status) to a transition.
// Replays and out-of-order deliveries fall out as no-ops: a payment that
// already reached the event's target state is never touched again, so a
// redelivered "succeeded" cannot stomp a later refund or a user's
// subsequent withdrawal.
func Reduce(kind processor.EventKind, current string) Transition {
	switch kind {
	case processor.EventSucceeded:
		if current == models.PaymentSucceeded || current == models.PaymentRefunded {
			return Transition{}
		}
		return Transition{PaymentStatus: models.PaymentSucceeded, RSVPAction: RSVPConfirm}

	case processor.EventFailed:
		if current != models.PaymentPending {
			return Transition{}
		}
		return Transition{PaymentStatus: models.PaymentFailed}

	case processor.EventRefunded:
		if current == models.PaymentRefunded {
			return Transition{}
		}
		return Transition{PaymentStatus: models.PaymentRefunded, RSVPAction: RSVPWithdraw}
	}

	return Transition{}
}

// ApplyEvent applies a verified webhook event (or a synthetic one from
// the sync fallback) to the local payment and RSVP state. Keyed by the
// processor intent id; safe under at-least-once, out-of-order delivery.
func (s *PaymentService) ApplyEvent(ctx context.Context, ev *processor.WebhookEvent) error {
	if ev.Kind == processor.EventIgnored || ev.IntentID == "" {
		return nil
	}

	var payment *models.Payment
	txErr := s.app.RunInTransaction(func(txApp core.App) error {
		record, err := findPaymentByStripeID(txApp, ev.IntentID)
		if err != nil {
			return err
		}

		t := Reduce(ev.Kind, record.GetString("status"))
		if t.PaymentStatus == "" {
			payment = paymentFromRecord(record)
			return nil
		}

		record.Set("status", t.PaymentStatus)
		if err := txApp.Save(record); err != nil {
			return fmt.Errorf("save payment: %w", err)
		}
		payment = paymentFromRecord(record)

		switch t.RSVPAction {
		case RSVPConfirm:
			err := s.rsvps.ConfirmAttendance(txApp, payment.UserID, payment.EventID)
			if errors.Is(err, status.ErrCapacityExceeded) {
				// The event filled between intent creation and webhook
				// arrival. Keep the payment succeeded and leave admission
				// to the admin refund path.
				slog.Warn("payment succeeded but event is full",
					"intent", ev.IntentID, "event", payment.EventID, "user", payment.UserID)
				monitoring.TrackCapacityOverflow(payment.EventID)
				return nil
			}
			return err

		case RSVPWithdraw:
			return s.rsvps.WithdrawAttendance(txApp, payment.UserID, payment.EventID)
		}
		return nil
	})
	if txErr != nil {
		return txErr
	}

	s.updateSessionStatus(ctx, ev.IntentID, payment.Status)
	s.notifyUser(payment.UserID, map[string]any{
		"type":       "payment_" + payment.Status,
		"payment_id": payment.StripeID,
		"event_id":   payment.EventID,
		"amount":     payment.DisplayAmount(),
	})

	return nil
}

// SyncIntent is the reconciliation fallback: pull the intent state from
// the processor and apply it through the same reducer the webhook uses.
func (s *PaymentService) SyncIntent(ctx context.Context, userID, intentID string) (*models.Payment, error) {
	record, err := findPaymentByStripeID(s.app, intentID)
	if err != nil {
		return nil, err
	}
	local := paymentFromRecord(record)
	if local.UserID != userID {
		return nil, status.ErrPaymentNotFound
	}

	var intent *processor.Intent
	callErr := s.breaker.Execute(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProcessorTimeout)
		defer cancel()

		var procErr error
		intent, procErr = s.processor.GetIntent(callCtx, intentID)
		return procErr
	})
	if callErr != nil {
		if errors.Is(callErr, utils.ErrCircuitOpen) {
			return nil, fmt.Errorf("%w: %v", status.ErrProcessorUnavailable, callErr)
		}
		return nil, callErr
	}

	var kind processor.EventKind
	switch intent.Status {
	case processor.StatusSucceeded:
		kind = processor.EventSucceeded
	case processor.StatusCanceled:
		kind = processor.EventFailed
	default:
		return local, nil
	}

	if err := s.ApplyEvent(ctx, &processor.WebhookEvent{Kind: kind, IntentID: intentID, Type: "sync"}); err != nil {
		return nil, err
	}

	record, err = findPaymentByStripeID(s.app, intentID)
	if err != nil {
		return nil, err
	}
	return paymentFromRecord(record), nil
}

// CancelIntent cancels a still-pending intent processor-side. The local
// payment stays pending until the processor's cancellation event lands.
func (s *PaymentService) CancelIntent(ctx context.Context, userID, intentID string) error {
	record, err := findPaymentByStripeID(s.app, intentID)
	if err != nil {
		return err
	}
	payment := paymentFromRecord(record)
	if payment.UserID != userID {
		return status.ErrPaymentNotFound
	}
	if payment.Settled() {
		return fmt.Errorf("cannot cancel a %s payment", payment.Status)
	}

	return s.breaker.Execute(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProcessorTimeout)
		defer cancel()
		return s.processor.CancelIntent(callCtx, intentID)
	})
}

// Refund issues a processor-side refund, marks the payment refunded and
// withdraws the matching RSVP.
func (s *PaymentService) Refund(ctx context.Context, paymentID string, amount *int64, reason string) (*models.Payment, error) {
	record, err := s.app.FindRecordById("payments", paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	payment := paymentFromRecord(record)

	if payment.Status == models.PaymentRefunded {
		return nil, status.ErrAlreadyRefunded
	}
	if payment.StripeID == "" {
		return nil, status.ErrNoProcessorID
	}
	if payment.Status != models.PaymentSucceeded {
		return nil, fmt.Errorf("cannot refund a %s payment", payment.Status)
	}

	req := &processor.RefundRequest{IntentID: payment.StripeID, Reason: reason}
	if amount != nil {
		req.Amount = *amount
	}

	callErr := s.breaker.Execute(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProcessorTimeout)
		defer cancel()

		_, procErr := s.processor.Refund(callCtx, req)
		return procErr
	})
	if callErr != nil {
		if errors.Is(callErr, utils.ErrCircuitOpen) {
			return nil, fmt.Errorf("%w: %v", status.ErrProcessorUnavailable, callErr)
		}
		return nil, callErr
	}

	if err := s.ApplyEvent(ctx, &processor.WebhookEvent{
		Kind:     processor.EventRefunded,
		IntentID: payment.StripeID,
		Type:     "refund",
	}); err != nil {
		return nil, err
	}

	record, err = s.app.FindRecordById("payments", paymentID)
	if err != nil {
		return nil, fmt.Errorf("reload payment: %w", err)
	}
	return paymentFromRecord(record), nil
}

// HistoryEntry is a payment joined with its event summary.
type HistoryEntry struct {
	Payment       *models.Payment `json:"payment"`
	Event         *models.Event   `json:"event"`
	DisplayAmount string          `json:"display_amount"`
}

// History returns the caller's payments, newest first.
func (s *PaymentService) History(userID string) ([]HistoryEntry, error) {
	records, err := s.app.FindRecordsByFilter(
		"payments",
		"user = {:userId}",
		"-created",
		50,
		0,
		map[string]any{"userId": userID},
	)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	result := make([]HistoryEntry, 0, len(records))
	for _, record := range records {
		payment := paymentFromRecord(record)
		event, err := getEvent(s.app, payment.EventID)
		if err != nil {
			slog.Error("History: missing event for payment", "payment", payment.ID, "error", err)
			continue
		}
		result = append(result, HistoryEntry{
			Payment:       payment,
			Event:         event,
			DisplayAmount: payment.DisplayAmount().StringFixed(2),
		})
	}

	return result, nil
}

// IntentStatus serves status polls from the Redis session cache, falling
// back to the database when the session expired.
func (s *PaymentService) IntentStatus(ctx context.Context, userID, intentID string) (string, error) {
	sessionKey := fmt.Sprintf("payment:%s", intentID)
	data := s.Redis.HGetAll(ctx, sessionKey).Val()
	if len(data) > 0 && data["user_id"] == userID {
		return data["status"], nil
	}

	record, err := findPaymentByStripeID(s.app, intentID)
	if err != nil {
		return "", err
	}
	payment := paymentFromRecord(record)
	if payment.UserID != userID {
		return "", status.ErrPaymentNotFound
	}
	return payment.Status, nil
}

func (s *PaymentService) cacheSession(ctx context.Context, intentID, userID, eventID string, amount int64, st string) {
	sessionKey := fmt.Sprintf("payment:%s", intentID)
	s.Redis.HSet(ctx, sessionKey, map[string]any{
		"user_id":    userID,
		"event_id":   eventID,
		"amount":     amount,
		"status":     st,
		"created_at": time.Now().Unix(),
	})
	s.Redis.Expire(ctx, sessionKey, s.cfg.PaymentTimeout)
}

func (s *PaymentService) updateSessionStatus(ctx context.Context, intentID, st string) {
	sessionKey := fmt.Sprintf("payment:%s", intentID)
	s.Redis.HSet(ctx, sessionKey, "status", st)
}

func (s *PaymentService) notifyUser(userID string, message map[string]any) {
	if s.PubNub == nil {
		return
	}
	channel := fmt.Sprintf("user-%s", userID)
	s.PubNub.Publish().
		Channel(channel).
		Message(message).
		Execute()
}

func findPaymentByStripeID(app core.App, intentID string) (*core.Record, error) {
	record, err := app.FindFirstRecordByFilter(
		"payments",
		"stripe_id = {:intentId}",
		map[string]any{"intentId": intentID},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("find payment by intent: %w", err)
	}
	return record, nil
}

func paymentMode(event *models.Event) string {
	if event.PayWhatYouCan {
		return "pwyc"
	}
	return "fixed"
}
