package services

import (
	"context"
	"errors"
	"log/slog"
	"screening-system/config"
	"screening-system/internal/services/processor"
	"screening-system/internal/status"
	"screening-system/monitoring"
	"time"
)

// WebhookService verifies processor callbacks and drives payment
// transitions from them. The processor delivers at-least-once and in no
// particular order; everything downstream of ParseWebhook must tolerate
// replays.
type WebhookService struct {
	payments  *PaymentService
	processor processor.Processor
	cfg       *config.Config
}

func NewWebhookService(payments *PaymentService, proc processor.Processor, cfg *config.Config) *WebhookService {
	return &WebhookService{
		payments:  payments,
		processor: proc,
		cfg:       cfg,
	}
}

// Handle processes one raw webhook delivery. A returned error wrapping
// ErrSignatureInvalid must become a 400 and never be retried; any other
// error should surface as non-2xx so the processor redelivers.
func (s *WebhookService) Handle(ctx context.Context, payload []byte, signature string) error {
	started := time.Now()

	ev, err := s.processor.ParseWebhook(payload, signature)
	if err != nil {
		monitoring.TrackWebhookEvent("unverified", "rejected")
		return err
	}

	// Live-mode traffic must never mutate a test environment.
	if ev.Livemode && !s.cfg.IsProduction() {
		slog.Warn("ignoring live-mode webhook event in non-production environment",
			"type", ev.Type, "intent", ev.IntentID)
		monitoring.TrackWebhookEvent(ev.Type, "ignored_livemode")
		return nil
	}

	if ev.Kind == processor.EventIgnored {
		monitoring.TrackWebhookEvent(ev.Type, "ignored")
		return nil
	}

	if err := s.payments.ApplyEvent(ctx, ev); err != nil {
		if errors.Is(err, status.ErrPaymentNotFound) {
			// No local intent to reconcile against; redelivery cannot fix
			// that, so acknowledge.
			slog.Warn("webhook event for unknown intent", "type", ev.Type, "intent", ev.IntentID)
			monitoring.TrackWebhookEvent(ev.Type, "unknown_intent")
			return nil
		}
		monitoring.TrackWebhookEvent(ev.Type, "error")
		return err
	}

	monitoring.TrackWebhookEvent(ev.Type, "processed")
	monitoring.ObserveWebhookDuration(ev.Type, time.Since(started))
	return nil
}
