package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	rsvpOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rsvp_operations_total",
			Help: "RSVP ledger operations by requested status and outcome",
		},
		[]string{"status", "outcome"},
	)

	paymentIntents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intents_total",
			Help: "Payment intents created by pricing mode",
		},
		[]string{"mode"},
	)

	webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Processor webhook events by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	webhookDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_processing_seconds",
			Help:    "Duration of webhook event processing",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"type"},
	)

	capacityOverflows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capacity_overflow_total",
			Help: "Succeeded payments that arrived after the event filled",
		},
		[]string{"event_id"},
	)

	pendingSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pending_payment_sessions_total",
			Help: "Current number of cached payment sessions",
		},
	)
)

// TrackRSVPOperation records an RSVP request outcome.
func TrackRSVPOperation(status, outcome string) {
	rsvpOperations.WithLabelValues(status, outcome).Inc()
}

// TrackPaymentIntent records an intent creation by pricing mode.
func TrackPaymentIntent(mode string) {
	paymentIntents.WithLabelValues(mode).Inc()
}

// TrackWebhookEvent records a webhook delivery outcome.
func TrackWebhookEvent(eventType, outcome string) {
	webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// ObserveWebhookDuration records end-to-end webhook processing time.
func ObserveWebhookDuration(eventType string, d time.Duration) {
	webhookDuration.WithLabelValues(eventType).Observe(d.Seconds())
}

// TrackCapacityOverflow records a paid admission refused for capacity.
func TrackCapacityOverflow(eventID string) {
	capacityOverflows.WithLabelValues(eventID).Inc()
}

type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}

	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.collectSessionMetrics(context.Background())
	}
}

func (m *Monitor) collectSessionMetrics(ctx context.Context) {
	keys, err := m.redis.Keys(ctx, "payment:*").Result()
	if err != nil {
		return
	}
	pendingSessions.Set(float64(len(keys)))
}
