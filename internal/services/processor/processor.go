package processor

import (
	"context"
)

// Status is the processor-side lifecycle state of a payment intent.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusCanceled  Status = "canceled"
)

// Intent is a processor-side authorization-to-charge. The client completes
// it with ClientSecret; webhook events reference it by ID.
type Intent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret"`
	Amount       int64             `json:"amount"` // minor currency units
	Currency     string            `json:"currency"`
	Status       Status            `json:"status"`
	Metadata     map[string]string `json:"metadata"`
}

type IntentRequest struct {
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Metadata       map[string]string `json:"metadata"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

type RefundRequest struct {
	IntentID string `json:"intent_id"`
	Amount   int64  `json:"amount"` // 0 = full refund
	Reason   string `json:"reason,omitempty"`
}

type Refund struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
}

// EventKind is the closed set of webhook variants the reconciliation
// pipeline consumes. Anything the processor sends outside this set maps
// to EventIgnored.
type EventKind int

const (
	EventIgnored EventKind = iota
	EventSucceeded
	EventFailed
	EventRefunded
)

func (k EventKind) String() string {
	switch k {
	case EventSucceeded:
		return "succeeded"
	case EventFailed:
		return "failed"
	case EventRefunded:
		return "refunded"
	}
	return "ignored"
}

// WebhookEvent is a verified, parsed processor callback.
type WebhookEvent struct {
	Kind     EventKind
	IntentID string
	Amount   int64
	Livemode bool
	Metadata map[string]string

	// Type is the raw processor event type, kept for logging.
	Type string
}

// Processor is the common interface for payment-processor backends.
type Processor interface {
	// Provider returns the processor name.
	Provider() string

	// CreateIntent creates a processor-side payment intent.
	CreateIntent(ctx context.Context, req *IntentRequest) (*Intent, error)

	// GetIntent fetches the current state of an intent.
	GetIntent(ctx context.Context, intentID string) (*Intent, error)

	// CancelIntent cancels a not-yet-completed intent.
	CancelIntent(ctx context.Context, intentID string) error

	// Refund issues a refund against a completed intent.
	Refund(ctx context.Context, req *RefundRequest) (*Refund, error)

	// ParseWebhook verifies the signature over the raw body and maps the
	// event to the closed WebhookEvent variant set.
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
