package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"screening-system/internal/services/processor"
	"screening-system/internal/status"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

type ClientConfig struct {
	// SecretKey authenticates API calls to Stripe.
	SecretKey string `json:"secretKey"`

	// WebhookSecret signs webhook payloads.
	WebhookSecret string `json:"webhookSecret"`

	// Currency for all intents, e.g. "usd".
	Currency string `json:"currency"`
}

type Client struct {
	api           *client.API
	webhookSecret string
	currency      string
}

// New creates a Stripe-backed payment processor.
func New(c *ClientConfig) *Client {
	api := &client.API{}
	api.Init(c.SecretKey, nil)

	currency := c.Currency
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	return &Client{
		api:           api,
		webhookSecret: c.WebhookSecret,
		currency:      currency,
	}
}

func (c *Client) Provider() string {
	return "stripe"
}

func (c *Client) CreateIntent(ctx context.Context, req *processor.IntentRequest) (*processor.Intent, error) {
	currency := req.Currency
	if currency == "" {
		currency = c.currency
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, mapErr("CreateIntent", err)
	}

	return toIntent(pi), nil
}

func (c *Client) GetIntent(ctx context.Context, intentID string) (*processor.Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := c.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, mapErr("GetIntent", err)
	}

	return toIntent(pi), nil
}

func (c *Client) CancelIntent(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx

	if _, err := c.api.PaymentIntents.Cancel(intentID, params); err != nil {
		return mapErr("CancelIntent", err)
	}
	return nil
}

func (c *Client) Refund(ctx context.Context, req *processor.RefundRequest) (*processor.Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.IntentID),
	}
	params.Context = ctx
	if req.Amount > 0 {
		params.Amount = stripe.Int64(req.Amount)
	}
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}

	ref, err := c.api.Refunds.New(params)
	if err != nil {
		return nil, mapErr("Refund", err)
	}

	return &processor.Refund{ID: ref.ID, Amount: ref.Amount}, nil
}

// ParseWebhook verifies the Stripe-Signature header over the raw payload
// and maps payment_intent.* / charge.refunded events to the variant set.
func (c *Client) ParseWebhook(payload []byte, signature string) (*processor.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrSignatureInvalid, err)
	}

	out := &processor.WebhookEvent{
		Kind:     processor.EventIgnored,
		Livemode: event.Livemode,
		Type:     string(event.Type),
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("ParseWebhook: decode payment intent: %w", err)
		}
		out.IntentID = pi.ID
		out.Amount = pi.Amount
		out.Metadata = pi.Metadata
		if event.Type == "payment_intent.succeeded" {
			out.Kind = processor.EventSucceeded
		} else {
			out.Kind = processor.EventFailed
		}

	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("ParseWebhook: decode charge: %w", err)
		}
		if ch.PaymentIntent != nil {
			out.IntentID = ch.PaymentIntent.ID
		}
		out.Amount = ch.AmountRefunded
		out.Metadata = ch.Metadata
		out.Kind = processor.EventRefunded
	}

	return out, nil
}

func toIntent(pi *stripe.PaymentIntent) *processor.Intent {
	return &processor.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       toStatus(pi.Status),
		Metadata:     pi.Metadata,
	}
}

func toStatus(s stripe.PaymentIntentStatus) processor.Status {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return processor.StatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return processor.StatusCanceled
	}
	return processor.StatusPending
}

// mapErr keeps client mistakes client-facing and turns everything the
// caller cannot fix into ErrProcessorUnavailable.
func mapErr(op string, err error) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) && sErr.HTTPStatusCode < http.StatusInternalServerError && sErr.HTTPStatusCode != 0 {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, status.ErrProcessorUnavailable, err)
}
