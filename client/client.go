// Package client is a small SDK for callers waiting on payment
// confirmation. The server learns about completed payments from
// processor webhooks; this client polls the caller's RSVP until the
// webhook lands and falls back to a server-side intent sync when it
// never does.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ConfirmationState is the poller's view of the reconciliation loop.
type ConfirmationState string

const (
	StateWaiting   ConfirmationState = "waiting"
	StateConfirmed ConfirmationState = "confirmed"
	StateTimedOut  ConfirmationState = "timed_out"
)

const (
	defaultBaseBackoff = 500 * time.Millisecond
	defaultMaxBackoff  = 8 * time.Second
)

type Client struct {
	baseURL   string
	authToken string
	hc        *http.Client

	// BaseBackoff is the first poll interval; it doubles per attempt up
	// to MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func New(baseURL, authToken string) *Client {
	return &Client{
		baseURL:     baseURL,
		authToken:   authToken,
		hc:          &http.Client{Timeout: 10 * time.Second},
		BaseBackoff: defaultBaseBackoff,
		MaxBackoff:  defaultMaxBackoff,
	}
}

// Result reports how a reconciliation attempt ended and whether the
// fallback sync was needed to get there.
type Result struct {
	State  ConfirmationState
	Synced bool
}

// WaitForConfirmation polls the caller's RSVP for the event until it
// shows "going" or maxAttempts polls have been spent.
func (c *Client) WaitForConfirmation(ctx context.Context, eventID string, maxAttempts int) (ConfirmationState, error) {
	backoff := c.BaseBackoff

	for attempt := 0; attempt < maxAttempts; attempt++ {
		going, err := c.rsvpGoing(ctx, eventID)
		if err != nil {
			return StateWaiting, err
		}
		if going {
			return StateConfirmed, nil
		}

		if attempt == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return StateWaiting, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.MaxBackoff {
			backoff = c.MaxBackoff
		}
	}

	return StateTimedOut, nil
}

// Reconcile runs the full loop: poll until confirmed, and only after
// timing out ask the server to sync the intent against the processor,
// then re-check once. Both the webhook and the sync path drive the same
// server-side transition, so either ordering converges on the same state.
func (c *Client) Reconcile(ctx context.Context, eventID, intentID string, maxAttempts int) (*Result, error) {
	state, err := c.WaitForConfirmation(ctx, eventID, maxAttempts)
	if err != nil {
		return nil, err
	}
	if state == StateConfirmed {
		return &Result{State: StateConfirmed}, nil
	}

	paymentStatus, err := c.SyncIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}

	if paymentStatus == "succeeded" {
		going, err := c.rsvpGoing(ctx, eventID)
		if err != nil {
			return nil, err
		}
		if going {
			return &Result{State: StateConfirmed, Synced: true}, nil
		}
	}

	return &Result{State: StateTimedOut, Synced: true}, nil
}

// SyncIntent asks the server to pull the intent's state from the payment
// processor and apply it. Returns the payment status after the sync.
func (c *Client) SyncIntent(ctx context.Context, intentID string) (string, error) {
	url := fmt.Sprintf("%s/api/v1/payments/%s/sync", c.baseURL, intentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(nil))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.authToken)

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("sync intent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("sync intent: unexpected status %d", resp.StatusCode)
	}

	var payment struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return "", fmt.Errorf("sync intent: decode response: %w", err)
	}
	return payment.Status, nil
}

func (c *Client) rsvpGoing(ctx context.Context, eventID string) (bool, error) {
	url := fmt.Sprintf("%s/api/v1/events/%s/rsvp/me", c.baseURL, eventID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", c.authToken)

	resp, err := c.hc.Do(req)
	if err != nil {
		return false, fmt.Errorf("fetch rsvp: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("fetch rsvp: unexpected status %d", resp.StatusCode)
	}

	var rsvp struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rsvp); err != nil {
		return false, fmt.Errorf("fetch rsvp: decode response: %w", err)
	}
	return rsvp.Status == "going", nil
}
