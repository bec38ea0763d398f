package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reconcileServer simulates the server side of the loop: the RSVP
// appears once the webhook "lands" or a sync is requested.
type reconcileServer struct {
	mu            sync.Mutex
	going         bool
	paymentStatus string
	confirmOnSync bool
	pollCount     int
	syncCount     int
}

func (s *reconcileServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/events/{eventId}/rsvp/me", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.pollCount++
		if !s.going {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "going"})
	})

	mux.HandleFunc("POST /api/v1/payments/{intentId}/sync", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.syncCount++
		if s.confirmOnSync {
			s.going = true
			s.paymentStatus = "succeeded"
		}
		json.NewEncoder(w).Encode(map[string]string{"status": s.paymentStatus})
	})

	return mux
}

// webhookLandsAfter flips the RSVP to going after n polls, as if the
// processor webhook arrived mid-loop.
func (s *reconcileServer) webhookLandsAfter(n int) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/events/{eventId}/rsvp/me", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.pollCount++
		if s.pollCount > n {
			s.going = true
		}
		if !s.going {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "going"})
	})
	return mux
}

func newTestClient(serverURL string) *Client {
	c := New(serverURL, "test-token")
	c.BaseBackoff = time.Millisecond
	c.MaxBackoff = 4 * time.Millisecond
	return c
}

func TestReconcileConfirmsWhenWebhookLandsDuringPolling(t *testing.T) {
	state := &reconcileServer{paymentStatus: "pending"}
	srv := httptest.NewServer(state.webhookLandsAfter(2))
	defer srv.Close()

	c := newTestClient(srv.URL)
	result, err := c.Reconcile(context.Background(), "event1", "pi_123", 10)
	require.NoError(t, err)

	assert.Equal(t, StateConfirmed, result.State)
	assert.False(t, result.Synced, "sync fallback must not run when polling confirms")
	assert.Equal(t, 0, state.syncCount)
}

func TestReconcileFallsBackToSyncAfterTimeout(t *testing.T) {
	state := &reconcileServer{paymentStatus: "pending", confirmOnSync: true}
	srv := httptest.NewServer(state.handler())
	defer srv.Close()

	c := newTestClient(srv.URL)
	result, err := c.Reconcile(context.Background(), "event1", "pi_123", 3)
	require.NoError(t, err)

	assert.Equal(t, StateConfirmed, result.State)
	assert.True(t, result.Synced)
	assert.Equal(t, 1, state.syncCount)
}

func TestReconcileTimesOutWhenPaymentNeverCompletes(t *testing.T) {
	state := &reconcileServer{paymentStatus: "pending"}
	srv := httptest.NewServer(state.handler())
	defer srv.Close()

	c := newTestClient(srv.URL)
	result, err := c.Reconcile(context.Background(), "event1", "pi_123", 3)
	require.NoError(t, err)

	assert.Equal(t, StateTimedOut, result.State)
	assert.True(t, result.Synced)
}

func TestWaitForConfirmationRespectsContext(t *testing.T) {
	state := &reconcileServer{paymentStatus: "pending"}
	srv := httptest.NewServer(state.handler())
	defer srv.Close()

	c := New(srv.URL, "test-token")
	c.BaseBackoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.WaitForConfirmation(ctx, "event1", 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitForConfirmationImmediateSuccess(t *testing.T) {
	state := &reconcileServer{going: true, paymentStatus: "succeeded"}
	srv := httptest.NewServer(state.handler())
	defer srv.Close()

	c := newTestClient(srv.URL)
	got, err := c.WaitForConfirmation(context.Background(), "event1", 1)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, got)
}
