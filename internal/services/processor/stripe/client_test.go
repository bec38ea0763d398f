package stripe

import (
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"screening-system/internal/services/processor"
	"screening-system/internal/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func signPayload(t *testing.T, payload []byte) string {
	t.Helper()
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, testWebhookSecret)
	return fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig))
}

func newTestClient() *Client {
	return New(&ClientConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
	})
}

func TestParseWebhookSucceededIntent(t *testing.T) {
	c := newTestClient()
	payload := []byte(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"livemode": false,
		"data": {
			"object": {
				"id": "pi_123",
				"object": "payment_intent",
				"amount": 1500,
				"metadata": {"event_id": "evt_rec_1", "user_id": "user1"}
			}
		}
	}`)

	ev, err := c.ParseWebhook(payload, signPayload(t, payload))
	require.NoError(t, err)

	assert.Equal(t, processor.EventSucceeded, ev.Kind)
	assert.Equal(t, "pi_123", ev.IntentID)
	assert.Equal(t, int64(1500), ev.Amount)
	assert.Equal(t, "user1", ev.Metadata["user_id"])
	assert.False(t, ev.Livemode)
}

func TestParseWebhookFailedAndCanceledMapToFailed(t *testing.T) {
	c := newTestClient()
	for _, eventType := range []string{"payment_intent.payment_failed", "payment_intent.canceled"} {
		payload := []byte(fmt.Sprintf(`{
			"id": "evt_2",
			"type": "%s",
			"data": {"object": {"id": "pi_456", "object": "payment_intent", "amount": 900}}
		}`, eventType))

		ev, err := c.ParseWebhook(payload, signPayload(t, payload))
		require.NoError(t, err, eventType)
		assert.Equal(t, processor.EventFailed, ev.Kind, eventType)
		assert.Equal(t, "pi_456", ev.IntentID, eventType)
	}
}

func TestParseWebhookChargeRefunded(t *testing.T) {
	c := newTestClient()
	payload := []byte(`{
		"id": "evt_3",
		"type": "charge.refunded",
		"data": {
			"object": {
				"id": "ch_1",
				"object": "charge",
				"amount_refunded": 1500,
				"payment_intent": "pi_123"
			}
		}
	}`)

	ev, err := c.ParseWebhook(payload, signPayload(t, payload))
	require.NoError(t, err)

	assert.Equal(t, processor.EventRefunded, ev.Kind)
	assert.Equal(t, "pi_123", ev.IntentID)
	assert.Equal(t, int64(1500), ev.Amount)
}

func TestParseWebhookUnknownTypeIsIgnored(t *testing.T) {
	c := newTestClient()
	payload := []byte(`{"id": "evt_4", "type": "customer.created", "data": {"object": {}}}`)

	ev, err := c.ParseWebhook(payload, signPayload(t, payload))
	require.NoError(t, err)
	assert.Equal(t, processor.EventIgnored, ev.Kind)
	assert.Equal(t, "customer.created", ev.Type)
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	c := newTestClient()
	payload := []byte(`{"id": "evt_5", "type": "payment_intent.succeeded", "data": {"object": {}}}`)

	_, err := c.ParseWebhook(payload, "t=12345,v1=deadbeef")
	assert.ErrorIs(t, err, status.ErrSignatureInvalid)
}

func TestParseWebhookRejectsTamperedPayload(t *testing.T) {
	c := newTestClient()
	payload := []byte(`{"id": "evt_6", "type": "payment_intent.succeeded", "data": {"object": {"id": "pi_123", "object": "payment_intent"}}}`)
	signature := signPayload(t, payload)

	tampered := []byte(`{"id": "evt_6", "type": "payment_intent.succeeded", "data": {"object": {"id": "pi_999", "object": "payment_intent"}}}`)
	_, err := c.ParseWebhook(tampered, signature)
	assert.ErrorIs(t, err, status.ErrSignatureInvalid)
}
