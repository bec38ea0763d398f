package services

import (
	"context"
	"errors"
	"testing"

	"screening-system/config"
	"screening-system/internal/services/processor"
	"screening-system/internal/status"

	"github.com/stretchr/testify/assert"
)

// fakeProcessor returns a canned webhook event (or error) from
// ParseWebhook; the intent methods are never reached in these tests.
type fakeProcessor struct {
	event *processor.WebhookEvent
	err   error
}

func (f *fakeProcessor) Provider() string { return "fake" }

func (f *fakeProcessor) CreateIntent(ctx context.Context, req *processor.IntentRequest) (*processor.Intent, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProcessor) GetIntent(ctx context.Context, intentID string) (*processor.Intent, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProcessor) CancelIntent(ctx context.Context, intentID string) error {
	return errors.New("not implemented")
}

func (f *fakeProcessor) Refund(ctx context.Context, req *processor.RefundRequest) (*processor.Refund, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProcessor) ParseWebhook(payload []byte, signature string) (*processor.WebhookEvent, error) {
	return f.event, f.err
}

func newWebhookService(proc processor.Processor, environment string) *WebhookService {
	return NewWebhookService(&PaymentService{}, proc, &config.Config{Environment: environment})
}

func TestHandleRejectsBadSignature(t *testing.T) {
	proc := &fakeProcessor{err: status.ErrSignatureInvalid}
	svc := newWebhookService(proc, "development")

	err := svc.Handle(context.Background(), []byte("payload"), "t=1,v1=bogus")
	assert.ErrorIs(t, err, status.ErrSignatureInvalid)
}

func TestHandleIgnoresLiveModeOutsideProduction(t *testing.T) {
	proc := &fakeProcessor{event: &processor.WebhookEvent{
		Kind:     processor.EventSucceeded,
		IntentID: "pi_live",
		Livemode: true,
		Type:     "payment_intent.succeeded",
	}}
	svc := newWebhookService(proc, "development")

	// Acknowledged without touching any state.
	err := svc.Handle(context.Background(), []byte("payload"), "sig")
	assert.NoError(t, err)
}

func TestHandleAcknowledgesUnmappedEventTypes(t *testing.T) {
	proc := &fakeProcessor{event: &processor.WebhookEvent{
		Kind: processor.EventIgnored,
		Type: "customer.created",
	}}
	svc := newWebhookService(proc, "production")

	err := svc.Handle(context.Background(), []byte("payload"), "sig")
	assert.NoError(t, err)
}
