package services

import (
	"context"
	"testing"

	"screening-system/internal/services/processor"
	"screening-system/internal/status"
	"screening-system/models"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestResolveAmount(t *testing.T) {
	fixed := &models.Event{Price: 1500}
	pwyc := &models.Event{Price: 1000, PayWhatYouCan: true, MinPrice: 500}
	pwycNoMin := &models.Event{Price: 1000, PayWhatYouCan: true}
	free := &models.Event{Price: 0}

	tests := []struct {
		name      string
		event     *models.Event
		requested *int64
		want      int64
		wantErr   error
	}{
		{"fixed price ignores client amount", fixed, int64Ptr(1), 1500, nil},
		{"fixed price without client amount", fixed, nil, 1500, nil},
		{"pwyc at minimum", pwyc, int64Ptr(500), 500, nil},
		{"pwyc above minimum", pwyc, int64Ptr(2500), 2500, nil},
		{"pwyc with no configured minimum accepts any amount", pwycNoMin, int64Ptr(1), 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveAmount(tt.event, tt.requested)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("free event rejects intent creation", func(t *testing.T) {
		_, err := ResolveAmount(free, int64Ptr(1000))
		assert.ErrorIs(t, err, status.ErrEventIsFree)
	})

	t.Run("pwyc requires an amount", func(t *testing.T) {
		_, err := ResolveAmount(pwyc, nil)
		assert.Error(t, err)
	})

	t.Run("pwyc below minimum reports the minimum", func(t *testing.T) {
		_, err := ResolveAmount(pwyc, int64Ptr(499))
		var belowMin *status.AmountBelowMinimumError
		require.ErrorAs(t, err, &belowMin)
		assert.Equal(t, int64(500), belowMin.Minimum)
	})
}

func TestReduce(t *testing.T) {
	tests := []struct {
		name    string
		kind    processor.EventKind
		current string
		want    Transition
	}{
		{
			"succeeded from pending confirms",
			processor.EventSucceeded, models.PaymentPending,
			Transition{PaymentStatus: models.PaymentSucceeded, RSVPAction: RSVPConfirm},
		},
		{
			"succeeded replay is a no-op",
			processor.EventSucceeded, models.PaymentSucceeded,
			Transition{},
		},
		{
			"stale succeeded cannot undo a refund",
			processor.EventSucceeded, models.PaymentRefunded,
			Transition{},
		},
		{
			"succeeded after a failure wins",
			processor.EventSucceeded, models.PaymentFailed,
			Transition{PaymentStatus: models.PaymentSucceeded, RSVPAction: RSVPConfirm},
		},
		{
			"failed from pending",
			processor.EventFailed, models.PaymentPending,
			Transition{PaymentStatus: models.PaymentFailed},
		},
		{
			"out-of-order failure cannot undo a success",
			processor.EventFailed, models.PaymentSucceeded,
			Transition{},
		},
		{
			"refunded from succeeded withdraws",
			processor.EventRefunded, models.PaymentSucceeded,
			Transition{PaymentStatus: models.PaymentRefunded, RSVPAction: RSVPWithdraw},
		},
		{
			"refund replay is a no-op",
			processor.EventRefunded, models.PaymentRefunded,
			Transition{},
		},
		{
			"ignored event never transitions",
			processor.EventIgnored, models.PaymentPending,
			Transition{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reduce(tt.kind, tt.current))
		})
	}
}

// Applying the same event twice must land in the same state as applying
// it once, for every (event, state) pair.
func TestReduceIdempotent(t *testing.T) {
	kinds := []processor.EventKind{
		processor.EventSucceeded, processor.EventFailed, processor.EventRefunded,
	}
	states := []string{
		models.PaymentPending, models.PaymentSucceeded,
		models.PaymentFailed, models.PaymentRefunded,
	}

	for _, kind := range kinds {
		for _, current := range states {
			first := Reduce(kind, current)
			after := current
			if first.PaymentStatus != "" {
				after = first.PaymentStatus
			}
			second := Reduce(kind, after)
			assert.Empty(t, second.PaymentStatus,
				"kind=%s current=%s: replay must not transition again", kind, current)
		}
	}
}

func TestIntentStatusServedFromSession(t *testing.T) {
	redisClient, mock := redismock.NewClientMock()
	svc := &PaymentService{Redis: redisClient}

	mock.ExpectHGetAll("payment:pi_123").SetVal(map[string]string{
		"user_id": "user1",
		"status":  models.PaymentSucceeded,
	})

	got, err := svc.IntentStatus(context.Background(), "user1", "pi_123")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSucceeded, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSessionStatus(t *testing.T) {
	redisClient, mock := redismock.NewClientMock()
	svc := &PaymentService{Redis: redisClient}

	mock.ExpectHSet("payment:pi_123", "status", models.PaymentFailed).SetVal(1)

	svc.updateSessionStatus(context.Background(), "pi_123", models.PaymentFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
