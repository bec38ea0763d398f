package services

import (
	"sync"
	"testing"

	"screening-system/models"

	"github.com/stretchr/testify/assert"
)

func TestCanAdmit(t *testing.T) {
	tests := []struct {
		name        string
		maxCapacity int
		goingCount  int64
		want        bool
	}{
		{"unlimited event always admits", 0, 100000, true},
		{"negative capacity treated as unlimited", -1, 50, true},
		{"below capacity", 100, 99, true},
		{"at capacity", 100, 100, false},
		{"over capacity", 100, 150, false},
		{"single seat empty", 1, 0, true},
		{"single seat taken", 1, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAdmit(tt.maxCapacity, tt.goingCount))
		})
	}
}

func TestDecideChange(t *testing.T) {
	tests := []struct {
		name      string
		existing  string
		exists    bool
		requested string
		want      ChangeOp
	}{
		{"no prior rsvp creates", "", false, models.RSVPGoing, OpCreate},
		{"different status updates", models.RSVPInterested, true, models.RSVPGoing, OpUpdate},
		{"same status toggles off", models.RSVPGoing, true, models.RSVPGoing, OpDelete},
		{"interested toggles off", models.RSVPInterested, true, models.RSVPInterested, OpDelete},
		{"not_going toggles off", models.RSVPNotGoing, true, models.RSVPNotGoing, OpDelete},
		{"going to not_going updates", models.RSVPGoing, true, models.RSVPNotGoing, OpUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecideChange(tt.existing, tt.exists, tt.requested))
		})
	}
}

// Every status request for a status the user already holds must resolve
// to a removal, never a write.
func TestDecideChangeToggleLaw(t *testing.T) {
	for _, st := range []string{models.RSVPGoing, models.RSVPInterested, models.RSVPNotGoing} {
		assert.Equal(t, OpDelete, DecideChange(st, true, st), "status %q", st)
	}
}

// Simulates concurrent admissions serialized the way the storage
// transaction serializes them: with N seats and N+k contenders, exactly
// N may pass the guard.
func TestCapacityGuardUnderContention(t *testing.T) {
	const (
		capacity   = 50
		contenders = 80
	)

	var (
		mu       sync.Mutex
		going    int64
		admitted int
		rejected int
		wg       sync.WaitGroup
	)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			mu.Lock()
			defer mu.Unlock()
			if CanAdmit(capacity, going) {
				going++
				admitted++
			} else {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, capacity, admitted)
	assert.Equal(t, contenders-capacity, rejected)
	assert.Equal(t, int64(capacity), going)
}
