package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/shared-session-control/internal/model"
)

type fakeSweeperUsers struct {
	expired  []model.User
	disabled map[uint64]bool
}

func (f *fakeSweeperUsers) ListExpired(ctx context.Context, now time.Time) ([]model.User, error) {
	var out []model.User
	for _, u := range f.expired {
		if !f.disabled[u.ID] {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeSweeperUsers) DisableExpired(ctx context.Context, id uint64) (bool, error) {
	if f.disabled[id] {
		return false, nil // guard: already disabled
	}
	f.disabled[id] = true
	return true, nil
}

func TestSweeperDisablesExpiredAndWritesHistory(t *testing.T) {
	cycleEnd := time.Now().UTC().Add(-time.Second)
	trialEnd := time.Now().UTC().Add(-time.Hour)
	users := &fakeSweeperUsers{
		expired: []model.User{
			{ID: 1, IsBillingActive: true, BillingCycleEnd: &cycleEnd},
			{ID: 2, IsTrialActive: true, TrialEndDate: &trialEnd},
		},
		disabled: map[uint64]bool{},
	}
	ledger := &fakeLedger{}
	s := NewExpirationSweeper(users, ledger)

	s.RunOnce(context.Background())

	assert.True(t, users.disabled[1])
	assert.True(t, users.disabled[2])
	require.Len(t, ledger.history, 2)
	for _, h := range ledger.history {
		assert.Equal(t, model.BillingAutoDisabled, h.Event)
	}
}

func TestSweeperIsIdempotent(t *testing.T) {
	cycleEnd := time.Now().UTC().Add(-time.Minute)
	users := &fakeSweeperUsers{
		expired:  []model.User{{ID: 1, IsBillingActive: true, BillingCycleEnd: &cycleEnd}},
		disabled: map[uint64]bool{},
	}
	ledger := &fakeLedger{}
	s := NewExpirationSweeper(users, ledger)

	s.RunOnce(context.Background())
	s.RunOnce(context.Background())

	// The second run finds nothing to flip: exactly one history row.
	assert.Len(t, ledger.history, 1)
}

func TestSweeperStartStop(t *testing.T) {
	users := &fakeSweeperUsers{disabled: map[uint64]bool{}}
	s := NewExpirationSweeper(users, &fakeLedger{})
	s.Start(context.Background())
	s.Stop()
	// Stopping twice is safe.
	s.Stop()
}
