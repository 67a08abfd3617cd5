package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/shared-session-control/internal/model"
)

// --- fakes ---

type fakeBillingUsers struct {
	user       model.User
	cycleCalls []struct {
		cycle      string
		start, end time.Time
	}
	trialCalls []struct{ start, end time.Time }
}

func (f *fakeBillingUsers) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return f.user, nil
}

func (f *fakeBillingUsers) UpdateCycleFields(ctx context.Context, id uint64, cycle string, start, end time.Time) error {
	f.cycleCalls = append(f.cycleCalls, struct {
		cycle      string
		start, end time.Time
	}{cycle, start, end})
	return nil
}

func (f *fakeBillingUsers) UpdateTrialFields(ctx context.Context, id uint64, start, end time.Time) error {
	f.trialCalls = append(f.trialCalls, struct{ start, end time.Time }{start, end})
	return nil
}

type fakeLedger struct {
	payments []model.Payment
	history  []model.BillingHistory
}

func (f *fakeLedger) CreatePayment(ctx context.Context, p *model.Payment) error {
	p.ID = uint64(len(f.payments) + 1)
	f.payments = append(f.payments, *p)
	return nil
}

func (f *fakeLedger) CreateHistory(ctx context.Context, h *model.BillingHistory) error {
	h.ID = uint64(len(f.history) + 1)
	f.history = append(f.history, *h)
	return nil
}

func fixedBilling(users *fakeBillingUsers, ledger *fakeLedger, now time.Time) *BillingService {
	s := NewBillingService(users, ledger)
	s.now = func() time.Time { return now }
	return s
}

// --- cycle arithmetic ---

func TestAddCycleDurations(t *testing.T) {
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	cases := map[string]time.Time{
		model.CycleDaily:       start.Add(24 * time.Hour),
		model.CycleWeekly:      start.Add(7 * 24 * time.Hour),
		model.CycleMonthly:     time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC),
		model.CycleThreeMonths: time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC),
		model.CycleHalfYear:    time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC),
		model.CycleYearly:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	for cycle, want := range cases {
		got, err := AddCycle(start, cycle)
		require.NoError(t, err, cycle)
		assert.Equal(t, want, got, cycle)
	}
}

func TestAddCycleMonthClamping(t *testing.T) {
	jan31 := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	got, err := AddCycle(jan31, model.CycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), got)

	// Leap year clamps to Feb 29.
	jan31leap := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	got, err = AddCycle(jan31leap, model.CycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), got)

	// Oct 31 + 6 months lands on Apr 30.
	oct31 := time.Date(2024, 10, 31, 0, 0, 0, 0, time.UTC)
	got, err = AddCycle(oct31, model.CycleHalfYear)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC), got)
}

func TestAddCycleUnknown(t *testing.T) {
	_, err := AddCycle(time.Now(), "FORTNIGHTLY")
	assert.ErrorIs(t, err, ErrUnknownCycle)
}

// --- status derivation ---

func TestStatusOfTrialActive(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	end := now.Add(36 * time.Hour)
	u := model.User{IsTrialActive: true, TrialEndDate: &end}

	st := StatusOf(u, now)
	assert.Equal(t, BillingStateActive, st.State)
	assert.Equal(t, 2, st.DaysRemaining) // ceil(36h / 24h)
}

func TestStatusOfEndIsExclusive(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	u := model.User{IsTrialActive: true, TrialEndDate: &now}

	// The exact end instant is already expired.
	assert.Equal(t, BillingStateExpired, StatusOf(u, now).State)
}

func TestStatusOfCycleExpired(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	end := now.Add(-time.Second)
	u := model.User{IsBillingActive: true, BillingCycleEnd: &end}

	assert.Equal(t, BillingStateExpired, StatusOf(u, now).State)
}

func TestStatusOfNoPlan(t *testing.T) {
	assert.Equal(t, BillingStateNoPlan, StatusOf(model.User{}, time.Now()).State)
}

func TestStartCycleThenStatus(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	users := &fakeBillingUsers{user: model.User{ID: 1}}
	ledger := &fakeLedger{}
	s := fixedBilling(users, ledger, now)

	require.NoError(t, s.StartCycle(context.Background(), 1, model.CycleWeekly, time.Time{}))
	require.Len(t, users.cycleCalls, 1)

	end := users.cycleCalls[0].end
	u := model.User{IsBillingActive: true, BillingCycleEnd: &end}
	st := StatusOf(u, now)
	assert.Equal(t, BillingStateActive, st.State)
	assert.Equal(t, 7, st.DaysRemaining)

	require.Len(t, ledger.history, 1)
	assert.Equal(t, model.BillingCycleStarted, ledger.history[0].Event)
}

// --- payments ---

func TestAddPaymentStacksOnCurrentCycle(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	currentEnd := now.Add(10 * 24 * time.Hour)
	users := &fakeBillingUsers{user: model.User{ID: 1, IsBillingActive: true, BillingCycleEnd: &currentEnd}}
	ledger := &fakeLedger{}
	s := fixedBilling(users, ledger, now)

	p, err := s.AddPayment(context.Background(), 1, model.CycleMonthly, "29.90", "prepaid", 9)
	require.NoError(t, err)

	// The new cycle starts where the current one ends, not at now.
	assert.Equal(t, currentEnd, p.CycleStartDate)
	assert.Equal(t, time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC), p.CycleEndDate)
	assert.True(t, !p.CycleEndDate.Before(p.CycleStartDate.AddDate(0, 1, 0)))

	require.Len(t, ledger.payments, 1)
	require.Len(t, ledger.history, 1)
	assert.Equal(t, model.BillingPaymentAdded, ledger.history[0].Event)
	require.Len(t, users.cycleCalls, 1)
	assert.Equal(t, p.CycleEndDate, users.cycleCalls[0].end)
}

func TestAddPaymentOnExpiredUserStartsFromNow(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	pastEnd := now.Add(-48 * time.Hour)
	users := &fakeBillingUsers{user: model.User{ID: 1, BillingCycleEnd: &pastEnd}}
	ledger := &fakeLedger{}
	s := fixedBilling(users, ledger, now)

	p, err := s.AddPayment(context.Background(), 1, model.CycleDaily, "5.00", "", 9)
	require.NoError(t, err)
	assert.Equal(t, now, p.CycleStartDate)
	assert.Equal(t, now.Add(24*time.Hour), p.CycleEndDate)
}

func TestSetTrial(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	users := &fakeBillingUsers{user: model.User{ID: 1}}
	ledger := &fakeLedger{}
	s := fixedBilling(users, ledger, now)

	require.NoError(t, s.SetTrial(context.Background(), 1, 48))
	require.Len(t, users.trialCalls, 1)
	assert.Equal(t, now, users.trialCalls[0].start)
	assert.Equal(t, now.Add(48*time.Hour), users.trialCalls[0].end)
	require.Len(t, ledger.history, 1)
	assert.Equal(t, model.BillingTrialStarted, ledger.history[0].Event)
}
