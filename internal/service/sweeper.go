package service

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/iliyamo/shared-session-control/internal/model"
)

// SweeperUserStore is the slice of the user repository the sweeper touches.
type SweeperUserStore interface {
	ListExpired(ctx context.Context, now time.Time) ([]model.User, error)
	DisableExpired(ctx context.Context, id uint64) (bool, error)
}

// SweeperLedger records AUTO_DISABLED transitions.
type SweeperLedger interface {
	CreateHistory(ctx context.Context, h *model.BillingHistory) error
}

// ExpirationSweeper disables accounts whose trial or billing cycle has
// ended. It runs once 5 seconds after start (catch-up for downtime), then
// hourly at minute 0. The guarded UPDATE in the store makes overlapping
// runs idempotent: only the run that flips the row writes history.
type ExpirationSweeper struct {
	users  SweeperUserStore
	ledger SweeperLedger
	now    func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

func NewExpirationSweeper(users SweeperUserStore, ledger SweeperLedger) *ExpirationSweeper {
	return &ExpirationSweeper{
		users:  users,
		ledger: ledger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Start schedules the catch-up run and the hourly sweep. Safe to call once.
func (s *ExpirationSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	go func() {
		select {
		case <-time.After(5 * time.Second):
			s.RunOnce(runCtx)
		case <-runCtx.Done():
		}
	}()

	c := cron.New()
	if _, err := c.AddFunc("0 * * * *", func() { s.RunOnce(runCtx) }); err != nil {
		log.Printf("sweeper: schedule failed: %v", err)
		return
	}
	c.Start()
	s.cron = c
}

// Stop halts the schedule and any in-flight run's context.
func (s *ExpirationSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if s.cron != nil {
		s.cron.Stop()
	}
	s.cancel()
	s.running = false
}

// RunOnce performs one sweep. Exported so tests and the catch-up goroutine
// drive it directly.
func (s *ExpirationSweeper) RunOnce(ctx context.Context) {
	now := s.now()
	expired, err := s.users.ListExpired(ctx, now)
	if err != nil {
		log.Printf("sweeper: list expired failed: %v", err)
		return
	}
	for _, u := range expired {
		flipped, err := s.users.DisableExpired(ctx, u.ID)
		if err != nil {
			log.Printf("sweeper: disable user %d failed: %v", u.ID, err)
			continue
		}
		if !flipped {
			// Another run or an operator got there first.
			continue
		}
		reason := "billing_cycle_expired"
		var endedAt *time.Time
		if u.IsTrialActive {
			reason = "trial_expired"
			endedAt = u.TrialEndDate
		} else {
			endedAt = u.BillingCycleEnd
		}
		blob, _ := json.Marshal(map[string]any{"reason": reason, "ended_at": endedAt})
		if err := s.ledger.CreateHistory(ctx, &model.BillingHistory{
			UserID: u.ID, Event: model.BillingAutoDisabled, Details: blob,
		}); err != nil {
			log.Printf("sweeper: history write failed for user %d: %v", u.ID, err)
		}
		log.Printf("sweeper: disabled user %d (%s)", u.ID, reason)
	}
}
