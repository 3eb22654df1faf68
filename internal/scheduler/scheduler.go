// Package scheduler sweeps active raffles once a day and triggers draws for
// the eligible ones.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/winwai/raffled/internal/clock"
	"github.com/winwai/raffled/internal/config"
	"github.com/winwai/raffled/internal/raffle/domain"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Config config.Config
	Svc    domain.Service
}

type Scheduler struct {
	db  *gorm.DB
	log *zap.Logger
	clk clock.Clock
	svc domain.Service

	hour, minute int
	loc          *time.Location
}

func New(p Params) (*Scheduler, error) {
	loc, err := time.LoadLocation(p.Config.Timezone)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		db:     p.DB,
		log:    p.Log.Named("scheduler"),
		clk:    p.Clock,
		svc:    p.Svc,
		hour:   p.Config.DrawHour,
		minute: p.Config.DrawMinute,
		loc:    loc,
	}, nil
}

// SweepResult summarizes one sweep over the active raffles.
type SweepResult struct {
	Checked   int
	Eligible  int
	Completed int
	Cancelled int
	Skipped   int
	Failed    int
}

// RunOnce evaluates every active raffle and draws the eligible ones. Each
// raffle is independent: draws run concurrently and one failure never aborts
// the rest of the batch. Re-running a sweep is always safe; a raffle drawn in
// the meantime surfaces a conflict and counts as skipped.
func (s *Scheduler) RunOnce(ctx context.Context) (SweepResult, error) {
	var raffles []domain.Raffle
	if err := s.db.WithContext(ctx).
		Where("status = ?", domain.RaffleStatusActive).
		Find(&raffles).Error; err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{Checked: len(raffles)}
	if len(raffles) == 0 {
		s.log.Debug("no active raffles")
		return result, nil
	}

	// Eligibility is evaluated fresh on every sweep; ad counters move
	// between ticks.
	now := s.clk.Now()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, raffle := range raffles {
		ev, err := domain.Evaluate(raffle, now)
		if err != nil {
			// Bad economics on the raffle row; authoring bug, skip it.
			s.log.Warn("raffle has invalid economics",
				zap.String("raffle_id", raffle.ID.String()), zap.Error(err))
			result.Failed++
			continue
		}
		if !ev.Eligible {
			s.log.Debug("raffle not yet eligible",
				zap.String("raffle_id", raffle.ID.String()),
				zap.Bool("ad_threshold_met", ev.AdThresholdMet),
				zap.Bool("date_reached", ev.DateReached),
				zap.Int64("required_ad_views", ev.RequiredAdViews),
				zap.Int64("current_ad_views", raffle.TotalAdViews),
			)
			continue
		}
		result.Eligible++

		wg.Add(1)
		go func(r domain.Raffle) {
			defer wg.Done()

			drawResult, err := s.svc.RunDraw(ctx, r.ID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && drawResult.Status == domain.RaffleStatusCompleted:
				result.Completed++
			case err == nil:
				result.Cancelled++
			case errors.Is(err, domain.ErrRaffleNotActive):
				// Another trigger got there first; already handled.
				result.Skipped++
				s.log.Info("raffle already drawn",
					zap.String("raffle_id", r.ID.String()))
			default:
				result.Failed++
				s.log.Error("draw failed",
					zap.String("raffle_id", r.ID.String()), zap.Error(err))
			}
		}(raffle)
	}
	wg.Wait()

	s.log.Info("raffle sweep finished",
		zap.Int("checked", result.Checked),
		zap.Int("eligible", result.Eligible),
		zap.Int("completed", result.Completed),
		zap.Int("cancelled", result.Cancelled),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// RunForever sweeps at the configured local time every day until the context
// is cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	for {
		// Both the target and the wait derive from the injected clock.
		now := s.clk.Now()
		timer := time.NewTimer(s.NextRun(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Error("raffle sweep failed", zap.Error(err))
		}
	}
}

// NextRun returns the next scheduled sweep instant strictly after now.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	local := now.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
