// Package service implements the raffle draw core: orchestration, ad-view
// ingestion and reporting over the raffle tables.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/winwai/raffled/internal/cache"
	"github.com/winwai/raffled/internal/clock"
	"github.com/winwai/raffled/internal/config"
	"github.com/winwai/raffled/internal/economics"
	"github.com/winwai/raffled/internal/events"
	obslog "github.com/winwai/raffled/internal/observability/logger"
	"github.com/winwai/raffled/internal/observability/metrics"
	"github.com/winwai/raffled/internal/raffle/domain"
	"github.com/winwai/raffled/internal/selection"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Config  config.Config
	Picker  *selection.Picker
	Outbox  *events.Outbox
	Metrics *metrics.RaffleMetrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID   *snowflake.Node
	clk     clock.Clock
	cfg     config.Config
	picker  *selection.Picker
	outbox  *events.Outbox
	metrics *metrics.RaffleMetrics

	statsCache *cache.TTLCache[snowflake.ID, domain.Stats]
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("raffle.service"),

		genID:   p.GenID,
		clk:     p.Clock,
		cfg:     p.Config,
		picker:  p.Picker,
		outbox:  p.Outbox,
		metrics: p.Metrics,

		statsCache: cache.NewTTLCache[snowflake.ID, domain.Stats](),
	}
}

// RunDraw executes the draw for one raffle as a single transaction: state
// check, winner selection, terminal transition, history record and reward
// issuance commit together or not at all. The status-guarded update is the
// linearization point; a racing draw observes zero affected rows and fails
// with a conflict.
func (s *Service) RunDraw(ctx context.Context, raffleID snowflake.ID) (domain.DrawResult, error) {
	var result domain.DrawResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var raffle domain.Raffle
		if err := tx.First(&raffle, "id = ?", raffleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrRaffleNotFound
			}
			return err
		}
		if raffle.Status != domain.RaffleStatusActive {
			return domain.ErrRaffleNotActive
		}

		var entries []domain.Entry
		if err := tx.Where("raffle_id = ?", raffleID).
			Order("entered_at ASC, id ASC").
			Find(&entries).Error; err != nil {
			return err
		}

		now := s.clk.Now()

		if len(entries) == 0 {
			cancelled, err := s.transitionRaffle(tx, raffleID, map[string]any{
				"status":     domain.RaffleStatusCancelled,
				"updated_at": now,
			})
			if err != nil {
				return err
			}
			if !cancelled {
				return domain.ErrRaffleNotActive
			}
			if err := s.outbox.PublishTx(ctx, tx, events.Event{
				RaffleID:  raffleID,
				Type:      events.EventRaffleCancelled,
				Payload:   map[string]any{"raffle_id": raffleID.String(), "title": raffle.Title},
				DedupeKey: "draw:" + raffleID.String(),
			}); err != nil {
				return err
			}

			result = domain.DrawResult{
				RaffleID: raffleID,
				Status:   domain.RaffleStatusCancelled,
				DrawnAt:  now,
			}
			return nil
		}

		weights := make([]int64, len(entries))
		for i, entry := range entries {
			weights[i] = entry.Tickets
		}

		idx, err := s.picker.PickIndex(weights)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrWinnerSelection, err)
		}
		if idx < 0 {
			return domain.ErrWinnerSelection
		}
		winner := entries[idx]
		winnerName := s.resolveWinnerName(ctx, tx, winner.UserID)

		completed, err := s.transitionRaffle(tx, raffleID, map[string]any{
			"status":     domain.RaffleStatusCompleted,
			"winner_id":  winner.UserID,
			"drawn_at":   now,
			"updated_at": now,
		})
		if err != nil {
			return err
		}
		if !completed {
			return domain.ErrRaffleNotActive
		}

		totalTickets := selection.Total(weights)
		history := domain.RaffleHistory{
			ID:                s.genID.Generate(),
			RaffleID:          raffleID,
			WinnerID:          winner.UserID,
			WinnerName:        winnerName,
			PrizeValue:        raffle.PrizeValue,
			TotalAdViews:      raffle.TotalAdViews,
			TotalEntries:      totalTickets,
			TotalParticipants: int64(len(entries)),
			DrawDate:          raffle.DrawDate,
			DrawnAt:           now,
			Category:          raffle.Category,
			Title:             raffle.Title,
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}

		reward := domain.Reward{
			ID:           s.genID.Generate(),
			UserID:       winner.UserID,
			RaffleID:     raffleID,
			RaffleTitle:  raffle.Title,
			PrizeDetails: fmt.Sprintf("%s - Value: $%g", raffle.Title, raffle.PrizeValue),
			ClaimStatus:  domain.ClaimStatusUnclaimed,
			WonAt:        now,
			ExpiresAt:    now.Add(time.Duration(s.cfg.RewardValidityDays) * 24 * time.Hour),
		}
		if err := tx.Create(&reward).Error; err != nil {
			return err
		}

		if err := s.outbox.PublishTx(ctx, tx, events.Event{
			RaffleID: raffleID,
			Type:     events.EventRaffleCompleted,
			Payload: events.DrawCompletedPayload{
				RaffleID:   raffleID.String(),
				WinnerID:   winner.UserID.String(),
				WinnerName: winnerName,
				Title:      raffle.Title,
			}.ToMap(),
			DedupeKey: "draw:" + raffleID.String(),
		}); err != nil {
			return err
		}
		if err := s.outbox.PublishTx(ctx, tx, events.Event{
			RaffleID: raffleID,
			Type:     events.EventRewardIssued,
			Payload: events.RewardIssuedPayload{
				RewardID:  reward.ID.String(),
				RaffleID:  raffleID.String(),
				UserID:    winner.UserID.String(),
				ExpiresAt: reward.ExpiresAt.Format(time.RFC3339),
			}.ToMap(),
			DedupeKey: "reward:" + raffleID.String(),
		}); err != nil {
			return err
		}

		winnerID := winner.UserID
		result = domain.DrawResult{
			RaffleID:          raffleID,
			Status:            domain.RaffleStatusCompleted,
			WinnerID:          &winnerID,
			WinnerName:        winnerName,
			TotalEntries:      totalTickets,
			TotalParticipants: int64(len(entries)),
			DrawnAt:           now,
		}
		return nil
	})
	if err != nil {
		return domain.DrawResult{}, err
	}

	s.statsCache.Delete(raffleID)

	log := obslog.WithTrace(ctx, s.log)
	switch result.Status {
	case domain.RaffleStatusCompleted:
		s.metrics.IncDrawCompleted(ctx)
		s.metrics.IncRewardIssued(ctx)
		log.Info("draw completed",
			zap.String("raffle_id", raffleID.String()),
			zap.String("winner_id", result.WinnerID.String()),
			zap.Int64("total_entries", result.TotalEntries),
			zap.Int64("total_participants", result.TotalParticipants),
		)
	case domain.RaffleStatusCancelled:
		s.metrics.IncDrawCancelled(ctx)
		log.Info("draw cancelled, no entries", zap.String("raffle_id", raffleID.String()))
	}
	return result, nil
}

// transitionRaffle applies a terminal transition guarded on the active state.
// Reports whether this call won the transition.
func (s *Service) transitionRaffle(tx *gorm.DB, raffleID snowflake.ID, fields map[string]any) (bool, error) {
	res := tx.Model(&domain.Raffle{}).
		Where("id = ? AND status = ?", raffleID, domain.RaffleStatusActive).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// resolveWinnerName is best-effort denormalization: a missing profile must
// not abort the draw.
func (s *Service) resolveWinnerName(ctx context.Context, tx *gorm.DB, userID snowflake.ID) string {
	var user domain.User
	if err := tx.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			obslog.WithTrace(ctx, s.log).Warn("winner profile lookup failed",
				zap.String("user_id", userID.String()), zap.Error(err))
		}
		return domain.PlaceholderWinnerName
	}
	if user.DisplayName == "" {
		return domain.PlaceholderWinnerName
	}
	return user.DisplayName
}

// RecordAdViews bumps a raffle's cumulative ad counter with a single atomic
// SQL increment. Many watchers hit this concurrently; there is no
// read-modify-write anywhere in the path.
func (s *Service) RecordAdViews(ctx context.Context, req domain.RecordAdViewsRequest) (domain.RecordAdViewsResponse, error) {
	count := req.AdCount
	if count == 0 {
		count = 1
	}
	if count < 0 {
		return domain.RecordAdViewsResponse{}, domain.ErrInvalidAdCount
	}

	res := s.db.WithContext(ctx).Model(&domain.Raffle{}).
		Where("id = ? AND status = ?", req.RaffleID, domain.RaffleStatusActive).
		Updates(map[string]any{
			"total_ad_views": gorm.Expr("total_ad_views + ?", count),
			"updated_at":     s.clk.Now(),
		})
	if res.Error != nil {
		return domain.RecordAdViewsResponse{}, res.Error
	}
	if res.RowsAffected == 0 {
		var raffle domain.Raffle
		if err := s.db.WithContext(ctx).Select("id", "status").
			First(&raffle, "id = ?", req.RaffleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.RecordAdViewsResponse{}, domain.ErrRaffleNotFound
			}
			return domain.RecordAdViewsResponse{}, err
		}
		return domain.RecordAdViewsResponse{}, domain.ErrRaffleNotActive
	}

	s.metrics.AddAdViews(ctx, count)
	s.statsCache.Delete(req.RaffleID)
	return domain.RecordAdViewsResponse{Success: true, AdCount: count}, nil
}

// GetStats reports a raffle's funding progress, participation and draw
// eligibility. Responses are cached briefly; any write path invalidates.
func (s *Service) GetStats(ctx context.Context, raffleID snowflake.ID) (domain.Stats, error) {
	if stats, ok := s.statsCache.Get(raffleID); ok {
		return stats, nil
	}

	var raffle domain.Raffle
	if err := s.db.WithContext(ctx).First(&raffle, "id = ?", raffleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Stats{}, domain.ErrRaffleNotFound
		}
		return domain.Stats{}, err
	}

	var participation struct {
		TotalTickets      int64
		TotalParticipants int64
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(tickets), 0) AS total_tickets, COUNT(1) AS total_participants
		 FROM entries
		 WHERE raffle_id = ?`,
		raffleID,
	).Scan(&participation).Error; err != nil {
		return domain.Stats{}, err
	}

	now := s.clk.Now()
	ev, err := domain.Evaluate(raffle, now)
	if err != nil {
		return domain.Stats{}, err
	}

	progress := float64(raffle.TotalAdViews) / float64(ev.RequiredAdViews) * 100
	daysUntil := int64(math.Ceil(raffle.DrawDate.Sub(now).Hours() / 24))

	stats := domain.Stats{
		RaffleID:   raffle.ID,
		Status:     raffle.Status,
		PrizeValue: raffle.PrizeValue,
		Category:   raffle.Category,
		Title:      raffle.Title,
		WinnerID:   raffle.WinnerID,
		AdMetrics: domain.StatsAdMetrics{
			CurrentAdViews:     raffle.TotalAdViews,
			RequiredAdViews:    ev.RequiredAdViews,
			ProgressPercentage: math.Round(progress*100) / 100,
			ECPM:               raffle.ECPM,
			FillRate:           raffle.FillRate,
		},
		Participation: domain.StatsParticipation{
			TotalEntries:      participation.TotalTickets,
			TotalParticipants: participation.TotalParticipants,
		},
		Schedule: domain.StatsSchedule{
			DrawDate:      raffle.DrawDate,
			DateReached:   ev.DateReached,
			DaysUntilDraw: daysUntil,
		},
		Eligibility: domain.StatsEligibility{
			IsEligible: ev.Eligible,
			CanDraw:    ev.Eligible && raffle.Status == domain.RaffleStatusActive,
			Reasons: domain.StatsReasons{
				AdThresholdMet: ev.AdThresholdMet,
				DateReached:    ev.DateReached,
				StatusActive:   raffle.Status == domain.RaffleStatusActive,
			},
		},
	}

	s.statsCache.Set(raffleID, stats, s.cfg.StatsCacheTTL)
	return stats, nil
}

// SimulateThreshold plans the ad economics for a hypothetical prize, filling
// configured defaults for omitted assumptions.
func (s *Service) SimulateThreshold(ctx context.Context, req domain.SimulateThresholdRequest) (economics.Breakdown, error) {
	eCPM := req.ECPM
	if eCPM == 0 {
		eCPM = s.cfg.DefaultECPM
	}
	fillRate := req.FillRate
	if fillRate == 0 {
		fillRate = s.cfg.DefaultFillRate
	}
	return economics.SimulateThreshold(req.PrizeValue, eCPM, fillRate)
}

// testSelectionPool is the fixed diagnostic pool: win rates should approach
// tickets/18.
var testSelectionPool = []struct {
	label   string
	tickets int64
}{
	{"user1", 1},
	{"user2", 5},
	{"user3", 10},
	{"user4", 2},
}

// TestSelection samples the weighted selector repeatedly and reports observed
// vs expected win rates. Admin diagnostic only; touches no state.
func (s *Service) TestSelection(ctx context.Context, iterations int) (domain.SelectionReport, error) {
	if iterations == 0 {
		iterations = 1000
	}
	if iterations < 1 || iterations > 1_000_000 {
		return domain.SelectionReport{}, domain.ErrInvalidIterations
	}

	weights := make([]int64, len(testSelectionPool))
	for i, entry := range testSelectionPool {
		weights[i] = entry.tickets
	}
	total := selection.Total(weights)

	wins := make([]int, len(weights))
	for i := 0; i < iterations; i++ {
		idx, err := s.picker.PickIndex(weights)
		if err != nil {
			return domain.SelectionReport{}, err
		}
		wins[idx]++
	}

	report := domain.SelectionReport{
		Iterations:   iterations,
		TotalTickets: total,
		Results:      make(map[string]domain.SelectionResult, len(weights)),
	}
	for i, entry := range testSelectionPool {
		expected := float64(entry.tickets) / float64(total) * 100
		actual := float64(wins[i]) / float64(iterations) * 100
		report.Results[entry.label] = domain.SelectionResult{
			Tickets:            entry.tickets,
			Wins:               wins[i],
			ExpectedPercentage: math.Round(expected*100) / 100,
			ActualPercentage:   math.Round(actual*100) / 100,
			Difference:         math.Round(math.Abs(expected-actual)*100) / 100,
		}
	}
	return report, nil
}
