package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/winwai/raffled/internal/economics"
)

var (
	ErrRaffleNotFound = errors.New("raffle_not_found")

	// ErrRaffleNotActive signals the raffle already reached a terminal state.
	// A concurrent or repeated draw attempt observes this, never a second
	// completed transition.
	ErrRaffleNotActive = errors.New("raffle_not_active")

	ErrInvalidAdCount = errors.New("invalid_ad_count")

	// ErrWinnerSelection marks an invariant violation: entries existed but no
	// winner could be chosen. Indicates corrupt entry data upstream.
	ErrWinnerSelection = errors.New("winner_selection_failed")

	ErrInvalidIterations = errors.New("invalid_iterations")
)

// PlaceholderWinnerName is written when the winner's profile cannot be
// resolved at draw time. It is never re-resolved afterwards.
const PlaceholderWinnerName = "Unknown User"

// DrawResult summarizes one committed draw.
type DrawResult struct {
	RaffleID          snowflake.ID  `json:"raffle_id"`
	Status            RaffleStatus  `json:"status"`
	WinnerID          *snowflake.ID `json:"winner_id,omitempty"`
	WinnerName        string        `json:"winner_name,omitempty"`
	TotalEntries      int64         `json:"total_entries"`
	TotalParticipants int64         `json:"total_participants"`
	DrawnAt           time.Time     `json:"drawn_at"`
}

type RecordAdViewsRequest struct {
	RaffleID snowflake.ID
	AdCount  int64
}

type RecordAdViewsResponse struct {
	Success bool  `json:"success"`
	AdCount int64 `json:"ad_count"`
}

type SimulateThresholdRequest struct {
	PrizeValue float64 `json:"prize_value"`
	ECPM       float64 `json:"ecpm"`
	FillRate   float64 `json:"fill_rate"`
}

// Stats is the admin-facing progress report for one raffle.
type Stats struct {
	RaffleID   snowflake.ID  `json:"raffle_id"`
	Status     RaffleStatus  `json:"status"`
	PrizeValue float64       `json:"prize_value"`
	Category   string        `json:"category"`
	Title      string        `json:"title"`
	WinnerID   *snowflake.ID `json:"winner_id"`

	AdMetrics     StatsAdMetrics     `json:"ad_metrics"`
	Participation StatsParticipation `json:"participation"`
	Schedule      StatsSchedule      `json:"schedule"`
	Eligibility   StatsEligibility   `json:"eligibility"`
}

type StatsAdMetrics struct {
	CurrentAdViews     int64   `json:"current_ad_views"`
	RequiredAdViews    int64   `json:"required_ad_views"`
	ProgressPercentage float64 `json:"progress_percentage"`
	ECPM               float64 `json:"ecpm"`
	FillRate           float64 `json:"fill_rate"`
}

type StatsParticipation struct {
	TotalEntries      int64 `json:"total_entries"`
	TotalParticipants int64 `json:"total_participants"`
}

type StatsSchedule struct {
	DrawDate      time.Time `json:"draw_date"`
	DateReached   bool      `json:"date_reached"`
	DaysUntilDraw int64     `json:"days_until_draw"`
}

type StatsEligibility struct {
	IsEligible bool         `json:"is_eligible"`
	CanDraw    bool         `json:"can_draw"`
	Reasons    StatsReasons `json:"reasons"`
}

type StatsReasons struct {
	AdThresholdMet bool `json:"ad_threshold_met"`
	DateReached    bool `json:"date_reached"`
	StatusActive   bool `json:"status_active"`
}

// SelectionReport is the fairness diagnostic for the weighted selector.
type SelectionReport struct {
	Iterations   int                        `json:"iterations"`
	TotalTickets int64                      `json:"total_tickets"`
	Results      map[string]SelectionResult `json:"results"`
}

type SelectionResult struct {
	Tickets            int64   `json:"tickets"`
	Wins               int     `json:"wins"`
	ExpectedPercentage float64 `json:"expected_percentage"`
	ActualPercentage   float64 `json:"actual_percentage"`
	Difference         float64 `json:"difference"`
}

// Service is the raffle draw core: orchestration, ingestion and reporting.
type Service interface {
	// RunDraw atomically transitions an eligible-by-caller raffle to its
	// terminal state, records history and issues the winner's reward.
	RunDraw(ctx context.Context, raffleID snowflake.ID) (DrawResult, error)

	// RecordAdViews atomically increments a raffle's cumulative ad counter.
	RecordAdViews(ctx context.Context, req RecordAdViewsRequest) (RecordAdViewsResponse, error)

	// GetStats reports progress, participation and eligibility breakdown.
	GetStats(ctx context.Context, raffleID snowflake.ID) (Stats, error)

	// SimulateThreshold runs the ad-economics planner with config defaults
	// for omitted assumptions.
	SimulateThreshold(ctx context.Context, req SimulateThresholdRequest) (economics.Breakdown, error)

	// TestSelection samples the weighted selector repeatedly over a fixed
	// pool and reports the observed win distribution.
	TestSelection(ctx context.Context, iterations int) (SelectionReport, error)
}
