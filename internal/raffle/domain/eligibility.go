package domain

import (
	"time"

	"github.com/winwai/raffled/internal/economics"
)

// Evaluation is the outcome of a draw-readiness check. Both gates must hold:
// the platform never draws a prize it has not funded, and never draws before
// the advertised date even when funding arrives early.
type Evaluation struct {
	Eligible        bool
	AdThresholdMet  bool
	DateReached     bool
	RequiredAdViews int64
}

// Evaluate checks both draw conditions for a raffle at the given instant.
// It is pure; callers re-evaluate on every sweep because TotalAdViews moves
// between ticks.
func Evaluate(r Raffle, now time.Time) (Evaluation, error) {
	required, err := economics.AdsNeeded(r.PrizeValue, r.ECPM, r.FillRate, economics.SafetyMargin)
	if err != nil {
		return Evaluation{}, err
	}

	ev := Evaluation{
		AdThresholdMet:  r.TotalAdViews >= required,
		DateReached:     !now.Before(r.DrawDate),
		RequiredAdViews: required,
	}
	ev.Eligible = ev.AdThresholdMet && ev.DateReached
	return ev, nil
}
