package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/winwai/raffled/internal/economics"
)

func TestEvaluateRequiresBothConditions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// prize 100, eCPM 3, fill 0.9 => 40741 required ad views.
	base := Raffle{
		PrizeValue: 100,
		ECPM:       3,
		FillRate:   0.9,
	}

	cases := []struct {
		name         string
		adViews      int64
		drawDate     time.Time
		wantEligible bool
		wantAds      bool
		wantDate     bool
	}{
		{"neither condition", 100, now.Add(24 * time.Hour), false, false, false},
		{"ads only", 50000, now.Add(24 * time.Hour), false, true, false},
		{"date only", 100, now.Add(-24 * time.Hour), false, false, true},
		{"both conditions", 50000, now.Add(-24 * time.Hour), true, true, true},
		{"threshold exactly met on draw date", 40741, now, true, true, true},
		{"one view short", 40740, now, false, false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := base
			r.TotalAdViews = tc.adViews
			r.DrawDate = tc.drawDate

			ev, err := Evaluate(r, now)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if ev.Eligible != tc.wantEligible {
				t.Fatalf("eligible: expected %v, got %v", tc.wantEligible, ev.Eligible)
			}
			if ev.AdThresholdMet != tc.wantAds {
				t.Fatalf("ad threshold: expected %v, got %v", tc.wantAds, ev.AdThresholdMet)
			}
			if ev.DateReached != tc.wantDate {
				t.Fatalf("date reached: expected %v, got %v", tc.wantDate, ev.DateReached)
			}
			if ev.RequiredAdViews != 40741 {
				t.Fatalf("required ad views: expected 40741, got %d", ev.RequiredAdViews)
			}
		})
	}
}

func TestEvaluateSurfacesBadEconomics(t *testing.T) {
	r := Raffle{PrizeValue: 100, ECPM: 0, FillRate: 0.9, DrawDate: time.Now()}
	if _, err := Evaluate(r, time.Now()); !errors.Is(err, economics.ErrInvalidECPM) {
		t.Fatalf("expected invalid ecpm, got %v", err)
	}
}
