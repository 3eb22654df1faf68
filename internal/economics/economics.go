// Package economics computes the ad-impression thresholds that fund a prize.
package economics

import (
	"errors"
	"math"
)

const (
	// DefaultECPM is the assumed revenue per 1000 ad impressions in dollars.
	DefaultECPM = 3.0

	// DefaultFillRate is the assumed fraction of ad requests that return a
	// billable impression.
	DefaultFillRate = 0.9

	// SafetyMargin is the multiplicative buffer applied on top of the raw
	// impression requirement so collected revenue exceeds the prize cost.
	SafetyMargin = 1.1
)

var (
	ErrInvalidPrizeValue   = errors.New("invalid_prize_value")
	ErrInvalidECPM         = errors.New("invalid_ecpm")
	ErrInvalidFillRate     = errors.New("invalid_fill_rate")
	ErrInvalidSafetyMargin = errors.New("invalid_safety_margin")
)

// AdsNeeded returns the number of ad views required before a prize of the
// given value is funded: ceil((prizeValue/eCPM) * 1000 * (1/fillRate) * margin).
// Inputs are validated, never clamped; a violating input is a configuration
// error on the raffle record.
func AdsNeeded(prizeValue, eCPM, fillRate, safetyMargin float64) (int64, error) {
	if prizeValue <= 0 || math.IsNaN(prizeValue) || math.IsInf(prizeValue, 0) {
		return 0, ErrInvalidPrizeValue
	}
	if eCPM <= 0 || math.IsNaN(eCPM) || math.IsInf(eCPM, 0) {
		return 0, ErrInvalidECPM
	}
	if fillRate <= 0 || fillRate > 1 || math.IsNaN(fillRate) {
		return 0, ErrInvalidFillRate
	}
	if safetyMargin < 1 || math.IsNaN(safetyMargin) || math.IsInf(safetyMargin, 0) {
		return 0, ErrInvalidSafetyMargin
	}

	baseAds := (prizeValue / eCPM) * 1000
	adjusted := baseAds * (1 / fillRate) * safetyMargin
	return int64(math.Ceil(adjusted)), nil
}

// Breakdown is the full threshold simulation for a prize configuration.
type Breakdown struct {
	PrizeValue   float64 `json:"prize_value"`
	ECPM         float64 `json:"ecpm"`
	FillRate     float64 `json:"fill_rate"`
	SafetyMargin float64 `json:"safety_margin"`

	BaseAdsNeeded       int64 `json:"base_ads_needed"`
	AdjustedForFillRate int64 `json:"adjusted_for_fill_rate"`
	FinalWithMargin     int64 `json:"final_with_margin"`

	ExpectedRevenue  float64 `json:"expected_revenue"`
	MarginAmount     float64 `json:"margin_amount"`
	MarginPercentage float64 `json:"margin_percentage"`

	// AdsPerUserFor100 is a worked example: ads each user watches if 100
	// users split the load evenly.
	AdsPerUserFor100 int64 `json:"ads_per_user_for_100"`
}

// SimulateThreshold returns the step-by-step impression requirement for a
// prize. Useful for planning raffle economics before authoring one.
func SimulateThreshold(prizeValue, eCPM, fillRate float64) (Breakdown, error) {
	if _, err := AdsNeeded(prizeValue, eCPM, fillRate, SafetyMargin); err != nil {
		return Breakdown{}, err
	}

	baseAds := (prizeValue / eCPM) * 1000
	adsWithFillRate := baseAds * (1 / fillRate)
	finalAds := adsWithFillRate * SafetyMargin
	expectedRevenue := (finalAds / 1000) * eCPM * fillRate

	return Breakdown{
		PrizeValue:          prizeValue,
		ECPM:                eCPM,
		FillRate:            fillRate,
		SafetyMargin:        SafetyMargin,
		BaseAdsNeeded:       int64(math.Ceil(baseAds)),
		AdjustedForFillRate: int64(math.Ceil(adsWithFillRate)),
		FinalWithMargin:     int64(math.Ceil(finalAds)),
		ExpectedRevenue:     roundCents(expectedRevenue),
		MarginAmount:        roundCents(expectedRevenue - prizeValue),
		MarginPercentage:    roundCents((expectedRevenue - prizeValue) / prizeValue * 100),
		AdsPerUserFor100:    int64(math.Ceil(finalAds / 100)),
	}, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
