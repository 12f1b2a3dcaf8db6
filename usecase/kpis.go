// PurpleKit Analytics - KPI Reduction
// Copyright (c) 2024 PurpleKit. All rights reserved.

package usecase

import (
	"math"

	"github.com/purplekit/backend/services/analytics/domain/entity"
)

// reduceKPIs computes the headline numbers from the rows in range. Absence of
// data is a valid state: zero counts, a 0 detection rate, and a nil mean.
func reduceKPIs(engagements []*entity.Engagement, actions []*entity.Action, findings []*entity.Finding) KPISet {
	byStatus := make(map[entity.EngagementStatus]int, len(entity.EngagementStatuses))
	for _, status := range entity.EngagementStatuses {
		byStatus[status] = 0
	}
	for _, e := range engagements {
		byStatus[e.Status]++
	}

	detected := 0
	ttdSum := 0.0
	ttdSamples := 0
	for _, a := range actions {
		if a.Detected() {
			detected++
		}
		if ttd := a.TimeToDetect(); ttd != nil {
			ttdSum += *ttd
			ttdSamples++
		}
	}

	openCritical := 0
	for _, f := range findings {
		if f.OpenCritical() {
			openCritical++
		}
	}

	return KPISet{
		TotalEngagements:     len(engagements),
		EngagementsByStatus:  byStatus,
		OverallDetectionRate: percentage(detected, len(actions)),
		AvgTimeToDetect:      mean(ttdSum, ttdSamples),
		OpenCriticalFindings: openCritical,
		TotalFindings:        len(findings),
	}
}

// percentage returns part/total as a percentage rounded to one decimal,
// guarding the zero-total case so the result is 0 rather than NaN.
func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(part) / float64(total) * 100)
}

// mean returns sum/samples rounded to one decimal, or nil with no samples.
// The distinction matters: a true average of 0 seconds and "never measured"
// render differently.
func mean(sum float64, samples int) *float64 {
	if samples == 0 {
		return nil
	}
	m := round1(sum / float64(samples))
	return &m
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
