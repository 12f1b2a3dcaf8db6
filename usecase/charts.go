// PurpleKit Analytics - Chart Reducers
// Six independent grouping reductions over the rows in range
// Copyright (c) 2024 PurpleKit. All rights reserved.

package usecase

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/purplekit/backend/services/analytics/domain/entity"
	"github.com/purplekit/backend/services/analytics/domain/repository"
	"github.com/purplekit/backend/services/analytics/domain/service"
)

// reduceEngagementsOverTime buckets engagement lifecycle events across the
// window. Started and completed timestamps land in their owning bucket; an
// ACTIVE engagement counts in every bucket its lifespan overlaps.
func reduceEngagementsOverTime(engagements []*entity.Engagement, window repository.TimeWindow) []EngagementTimePoint {
	granularity := service.GranularityFor(window.Start, window.End)
	keys := service.SeedBuckets(window.Start, window.End, granularity)

	points := make([]EngagementTimePoint, len(keys))
	index := make(map[time.Time]int, len(keys))
	for i, key := range keys {
		points[i] = EngagementTimePoint{Bucket: service.Label(key, granularity)}
		index[key] = i
	}

	for _, e := range engagements {
		if e.StartedAt != nil {
			if i, ok := index[service.BucketKey(*e.StartedAt, granularity)]; ok {
				points[i].Started++
			}
		}
		if e.CompletedAt != nil {
			if i, ok := index[service.BucketKey(*e.CompletedAt, granularity)]; ok {
				points[i].Completed++
			}
		}
		if e.Status != entity.EngagementStatusActive {
			continue
		}
		for i, key := range keys {
			bucketEnd := service.BucketEnd(key, granularity)
			if e.ActiveDuring(key, bucketEnd.Add(-time.Nanosecond)) {
				points[i].Active++
			}
		}
	}

	return points
}

// reduceDetectionsByTool ranks defensive tools by detection rate over the
// validations that named them. Sorted by rate, then detected count, then tool
// name so ordering never depends on map iteration; truncated to the top 10.
func reduceDetectionsByTool(actions []*entity.Action) []ToolDetectionRate {
	byTool := make(map[uuid.UUID]*ToolDetectionRate)

	for _, a := range actions {
		v := a.Validation
		if v == nil || v.ToolID == nil {
			continue
		}
		entry, ok := byTool[*v.ToolID]
		if !ok {
			entry = &ToolDetectionRate{ToolID: *v.ToolID}
			if v.Tool != nil {
				entry.Tool = v.Tool.Name
			}
			byTool[*v.ToolID] = entry
		}
		entry.TotalValidations++
		if v.Outcome.Detected() {
			entry.Detected++
		}
	}

	ranked := make([]ToolDetectionRate, 0, len(byTool))
	for _, entry := range byTool {
		entry.Rate = percentage(entry.Detected, entry.TotalValidations)
		ranked = append(ranked, *entry)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Rate != ranked[j].Rate {
			return ranked[i].Rate > ranked[j].Rate
		}
		if ranked[i].Detected != ranked[j].Detected {
			return ranked[i].Detected > ranked[j].Detected
		}
		if ranked[i].Tool != ranked[j].Tool {
			return ranked[i].Tool < ranked[j].Tool
		}
		return ranked[i].ToolID.String() < ranked[j].ToolID.String()
	})

	return truncateTools(ranked)
}

// reduceFindingsByPillar counts findings per root-cause pillar. All three
// pillars appear, zero-seeded, so an empty range still renders.
func reduceFindingsByPillar(findings []*entity.Finding) []PillarCount {
	counts := make(map[entity.FindingPillar]int, len(entity.FindingPillars))
	for _, f := range findings {
		counts[f.Pillar]++
	}

	result := make([]PillarCount, 0, len(entity.FindingPillars))
	for _, pillar := range entity.FindingPillars {
		result = append(result, PillarCount{Pillar: pillar, Count: counts[pillar]})
	}
	return result
}

// reduceActionsOverTime buckets executed actions across the window.
func reduceActionsOverTime(actions []*entity.Action, window repository.TimeWindow) []ActionTimePoint {
	granularity := service.GranularityFor(window.Start, window.End)
	keys := service.SeedBuckets(window.Start, window.End, granularity)

	points := make([]ActionTimePoint, len(keys))
	index := make(map[time.Time]int, len(keys))
	for i, key := range keys {
		points[i] = ActionTimePoint{Bucket: service.Label(key, granularity)}
		index[key] = i
	}

	for _, a := range actions {
		if i, ok := index[service.BucketKey(a.ExecutedAt, granularity)]; ok {
			points[i].Count++
		}
	}

	return points
}

// reduceResponseTimes averages the four timing phases independently. Each
// phase is nil when no action in range carried a sample for it.
func reduceResponseTimes(actions []*entity.Action) ResponseTimeAverages {
	var detectSum, investigateSum, containSum, remediateSum float64
	var detectN, investigateN, containN, remediateN int

	for _, a := range actions {
		t := a.Timing
		if t == nil {
			continue
		}
		if t.TimeToDetectSecs != nil {
			detectSum += *t.TimeToDetectSecs
			detectN++
		}
		if t.TimeToInvestigateSecs != nil {
			investigateSum += *t.TimeToInvestigateSecs
			investigateN++
		}
		if t.TimeToContainSecs != nil {
			containSum += *t.TimeToContainSecs
			containN++
		}
		if t.TimeToRemediateSecs != nil {
			remediateSum += *t.TimeToRemediateSecs
			remediateN++
		}
	}

	return ResponseTimeAverages{
		AvgTimeToDetect:      mean(detectSum, detectN),
		AvgTimeToInvestigate: mean(investigateSum, investigateN),
		AvgTimeToContain:     mean(containSum, containN),
		AvgTimeToRemediate:   mean(remediateSum, remediateN),
	}
}

// reduceFindingsBySeverity groups findings by engagement with per-tier
// counts, sorted by total descending with ties broken by engagement id so the
// ranking is deterministic; truncated to the top 10.
func reduceFindingsBySeverity(findings []*entity.Finding, engagements []*entity.Engagement) []EngagementSeverityBreakdown {
	names := make(map[uuid.UUID]string, len(engagements))
	for _, e := range engagements {
		names[e.ID] = e.Name
	}

	byEngagement := make(map[uuid.UUID]*EngagementSeverityBreakdown)
	for _, f := range findings {
		entry, ok := byEngagement[f.EngagementID]
		if !ok {
			entry = &EngagementSeverityBreakdown{
				EngagementID:   f.EngagementID,
				EngagementName: names[f.EngagementID],
				Counts:         make(map[entity.FindingSeverity]int, len(entity.FindingSeverities)),
			}
			for _, severity := range entity.FindingSeverities {
				entry.Counts[severity] = 0
			}
			byEngagement[f.EngagementID] = entry
		}
		entry.Counts[f.Severity]++
		entry.Total++
	}

	ranked := make([]EngagementSeverityBreakdown, 0, len(byEngagement))
	for _, entry := range byEngagement {
		ranked = append(ranked, *entry)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Total != ranked[j].Total {
			return ranked[i].Total > ranked[j].Total
		}
		return ranked[i].EngagementID.String() < ranked[j].EngagementID.String()
	})

	return truncateBreakdowns(ranked)
}

func truncateTools(entries []ToolDetectionRate) []ToolDetectionRate {
	if len(entries) > topEntryLimit {
		return entries[:topEntryLimit]
	}
	return entries
}

func truncateBreakdowns(entries []EngagementSeverityBreakdown) []EngagementSeverityBreakdown {
	if len(entries) > topEntryLimit {
		return entries[:topEntryLimit]
	}
	return entries
}
