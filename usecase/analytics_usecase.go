// PurpleKit Analytics - Aggregation Orchestrator Use Case
// Fans out the dashboard sub-aggregations and assembles one payload
// Copyright (c) 2024 PurpleKit. All rights reserved.

package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/purplekit/backend/services/analytics/domain/entity"
	"github.com/purplekit/backend/services/analytics/domain/repository"
)

// AnalyticsUseCase orchestrates the dashboard aggregation. It is a pure read
// over the persistence layer: identical arguments against unchanged data
// produce identical results.
type AnalyticsUseCase struct {
	repo   repository.AnalyticsRepository
	logger *logrus.Logger
}

// NewAnalyticsUseCase creates a new analytics use case
func NewAnalyticsUseCase(repo repository.AnalyticsRepository, logger *logrus.Logger) *AnalyticsUseCase {
	return &AnalyticsUseCase{
		repo:   repo,
		logger: logger,
	}
}

// AnalyticsRequest identifies the tenant, the inclusive date range, and an
// optional single-engagement filter.
type AnalyticsRequest struct {
	TenantID     uuid.UUID             `json:"tenant_id"`
	Window       repository.TimeWindow `json:"window"`
	EngagementID *uuid.UUID            `json:"engagement_id,omitempty"`
}

// AnalyticsResponse is the dashboard payload.
type AnalyticsResponse struct {
	KPIs        KPISet    `json:"kpis"`
	Charts      ChartSet  `json:"charts"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// KPISet holds the headline numbers for the requested range.
type KPISet struct {
	TotalEngagements     int                             `json:"totalEngagements"`
	EngagementsByStatus  map[entity.EngagementStatus]int `json:"engagementsByStatus"`
	OverallDetectionRate float64                         `json:"overallDetectionRate"`
	AvgTimeToDetect      *float64                        `json:"avgTimeToDetect"`
	OpenCriticalFindings int                             `json:"openCriticalFindings"`
	TotalFindings        int                             `json:"totalFindings"`
}

// ChartSet holds the six chart series for the requested range.
type ChartSet struct {
	EngagementsOverTime []EngagementTimePoint         `json:"engagementsOverTime"`
	DetectionsByTool    []ToolDetectionRate           `json:"detectionsByTool"`
	FindingsByPillar    []PillarCount                 `json:"findingsByPillar"`
	ActionsOverTime     []ActionTimePoint             `json:"actionsOverTime"`
	ResponseTimes       ResponseTimeAverages          `json:"responseTimes"`
	FindingsBySeverity  []EngagementSeverityBreakdown `json:"findingsBySeverity"`
}

// EngagementTimePoint counts engagement lifecycle events in one bucket. An
// ACTIVE engagement counts in every bucket its lifespan overlaps.
type EngagementTimePoint struct {
	Bucket    string `json:"bucket"`
	Started   int    `json:"started"`
	Completed int    `json:"completed"`
	Active    int    `json:"active"`
}

// ToolDetectionRate is the per-tool detection performance.
type ToolDetectionRate struct {
	ToolID           uuid.UUID `json:"toolId"`
	Tool             string    `json:"tool"`
	TotalValidations int       `json:"totalValidations"`
	Detected         int       `json:"detected"`
	Rate             float64   `json:"rate"`
}

// PillarCount is the finding count for one root-cause pillar.
type PillarCount struct {
	Pillar entity.FindingPillar `json:"pillar"`
	Count  int                  `json:"count"`
}

// ActionTimePoint counts executed actions in one bucket.
type ActionTimePoint struct {
	Bucket string `json:"bucket"`
	Count  int    `json:"count"`
}

// ResponseTimeAverages holds four independent means in seconds. A nil field
// means no action in range carried a sample for that phase.
type ResponseTimeAverages struct {
	AvgTimeToDetect      *float64 `json:"avgTimeToDetect"`
	AvgTimeToInvestigate *float64 `json:"avgTimeToInvestigate"`
	AvgTimeToContain     *float64 `json:"avgTimeToContain"`
	AvgTimeToRemediate   *float64 `json:"avgTimeToRemediate"`
}

// EngagementSeverityBreakdown counts findings per severity tier for one
// engagement.
type EngagementSeverityBreakdown struct {
	EngagementID   uuid.UUID                      `json:"engagementId"`
	EngagementName string                         `json:"engagementName"`
	Counts         map[entity.FindingSeverity]int `json:"counts"`
	Total          int                            `json:"total"`
}

// topEntryLimit bounds ranked chart series to what the dashboard renders.
const topEntryLimit = 10

// Generate runs the seven sub-aggregations concurrently and joins them into
// one payload. The sub-aggregations are mutually independent reads; a failure
// in any one fails the whole request, since a dashboard with silently missing
// sections is worse than an error.
func (uc *AnalyticsUseCase) Generate(ctx context.Context, req AnalyticsRequest) (*AnalyticsResponse, error) {
	logger := uc.logger.WithFields(logrus.Fields{
		"operation":    "generate_analytics",
		"tenant_id":    req.TenantID,
		"window_start": req.Window.Start,
		"window_end":   req.Window.End,
	})

	if err := req.Window.Validate(); err != nil {
		logger.WithError(err).Warn("Rejected invalid analytics window")
		return nil, err
	}

	filter := repository.ReadFilter{
		Window:       req.Window,
		EngagementID: req.EngagementID,
	}

	started := time.Now()
	resp := &AnalyticsResponse{}

	// Each goroutine writes a distinct response field; no shared state.
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		kpis, err := uc.aggregateKPIs(ctx, req.TenantID, filter)
		if err != nil {
			return err
		}
		resp.KPIs = kpis
		return nil
	})

	g.Go(func() error {
		series, err := uc.aggregateEngagementsOverTime(ctx, req.TenantID, filter)
		if err != nil {
			return err
		}
		resp.Charts.EngagementsOverTime = series
		return nil
	})

	g.Go(func() error {
		tools, err := uc.aggregateDetectionsByTool(ctx, req.TenantID, filter)
		if err != nil {
			return err
		}
		resp.Charts.DetectionsByTool = tools
		return nil
	})

	g.Go(func() error {
		pillars, err := uc.aggregateFindingsByPillar(ctx, req.TenantID, filter)
		if err != nil {
			return err
		}
		resp.Charts.FindingsByPillar = pillars
		return nil
	})

	g.Go(func() error {
		series, err := uc.aggregateActionsOverTime(ctx, req.TenantID, filter)
		if err != nil {
			return err
		}
		resp.Charts.ActionsOverTime = series
		return nil
	})

	g.Go(func() error {
		averages, err := uc.aggregateResponseTimes(ctx, req.TenantID, filter)
		if err != nil {
			return err
		}
		resp.Charts.ResponseTimes = averages
		return nil
	})

	g.Go(func() error {
		breakdown, err := uc.aggregateFindingsBySeverity(ctx, req.TenantID, filter)
		if err != nil {
			return err
		}
		resp.Charts.FindingsBySeverity = breakdown
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Analytics aggregation failed")
		return nil, err
	}

	resp.GeneratedAt = time.Now().UTC()

	logger.WithField("duration_ms", time.Since(started).Milliseconds()).
		Debug("Analytics aggregation completed")
	return resp, nil
}

// Sub-aggregations. Each issues its own repository reads so the orchestrator
// can run them in parallel against the persistence layer; the reduction over
// the fetched rows lives in pure functions alongside their tests.

func (uc *AnalyticsUseCase) aggregateKPIs(ctx context.Context, tenantID uuid.UUID, filter repository.ReadFilter) (KPISet, error) {
	engagements, err := uc.repo.ListEngagements(ctx, tenantID, filter)
	if err != nil {
		return KPISet{}, err
	}
	actions, err := uc.repo.ListActions(ctx, tenantID, filter)
	if err != nil {
		return KPISet{}, err
	}
	findings, err := uc.repo.ListFindings(ctx, tenantID, filter)
	if err != nil {
		return KPISet{}, err
	}
	return reduceKPIs(engagements, actions, findings), nil
}

func (uc *AnalyticsUseCase) aggregateEngagementsOverTime(ctx context.Context, tenantID uuid.UUID, filter repository.ReadFilter) ([]EngagementTimePoint, error) {
	engagements, err := uc.repo.ListEngagements(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	return reduceEngagementsOverTime(engagements, filter.Window), nil
}

func (uc *AnalyticsUseCase) aggregateDetectionsByTool(ctx context.Context, tenantID uuid.UUID, filter repository.ReadFilter) ([]ToolDetectionRate, error) {
	actions, err := uc.repo.ListActions(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	return reduceDetectionsByTool(actions), nil
}

func (uc *AnalyticsUseCase) aggregateFindingsByPillar(ctx context.Context, tenantID uuid.UUID, filter repository.ReadFilter) ([]PillarCount, error) {
	findings, err := uc.repo.ListFindings(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	return reduceFindingsByPillar(findings), nil
}

func (uc *AnalyticsUseCase) aggregateActionsOverTime(ctx context.Context, tenantID uuid.UUID, filter repository.ReadFilter) ([]ActionTimePoint, error) {
	actions, err := uc.repo.ListActions(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	return reduceActionsOverTime(actions, filter.Window), nil
}

func (uc *AnalyticsUseCase) aggregateResponseTimes(ctx context.Context, tenantID uuid.UUID, filter repository.ReadFilter) (ResponseTimeAverages, error) {
	actions, err := uc.repo.ListActions(ctx, tenantID, filter)
	if err != nil {
		return ResponseTimeAverages{}, err
	}
	return reduceResponseTimes(actions), nil
}

func (uc *AnalyticsUseCase) aggregateFindingsBySeverity(ctx context.Context, tenantID uuid.UUID, filter repository.ReadFilter) ([]EngagementSeverityBreakdown, error) {
	findings, err := uc.repo.ListFindings(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	engagements, err := uc.repo.ListEngagements(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	return reduceFindingsBySeverity(findings, engagements), nil
}
