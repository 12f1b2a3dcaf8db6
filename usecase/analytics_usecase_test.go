package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purplekit/backend/services/analytics/domain/entity"
	"github.com/purplekit/backend/services/analytics/domain/repository"
)

// fakeRepository serves canned rows, applying the engagement filter the way
// the real repository does.
type fakeRepository struct {
	engagements []*entity.Engagement
	actions     []*entity.Action
	findings    []*entity.Finding
	err         error
}

func (f *fakeRepository) ListEngagements(_ context.Context, _ uuid.UUID, filter repository.ReadFilter) ([]*entity.Engagement, error) {
	if f.err != nil {
		return nil, f.err
	}
	if filter.EngagementID == nil {
		return f.engagements, nil
	}
	var out []*entity.Engagement
	for _, e := range f.engagements {
		if e.ID == *filter.EngagementID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRepository) ListActions(_ context.Context, _ uuid.UUID, filter repository.ReadFilter) ([]*entity.Action, error) {
	if f.err != nil {
		return nil, f.err
	}
	if filter.EngagementID == nil {
		return f.actions, nil
	}
	var out []*entity.Action
	for _, a := range f.actions {
		if a.EngagementID == *filter.EngagementID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRepository) ListFindings(_ context.Context, _ uuid.UUID, filter repository.ReadFilter) ([]*entity.Finding, error) {
	if f.err != nil {
		return nil, f.err
	}
	if filter.EngagementID == nil {
		return f.findings, nil
	}
	var out []*entity.Finding
	for _, fd := range f.findings {
		if fd.EngagementID == *filter.EngagementID {
			out = append(out, fd)
		}
	}
	return out, nil
}

func (f *fakeRepository) Ping(context.Context) error {
	return f.err
}

func newTestUseCase(repo repository.AnalyticsRepository) *AnalyticsUseCase {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewAnalyticsUseCase(repo, logger)
}

func window(start, end time.Time) repository.TimeWindow {
	return repository.TimeWindow{Start: start, End: end}
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func timePtr(t time.Time) *time.Time { return &t }

func floatPtr(v float64) *float64 { return &v }

func makeEngagement(status entity.EngagementStatus, started, completed *time.Time) *entity.Engagement {
	return &entity.Engagement{
		ID:          uuid.New(),
		Name:        fmt.Sprintf("engagement-%s", status),
		Status:      status,
		StartedAt:   started,
		CompletedAt: completed,
		CreatedAt:   day(1),
	}
}

func makeAction(engagementID uuid.UUID, executedAt time.Time, outcome *entity.DetectionOutcome) *entity.Action {
	a := &entity.Action{
		ID:           uuid.New(),
		EngagementID: engagementID,
		TechniqueID:  uuid.New(),
		ExecutedAt:   executedAt,
	}
	if outcome != nil {
		a.Validation = &entity.DetectionValidation{
			ID:       uuid.New(),
			ActionID: a.ID,
			Outcome:  *outcome,
		}
	}
	return a
}

func outcomePtr(o entity.DetectionOutcome) *entity.DetectionOutcome { return &o }

// The worked example: 10 engagements (6 ACTIVE, 4 COMPLETE) and 50 actions
// (30 detected) in a 30-day range.
func TestGenerateExampleScenario(t *testing.T) {
	repo := &fakeRepository{}
	for i := 0; i < 6; i++ {
		repo.engagements = append(repo.engagements,
			makeEngagement(entity.EngagementStatusActive, timePtr(day(5)), nil))
	}
	for i := 0; i < 4; i++ {
		repo.engagements = append(repo.engagements,
			makeEngagement(entity.EngagementStatusComplete, timePtr(day(2)), timePtr(day(20))))
	}

	engagementID := repo.engagements[0].ID
	for i := 0; i < 30; i++ {
		repo.actions = append(repo.actions,
			makeAction(engagementID, day(1+i%28), outcomePtr(entity.OutcomeAlerted)))
	}
	for i := 0; i < 20; i++ {
		repo.actions = append(repo.actions,
			makeAction(engagementID, day(1+i%28), nil))
	}

	uc := newTestUseCase(repo)
	resp, err := uc.Generate(context.Background(), AnalyticsRequest{
		TenantID: uuid.New(),
		Window:   window(day(1), day(30)),
	})
	require.NoError(t, err)

	assert.Equal(t, 10, resp.KPIs.TotalEngagements)
	assert.Equal(t, 6, resp.KPIs.EngagementsByStatus[entity.EngagementStatusActive])
	assert.Equal(t, 4, resp.KPIs.EngagementsByStatus[entity.EngagementStatusComplete])
	assert.Equal(t, 0, resp.KPIs.EngagementsByStatus[entity.EngagementStatusPlanning])
	assert.Equal(t, 60.0, resp.KPIs.OverallDetectionRate)
	assert.False(t, resp.GeneratedAt.IsZero())
}

// Zero rows everywhere is a valid, renderable state, never an error.
func TestGenerateEmptyRange(t *testing.T) {
	uc := newTestUseCase(&fakeRepository{})
	resp, err := uc.Generate(context.Background(), AnalyticsRequest{
		TenantID: uuid.New(),
		Window:   window(day(1), day(30)),
	})
	require.NoError(t, err)

	assert.Equal(t, 0, resp.KPIs.TotalEngagements)
	assert.Equal(t, 0.0, resp.KPIs.OverallDetectionRate)
	assert.Nil(t, resp.KPIs.AvgTimeToDetect, "no samples must yield null, not zero")
	assert.Equal(t, 0, resp.KPIs.OpenCriticalFindings)
	assert.Equal(t, 0, resp.KPIs.TotalFindings)

	assert.Empty(t, resp.Charts.DetectionsByTool)
	assert.Empty(t, resp.Charts.FindingsBySeverity)
	assert.Nil(t, resp.Charts.ResponseTimes.AvgTimeToDetect)

	// Time series stay seeded with zero-count buckets.
	require.Len(t, resp.Charts.ActionsOverTime, 30)
	for _, p := range resp.Charts.ActionsOverTime {
		assert.Equal(t, 0, p.Count)
	}
	require.Len(t, resp.Charts.FindingsByPillar, 3)
	for _, p := range resp.Charts.FindingsByPillar {
		assert.Equal(t, 0, p.Count)
	}
}

func TestGenerateDetectionRateWithinBounds(t *testing.T) {
	cases := []struct{ detected, missed int }{
		{0, 0}, {0, 7}, {3, 0}, {1, 2}, {50, 1},
	}
	for _, tc := range cases {
		repo := &fakeRepository{}
		eng := uuid.New()
		for i := 0; i < tc.detected; i++ {
			repo.actions = append(repo.actions, makeAction(eng, day(3), outcomePtr(entity.OutcomeLogged)))
		}
		for i := 0; i < tc.missed; i++ {
			repo.actions = append(repo.actions, makeAction(eng, day(3), outcomePtr(entity.OutcomeNotLogged)))
		}

		uc := newTestUseCase(repo)
		resp, err := uc.Generate(context.Background(), AnalyticsRequest{
			TenantID: uuid.New(),
			Window:   window(day(1), day(30)),
		})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, resp.KPIs.OverallDetectionRate, 0.0)
		assert.LessOrEqual(t, resp.KPIs.OverallDetectionRate, 100.0)
	}
}

func TestGenerateValidatedButMissedCountsAgainstRate(t *testing.T) {
	repo := &fakeRepository{}
	eng := uuid.New()
	repo.actions = append(repo.actions,
		makeAction(eng, day(3), outcomePtr(entity.OutcomeAlerted)),
		makeAction(eng, day(4), outcomePtr(entity.OutcomeNotLogged)),
	)

	uc := newTestUseCase(repo)
	resp, err := uc.Generate(context.Background(), AnalyticsRequest{
		TenantID: uuid.New(),
		Window:   window(day(1), day(30)),
	})
	require.NoError(t, err)
	assert.Equal(t, 50.0, resp.KPIs.OverallDetectionRate)
}

func TestGenerateAvgTimeToDetect(t *testing.T) {
	repo := &fakeRepository{}
	eng := uuid.New()

	withTTD := makeAction(eng, day(3), outcomePtr(entity.OutcomeAlerted))
	withTTD.Timing = &entity.TimingMetrics{TimeToDetectSecs: floatPtr(120)}
	alsoTTD := makeAction(eng, day(4), outcomePtr(entity.OutcomeAlerted))
	alsoTTD.Timing = &entity.TimingMetrics{TimeToDetectSecs: floatPtr(60)}
	noTTD := makeAction(eng, day(5), outcomePtr(entity.OutcomeAlerted))

	repo.actions = []*entity.Action{withTTD, alsoTTD, noTTD}

	uc := newTestUseCase(repo)
	resp, err := uc.Generate(context.Background(), AnalyticsRequest{
		TenantID: uuid.New(),
		Window:   window(day(1), day(30)),
	})
	require.NoError(t, err)
	require.NotNil(t, resp.KPIs.AvgTimeToDetect)
	assert.Equal(t, 90.0, *resp.KPIs.AvgTimeToDetect, "actions without a sample are excluded from the mean")
}

func TestGenerateRejectsInvertedWindow(t *testing.T) {
	uc := newTestUseCase(&fakeRepository{})
	_, err := uc.Generate(context.Background(), AnalyticsRequest{
		TenantID: uuid.New(),
		Window:   window(day(10), day(1)),
	})
	assert.ErrorIs(t, err, repository.ErrInvalidWindow)
}

func TestGenerateRejectsOverwideWindow(t *testing.T) {
	uc := newTestUseCase(&fakeRepository{})
	_, err := uc.Generate(context.Background(), AnalyticsRequest{
		TenantID: uuid.New(),
		Window:   window(day(1), day(1).AddDate(1, 0, 5)),
	})
	assert.ErrorIs(t, err, repository.ErrWindowTooWide)
}

func TestGeneratePropagatesRepositoryFailure(t *testing.T) {
	repoErr := errors.New("connection refused")
	uc := newTestUseCase(&fakeRepository{err: repoErr})
	_, err := uc.Generate(context.Background(), AnalyticsRequest{
		TenantID: uuid.New(),
		Window:   window(day(1), day(30)),
	})
	assert.ErrorIs(t, err, repoErr, "a failed sub-aggregation fails the whole request")
}

func TestGenerateEngagementFilter(t *testing.T) {
	repo := &fakeRepository{}
	target := makeEngagement(entity.EngagementStatusActive, timePtr(day(5)), nil)
	other := makeEngagement(entity.EngagementStatusActive, timePtr(day(5)), nil)
	repo.engagements = []*entity.Engagement{target, other}
	repo.actions = []*entity.Action{
		makeAction(target.ID, day(6), outcomePtr(entity.OutcomeAlerted)),
		makeAction(other.ID, day(6), nil),
	}

	uc := newTestUseCase(repo)
	resp, err := uc.Generate(context.Background(), AnalyticsRequest{
		TenantID:     uuid.New(),
		Window:       window(day(1), day(30)),
		EngagementID: &target.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.KPIs.TotalEngagements)
	assert.Equal(t, 100.0, resp.KPIs.OverallDetectionRate)
}

// Identical arguments against unchanged data return identical results.
func TestGenerateIdempotent(t *testing.T) {
	repo := &fakeRepository{}
	eng := makeEngagement(entity.EngagementStatusActive, timePtr(day(5)), nil)
	repo.engagements = []*entity.Engagement{eng}
	repo.actions = []*entity.Action{
		makeAction(eng.ID, day(6), outcomePtr(entity.OutcomeAlerted)),
		makeAction(eng.ID, day(8), nil),
	}
	repo.findings = []*entity.Finding{
		{
			ID:           uuid.New(),
			EngagementID: eng.ID,
			Severity:     entity.SeverityHigh,
			Pillar:       entity.PillarProcess,
			Status:       entity.FindingStatusOpen,
			CreatedAt:    day(7),
		},
	}

	uc := newTestUseCase(repo)
	req := AnalyticsRequest{TenantID: uuid.New(), Window: window(day(1), day(30))}

	first, err := uc.Generate(context.Background(), req)
	require.NoError(t, err)
	second, err := uc.Generate(context.Background(), req)
	require.NoError(t, err)

	first.GeneratedAt = time.Time{}
	second.GeneratedAt = time.Time{}
	assert.Equal(t, first, second)
}
