package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ts(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func tsp(y int, m time.Month, d int) *time.Time {
	t := ts(y, m, d)
	return &t
}

func TestDetectionOutcomeDetected(t *testing.T) {
	assert.True(t, OutcomeLogged.Detected())
	assert.True(t, OutcomeAlerted.Detected())
	assert.True(t, OutcomePrevented.Detected())
	assert.False(t, OutcomeNotLogged.Detected())
	assert.False(t, DetectionOutcome("").Detected())
}

func TestActionDetected(t *testing.T) {
	assert.False(t, (&Action{}).Detected(), "unvalidated action is not detected")

	missed := &Action{Validation: &DetectionValidation{Outcome: OutcomeNotLogged}}
	assert.True(t, missed.Validated())
	assert.False(t, missed.Detected())

	caught := &Action{Validation: &DetectionValidation{Outcome: OutcomeAlerted}}
	assert.True(t, caught.Detected())
}

func TestActionTimeToDetect(t *testing.T) {
	assert.Nil(t, (&Action{}).TimeToDetect())
	assert.Nil(t, (&Action{Timing: &TimingMetrics{}}).TimeToDetect())

	sample := 42.5
	a := &Action{Timing: &TimingMetrics{TimeToDetectSecs: &sample}}
	assert.Equal(t, 42.5, *a.TimeToDetect())
}

func TestEngagementOverlaps(t *testing.T) {
	e := &Engagement{
		StartedAt:   tsp(2024, 3, 10),
		CompletedAt: tsp(2024, 3, 20),
	}

	assert.True(t, e.Overlaps(ts(2024, 3, 1), ts(2024, 3, 31)), "window contains lifespan")
	assert.True(t, e.Overlaps(ts(2024, 3, 15), ts(2024, 3, 16)), "lifespan contains window")
	assert.True(t, e.Overlaps(ts(2024, 3, 1), ts(2024, 3, 10)), "window ends on start day")
	assert.True(t, e.Overlaps(ts(2024, 3, 20), ts(2024, 3, 25)), "window begins on completion day")
	assert.False(t, e.Overlaps(ts(2024, 3, 1), ts(2024, 3, 9)), "window before lifespan")
	assert.False(t, e.Overlaps(ts(2024, 3, 21), ts(2024, 3, 31)), "window after lifespan")
}

func TestEngagementOverlapsOpenEnded(t *testing.T) {
	e := &Engagement{StartedAt: tsp(2024, 3, 10)}
	assert.True(t, e.Overlaps(ts(2024, 6, 1), ts(2024, 6, 30)), "uncompleted engagement is open-ended")
}

func TestEngagementOverlapsNeverStarted(t *testing.T) {
	e := &Engagement{Status: EngagementStatusPlanning, CreatedAt: ts(2024, 3, 5)}
	assert.True(t, e.Overlaps(ts(2024, 3, 1), ts(2024, 3, 31)), "planning engagement anchors on creation")
	assert.False(t, e.Overlaps(ts(2024, 2, 1), ts(2024, 2, 28)))
}

func TestEngagementActiveDuring(t *testing.T) {
	active := &Engagement{Status: EngagementStatusActive, StartedAt: tsp(2024, 3, 10)}
	complete := &Engagement{Status: EngagementStatusComplete, StartedAt: tsp(2024, 3, 10)}

	assert.True(t, active.ActiveDuring(ts(2024, 3, 15), ts(2024, 3, 16)))
	assert.False(t, complete.ActiveDuring(ts(2024, 3, 15), ts(2024, 3, 16)), "status gates active counting")
	assert.False(t, active.ActiveDuring(ts(2024, 3, 1), ts(2024, 3, 9)))
}

func TestFindingOpen(t *testing.T) {
	assert.True(t, (&Finding{Status: FindingStatusOpen}).Open())
	assert.True(t, (&Finding{Status: FindingStatusInProgress}).Open())
	assert.False(t, (&Finding{Status: FindingStatusResolved}).Open())
	assert.False(t, (&Finding{Status: FindingStatusAccepted}).Open())
}

func TestFindingOpenCritical(t *testing.T) {
	assert.True(t, (&Finding{Status: FindingStatusOpen, Severity: SeverityCritical}).OpenCritical())
	assert.True(t, (&Finding{Status: FindingStatusInProgress, Severity: SeverityHigh}).OpenCritical())
	assert.False(t, (&Finding{Status: FindingStatusOpen, Severity: SeverityMedium}).OpenCritical())
	assert.False(t, (&Finding{Status: FindingStatusResolved, Severity: SeverityCritical}).OpenCritical())
}
