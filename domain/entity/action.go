// PurpleKit Analytics - Action and Detection Domain Entities
// Read-side projection of red-team actions and blue-team validation records
// Copyright (c) 2024 PurpleKit. All rights reserved.

package entity

import (
	"time"

	"github.com/google/uuid"
)

// Action represents a single logged red-team technique execution. Every
// action belongs to exactly one engagement via its technique; the platform
// schema denormalizes the engagement id onto the action row.
type Action struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TenantID     uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;index;column:organization_id"`
	EngagementID uuid.UUID `json:"engagement_id" gorm:"type:uuid;not null;index"`
	TechniqueID  uuid.UUID `json:"technique_id" gorm:"type:uuid;not null"`

	ExecutedAt time.Time `json:"executed_at" gorm:"not null;index"`
	ExecutedBy string    `json:"executed_by" gorm:"type:varchar(100)"`

	// Optional, at most one per action.
	Validation *DetectionValidation `json:"validation,omitempty" gorm:"foreignKey:ActionID"`
	Timing     *TimingMetrics       `json:"timing,omitempty" gorm:"foreignKey:ActionID"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
}

// TableName maps to the platform-owned actions table.
func (Action) TableName() string {
	return "actions"
}

// Validated reports whether blue-team validation was recorded for the action,
// regardless of outcome.
func (a *Action) Validated() bool {
	return a.Validation != nil
}

// Detected reports whether the action was caught by the defense: a validation
// exists and its outcome is anything other than NOT_LOGGED.
func (a *Action) Detected() bool {
	return a.Validation != nil && a.Validation.Outcome.Detected()
}

// TimeToDetect returns the recorded TTD sample in seconds, or nil when no
// timing metrics exist or the sample was never measured.
func (a *Action) TimeToDetect() *float64 {
	if a.Timing == nil {
		return nil
	}
	return a.Timing.TimeToDetectSecs
}

// DetectionValidation classifies how the defense responded to an action.
type DetectionValidation struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	ActionID uuid.UUID `json:"action_id" gorm:"type:uuid;not null;uniqueIndex"`

	Outcome DetectionOutcome `json:"outcome" gorm:"type:varchar(20);not null;index"`

	ToolID *uuid.UUID     `json:"tool_id,omitempty" gorm:"type:uuid;index"`
	Tool   *DefensiveTool `json:"tool,omitempty" gorm:"foreignKey:ToolID"`

	ValidatedBy string    `json:"validated_by" gorm:"type:varchar(100)"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null"`
}

// TableName maps to the platform-owned detection_validations table.
func (DetectionValidation) TableName() string {
	return "detection_validations"
}

// DetectionOutcome classifies a validation result
type DetectionOutcome string

const (
	OutcomeLogged    DetectionOutcome = "LOGGED"
	OutcomeAlerted   DetectionOutcome = "ALERTED"
	OutcomePrevented DetectionOutcome = "PREVENTED"
	OutcomeNotLogged DetectionOutcome = "NOT_LOGGED"
)

// Detected reports whether the outcome represents a successful detection.
// NOT_LOGGED is a completed validation that found nothing, so it counts
// against detection rates rather than being excluded from them.
func (o DetectionOutcome) Detected() bool {
	switch o {
	case OutcomeLogged, OutcomeAlerted, OutcomePrevented:
		return true
	default:
		return false
	}
}

// DefensiveTool represents a blue-team detection tool referenced by
// validation records.
type DefensiveTool struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TenantID uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;index;column:organization_id"`
	Name     string    `json:"name" gorm:"type:varchar(255);not null"`
	Category string    `json:"category" gorm:"type:varchar(100)"`
}

// TableName maps to the platform-owned defensive_tools table.
func (DefensiveTool) TableName() string {
	return "defensive_tools"
}

// TimingMetrics holds response-time samples for one action, in seconds.
// Every field is optional; absence means the phase was never measured.
type TimingMetrics struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	ActionID uuid.UUID `json:"action_id" gorm:"type:uuid;not null;uniqueIndex"`

	TimeToDetectSecs      *float64 `json:"time_to_detect_seconds,omitempty" gorm:"column:time_to_detect_seconds"`
	TimeToInvestigateSecs *float64 `json:"time_to_investigate_seconds,omitempty" gorm:"column:time_to_investigate_seconds"`
	TimeToContainSecs     *float64 `json:"time_to_contain_seconds,omitempty" gorm:"column:time_to_contain_seconds"`
	TimeToRemediateSecs   *float64 `json:"time_to_remediate_seconds,omitempty" gorm:"column:time_to_remediate_seconds"`
}

// TableName maps to the platform-owned timing_metrics table.
func (TimingMetrics) TableName() string {
	return "timing_metrics"
}
