// PurpleKit Analytics - Engagement Domain Entity
// Read-side projection of purple-team engagements for analytics aggregation
// Copyright (c) 2024 PurpleKit. All rights reserved.

package entity

import (
	"time"

	"github.com/google/uuid"
)

// Engagement represents a bounded purple-team exercise. The analytics service
// consumes engagements read-only; the core platform owns the schema.
type Engagement struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TenantID uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;index;column:organization_id"`
	Name     string    `json:"name" gorm:"type:varchar(255);not null"`

	Status      EngagementStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	Methodology string           `json:"methodology" gorm:"type:varchar(100)"`

	StartedAt   *time.Time `json:"started_at,omitempty" gorm:"index"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

// TableName maps to the platform-owned engagements table.
func (Engagement) TableName() string {
	return "engagements"
}

// EngagementStatus represents the lifecycle state of an engagement
type EngagementStatus string

const (
	EngagementStatusPlanning EngagementStatus = "PLANNING"
	EngagementStatusActive   EngagementStatus = "ACTIVE"
	EngagementStatusComplete EngagementStatus = "COMPLETE"
	EngagementStatusArchived EngagementStatus = "ARCHIVED"
)

// EngagementStatuses lists all engagement lifecycle states in display order.
var EngagementStatuses = []EngagementStatus{
	EngagementStatusPlanning,
	EngagementStatusActive,
	EngagementStatusComplete,
	EngagementStatusArchived,
}

// StartReference returns the timestamp used to place the engagement on a
// timeline. Engagements that never started fall back to their creation time.
func (e *Engagement) StartReference() time.Time {
	if e.StartedAt != nil {
		return *e.StartedAt
	}
	return e.CreatedAt
}

// Overlaps reports whether the engagement's lifespan intersects the inclusive
// interval [start, end]. An engagement without a completion time is treated as
// open-ended.
func (e *Engagement) Overlaps(start, end time.Time) bool {
	if e.StartReference().After(end) {
		return false
	}
	if e.CompletedAt != nil && e.CompletedAt.Before(start) {
		return false
	}
	return true
}

// ActiveDuring reports whether the engagement counts as active anywhere within
// [start, end]: status ACTIVE and lifespan overlapping the interval.
func (e *Engagement) ActiveDuring(start, end time.Time) bool {
	return e.Status == EngagementStatusActive && e.Overlaps(start, end)
}
