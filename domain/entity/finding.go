// PurpleKit Analytics - Finding Domain Entity
// Copyright (c) 2024 PurpleKit. All rights reserved.

package entity

import (
	"time"

	"github.com/google/uuid"
)

// Finding represents a gap identified during an engagement. Each finding
// belongs to exactly one engagement.
type Finding struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TenantID     uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;index;column:organization_id"`
	EngagementID uuid.UUID `json:"engagement_id" gorm:"type:uuid;not null;index"`

	Title    string          `json:"title" gorm:"type:varchar(255);not null"`
	Severity FindingSeverity `json:"severity" gorm:"type:varchar(20);not null;index"`
	Pillar   FindingPillar   `json:"pillar" gorm:"type:varchar(20);not null;index"`
	Status   FindingStatus   `json:"status" gorm:"type:varchar(20);not null;index"`

	CreatedAt time.Time `json:"created_at" gorm:"not null;index"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

// TableName maps to the platform-owned findings table.
func (Finding) TableName() string {
	return "findings"
}

// FindingSeverity represents the impact tier of a finding
type FindingSeverity string

const (
	SeverityCritical FindingSeverity = "CRITICAL"
	SeverityHigh     FindingSeverity = "HIGH"
	SeverityMedium   FindingSeverity = "MEDIUM"
	SeverityLow      FindingSeverity = "LOW"
	SeverityInfo     FindingSeverity = "INFO"
)

// FindingSeverities lists severity tiers from most to least severe.
var FindingSeverities = []FindingSeverity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityInfo,
}

// FindingPillar classifies the root cause of a finding
type FindingPillar string

const (
	PillarPeople     FindingPillar = "PEOPLE"
	PillarProcess    FindingPillar = "PROCESS"
	PillarTechnology FindingPillar = "TECHNOLOGY"
)

// FindingPillars lists the pillars in display order.
var FindingPillars = []FindingPillar{
	PillarPeople,
	PillarProcess,
	PillarTechnology,
}

// FindingStatus represents the remediation state of a finding
type FindingStatus string

const (
	FindingStatusOpen       FindingStatus = "OPEN"
	FindingStatusInProgress FindingStatus = "IN_PROGRESS"
	FindingStatusResolved   FindingStatus = "RESOLVED"
	FindingStatusAccepted   FindingStatus = "ACCEPTED"
)

// Open reports whether the finding still requires remediation work.
func (f *Finding) Open() bool {
	return f.Status == FindingStatusOpen || f.Status == FindingStatusInProgress
}

// OpenCritical reports whether the finding is an unresolved critical or high
// severity gap, the KPI definition used across PurpleKit dashboards.
func (f *Finding) OpenCritical() bool {
	return f.Open() && (f.Severity == SeverityCritical || f.Severity == SeverityHigh)
}
