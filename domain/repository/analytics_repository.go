// PurpleKit Analytics - Analytics Repository Interface
// Read-only, tenant-scoped persistence layer for aggregation queries
// Copyright (c) 2024 PurpleKit. All rights reserved.

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/purplekit/backend/services/analytics/domain/entity"
)

// MaxWindowDays is the widest date range the service will aggregate over.
const MaxWindowDays = 365

// AnalyticsRepository defines the read interface the aggregators consume.
// Every method is scoped by tenant id; implementations must include the
// tenant predicate in every query so cross-tenant reads are impossible.
type AnalyticsRepository interface {
	// ListEngagements returns engagements whose lifespan overlaps the window.
	ListEngagements(ctx context.Context, tenantID uuid.UUID, filter ReadFilter) ([]*entity.Engagement, error)

	// ListActions returns actions executed within the window, with their
	// detection validation (and its tool) and timing metrics attached.
	ListActions(ctx context.Context, tenantID uuid.UUID, filter ReadFilter) ([]*entity.Action, error)

	// ListFindings returns findings created within the window.
	ListFindings(ctx context.Context, tenantID uuid.UUID, filter ReadFilter) ([]*entity.Finding, error)

	// Ping verifies database connectivity for health reporting.
	Ping(ctx context.Context) error
}

// ReadFilter carries the shared query parameters for analytics reads.
type ReadFilter struct {
	Window       TimeWindow `json:"window"`
	EngagementID *uuid.UUID `json:"engagement_id,omitempty"`
}

// TimeWindow is an inclusive timestamp interval.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days returns the number of calendar days the window covers, counting both
// endpoints. A window within a single day covers one day.
func (w TimeWindow) Days() int {
	start := truncateDay(w.Start)
	end := truncateDay(w.End)
	return int(end.Sub(start).Hours()/24) + 1
}

// Validate rejects inverted windows and windows wider than MaxWindowDays.
func (w TimeWindow) Validate() error {
	if w.End.Before(w.Start) {
		return ErrInvalidWindow
	}
	if w.Days() > MaxWindowDays {
		return ErrWindowTooWide
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AnalyticsRepositoryError represents repository-specific errors
type AnalyticsRepositoryError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Operation string `json:"operation,omitempty"`
}

func (e *AnalyticsRepositoryError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("%s: %s", e.Operation, e.Message)
	}
	return e.Message
}

// Common repository errors
var (
	ErrInvalidWindow      = &AnalyticsRepositoryError{Code: "INVALID_WINDOW", Message: "window end precedes start"}
	ErrWindowTooWide      = &AnalyticsRepositoryError{Code: "WINDOW_TOO_WIDE", Message: "window exceeds maximum range"}
	ErrDatabaseConnection = &AnalyticsRepositoryError{Code: "DATABASE_CONNECTION", Message: "database connection error"}
	ErrQueryTimeout       = &AnalyticsRepositoryError{Code: "QUERY_TIMEOUT", Message: "query execution timeout"}
)

// AnalyticsRepositoryConfiguration holds repository configuration
type AnalyticsRepositoryConfiguration struct {
	MaxConnections     int           `mapstructure:"max_connections" json:"max_connections"`
	MaxIdleConnections int           `mapstructure:"max_idle_connections" json:"max_idle_connections"`
	ConnectionLifetime time.Duration `mapstructure:"connection_lifetime" json:"connection_lifetime"`
	QueryTimeout       time.Duration `mapstructure:"query_timeout" json:"query_timeout"`
	EnableQueryLogging bool          `mapstructure:"enable_query_logging" json:"enable_query_logging"`
	EnableMetrics      bool          `mapstructure:"enable_metrics" json:"enable_metrics"`
}
