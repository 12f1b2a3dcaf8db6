// PurpleKit Analytics - PostgreSQL Analytics Repository Implementation
// Read-only, tenant-scoped queries over the platform-owned schema
// Copyright (c) 2024 PurpleKit. All rights reserved.

package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/purplekit/backend/services/analytics/domain/entity"
	"github.com/purplekit/backend/services/analytics/domain/repository"
	"github.com/purplekit/backend/services/analytics/metrics"
)

// PostgreSQLAnalyticsRepository implements AnalyticsRepository using
// PostgreSQL. The schema belongs to the core platform; this repository maps
// the existing tables read-only and never migrates them.
type PostgreSQLAnalyticsRepository struct {
	db        *gorm.DB
	logger    *logrus.Logger
	config    repository.AnalyticsRepositoryConfiguration
	collector *metrics.Collector
}

// NewPostgreSQLAnalyticsRepository creates a new PostgreSQL analytics repository
func NewPostgreSQLAnalyticsRepository(
	connectionString string,
	config repository.AnalyticsRepositoryConfiguration,
	logger *logrus.Logger,
	collector *metrics.Collector,
) (*PostgreSQLAnalyticsRepository, error) {

	gormLogLevel := gormlogger.Silent
	if config.EnableQueryLogging {
		gormLogLevel = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{
		Logger: gormlogger.New(
			log.New(logger.Writer(), "", 0),
			gormlogger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  gormLogLevel,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(config.MaxConnections)
	sqlDB.SetMaxIdleConns(config.MaxIdleConnections)
	sqlDB.SetConnMaxLifetime(config.ConnectionLifetime)

	repo := &PostgreSQLAnalyticsRepository{
		db:        db,
		logger:    logger,
		config:    config,
		collector: collector,
	}

	logger.WithFields(logrus.Fields{
		"component":       "postgres_analytics_repository",
		"max_connections": config.MaxConnections,
		"query_logging":   config.EnableQueryLogging,
	}).Info("PostgreSQL analytics repository initialized")

	return repo, nil
}

func (r *PostgreSQLAnalyticsRepository) ListEngagements(ctx context.Context, tenantID uuid.UUID, filter repository.ReadFilter) ([]*entity.Engagement, error) {
	logger := r.logger.WithFields(logrus.Fields{
		"operation": "list_engagements",
		"tenant_id": tenantID,
	})

	ctx, cancel := context.WithTimeout(ctx, r.config.QueryTimeout)
	defer cancel()

	// Overlap semantics: an engagement is in range when its lifespan
	// intersects the window. Never-started engagements anchor on created_at.
	query := r.db.WithContext(ctx).
		Where("organization_id = ?", tenantID).
		Where("COALESCE(started_at, created_at) <= ?", filter.Window.End).
		Where("completed_at IS NULL OR completed_at >= ?", filter.Window.Start)
	if filter.EngagementID != nil {
		query = query.Where("id = ?", *filter.EngagementID)
	}

	started := time.Now()
	var engagements []*entity.Engagement
	result := query.Find(&engagements)
	r.collector.ObserveQuery("list_engagements", time.Since(started), result.Error)

	if result.Error != nil {
		logger.WithError(result.Error).Error("Failed to list engagements")
		return nil, r.wrapError("list_engagements", result.Error)
	}

	logger.WithField("count", len(engagements)).Debug("Engagements listed")
	return engagements, nil
}

func (r *PostgreSQLAnalyticsRepository) ListActions(ctx context.Context, tenantID uuid.UUID, filter repository.ReadFilter) ([]*entity.Action, error) {
	logger := r.logger.WithFields(logrus.Fields{
		"operation": "list_actions",
		"tenant_id": tenantID,
	})

	ctx, cancel := context.WithTimeout(ctx, r.config.QueryTimeout)
	defer cancel()

	query := r.db.WithContext(ctx).
		Preload("Validation").
		Preload("Validation.Tool").
		Preload("Timing").
		Where("organization_id = ?", tenantID).
		Where("executed_at BETWEEN ? AND ?", filter.Window.Start, filter.Window.End)
	if filter.EngagementID != nil {
		query = query.Where("engagement_id = ?", *filter.EngagementID)
	}

	started := time.Now()
	var actions []*entity.Action
	result := query.Find(&actions)
	r.collector.ObserveQuery("list_actions", time.Since(started), result.Error)

	if result.Error != nil {
		logger.WithError(result.Error).Error("Failed to list actions")
		return nil, r.wrapError("list_actions", result.Error)
	}

	logger.WithField("count", len(actions)).Debug("Actions listed")
	return actions, nil
}

func (r *PostgreSQLAnalyticsRepository) ListFindings(ctx context.Context, tenantID uuid.UUID, filter repository.ReadFilter) ([]*entity.Finding, error) {
	logger := r.logger.WithFields(logrus.Fields{
		"operation": "list_findings",
		"tenant_id": tenantID,
	})

	ctx, cancel := context.WithTimeout(ctx, r.config.QueryTimeout)
	defer cancel()

	query := r.db.WithContext(ctx).
		Where("organization_id = ?", tenantID).
		Where("created_at BETWEEN ? AND ?", filter.Window.Start, filter.Window.End)
	if filter.EngagementID != nil {
		query = query.Where("engagement_id = ?", *filter.EngagementID)
	}

	started := time.Now()
	var findings []*entity.Finding
	result := query.Find(&findings)
	r.collector.ObserveQuery("list_findings", time.Since(started), result.Error)

	if result.Error != nil {
		logger.WithError(result.Error).Error("Failed to list findings")
		return nil, r.wrapError("list_findings", result.Error)
	}

	logger.WithField("count", len(findings)).Debug("Findings listed")
	return findings, nil
}

// Ping verifies database connectivity for health reporting.
func (r *PostgreSQLAnalyticsRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return repository.ErrDatabaseConnection
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return repository.ErrDatabaseConnection
	}
	return nil
}

func (r *PostgreSQLAnalyticsRepository) wrapError(operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &repository.AnalyticsRepositoryError{
			Code:      repository.ErrQueryTimeout.Code,
			Message:   repository.ErrQueryTimeout.Message,
			Operation: operation,
		}
	}
	return fmt.Errorf("%s: %w", operation, err)
}
