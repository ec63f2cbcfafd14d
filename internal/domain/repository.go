// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Plan operations
	SavePlan(ctx context.Context, tenantID string, plan *Plan) error
	GetPlan(ctx context.Context, tenantID string, planID string) (*Plan, error)
	ListPlans(ctx context.Context, tenantID string) ([]*Plan, error)
	DeletePlan(ctx context.Context, tenantID string, planID string) error

	// Plan metric operations
	SavePlanMetric(ctx context.Context, tenantID string, metric *PlanMetric) error
	GetPlanMetric(ctx context.Context, tenantID string, metricID string) (*PlanMetric, error)
	ListPlanMetrics(ctx context.Context, tenantID string, planID string) ([]*PlanMetric, error)

	// Plan version snapshots (insert only)
	CreatePlanVersion(ctx context.Context, tenantID string, version *PlanVersion) error
	GetPlanVersion(ctx context.Context, tenantID string, versionID string) (*PlanVersion, error)
	GetLatestPlanVersion(ctx context.Context, tenantID string, planID string) (*PlanVersion, error)
	ListPlanVersions(ctx context.Context, tenantID string, planID string) ([]*PlanVersion, error)

	// Cycle operations
	SaveCycle(ctx context.Context, tenantID string, cycle *Cycle) error
	GetCycle(ctx context.Context, tenantID string, cycleID string) (*Cycle, error)
	ListCycles(ctx context.Context, tenantID string, planID string) ([]*Cycle, error)

	// Metric results
	SaveMetricResult(ctx context.Context, tenantID string, result *MetricResult) error
	ListMetricResults(ctx context.Context, tenantID string, cycleID string) ([]*MetricResult, error)
	ListTrendPoints(ctx context.Context, tenantID string, metricID string) ([]TrendPoint, error)

	// Exceptions
	SaveException(ctx context.Context, tenantID string, exc *Exception) (bool, error)
	GetExceptionByResult(ctx context.Context, tenantID string, cycleID string, metricID string) (*Exception, error)
	ListExceptions(ctx context.Context, tenantID string, planID string) ([]*Exception, error)
	CloseException(ctx context.Context, tenantID string, exceptionID string, resolution string) error

	// Scorecards
	SaveScorecard(ctx context.Context, tenantID string, scorecard *Scorecard) error
	GetScorecard(ctx context.Context, tenantID string, validationID string) (*Scorecard, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
