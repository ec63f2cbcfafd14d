// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = domain.ErrNotFound
	ErrInvalidInput = domain.ErrInvalidInput
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate(ctx context.Context) error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.ExecContext(ctx, schema); err != nil {
			return err
		}
	}
	return nil
}

func requireTenant(tenantID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ============================================================================
// PLANS
// ============================================================================

// SavePlan inserts or updates a plan.
func (r *SQLRepository) SavePlan(ctx context.Context, tenantID string, plan *domain.Plan) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}

	query := `
		INSERT INTO monitoring_plans (
			id, tenant_id, name, description, frequency, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			frequency = excluded.frequency,
			active = excluded.active,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		plan.ID, tenantID, plan.Name, plan.Description, string(plan.Frequency),
		boolInt(plan.Active), plan.CreatedAt, plan.UpdatedAt,
	)
	return err
}

const planColumns = `id, tenant_id, name, description, frequency, active, created_at, updated_at`

func scanPlan(row rowScanner) (*domain.Plan, error) {
	var p domain.Plan
	var description sql.NullString
	var frequency string
	var active int

	if err := row.Scan(&p.ID, &p.TenantID, &p.Name, &description, &frequency, &active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Description = description.String
	p.Frequency = domain.Frequency(frequency)
	p.Active = active == 1
	return &p, nil
}

// GetPlan retrieves a plan by ID with tenant isolation.
func (r *SQLRepository) GetPlan(ctx context.Context, tenantID string, planID string) (*domain.Plan, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + planColumns + ` FROM monitoring_plans WHERE tenant_id = ? AND id = ?`
	plan, err := scanPlan(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, planID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return plan, err
}

// ListPlans retrieves all active plans for a tenant.
func (r *SQLRepository) ListPlans(ctx context.Context, tenantID string) ([]*domain.Plan, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + planColumns + ` FROM monitoring_plans WHERE tenant_id = ? AND active = 1 ORDER BY name`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*domain.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// DeletePlan soft-deletes a plan by setting active = 0.
func (r *SQLRepository) DeletePlan(ctx context.Context, tenantID string, planID string) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}

	query := `UPDATE monitoring_plans SET active = 0, updated_at = ? WHERE tenant_id = ? AND id = ? AND active = 1`
	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, planID)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// ============================================================================
// PLAN METRICS
// ============================================================================

// SavePlanMetric inserts or updates a plan metric and its editable thresholds.
func (r *SQLRepository) SavePlanMetric(ctx context.Context, tenantID string, m *domain.PlanMetric) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}

	query := `
		INSERT INTO plan_metrics (
			id, tenant_id, plan_id, name, description,
			yellow_min, yellow_max, red_min, red_max,
			expression, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			yellow_min = excluded.yellow_min,
			yellow_max = excluded.yellow_max,
			red_min = excluded.red_min,
			red_max = excluded.red_max,
			expression = excluded.expression,
			active = excluded.active,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		m.ID, tenantID, m.PlanID, m.Name, m.Description,
		nullFloat(m.Thresholds.YellowMin), nullFloat(m.Thresholds.YellowMax),
		nullFloat(m.Thresholds.RedMin), nullFloat(m.Thresholds.RedMax),
		m.Expression, boolInt(m.Active), m.CreatedAt, m.UpdatedAt,
	)
	return err
}

const metricColumns = `id, plan_id, name, description, yellow_min, yellow_max, red_min, red_max, expression, active, created_at, updated_at`

func scanMetric(row rowScanner) (*domain.PlanMetric, error) {
	var m domain.PlanMetric
	var description, expression sql.NullString
	var ymin, ymax, rmin, rmax sql.NullFloat64
	var active int

	if err := row.Scan(
		&m.ID, &m.PlanID, &m.Name, &description,
		&ymin, &ymax, &rmin, &rmax,
		&expression, &active, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}

	m.Description = description.String
	m.Expression = expression.String
	m.Active = active == 1
	m.Thresholds = domain.ThresholdSet{
		YellowMin: floatPtr(ymin),
		YellowMax: floatPtr(ymax),
		RedMin:    floatPtr(rmin),
		RedMax:    floatPtr(rmax),
	}
	return &m, nil
}

// GetPlanMetric retrieves a plan metric by ID with tenant isolation.
func (r *SQLRepository) GetPlanMetric(ctx context.Context, tenantID string, metricID string) (*domain.PlanMetric, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + metricColumns + ` FROM plan_metrics WHERE tenant_id = ? AND id = ?`
	m, err := scanMetric(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, metricID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

// ListPlanMetrics retrieves the metrics of a plan, active or not.
func (r *SQLRepository) ListPlanMetrics(ctx context.Context, tenantID string, planID string) ([]*domain.PlanMetric, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + metricColumns + ` FROM plan_metrics WHERE tenant_id = ? AND plan_id = ? ORDER BY name`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metrics []*domain.PlanMetric
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// ============================================================================
// PLAN VERSIONS
// ============================================================================

// CreatePlanVersion inserts a snapshot. Existing versions are never updated;
// a duplicate version number for the plan is rejected by the database.
func (r *SQLRepository) CreatePlanVersion(ctx context.Context, tenantID string, v *domain.PlanVersion) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}

	metrics, err := json.Marshal(v.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot metrics: %w", err)
	}

	query := `
		INSERT INTO plan_versions (
			id, tenant_id, plan_id, version_number, label, metrics, published_by, published_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		v.ID, tenantID, v.PlanID, v.VersionNumber, v.Label, string(metrics), v.PublishedBy, v.PublishedAt,
	)
	return err
}

const versionColumns = `id, tenant_id, plan_id, version_number, label, metrics, published_by, published_at`

func scanVersion(row rowScanner) (*domain.PlanVersion, error) {
	var v domain.PlanVersion
	var label, publishedBy sql.NullString
	var metrics string

	if err := row.Scan(&v.ID, &v.TenantID, &v.PlanID, &v.VersionNumber, &label, &metrics, &publishedBy, &v.PublishedAt); err != nil {
		return nil, err
	}
	v.Label = label.String
	v.PublishedBy = publishedBy.String
	if err := json.Unmarshal([]byte(metrics), &v.Metrics); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot metrics for %s: %w", v.ID, err)
	}
	return &v, nil
}

// GetPlanVersion retrieves a snapshot by ID with tenant isolation.
func (r *SQLRepository) GetPlanVersion(ctx context.Context, tenantID string, versionID string) (*domain.PlanVersion, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + versionColumns + ` FROM plan_versions WHERE tenant_id = ? AND id = ?`
	v, err := scanVersion(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, versionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

// GetLatestPlanVersion retrieves the highest-numbered snapshot of a plan.
func (r *SQLRepository) GetLatestPlanVersion(ctx context.Context, tenantID string, planID string) (*domain.PlanVersion, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + versionColumns + ` FROM plan_versions WHERE tenant_id = ? AND plan_id = ? ORDER BY version_number DESC LIMIT 1`
	v, err := scanVersion(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, planID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

// ListPlanVersions retrieves all snapshots of a plan, newest first.
func (r *SQLRepository) ListPlanVersions(ctx context.Context, tenantID string, planID string) ([]*domain.PlanVersion, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + versionColumns + ` FROM plan_versions WHERE tenant_id = ? AND plan_id = ? ORDER BY version_number DESC`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []*domain.PlanVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// ============================================================================
// CYCLES
// ============================================================================

// SaveCycle inserts or updates a monitoring cycle.
func (r *SQLRepository) SaveCycle(ctx context.Context, tenantID string, c *domain.Cycle) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}

	history, err := json.Marshal(c.History)
	if err != nil {
		return fmt.Errorf("failed to encode cycle history: %w", err)
	}

	query := `
		INSERT INTO monitoring_cycles (
			id, tenant_id, plan_id, plan_version_id, status,
			period_start, period_end, due_date, postpone_count,
			approved_by, approved_at, rejection_reason, history,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			plan_version_id = excluded.plan_version_id,
			status = excluded.status,
			period_start = excluded.period_start,
			period_end = excluded.period_end,
			due_date = excluded.due_date,
			postpone_count = excluded.postpone_count,
			approved_by = excluded.approved_by,
			approved_at = excluded.approved_at,
			rejection_reason = excluded.rejection_reason,
			history = excluded.history,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		c.ID, tenantID, c.PlanID, c.PlanVersionID, string(c.Status),
		c.PeriodStart, c.PeriodEnd, c.DueDate, c.PostponeCount,
		c.ApprovedBy, nullTime(c.ApprovedAt), c.RejectionReason, string(history),
		c.CreatedAt, c.UpdatedAt,
	)
	return err
}

const cycleColumns = `id, tenant_id, plan_id, plan_version_id, status, period_start, period_end, due_date,
	postpone_count, approved_by, approved_at, rejection_reason, history, created_at, updated_at`

func scanCycle(row rowScanner) (*domain.Cycle, error) {
	var c domain.Cycle
	var versionID, approvedBy, rejection sql.NullString
	var approvedAt sql.NullTime
	var status, history string

	if err := row.Scan(
		&c.ID, &c.TenantID, &c.PlanID, &versionID, &status,
		&c.PeriodStart, &c.PeriodEnd, &c.DueDate,
		&c.PostponeCount, &approvedBy, &approvedAt, &rejection, &history,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}

	c.PlanVersionID = versionID.String
	c.Status = domain.CycleStatus(status)
	c.ApprovedBy = approvedBy.String
	c.RejectionReason = rejection.String
	if approvedAt.Valid {
		t := approvedAt.Time
		c.ApprovedAt = &t
	}
	if err := json.Unmarshal([]byte(history), &c.History); err != nil {
		return nil, fmt.Errorf("failed to parse history for cycle %s: %w", c.ID, err)
	}
	return &c, nil
}

// GetCycle retrieves a cycle by ID with tenant isolation.
func (r *SQLRepository) GetCycle(ctx context.Context, tenantID string, cycleID string) (*domain.Cycle, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + cycleColumns + ` FROM monitoring_cycles WHERE tenant_id = ? AND id = ?`
	c, err := scanCycle(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, cycleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// ListCycles retrieves the cycles of a plan ordered by period end.
func (r *SQLRepository) ListCycles(ctx context.Context, tenantID string, planID string) ([]*domain.Cycle, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + cycleColumns + ` FROM monitoring_cycles WHERE tenant_id = ? AND plan_id = ? ORDER BY period_end`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cycles []*domain.Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// ============================================================================
// METRIC RESULTS
// ============================================================================

// SaveMetricResult inserts or replaces the result of a metric in a cycle.
func (r *SQLRepository) SaveMetricResult(ctx context.Context, tenantID string, res *domain.MetricResult) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}

	var inputs any
	if len(res.Inputs) > 0 {
		b, err := json.Marshal(res.Inputs)
		if err != nil {
			return fmt.Errorf("failed to encode result inputs: %w", err)
		}
		inputs = string(b)
	}

	query := `
		INSERT INTO metric_results (
			id, tenant_id, cycle_id, plan_metric_id, value, inputs, narrative, outcome, recorded_by, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, cycle_id, plan_metric_id) DO UPDATE SET
			value = excluded.value,
			inputs = excluded.inputs,
			narrative = excluded.narrative,
			outcome = excluded.outcome,
			recorded_by = excluded.recorded_by,
			recorded_at = excluded.recorded_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		res.ID, tenantID, res.CycleID, res.PlanMetricID, nullFloat(res.Value), inputs,
		res.Narrative, string(res.Outcome), res.RecordedBy, res.RecordedAt,
	)
	return err
}

// ListMetricResults retrieves the results entered for a cycle.
func (r *SQLRepository) ListMetricResults(ctx context.Context, tenantID string, cycleID string) ([]*domain.MetricResult, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, tenant_id, cycle_id, plan_metric_id, value, inputs, narrative, outcome, recorded_by, recorded_at
		FROM metric_results
		WHERE tenant_id = ? AND cycle_id = ?
		ORDER BY plan_metric_id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, cycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.MetricResult
	for rows.Next() {
		var res domain.MetricResult
		var value sql.NullFloat64
		var inputs, narrative, recordedBy sql.NullString
		var outcome string

		if err := rows.Scan(
			&res.ID, &res.TenantID, &res.CycleID, &res.PlanMetricID, &value,
			&inputs, &narrative, &outcome, &recordedBy, &res.RecordedAt,
		); err != nil {
			return nil, err
		}

		res.Value = floatPtr(value)
		res.Narrative = narrative.String
		res.RecordedBy = recordedBy.String
		res.Outcome = domain.Outcome(outcome)
		if inputs.Valid && inputs.String != "" {
			if err := json.Unmarshal([]byte(inputs.String), &res.Inputs); err != nil {
				return nil, fmt.Errorf("failed to parse inputs for result %s: %w", res.ID, err)
			}
		}
		results = append(results, &res)
	}
	return results, rows.Err()
}

// ListTrendPoints retrieves a metric's results across cycles ordered by
// period end. Cancelled cycles are left out.
func (r *SQLRepository) ListTrendPoints(ctx context.Context, tenantID string, metricID string) ([]domain.TrendPoint, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT r.cycle_id, c.period_end, r.value, r.outcome
		FROM metric_results r
		JOIN monitoring_cycles c ON c.id = r.cycle_id AND c.tenant_id = r.tenant_id
		WHERE r.tenant_id = ? AND r.plan_metric_id = ? AND c.status <> ?
		ORDER BY c.period_end
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, metricID, string(domain.CycleStatusCancelled))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []domain.TrendPoint
	for rows.Next() {
		var p domain.TrendPoint
		var value sql.NullFloat64
		var outcome string
		if err := rows.Scan(&p.CycleID, &p.PeriodEnd, &value, &outcome); err != nil {
			return nil, err
		}
		p.Value = floatPtr(value)
		p.Outcome = domain.Outcome(outcome)
		points = append(points, p)
	}
	return points, rows.Err()
}

// ============================================================================
// EXCEPTIONS
// ============================================================================

// SaveException inserts an exception unless one already exists for the cycle
// and metric. It reports whether a row was inserted; an existing exception is
// never modified.
func (r *SQLRepository) SaveException(ctx context.Context, tenantID string, e *domain.Exception) (bool, error) {
	if err := requireTenant(tenantID); err != nil {
		return false, err
	}

	query := `
		INSERT INTO metric_exceptions (
			id, tenant_id, plan_id, cycle_id, plan_metric_id, value, outcome, status, resolution, created_at, closed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, cycle_id, plan_metric_id) DO NOTHING
	`

	res, err := r.db.ExecContext(ctx, r.rebind(query),
		e.ID, tenantID, e.PlanID, e.CycleID, e.PlanMetricID, nullFloat(e.Value),
		string(e.Outcome), string(e.Status), e.Resolution, e.CreatedAt, nullTime(e.ClosedAt),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

const exceptionColumns = `id, tenant_id, plan_id, cycle_id, plan_metric_id, value, outcome, status, resolution, created_at, closed_at`

func scanException(row rowScanner) (*domain.Exception, error) {
	var e domain.Exception
	var value sql.NullFloat64
	var resolution sql.NullString
	var closedAt sql.NullTime
	var outcome, status string

	if err := row.Scan(
		&e.ID, &e.TenantID, &e.PlanID, &e.CycleID, &e.PlanMetricID, &value,
		&outcome, &status, &resolution, &e.CreatedAt, &closedAt,
	); err != nil {
		return nil, err
	}

	e.Value = floatPtr(value)
	e.Outcome = domain.Outcome(outcome)
	e.Status = domain.ExceptionStatus(status)
	e.Resolution = resolution.String
	if closedAt.Valid {
		t := closedAt.Time
		e.ClosedAt = &t
	}
	return &e, nil
}

// GetExceptionByResult retrieves the exception raised for a cycle's metric.
func (r *SQLRepository) GetExceptionByResult(ctx context.Context, tenantID string, cycleID string, metricID string) (*domain.Exception, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + exceptionColumns + ` FROM metric_exceptions WHERE tenant_id = ? AND cycle_id = ? AND plan_metric_id = ?`
	e, err := scanException(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, cycleID, metricID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// ListExceptions retrieves a plan's exceptions, newest first.
func (r *SQLRepository) ListExceptions(ctx context.Context, tenantID string, planID string) ([]*domain.Exception, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + exceptionColumns + ` FROM metric_exceptions WHERE tenant_id = ? AND plan_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exceptions []*domain.Exception
	for rows.Next() {
		e, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		exceptions = append(exceptions, e)
	}
	return exceptions, rows.Err()
}

// CloseException marks an open exception closed.
func (r *SQLRepository) CloseException(ctx context.Context, tenantID string, exceptionID string, resolution string) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}

	query := `
		UPDATE metric_exceptions
		SET status = ?, resolution = ?, closed_at = ?
		WHERE tenant_id = ? AND id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		string(domain.ExceptionClosed), resolution, time.Now().UTC(),
		tenantID, exceptionID, string(domain.ExceptionOpen),
	)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// ============================================================================
// SCORECARDS
// ============================================================================

// SaveScorecard inserts or replaces a validation scorecard.
func (r *SQLRepository) SaveScorecard(ctx context.Context, tenantID string, s *domain.Scorecard) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}

	criteria, err := json.Marshal(s.Criteria)
	if err != nil {
		return fmt.Errorf("failed to encode scorecard criteria: %w", err)
	}

	query := `
		INSERT INTO scorecards (validation_id, tenant_id, criteria, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(validation_id, tenant_id) DO UPDATE SET
			criteria = excluded.criteria,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query), s.ValidationID, tenantID, string(criteria), s.UpdatedBy, s.UpdatedAt)
	return err
}

// GetScorecard retrieves the scorecard of a validation request.
func (r *SQLRepository) GetScorecard(ctx context.Context, tenantID string, validationID string) (*domain.Scorecard, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT validation_id, tenant_id, criteria, updated_by, updated_at FROM scorecards WHERE tenant_id = ? AND validation_id = ?`

	var s domain.Scorecard
	var criteria string
	var updatedBy sql.NullString
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, validationID).Scan(
		&s.ValidationID, &s.TenantID, &criteria, &updatedBy, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	s.UpdatedBy = updatedBy.String
	if err := json.Unmarshal([]byte(criteria), &s.Criteria); err != nil {
		return nil, fmt.Errorf("failed to parse scorecard criteria: %w", err)
	}
	return &s, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func expectAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
