package repository

// Schema definitions for Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaPlans = `
CREATE TABLE IF NOT EXISTS monitoring_plans (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    frequency TEXT NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_plans_tenant ON monitoring_plans(tenant_id, active);
`

const schemaPlanMetrics = `
CREATE TABLE IF NOT EXISTS plan_metrics (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    plan_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    yellow_min REAL,
    yellow_max REAL,
    red_min REAL,
    red_max REAL,
    expression TEXT,
    active INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_plan_metrics_plan ON plan_metrics(tenant_id, plan_id);
`

// schemaPlanVersions holds immutable snapshots. Rows are never updated.
const schemaPlanVersions = `
CREATE TABLE IF NOT EXISTS plan_versions (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    plan_id TEXT NOT NULL,
    version_number INTEGER NOT NULL,
    label TEXT,
    metrics TEXT NOT NULL,
    published_by TEXT,
    published_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id),
    UNIQUE (tenant_id, plan_id, version_number)
);
`

const schemaCycles = `
CREATE TABLE IF NOT EXISTS monitoring_cycles (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    plan_id TEXT NOT NULL,
    plan_version_id TEXT,
    status TEXT NOT NULL,
    period_start TIMESTAMP NOT NULL,
    period_end TIMESTAMP NOT NULL,
    due_date TIMESTAMP NOT NULL,
    postpone_count INTEGER NOT NULL DEFAULT 0,
    approved_by TEXT,
    approved_at TIMESTAMP,
    rejection_reason TEXT,
    history TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_cycles_plan ON monitoring_cycles(tenant_id, plan_id, period_end);
CREATE INDEX IF NOT EXISTS idx_cycles_status ON monitoring_cycles(tenant_id, status);
`

const schemaMetricResults = `
CREATE TABLE IF NOT EXISTS metric_results (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    cycle_id TEXT NOT NULL,
    plan_metric_id TEXT NOT NULL,
    value REAL,
    inputs TEXT,
    narrative TEXT,
    outcome TEXT NOT NULL,
    recorded_by TEXT,
    recorded_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id),
    UNIQUE (tenant_id, cycle_id, plan_metric_id)
);

CREATE INDEX IF NOT EXISTS idx_results_metric ON metric_results(tenant_id, plan_metric_id);
`

const schemaExceptions = `
CREATE TABLE IF NOT EXISTS metric_exceptions (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    plan_id TEXT NOT NULL,
    cycle_id TEXT NOT NULL,
    plan_metric_id TEXT NOT NULL,
    value REAL,
    outcome TEXT NOT NULL,
    status TEXT NOT NULL,
    resolution TEXT,
    created_at TIMESTAMP NOT NULL,
    closed_at TIMESTAMP,
    PRIMARY KEY (id, tenant_id),
    UNIQUE (tenant_id, cycle_id, plan_metric_id)
);

CREATE INDEX IF NOT EXISTS idx_exceptions_plan ON metric_exceptions(tenant_id, plan_id, status);
`

const schemaScorecards = `
CREATE TABLE IF NOT EXISTS scorecards (
    validation_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    criteria TEXT NOT NULL,
    updated_by TEXT,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (validation_id, tenant_id)
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaPlans,
		schemaPlanMetrics,
		schemaPlanVersions,
		schemaCycles,
		schemaMetricResults,
		schemaExceptions,
		schemaScorecards,
	}
}
