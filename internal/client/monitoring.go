package client

import (
	"context"
	"net/http"
	"time"

	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/monitoring"
)

// ListPlans lists the tenant's active plans.
func (c *Client) ListPlans(ctx context.Context) ([]*domain.Plan, error) {
	var out []*domain.Plan
	if err := c.do(ctx, http.MethodGet, "/monitoring/plans", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePlan creates a plan.
func (c *Client) CreatePlan(ctx context.Context, in monitoring.PlanInput) (*domain.Plan, error) {
	var out domain.Plan
	if err := c.do(ctx, http.MethodPost, "/monitoring/plans", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPlan fetches a plan.
func (c *Client) GetPlan(ctx context.Context, planID string) (*domain.Plan, error) {
	var out domain.Plan
	if err := c.do(ctx, http.MethodGet, "/monitoring/plans/"+escape(planID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePlan replaces a plan's editable fields.
func (c *Client) UpdatePlan(ctx context.Context, planID string, in monitoring.PlanInput) (*domain.Plan, error) {
	var out domain.Plan
	if err := c.do(ctx, http.MethodPut, "/monitoring/plans/"+escape(planID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePlan deactivates a plan.
func (c *Client) DeletePlan(ctx context.Context, planID string) error {
	return c.do(ctx, http.MethodDelete, "/monitoring/plans/"+escape(planID), nil, nil)
}

// ListMetrics lists a plan's metrics.
func (c *Client) ListMetrics(ctx context.Context, planID string) ([]*domain.PlanMetric, error) {
	var out []*domain.PlanMetric
	if err := c.do(ctx, http.MethodGet, "/monitoring/plans/"+escape(planID)+"/metrics", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddMetric adds a metric to a plan.
func (c *Client) AddMetric(ctx context.Context, planID string, in monitoring.MetricInput) (*domain.PlanMetric, error) {
	var out domain.PlanMetric
	if err := c.do(ctx, http.MethodPost, "/monitoring/plans/"+escape(planID)+"/metrics", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateMetric replaces a metric's editable fields.
func (c *Client) UpdateMetric(ctx context.Context, metricID string, in monitoring.MetricInput) (*domain.PlanMetric, error) {
	var out domain.PlanMetric
	if err := c.do(ctx, http.MethodPut, "/monitoring/metrics/"+escape(metricID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateThresholds replaces a metric's thresholds.
func (c *Client) UpdateThresholds(ctx context.Context, metricID string, t domain.ThresholdSet) (*domain.PlanMetric, error) {
	var out domain.PlanMetric
	if err := c.do(ctx, http.MethodPut, "/monitoring/metrics/"+escape(metricID)+"/thresholds", t, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Trend fetches a metric's results across cycles.
func (c *Client) Trend(ctx context.Context, metricID string) (*domain.Trend, error) {
	var out domain.Trend
	if err := c.do(ctx, http.MethodGet, "/monitoring/metrics/"+escape(metricID)+"/trend", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PublishVersion freezes a plan's active metrics into a new version.
func (c *Client) PublishVersion(ctx context.Context, planID, label string) (*domain.PlanVersion, error) {
	var out domain.PlanVersion
	if err := c.do(ctx, http.MethodPost, "/monitoring/plans/"+escape(planID)+"/versions", monitoring.PublishInput{Label: label}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListVersions lists a plan's versions, newest first.
func (c *Client) ListVersions(ctx context.Context, planID string) ([]*domain.PlanVersion, error) {
	var out []*domain.PlanVersion
	if err := c.do(ctx, http.MethodGet, "/monitoring/plans/"+escape(planID)+"/versions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetVersion fetches a plan version snapshot.
func (c *Client) GetVersion(ctx context.Context, versionID string) (*domain.PlanVersion, error) {
	var out domain.PlanVersion
	if err := c.do(ctx, http.MethodGet, "/monitoring/versions/"+escape(versionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCycle creates a cycle for a plan.
func (c *Client) CreateCycle(ctx context.Context, planID string, in monitoring.CycleInput) (*domain.Cycle, error) {
	var out domain.Cycle
	if err := c.do(ctx, http.MethodPost, "/monitoring/plans/"+escape(planID)+"/cycles", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCycles lists a plan's cycles.
func (c *Client) ListCycles(ctx context.Context, planID string) ([]*domain.Cycle, error) {
	var out []*domain.Cycle
	if err := c.do(ctx, http.MethodGet, "/monitoring/plans/"+escape(planID)+"/cycles", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCycle fetches a cycle with its status history.
func (c *Client) GetCycle(ctx context.Context, cycleID string) (*domain.Cycle, error) {
	var out domain.Cycle
	if err := c.do(ctx, http.MethodGet, "/monitoring/cycles/"+escape(cycleID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TransitionOptions carries the optional fields of a lifecycle call.
type TransitionOptions struct {
	Comment string
	DueDate *time.Time
}

// Transition applies one lifecycle action to a cycle.
func (c *Client) Transition(ctx context.Context, cycleID string, action domain.CycleAction, opts TransitionOptions) (*domain.Cycle, error) {
	body := monitoring.TransitionRequest{Comment: opts.Comment, DueDate: opts.DueDate}
	var out domain.Cycle
	if err := c.do(ctx, http.MethodPost, "/monitoring/cycles/"+escape(cycleID)+"/"+escape(string(action)), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordResult enters a metric result for a cycle.
func (c *Client) RecordResult(ctx context.Context, cycleID string, in monitoring.ResultInput) (*domain.MetricResult, error) {
	var out domain.MetricResult
	if err := c.do(ctx, http.MethodPost, "/monitoring/cycles/"+escape(cycleID)+"/results", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListResults lists a cycle's results.
func (c *Client) ListResults(ctx context.Context, cycleID string) ([]*domain.MetricResult, error) {
	var out []*domain.MetricResult
	if err := c.do(ctx, http.MethodGet, "/monitoring/cycles/"+escape(cycleID)+"/results", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListExceptions lists a plan's breach exceptions.
func (c *Client) ListExceptions(ctx context.Context, planID string) ([]*domain.Exception, error) {
	var out []*domain.Exception
	if err := c.do(ctx, http.MethodGet, "/monitoring/plans/"+escape(planID)+"/exceptions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CloseException closes an open exception with a resolution note.
func (c *Client) CloseException(ctx context.Context, exceptionID, resolution string) error {
	return c.do(ctx, http.MethodPost, "/monitoring/exceptions/"+escape(exceptionID)+"/close", api.CloseExceptionRequest{Resolution: resolution}, nil)
}
