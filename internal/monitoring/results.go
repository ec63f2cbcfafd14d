package monitoring

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/threshold"
)

// ResultInput is a value entered for one metric of a cycle. When Value is
// nil and the metric has an expression, the value is computed from Inputs.
type ResultInput struct {
	PlanMetricID string             `json:"planMetricId"`
	Value        *float64           `json:"value"`
	Inputs       map[string]float64 `json:"inputs"`
	Narrative    string             `json:"narrative"`
	Actor        string             `json:"-"`
}

// RecordResult stores a metric result classified against the thresholds of
// the cycle's locked plan version. Re-entering a metric replaces its result.
func (s *Service) RecordResult(ctx context.Context, tenantID, cycleID string, in ResultInput) (_ *domain.MetricResult, err error) {
	ctx, span := s.startSpan(ctx, "RecordResult", tenantID,
		attribute.String("cycle.id", cycleID),
		attribute.String("metric.id", in.PlanMetricID),
	)
	defer func() { finish(span, err) }()

	if err := required("planMetricId", in.PlanMetricID); err != nil {
		return nil, err
	}

	cycle, err := s.repo.GetCycle(ctx, tenantID, cycleID)
	if err != nil {
		return nil, err
	}
	if cycle.Status != domain.CycleStatusDataCollection && cycle.Status != domain.CycleStatusUnderReview {
		return nil, fmt.Errorf("%w: results cannot be entered while the cycle is %s", domain.ErrConflict, cycle.Status)
	}

	v, err := s.snapshot(ctx, tenantID, cycle.PlanVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan version: %w", err)
	}
	metric, ok := v.Metric(in.PlanMetricID)
	if !ok {
		return nil, fmt.Errorf("%w: metric %s is not part of version %d", domain.ErrInvalidInput, in.PlanMetricID, v.VersionNumber)
	}

	value, err := s.resolveValue(metric, in)
	if err != nil {
		return nil, err
	}

	outcome := threshold.Classify(value, metric.Thresholds)
	span.SetAttributes(attribute.String("metric.outcome", string(outcome)))

	id, err := s.existingResultID(ctx, tenantID, cycleID, metric.ID)
	if err != nil {
		return nil, err
	}

	res := &domain.MetricResult{
		ID:           id,
		TenantID:     tenantID,
		CycleID:      cycleID,
		PlanMetricID: metric.ID,
		Value:        value,
		Inputs:       in.Inputs,
		Narrative:    strings.TrimSpace(in.Narrative),
		Outcome:      outcome,
		RecordedBy:   in.Actor,
		RecordedAt:   s.now(),
	}
	if err := s.repo.SaveMetricResult(ctx, tenantID, res); err != nil {
		return nil, fmt.Errorf("failed to save result: %w", err)
	}

	s.recorder.ObserveClassification(outcome)
	s.publish(ctx, tenantID, domain.TopicResultRecorded, domain.ResultEvent{
		ResultID:     res.ID,
		PlanID:       cycle.PlanID,
		CycleID:      cycleID,
		PlanMetricID: metric.ID,
		MetricName:   metric.Name,
		Value:        value,
		Outcome:      outcome,
	})
	return res, nil
}

func (s *Service) resolveValue(metric domain.PlanMetric, in ResultInput) (*float64, error) {
	if in.Value != nil {
		if math.IsNaN(*in.Value) || math.IsInf(*in.Value, 0) {
			return nil, fmt.Errorf("%w: value must be a finite number", domain.ErrInvalidInput)
		}
		v := *in.Value
		return &v, nil
	}
	if metric.Expression == "" || len(in.Inputs) == 0 {
		return nil, nil
	}

	v, err := s.formulas.Evaluate(metric.Expression, in.Inputs)
	if err != nil {
		return nil, fmt.Errorf("metric %s: %w", metric.Name, err)
	}
	return &v, nil
}

func (s *Service) existingResultID(ctx context.Context, tenantID, cycleID, metricID string) (string, error) {
	results, err := s.repo.ListMetricResults(ctx, tenantID, cycleID)
	if err != nil {
		return "", fmt.Errorf("failed to list results: %w", err)
	}
	for _, r := range results {
		if r.PlanMetricID == metricID {
			return r.ID, nil
		}
	}
	return s.newID(), nil
}

// ListResults returns the results entered for a cycle.
func (s *Service) ListResults(ctx context.Context, tenantID, cycleID string) ([]*domain.MetricResult, error) {
	if _, err := s.repo.GetCycle(ctx, tenantID, cycleID); err != nil {
		return nil, err
	}
	return s.repo.ListMetricResults(ctx, tenantID, cycleID)
}

// Trend returns a metric's results across cycles together with a chart
// layout over its current thresholds and the observed values.
func (s *Service) Trend(ctx context.Context, tenantID, metricID string) (*domain.Trend, error) {
	metric, err := s.repo.GetPlanMetric(ctx, tenantID, metricID)
	if err != nil {
		return nil, err
	}

	points, err := s.repo.ListTrendPoints(ctx, tenantID, metricID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trend: %w", err)
	}
	if points == nil {
		points = []domain.TrendPoint{}
	}

	values := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Value != nil {
			values = append(values, *p.Value)
		}
	}

	return &domain.Trend{
		PlanMetricID: metric.ID,
		MetricName:   metric.Name,
		Points:       points,
		Layout:       threshold.BuildLayout(metric.Thresholds, values),
	}, nil
}
