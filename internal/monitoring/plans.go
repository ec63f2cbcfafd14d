package monitoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/threshold"
)

// PlanInput holds the editable fields of a plan.
type PlanInput struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Frequency   domain.Frequency `json:"frequency"`
}

func (in *PlanInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if err := required("name", in.Name); err != nil {
		return err
	}
	in.Frequency = domain.Frequency(strings.ToUpper(string(in.Frequency)))
	if in.Frequency == "" {
		in.Frequency = domain.FrequencyQuarterly
	}
	if in.Frequency.Months() == 0 {
		return fmt.Errorf("%w: unknown frequency %q", domain.ErrInvalidInput, in.Frequency)
	}
	return nil
}

// CreatePlan creates an active plan.
func (s *Service) CreatePlan(ctx context.Context, tenantID string, in PlanInput) (*domain.Plan, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	now := s.now()
	plan := &domain.Plan{
		ID:          s.newID(),
		TenantID:    tenantID,
		Name:        in.Name,
		Description: in.Description,
		Frequency:   in.Frequency,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.SavePlan(ctx, tenantID, plan); err != nil {
		return nil, fmt.Errorf("failed to save plan: %w", err)
	}

	slog.Info("plan created",
		"tenant_id", tenantID,
		"plan_id", plan.ID,
		"frequency", plan.Frequency,
	)
	return plan, nil
}

// UpdatePlan replaces a plan's editable fields.
func (s *Service) UpdatePlan(ctx context.Context, tenantID, planID string, in PlanInput) (*domain.Plan, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	plan, err := s.repo.GetPlan(ctx, tenantID, planID)
	if err != nil {
		return nil, err
	}
	plan.Name = in.Name
	plan.Description = in.Description
	plan.Frequency = in.Frequency
	plan.UpdatedAt = s.now()

	if err := s.repo.SavePlan(ctx, tenantID, plan); err != nil {
		return nil, fmt.Errorf("failed to save plan: %w", err)
	}
	return plan, nil
}

// GetPlan returns a plan.
func (s *Service) GetPlan(ctx context.Context, tenantID, planID string) (*domain.Plan, error) {
	return s.repo.GetPlan(ctx, tenantID, planID)
}

// ListPlans returns the tenant's active plans.
func (s *Service) ListPlans(ctx context.Context, tenantID string) ([]*domain.Plan, error) {
	return s.repo.ListPlans(ctx, tenantID)
}

// DeletePlan deactivates a plan. Its versions and cycles are kept.
func (s *Service) DeletePlan(ctx context.Context, tenantID, planID string) error {
	return s.repo.DeletePlan(ctx, tenantID, planID)
}

// MetricInput holds the editable fields of a plan metric.
type MetricInput struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Thresholds  domain.ThresholdSet `json:"thresholds"`
	Expression  string              `json:"expression"`
	Active      *bool               `json:"active"`
}

// validate checks the metric name, threshold invariants and formula.
func (s *Service) validate(in *MetricInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Expression = strings.TrimSpace(in.Expression)
	if err := required("name", in.Name); err != nil {
		return err
	}
	if err := threshold.Check(in.Thresholds); err != nil {
		return err
	}
	if in.Expression != "" {
		if err := s.formulas.Validate(in.Expression); err != nil {
			return err
		}
	}
	return nil
}

// AddMetric adds a metric to a plan.
func (s *Service) AddMetric(ctx context.Context, tenantID, planID string, in MetricInput) (*domain.PlanMetric, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetPlan(ctx, tenantID, planID); err != nil {
		return nil, err
	}

	now := s.now()
	m := &domain.PlanMetric{
		ID:          s.newID(),
		PlanID:      planID,
		Name:        in.Name,
		Description: in.Description,
		Thresholds:  in.Thresholds.Clone(),
		Expression:  in.Expression,
		Active:      in.Active == nil || *in.Active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.SavePlanMetric(ctx, tenantID, m); err != nil {
		return nil, fmt.Errorf("failed to save metric: %w", err)
	}
	return m, nil
}

// UpdateMetric replaces a metric's editable fields. Published snapshots keep
// the thresholds they were frozen with.
func (s *Service) UpdateMetric(ctx context.Context, tenantID, metricID string, in MetricInput) (*domain.PlanMetric, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}

	m, err := s.repo.GetPlanMetric(ctx, tenantID, metricID)
	if err != nil {
		return nil, err
	}
	m.Name = in.Name
	m.Description = in.Description
	m.Thresholds = in.Thresholds.Clone()
	m.Expression = in.Expression
	if in.Active != nil {
		m.Active = *in.Active
	}
	m.UpdatedAt = s.now()

	if err := s.repo.SavePlanMetric(ctx, tenantID, m); err != nil {
		return nil, fmt.Errorf("failed to save metric: %w", err)
	}
	return m, nil
}

// UpdateThresholds replaces only a metric's thresholds.
func (s *Service) UpdateThresholds(ctx context.Context, tenantID, metricID string, t domain.ThresholdSet) (*domain.PlanMetric, error) {
	if err := threshold.Check(t); err != nil {
		return nil, err
	}

	m, err := s.repo.GetPlanMetric(ctx, tenantID, metricID)
	if err != nil {
		return nil, err
	}
	m.Thresholds = t.Clone()
	m.UpdatedAt = s.now()

	if err := s.repo.SavePlanMetric(ctx, tenantID, m); err != nil {
		return nil, fmt.Errorf("failed to save metric: %w", err)
	}
	return m, nil
}

// ListMetrics returns a plan's metrics.
func (s *Service) ListMetrics(ctx context.Context, tenantID, planID string) ([]*domain.PlanMetric, error) {
	if _, err := s.repo.GetPlan(ctx, tenantID, planID); err != nil {
		return nil, err
	}
	return s.repo.ListPlanMetrics(ctx, tenantID, planID)
}

// PublishInput describes a new plan version.
type PublishInput struct {
	Label string `json:"label"`
	Actor string `json:"-"`
}

// PublishVersion freezes the plan's active metrics into a new snapshot with
// the next version number.
func (s *Service) PublishVersion(ctx context.Context, tenantID, planID string, in PublishInput) (_ *domain.PlanVersion, err error) {
	ctx, span := s.startSpan(ctx, "PublishVersion", tenantID, attribute.String("plan.id", planID))
	defer func() { finish(span, err) }()

	if _, err := s.repo.GetPlan(ctx, tenantID, planID); err != nil {
		return nil, err
	}

	metrics, err := s.repo.ListPlanMetrics(ctx, tenantID, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list metrics: %w", err)
	}

	frozen := make([]domain.PlanMetric, 0, len(metrics))
	for _, m := range metrics {
		if !m.Active {
			continue
		}
		c := *m
		c.Thresholds = m.Thresholds.Clone()
		frozen = append(frozen, c)
	}
	if len(frozen) == 0 {
		return nil, fmt.Errorf("%w: plan has no active metrics to publish", domain.ErrConflict)
	}

	next := 1
	latest, err := s.repo.GetLatestPlanVersion(ctx, tenantID, planID)
	switch {
	case err == nil:
		next = latest.VersionNumber + 1
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("failed to load latest version: %w", err)
	}

	label := strings.TrimSpace(in.Label)
	if label == "" {
		label = fmt.Sprintf("v%d", next)
	}

	v := &domain.PlanVersion{
		ID:            s.newID(),
		TenantID:      tenantID,
		PlanID:        planID,
		VersionNumber: next,
		Label:         label,
		Metrics:       frozen,
		PublishedBy:   in.Actor,
		PublishedAt:   s.now(),
	}
	if err := s.repo.CreatePlanVersion(ctx, tenantID, v); err != nil {
		return nil, fmt.Errorf("failed to create version: %w", err)
	}
	s.cacheSnapshot(ctx, tenantID, v)

	span.SetAttributes(attribute.Int("plan.version", next))
	s.publish(ctx, tenantID, domain.TopicVersionPublished, v)

	slog.Info("plan version published",
		"tenant_id", tenantID,
		"plan_id", planID,
		"version", next,
		"metric_count", len(frozen),
	)
	return v, nil
}

// ListVersions returns a plan's snapshots, newest first.
func (s *Service) ListVersions(ctx context.Context, tenantID, planID string) ([]*domain.PlanVersion, error) {
	return s.repo.ListPlanVersions(ctx, tenantID, planID)
}

// GetVersion returns a snapshot.
func (s *Service) GetVersion(ctx context.Context, tenantID, versionID string) (*domain.PlanVersion, error) {
	return s.snapshot(ctx, tenantID, versionID)
}
