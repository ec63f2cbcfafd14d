package monitoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// OpenException records a breach for a RED result. It reports false when an
// exception already exists for the cycle and metric.
func (s *Service) OpenException(ctx context.Context, tenantID string, ev domain.ResultEvent) (*domain.Exception, bool, error) {
	if ev.Outcome != domain.OutcomeRed {
		return nil, false, fmt.Errorf("%w: only RED results open exceptions", domain.ErrInvalidInput)
	}

	existing, err := s.repo.GetExceptionByResult(ctx, tenantID, ev.CycleID, ev.PlanMetricID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up exception: %w", err)
	}

	exc := &domain.Exception{
		ID:           s.newID(),
		TenantID:     tenantID,
		PlanID:       ev.PlanID,
		CycleID:      ev.CycleID,
		PlanMetricID: ev.PlanMetricID,
		Value:        ev.Value,
		Outcome:      ev.Outcome,
		Status:       domain.ExceptionOpen,
		CreatedAt:    s.now(),
	}
	created, err := s.repo.SaveException(ctx, tenantID, exc)
	if err != nil {
		return nil, false, fmt.Errorf("failed to save exception: %w", err)
	}
	if !created {
		existing, err := s.repo.GetExceptionByResult(ctx, tenantID, ev.CycleID, ev.PlanMetricID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load exception: %w", err)
		}
		return existing, false, nil
	}

	slog.Info("exception opened",
		"tenant_id", tenantID,
		"exception_id", exc.ID,
		"cycle_id", ev.CycleID,
		"metric_id", ev.PlanMetricID,
	)
	return exc, true, nil
}

// ListExceptions returns a plan's exceptions, newest first.
func (s *Service) ListExceptions(ctx context.Context, tenantID, planID string) ([]*domain.Exception, error) {
	return s.repo.ListExceptions(ctx, tenantID, planID)
}

// CloseException closes an open exception with a resolution note.
func (s *Service) CloseException(ctx context.Context, tenantID, exceptionID, resolution string) error {
	resolution = strings.TrimSpace(resolution)
	if err := required("resolution", resolution); err != nil {
		return err
	}
	return s.repo.CloseException(ctx, tenantID, exceptionID, resolution)
}
