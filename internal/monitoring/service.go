// Package monitoring runs monitoring plans: plan and metric administration,
// immutable plan-version snapshots, the cycle lifecycle, result entry and
// threshold-breach exceptions.
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/formula"
)

var tracer = otel.Tracer("kestrel-monitoring")

// Recorder receives counters for classifications and lifecycle transitions.
type Recorder interface {
	ObserveClassification(outcome domain.Outcome)
	ObserveTransition(action domain.CycleAction, to domain.CycleStatus)
}

type nopRecorder struct{}

func (nopRecorder) ObserveClassification(domain.Outcome)                      {}
func (nopRecorder) ObserveTransition(domain.CycleAction, domain.CycleStatus) {}

// Options tune a Service. Zero values select defaults.
type Options struct {
	SnapshotTTL time.Duration
	Recorder    Recorder
}

// Service implements monitoring operations on top of a repository, a
// snapshot cache and an event bus.
type Service struct {
	repo        domain.Repository
	cache       domain.Cache
	bus         domain.EventBus
	formulas    *formula.Engine
	recorder    Recorder
	snapshotTTL time.Duration

	now   func() time.Time
	newID func() string
}

// NewService creates a monitoring service.
func NewService(repo domain.Repository, cache domain.Cache, eventBus domain.EventBus, formulas *formula.Engine, opts Options) *Service {
	if opts.SnapshotTTL <= 0 {
		opts.SnapshotTTL = 24 * time.Hour
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	return &Service{
		repo:        repo,
		cache:       cache,
		bus:         eventBus,
		formulas:    formulas,
		recorder:    opts.Recorder,
		snapshotTTL: opts.SnapshotTTL,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return uuid.New().String() },
	}
}

// Formulas exposes the expression engine used for computed metrics.
func (s *Service) Formulas() *formula.Engine {
	return s.formulas
}

func (s *Service) startSpan(ctx context.Context, name, tenantID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("tenant.id", tenantID))
	return tracer.Start(ctx, "monitoring."+name, trace.WithAttributes(attrs...))
}

// finish ends span, recording err when it is not a caller mistake.
func finish(span trace.Span, err error) {
	if err != nil && !isClientError(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func isClientError(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrConflict)
}

// publish sends an event. Delivery failures are logged, not returned: the
// state change has already been persisted.
func (s *Service) publish(ctx context.Context, tenantID, topic string, v any) {
	if s.bus == nil {
		return
	}
	if err := bus.PublishJSON(ctx, s.bus, tenantID, topic, v); err != nil {
		slog.Warn("failed to publish event",
			"tenant_id", tenantID,
			"topic", topic,
			"error", err,
		)
	}
}

// snapshot loads a plan version through the cache.
func (s *Service) snapshot(ctx context.Context, tenantID, versionID string) (*domain.PlanVersion, error) {
	if s.cache != nil {
		v, err := s.cache.GetSnapshot(ctx, tenantID, versionID)
		if err != nil {
			slog.Warn("snapshot cache read failed",
				"tenant_id", tenantID,
				"version_id", versionID,
				"error", err,
			)
		}
		if v != nil {
			return v, nil
		}
	}

	v, err := s.repo.GetPlanVersion(ctx, tenantID, versionID)
	if err != nil {
		return nil, err
	}
	s.cacheSnapshot(ctx, tenantID, v)
	return v, nil
}

func (s *Service) cacheSnapshot(ctx context.Context, tenantID string, v *domain.PlanVersion) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetSnapshot(ctx, tenantID, v, s.snapshotTTL); err != nil {
		slog.Warn("snapshot cache write failed",
			"tenant_id", tenantID,
			"version_id", v.ID,
			"error", err,
		)
	}
}

func required(field, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, field)
	}
	return nil
}
