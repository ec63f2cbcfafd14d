// Package worker reacts to recorded metric results: RED outcomes open a
// breach exception and publish a breach event.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// ExceptionOpener opens a breach exception, reporting whether it is new.
type ExceptionOpener interface {
	OpenException(ctx context.Context, tenantID string, ev domain.ResultEvent) (*domain.Exception, bool, error)
}

// Worker consumes result events from the EventBus.
type Worker struct {
	bus        domain.EventBus
	exceptions ExceptionOpener

	mu            sync.Mutex
	stopped       bool
	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs lists the tenants whose results are watched.
	TenantIDs []string
}

// NewWorker creates a new exception worker.
func NewWorker(eventBus domain.EventBus, exceptions ExceptionOpener) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:        eventBus,
		exceptions: exceptions,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes to result events for each configured tenant.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return errors.New("worker needs at least one tenant")
	}

	started := 0
	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenant(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
		started++
	}
	if started == 0 {
		return fmt.Errorf("no tenant subscriptions could be started")
	}

	slog.Info("workers started", "tenant_count", started)
	return nil
}

func (w *Worker) startTenant(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicResultRecorded, func(ctx context.Context, msg *domain.Message) error {
		if !w.track() {
			return nil
		}
		defer w.wg.Done()
		return w.handleResult(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicResultRecorded,
	)
	return nil
}

// track registers an in-flight handler, refusing once Stop has begun.
func (w *Worker) track() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return false
	}
	w.wg.Add(1)
	return true
}

// handleResult opens an exception for a RED result and announces new breaches.
func (w *Worker) handleResult(ctx context.Context, tenantID string, msg *domain.Message) error {
	var ev domain.ResultEvent
	if err := bus.Decode(msg, &ev); err != nil {
		return err
	}
	if ev.Outcome != domain.OutcomeRed {
		return nil
	}

	exc, created, err := w.exceptions.OpenException(ctx, tenantID, ev)
	if err != nil {
		return fmt.Errorf("failed to open exception for cycle %s metric %s: %w", ev.CycleID, ev.PlanMetricID, err)
	}
	if !created {
		slog.Debug("exception already open",
			"tenant_id", tenantID,
			"exception_id", exc.ID,
		)
		return nil
	}

	if err := bus.PublishJSON(ctx, w.bus, tenantID, domain.TopicResultBreach, ev); err != nil {
		slog.Error("failed to publish breach",
			"tenant_id", tenantID,
			"cycle_id", ev.CycleID,
			"error", err,
		)
	}

	slog.Warn("threshold breach",
		"tenant_id", tenantID,
		"cycle_id", ev.CycleID,
		"metric", ev.MetricName,
		"exception_id", exc.ID,
	)
	return nil
}

// Stop unsubscribes and waits for in-flight handlers.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	w.stopped = true
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil
	w.mu.Unlock()

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats describes the worker's subscriptions.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
