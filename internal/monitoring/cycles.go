package monitoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// DueDateOffset is the default time between a cycle's period end and its due date.
const DueDateOffset = 30 * 24 * time.Hour

type transition struct {
	from []domain.CycleStatus
	to   domain.CycleStatus
}

// transitions lists every lifecycle action. Cancel and postpone are handled
// separately: cancel applies to any non-terminal status and postpone keeps it.
var transitions = map[domain.CycleAction]transition{
	domain.ActionStart:           {from: []domain.CycleStatus{domain.CycleStatusPending}, to: domain.CycleStatusDataCollection},
	domain.ActionSubmit:          {from: []domain.CycleStatus{domain.CycleStatusDataCollection}, to: domain.CycleStatusUnderReview},
	domain.ActionRequestApproval: {from: []domain.CycleStatus{domain.CycleStatusUnderReview}, to: domain.CycleStatusPendingApproval},
	domain.ActionApprove:         {from: []domain.CycleStatus{domain.CycleStatusPendingApproval}, to: domain.CycleStatusApproved},
	domain.ActionReject:          {from: []domain.CycleStatus{domain.CycleStatusPendingApproval}, to: domain.CycleStatusDataCollection},
	domain.ActionVoid:            {from: []domain.CycleStatus{domain.CycleStatusPendingApproval}, to: domain.CycleStatusUnderReview},
	domain.ActionComplete:        {from: []domain.CycleStatus{domain.CycleStatusApproved}, to: domain.CycleStatusCompleted},
	domain.ActionPostpone:        {from: []domain.CycleStatus{domain.CycleStatusPending, domain.CycleStatusDataCollection}},
	domain.ActionCancel:          {to: domain.CycleStatusCancelled},
}

// NextStatus returns the status an action leads to from the given status.
func NextStatus(from domain.CycleStatus, action domain.CycleAction) (domain.CycleStatus, error) {
	t, ok := transitions[action]
	if !ok {
		return "", fmt.Errorf("%w: unknown action %q", domain.ErrInvalidInput, action)
	}
	if from.Terminal() {
		return "", fmt.Errorf("%w: cycle is %s", domain.ErrInvalidTransition, from)
	}

	switch action {
	case domain.ActionCancel:
		return t.to, nil
	case domain.ActionPostpone:
		t.to = from
	}

	for _, f := range t.from {
		if f == from {
			return t.to, nil
		}
	}
	return "", fmt.Errorf("%w: cannot %s a cycle in %s", domain.ErrInvalidTransition, action, from)
}

// CycleInput overrides the default period and due date of a new cycle.
type CycleInput struct {
	PeriodStart *time.Time `json:"periodStart"`
	PeriodEnd   *time.Time `json:"periodEnd"`
	DueDate     *time.Time `json:"dueDate"`
}

// CreateCycle creates a PENDING cycle. Without explicit dates the period
// follows the plan's latest cycle, or starts at the current month.
func (s *Service) CreateCycle(ctx context.Context, tenantID, planID string, in CycleInput) (_ *domain.Cycle, err error) {
	ctx, span := s.startSpan(ctx, "CreateCycle", tenantID, attribute.String("plan.id", planID))
	defer func() { finish(span, err) }()

	plan, err := s.repo.GetPlan(ctx, tenantID, planID)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, fmt.Errorf("%w: plan is inactive", domain.ErrConflict)
	}

	now := s.now()
	start, end, err := s.period(ctx, tenantID, plan, in, now)
	if err != nil {
		return nil, err
	}

	due := end.Add(DueDateOffset)
	if in.DueDate != nil {
		due = in.DueDate.UTC()
		if due.Before(end) {
			return nil, fmt.Errorf("%w: due date must not be before period end", domain.ErrInvalidInput)
		}
	}

	cycle := &domain.Cycle{
		ID:          s.newID(),
		TenantID:    tenantID,
		PlanID:      planID,
		Status:      domain.CycleStatusPending,
		PeriodStart: start,
		PeriodEnd:   end,
		DueDate:     due,
		History:     []domain.StatusChange{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.SaveCycle(ctx, tenantID, cycle); err != nil {
		return nil, fmt.Errorf("failed to save cycle: %w", err)
	}

	slog.Info("cycle created",
		"tenant_id", tenantID,
		"plan_id", planID,
		"cycle_id", cycle.ID,
		"period_start", start.Format(time.DateOnly),
		"period_end", end.Format(time.DateOnly),
	)
	return cycle, nil
}

func (s *Service) period(ctx context.Context, tenantID string, plan *domain.Plan, in CycleInput, now time.Time) (time.Time, time.Time, error) {
	months := plan.Frequency.Months()
	if months == 0 {
		months = 3
	}

	var start time.Time
	switch {
	case in.PeriodStart != nil:
		start = dayStart(*in.PeriodStart)
	default:
		last, err := s.lastPeriodEnd(ctx, tenantID, plan.ID)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		if last.IsZero() {
			start = monthStart(now)
		} else {
			start = dayStart(last).AddDate(0, 0, 1)
		}
	}

	end := start.AddDate(0, months, -1)
	if in.PeriodEnd != nil {
		end = dayStart(*in.PeriodEnd)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: period end must not be before period start", domain.ErrInvalidInput)
	}
	return start, end, nil
}

// lastPeriodEnd returns the latest period end of the plan's non-cancelled cycles.
func (s *Service) lastPeriodEnd(ctx context.Context, tenantID, planID string) (time.Time, error) {
	cycles, err := s.repo.ListCycles(ctx, tenantID, planID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to list cycles: %w", err)
	}
	var last time.Time
	for _, c := range cycles {
		if c.Status == domain.CycleStatusCancelled {
			continue
		}
		if c.PeriodEnd.After(last) {
			last = c.PeriodEnd
		}
	}
	return last, nil
}

// GetCycle returns a cycle.
func (s *Service) GetCycle(ctx context.Context, tenantID, cycleID string) (*domain.Cycle, error) {
	return s.repo.GetCycle(ctx, tenantID, cycleID)
}

// ListCycles returns a plan's cycles ordered by period end.
func (s *Service) ListCycles(ctx context.Context, tenantID, planID string) ([]*domain.Cycle, error) {
	return s.repo.ListCycles(ctx, tenantID, planID)
}

// TransitionRequest is one lifecycle call.
type TransitionRequest struct {
	Action  domain.CycleAction `json:"action"`
	Actor   string             `json:"-"`
	Comment string             `json:"comment"`

	// DueDate is the new due date for postpone.
	DueDate *time.Time `json:"dueDate"`
}

// Transition applies a lifecycle action, appends a status-history entry and
// publishes the change.
func (s *Service) Transition(ctx context.Context, tenantID, cycleID string, req TransitionRequest) (_ *domain.Cycle, err error) {
	ctx, span := s.startSpan(ctx, "Transition", tenantID,
		attribute.String("cycle.id", cycleID),
		attribute.String("cycle.action", string(req.Action)),
	)
	defer func() { finish(span, err) }()

	cycle, err := s.repo.GetCycle(ctx, tenantID, cycleID)
	if err != nil {
		return nil, err
	}

	from := cycle.Status
	to, err := NextStatus(from, req.Action)
	if err != nil {
		return nil, err
	}

	req.Comment = strings.TrimSpace(req.Comment)
	now := s.now()

	switch req.Action {
	case domain.ActionStart:
		v, err := s.repo.GetLatestPlanVersion(ctx, tenantID, cycle.PlanID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: plan has no published version", domain.ErrConflict)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load latest version: %w", err)
		}
		cycle.PlanVersionID = v.ID

	case domain.ActionSubmit:
		if err := s.checkComplete(ctx, tenantID, cycle); err != nil {
			return nil, err
		}

	case domain.ActionApprove:
		cycle.ApprovedBy = req.Actor
		cycle.ApprovedAt = &now

	case domain.ActionReject:
		if req.Comment == "" {
			return nil, fmt.Errorf("%w: a rejection reason is required", domain.ErrInvalidInput)
		}
		cycle.RejectionReason = req.Comment

	case domain.ActionPostpone:
		if req.DueDate == nil {
			return nil, fmt.Errorf("%w: a new due date is required", domain.ErrInvalidInput)
		}
		due := req.DueDate.UTC()
		if !due.After(cycle.DueDate) {
			return nil, fmt.Errorf("%w: new due date must be after %s", domain.ErrInvalidInput, cycle.DueDate.Format(time.DateOnly))
		}
		cycle.DueDate = due
		cycle.PostponeCount++
	}

	change := domain.StatusChange{
		Action:  req.Action,
		From:    from,
		To:      to,
		Actor:   req.Actor,
		Comment: req.Comment,
		At:      now,
	}
	cycle.Status = to
	cycle.History = append(cycle.History, change)
	cycle.UpdatedAt = now

	if err := s.repo.SaveCycle(ctx, tenantID, cycle); err != nil {
		return nil, fmt.Errorf("failed to save cycle: %w", err)
	}

	s.recorder.ObserveTransition(req.Action, to)
	s.publish(ctx, tenantID, domain.TopicCycleTransitioned, domain.CycleEvent{
		CycleID: cycle.ID,
		PlanID:  cycle.PlanID,
		Change:  change,
	})

	slog.Info("cycle transitioned",
		"tenant_id", tenantID,
		"cycle_id", cycle.ID,
		"action", req.Action,
		"from", from,
		"to", to,
	)
	return cycle, nil
}

// checkComplete requires a result for every metric of the locked snapshot.
func (s *Service) checkComplete(ctx context.Context, tenantID string, cycle *domain.Cycle) error {
	v, err := s.snapshot(ctx, tenantID, cycle.PlanVersionID)
	if err != nil {
		return fmt.Errorf("failed to load plan version: %w", err)
	}
	results, err := s.repo.ListMetricResults(ctx, tenantID, cycle.ID)
	if err != nil {
		return fmt.Errorf("failed to list results: %w", err)
	}

	have := make(map[string]bool, len(results))
	for _, r := range results {
		have[r.PlanMetricID] = true
	}

	var missing []string
	for _, m := range v.Metrics {
		if !have[m.ID] {
			missing = append(missing, m.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing results for %s", domain.ErrConflict, strings.Join(missing, ", "))
	}
	return nil
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
