package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/monitoring"
)

// ListPlans handles GET /monitoring/plans.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.svc.ListPlans(r.Context(), GetTenantID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(plans))
}

// CreatePlan handles POST /monitoring/plans.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var in monitoring.PlanInput
	if !decodeJSON(w, r, &in) {
		return
	}
	plan, err := h.svc.CreatePlan(r.Context(), GetTenantID(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

// GetPlan handles GET /monitoring/plans/{planId}.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.svc.GetPlan(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "planId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// UpdatePlan handles PUT /monitoring/plans/{planId}.
func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	var in monitoring.PlanInput
	if !decodeJSON(w, r, &in) {
		return
	}
	plan, err := h.svc.UpdatePlan(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "planId"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// DeletePlan handles DELETE /monitoring/plans/{planId}.
func (h *Handler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeletePlan(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "planId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMetrics handles GET /monitoring/plans/{planId}/metrics.
func (h *Handler) ListMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.svc.ListMetrics(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "planId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(metrics))
}

// AddMetric handles POST /monitoring/plans/{planId}/metrics.
func (h *Handler) AddMetric(w http.ResponseWriter, r *http.Request) {
	var in monitoring.MetricInput
	if !decodeJSON(w, r, &in) {
		return
	}
	metric, err := h.svc.AddMetric(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "planId"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, metric)
}

// UpdateMetric handles PUT /monitoring/metrics/{metricId}.
func (h *Handler) UpdateMetric(w http.ResponseWriter, r *http.Request) {
	var in monitoring.MetricInput
	if !decodeJSON(w, r, &in) {
		return
	}
	metric, err := h.svc.UpdateMetric(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "metricId"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metric)
}

// UpdateThresholds handles PUT /monitoring/metrics/{metricId}/thresholds.
func (h *Handler) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	var t domain.ThresholdSet
	if !decodeJSON(w, r, &t) {
		return
	}
	metric, err := h.svc.UpdateThresholds(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "metricId"), t)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metric)
}

// Trend handles GET /monitoring/metrics/{metricId}/trend.
func (h *Handler) Trend(w http.ResponseWriter, r *http.Request) {
	trend, err := h.svc.Trend(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "metricId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trend)
}

// ListVersions handles GET /monitoring/plans/{planId}/versions.
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.svc.ListVersions(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "planId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(versions))
}

// PublishVersion handles POST /monitoring/plans/{planId}/versions.
func (h *Handler) PublishVersion(w http.ResponseWriter, r *http.Request) {
	var in monitoring.PublishInput
	if r.ContentLength != 0 && !decodeJSON(w, r, &in) {
		return
	}
	ctx := r.Context()
	in.Actor = GetActor(ctx)
	version, err := h.svc.PublishVersion(ctx, GetTenantID(ctx), chi.URLParam(r, "planId"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, version)
}

// GetVersion handles GET /monitoring/versions/{versionId}.
func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	version, err := h.svc.GetVersion(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "versionId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, version)
}

// ListCycles handles GET /monitoring/plans/{planId}/cycles.
func (h *Handler) ListCycles(w http.ResponseWriter, r *http.Request) {
	cycles, err := h.svc.ListCycles(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "planId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(cycles))
}

// CreateCycle handles POST /monitoring/plans/{planId}/cycles.
func (h *Handler) CreateCycle(w http.ResponseWriter, r *http.Request) {
	var in monitoring.CycleInput
	if r.ContentLength != 0 && !decodeJSON(w, r, &in) {
		return
	}
	cycle, err := h.svc.CreateCycle(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "planId"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cycle)
}

// GetCycle handles GET /monitoring/cycles/{cycleId}.
func (h *Handler) GetCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := h.svc.GetCycle(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "cycleId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cycle)
}

// TransitionCycle handles POST /monitoring/cycles/{cycleId}/{action}. The
// body is optional and may carry a comment or a new due date.
func (h *Handler) TransitionCycle(w http.ResponseWriter, r *http.Request) {
	var req monitoring.TransitionRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()
	req.Action = domain.CycleAction(chi.URLParam(r, "action"))
	req.Actor = GetActor(ctx)

	cycle, err := h.svc.Transition(ctx, GetTenantID(ctx), chi.URLParam(r, "cycleId"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cycle)
}

// ListResults handles GET /monitoring/cycles/{cycleId}/results.
func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.svc.ListResults(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "cycleId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(results))
}

// RecordResult handles POST /monitoring/cycles/{cycleId}/results.
func (h *Handler) RecordResult(w http.ResponseWriter, r *http.Request) {
	var in monitoring.ResultInput
	if !decodeJSON(w, r, &in) {
		return
	}
	ctx := r.Context()
	in.Actor = GetActor(ctx)
	result, err := h.svc.RecordResult(ctx, GetTenantID(ctx), chi.URLParam(r, "cycleId"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListExceptions handles GET /monitoring/plans/{planId}/exceptions.
func (h *Handler) ListExceptions(w http.ResponseWriter, r *http.Request) {
	exceptions, err := h.svc.ListExceptions(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "planId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(exceptions))
}

// CloseExceptionRequest is the request body for closing an exception.
type CloseExceptionRequest struct {
	Resolution string `json:"resolution"`
}

// CloseException handles POST /monitoring/exceptions/{exceptionId}/close.
func (h *Handler) CloseException(w http.ResponseWriter, r *http.Request) {
	var req CloseExceptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.CloseException(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "exceptionId"), req.Resolution); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
