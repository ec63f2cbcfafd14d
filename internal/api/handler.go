package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/monitoring"
	"github.com/opensource-finance/kestrel/internal/scorecard"
	"github.com/opensource-finance/kestrel/internal/threshold"
)

// Handler contains all HTTP handlers.
type Handler struct {
	svc     *monitoring.Service
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	metrics *metrics.Metrics
	version string
}

// NewHandler creates a new handler instance. m may be nil.
func NewHandler(svc *monitoring.Service, repo domain.Repository, cache domain.Cache, eventBus domain.EventBus, m *metrics.Metrics, version string) *Handler {
	return &Handler{
		svc:     svc,
		repo:    repo,
		cache:   cache,
		bus:     eventBus,
		metrics: m,
		version: version,
	}
}

// HealthResponse is the response for health check endpoint.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components"`
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	components := map[string]string{
		"repository": pingStatus(ctx, h.repo),
		"cache":      pingStatus(ctx, h.cache),
		"eventBus":   pingStatus(ctx, h.bus),
	}

	status := "healthy"
	for _, c := range components {
		if c != "healthy" {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:     status,
		Version:    h.version,
		Components: components,
	})
}

// Ready handles GET /ready.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.repo.Ping(ctx); err != nil {
		writeDetail(w, http.StatusServiceUnavailable, "repository not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type pinger interface {
	Ping(ctx context.Context) error
}

func pingStatus(ctx context.Context, p pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		return "unhealthy: " + err.Error()
	}
	return "healthy"
}

// ClassifyRequest is the request body for POST /thresholds/classify.
type ClassifyRequest struct {
	Value      *float64            `json:"value"`
	Thresholds domain.ThresholdSet `json:"thresholds"`
}

// ClassifyResponse is the response for POST /thresholds/classify.
type ClassifyResponse struct {
	Outcome domain.Outcome `json:"outcome"`
	Pattern domain.Pattern `json:"pattern"`
}

// Classify handles POST /thresholds/classify.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Value != nil && (math.IsNaN(*req.Value) || math.IsInf(*req.Value, 0)) {
		writeDetail(w, http.StatusBadRequest, "value must be a finite number")
		return
	}

	outcome := threshold.Classify(req.Value, req.Thresholds)
	if h.metrics != nil {
		h.metrics.ObserveClassification(outcome)
	}
	writeJSON(w, http.StatusOK, ClassifyResponse{
		Outcome: outcome,
		Pattern: threshold.DetectPattern(req.Thresholds),
	})
}

// ValidateResponse is the response for POST /thresholds/validate.
type ValidateResponse struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations"`
}

// ValidateThresholds handles POST /thresholds/validate.
func (h *Handler) ValidateThresholds(w http.ResponseWriter, r *http.Request) {
	var t domain.ThresholdSet
	if !decodeJSON(w, r, &t) {
		return
	}
	violations := threshold.Validate(t)
	writeJSON(w, http.StatusOK, ValidateResponse{
		Valid:      len(violations) == 0,
		Violations: violations,
	})
}

// LayoutRequest is the request body for POST /thresholds/layout.
type LayoutRequest struct {
	Thresholds domain.ThresholdSet `json:"thresholds"`
	Values     []float64           `json:"values"`
}

// Layout handles POST /thresholds/layout.
func (h *Handler) Layout(w http.ResponseWriter, r *http.Request) {
	var req LayoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, threshold.BuildLayout(req.Thresholds, req.Values))
}

// Ratings handles GET /scorecard/ratings.
func (h *Handler) Ratings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scorecard.Ratings())
}

// GetScorecard handles GET /scorecard/{validationId}.
func (h *Handler) GetScorecard(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetScorecard(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "validationId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ScorecardRequest is the request body for PUT /scorecard/{validationId}.
type ScorecardRequest struct {
	Criteria []domain.CriterionRating `json:"criteria"`
}

// SaveScorecard handles PUT /scorecard/{validationId}.
func (h *Handler) SaveScorecard(w http.ResponseWriter, r *http.Request) {
	var req ScorecardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()
	view, err := h.svc.SaveScorecard(ctx, GetTenantID(ctx), chi.URLParam(r, "validationId"), req.Criteria, GetActor(ctx))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Detail     string   `json:"detail"`
	Violations []string `json:"violations,omitempty"`
}

// decodeJSON reads the request body into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// writeError maps service errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: err.Error(), Violations: verr.Violations})
	case errors.Is(err, domain.ErrNotFound):
		writeDetail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeDetail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrConflict):
		writeDetail(w, http.StatusConflict, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
