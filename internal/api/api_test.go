package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/formula"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/monitoring"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/threshold"
)

const testTenant = "tenant-001"

// createTestServer creates a server backed by a temporary SQLite database.
func createTestServer(t *testing.T) (*Server, *metrics.Metrics) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "kestrel-api-*.db")
	require.NoError(t, err)
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: tmpPath})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	engine, err := formula.NewEngine(0)
	require.NoError(t, err)

	lru := cache.NewLRUCache(100)
	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	m, err := metrics.New()
	require.NoError(t, err)

	svc := monitoring.NewService(repo, lru, eventBus, engine, monitoring.Options{Recorder: m})
	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}
	return NewServer(cfg, svc, repo, lru, eventBus, m, "test-v1"), m
}

// do sends a request as testTenant and decodes a JSON response into out.
func do(t *testing.T, s *Server, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(TenantIDHeader, testTenant)
	req.Header.Set(UserIDHeader, "analyst@example.com")

	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	if out != nil && rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), out), rr.Body.String())
	}
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := createTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected healthy, got %s (%v)", resp.Status, resp.Components)
	}
	if resp.Version != "test-v1" {
		t.Errorf("expected version test-v1, got %s", resp.Version)
	}

	req = httptest.NewRequest(http.MethodGet, "/ready", nil)
	rr = httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("expected ready, got %d", rr.Code)
	}
}

func TestMiddleware(t *testing.T) {
	server, _ := createTestServer(t)

	t.Run("MissingTenant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/monitoring/plans", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rr.Code)
		}
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "X-Tenant-ID header is required", resp.Detail)
	})

	t.Run("RequestIDPropagation", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if got := rr.Header().Get(RequestIDHeader); got != "req-123" {
			t.Errorf("expected request id req-123, got %q", got)
		}
		if rr.Header().Get(TraceIDHeader) == "" {
			t.Error("expected trace id header")
		}
	})

	t.Run("CORSPreflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/monitoring/plans", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rr.Code)
		}
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("unexpected allow-origin %q", got)
		}
	})
}

func TestThresholdEndpoints(t *testing.T) {
	server, _ := createTestServer(t)

	lowerIsBetter := domain.ThresholdSet{YellowMax: domain.Float(0.1), RedMax: domain.Float(0.25)}

	t.Run("Classify", func(t *testing.T) {
		tests := []struct {
			name  string
			value *float64
			want  domain.Outcome
		}{
			{"green", domain.Float(0.05), domain.OutcomeGreen},
			{"boundary stays green", domain.Float(0.1), domain.OutcomeGreen},
			{"yellow", domain.Float(0.2), domain.OutcomeYellow},
			{"red", domain.Float(0.3), domain.OutcomeRed},
			{"missing value", nil, domain.OutcomeNA},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				var resp ClassifyResponse
				rr := do(t, server, http.MethodPost, "/thresholds/classify", ClassifyRequest{Value: tt.value, Thresholds: lowerIsBetter}, &resp)
				require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
				assert.Equal(t, tt.want, resp.Outcome)
				assert.Equal(t, domain.PatternLowerIsBetter, resp.Pattern)
			})
		}
	})

	t.Run("ClassifyUnconfigured", func(t *testing.T) {
		var resp ClassifyResponse
		do(t, server, http.MethodPost, "/thresholds/classify", ClassifyRequest{Value: domain.Float(42)}, &resp)
		assert.Equal(t, domain.OutcomeUnconfigured, resp.Outcome)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/thresholds/classify", strings.NewReader("{"))
		req.Header.Set(TenantIDHeader, testTenant)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Validate", func(t *testing.T) {
		var resp ValidateResponse
		invalid := domain.ThresholdSet{RedMin: domain.Float(5), YellowMin: domain.Float(3)}
		do(t, server, http.MethodPost, "/thresholds/validate", invalid, &resp)
		assert.False(t, resp.Valid)
		assert.Equal(t, []string{threshold.MsgRedMinAboveYellowMin}, resp.Violations)

		resp = ValidateResponse{}
		do(t, server, http.MethodPost, "/thresholds/validate", lowerIsBetter, &resp)
		assert.True(t, resp.Valid)
		assert.Empty(t, resp.Violations)
	})

	t.Run("Layout", func(t *testing.T) {
		var layout domain.Layout
		rr := do(t, server, http.MethodPost, "/thresholds/layout", LayoutRequest{Thresholds: lowerIsBetter, Values: []float64{0.05, 0.3}}, &layout)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, domain.PatternLowerIsBetter, layout.Pattern)
		require.Len(t, layout.Zones, 3)
		assert.Equal(t, domain.OutcomeGreen, layout.Zones[0].Outcome)
		assert.Equal(t, domain.OutcomeRed, layout.Zones[2].Outcome)
	})
}

func TestScorecardEndpoints(t *testing.T) {
	server, _ := createTestServer(t)

	t.Run("Ratings", func(t *testing.T) {
		var ratings []map[string]any
		rr := do(t, server, http.MethodGet, "/scorecard/ratings", nil, &ratings)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, ratings, 7)
	})

	t.Run("EmptyScorecard", func(t *testing.T) {
		var view monitoring.ScorecardView
		rr := do(t, server, http.MethodGet, "/scorecard/val-1", nil, &view)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, "val-1", view.ValidationID)
		assert.Empty(t, view.Criteria)
		assert.Equal(t, domain.RatingUnrated, view.Summary.OverallRating)
	})

	t.Run("Save", func(t *testing.T) {
		body := ScorecardRequest{Criteria: []domain.CriterionRating{
			{Code: "C1", Section: "Conceptual soundness", Rating: "green"},
		}}
		var view monitoring.ScorecardView
		rr := do(t, server, http.MethodPut, "/scorecard/val-1", body, &view)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, domain.RatingGreen, view.Criteria[0].Rating)
		assert.Equal(t, domain.RatingGreen, view.Summary.OverallRating)
		assert.Equal(t, "analyst@example.com", view.UpdatedBy)
	})

	t.Run("UnknownRating", func(t *testing.T) {
		body := ScorecardRequest{Criteria: []domain.CriterionRating{
			{Code: "C1", Section: "Data", Rating: "Purple"},
		}}
		var resp ErrorResponse
		rr := do(t, server, http.MethodPut, "/scorecard/val-2", body, &resp)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.NotEmpty(t, resp.Detail)
	})
}

func TestMonitoringEndpoints(t *testing.T) {
	server, _ := createTestServer(t)

	var plan domain.Plan
	rr := do(t, server, http.MethodPost, "/monitoring/plans", monitoring.PlanInput{Name: "Retail PD model", Frequency: "quarterly"}, &plan)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, domain.FrequencyQuarterly, plan.Frequency)
	base := "/monitoring/plans/" + plan.ID

	t.Run("InvalidThresholds", func(t *testing.T) {
		var resp ErrorResponse
		rr := do(t, server, http.MethodPost, base+"/metrics", monitoring.MetricInput{
			Name:       "Gini",
			Thresholds: domain.ThresholdSet{RedMin: domain.Float(0.5), YellowMin: domain.Float(0.4)},
		}, &resp)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, []string{threshold.MsgRedMinAboveYellowMin}, resp.Violations)
	})

	var metric domain.PlanMetric
	rr = do(t, server, http.MethodPost, base+"/metrics", monitoring.MetricInput{
		Name:       "PSI",
		Thresholds: domain.ThresholdSet{YellowMax: domain.Float(0.1), RedMax: domain.Float(0.25)},
	}, &metric)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var cycle domain.Cycle
	rr = do(t, server, http.MethodPost, base+"/cycles", map[string]string{"periodStart": "2025-01-01T00:00:00Z"}, &cycle)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, domain.CycleStatusPending, cycle.Status)
	assert.Equal(t, "2025-03-31", cycle.PeriodEnd.Format("2006-01-02"))
	cyclePath := "/monitoring/cycles/" + cycle.ID

	t.Run("StartWithoutVersion", func(t *testing.T) {
		rr := do(t, server, http.MethodPost, cyclePath+"/start", nil, nil)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	var version domain.PlanVersion
	rr = do(t, server, http.MethodPost, base+"/versions", monitoring.PublishInput{Label: "initial"}, &version)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, 1, version.VersionNumber)
	assert.Equal(t, "analyst@example.com", version.PublishedBy)

	rr = do(t, server, http.MethodPost, cyclePath+"/start", nil, &cycle)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, domain.CycleStatusDataCollection, cycle.Status)
	assert.Equal(t, version.ID, cycle.PlanVersionID)

	t.Run("SubmitIncomplete", func(t *testing.T) {
		var resp ErrorResponse
		rr := do(t, server, http.MethodPost, cyclePath+"/submit", nil, &resp)
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Contains(t, resp.Detail, "PSI")
	})

	var result domain.MetricResult
	rr = do(t, server, http.MethodPost, cyclePath+"/results", monitoring.ResultInput{PlanMetricID: metric.ID, Value: domain.Float(0.3)}, &result)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, domain.OutcomeRed, result.Outcome)
	assert.Equal(t, "analyst@example.com", result.RecordedBy)

	rr = do(t, server, http.MethodPost, cyclePath+"/submit", nil, &cycle)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, domain.CycleStatusUnderReview, cycle.Status)

	t.Run("InvalidTransition", func(t *testing.T) {
		rr := do(t, server, http.MethodPost, cyclePath+"/approve", nil, nil)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("UnknownAction", func(t *testing.T) {
		rr := do(t, server, http.MethodPost, cyclePath+"/explode", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("GetCycle", func(t *testing.T) {
		var got domain.Cycle
		rr := do(t, server, http.MethodGet, cyclePath, nil, &got)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, got.History, 2)
		assert.Equal(t, "analyst@example.com", got.History[0].Actor)
	})

	t.Run("ListResults", func(t *testing.T) {
		var results []domain.MetricResult
		rr := do(t, server, http.MethodGet, cyclePath+"/results", nil, &results)
		require.Equal(t, http.StatusOK, rr.Code)
		require.Len(t, results, 1)
		assert.Equal(t, result.ID, results[0].ID)
	})

	t.Run("Trend", func(t *testing.T) {
		var trend domain.Trend
		rr := do(t, server, http.MethodGet, "/monitoring/metrics/"+metric.ID+"/trend", nil, &trend)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		require.Len(t, trend.Points, 1)
		assert.Equal(t, domain.OutcomeRed, trend.Points[0].Outcome)
		assert.Equal(t, domain.PatternLowerIsBetter, trend.Layout.Pattern)
	})

	t.Run("EmptyListsAreArrays", func(t *testing.T) {
		rr := do(t, server, http.MethodGet, base+"/exceptions", nil, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "[]", strings.TrimSpace(rr.Body.String()))
	})

	t.Run("NotFound", func(t *testing.T) {
		var resp ErrorResponse
		rr := do(t, server, http.MethodGet, "/monitoring/cycles/missing", nil, &resp)
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.NotEmpty(t, resp.Detail)
	})

	t.Run("DeletePlan", func(t *testing.T) {
		rr := do(t, server, http.MethodDelete, base, nil, nil)
		assert.Equal(t, http.StatusNoContent, rr.Code)

		var plans []domain.Plan
		do(t, server, http.MethodGet, "/monitoring/plans", nil, &plans)
		assert.Empty(t, plans)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := createTestServer(t)

	do(t, server, http.MethodPost, "/thresholds/classify", ClassifyRequest{Value: domain.Float(1)}, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.Contains(t, body, `kestrel_http_requests_total{method="POST",route="/thresholds/classify",status_code="200"} 1`)
	assert.Contains(t, body, `kestrel_classifications_total{outcome="UNCONFIGURED"} 1`)
}
