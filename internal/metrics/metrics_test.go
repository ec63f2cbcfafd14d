package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestCounters(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.ObserveClassification(domain.OutcomeRed)
	m.ObserveClassification(domain.OutcomeRed)
	m.ObserveClassification(domain.OutcomeGreen)
	m.ObserveTransition(domain.ActionApprove, domain.CycleStatusApproved)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.classifications.WithLabelValues("RED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.classifications.WithLabelValues("GREEN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("approve", "APPROVED")))
}

func TestHandler(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.ObserveHTTP("GET", "/monitoring/plans", 200, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, `kestrel_http_requests_total{method="GET",route="/monitoring/plans",status_code="200"} 1`), text)
	assert.Contains(t, text, "kestrel_http_request_duration_seconds_bucket")
	assert.Contains(t, text, "go_goroutines")
}
