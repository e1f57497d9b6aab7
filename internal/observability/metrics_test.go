package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewMetrics(t *testing.T) {
	m := NewMetrics("gateway")
	require.NotNil(t, m)

	body := scrape(t, m)
	assert.Contains(t, body, "gateway_start_time_seconds")
	assert.Contains(t, body, "go_goroutines")
}

func TestNewMetrics_EmptyNamespaceDefaults(t *testing.T) {
	m := NewMetrics("")
	body := scrape(t, m)
	assert.Contains(t, body, "gateway_start_time_seconds")
}

func TestRecordRequest(t *testing.T) {
	m := NewMetrics("gateway")

	m.RecordRequest(http.MethodGet, "users", http.StatusOK, 5*time.Millisecond)
	m.RecordRequest(http.MethodGet, "users", http.StatusOK, 7*time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `gateway_requests_total{method="GET",service="users",status="200"} 2`)
	assert.Contains(t, body, "gateway_request_duration_seconds")
}

func TestRecordRequest_UnmatchedService(t *testing.T) {
	m := NewMetrics("gateway")

	m.RecordRequest(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `service="unmatched"`)
}

func TestRecordUpstreamAttempt(t *testing.T) {
	m := NewMetrics("gateway")

	m.RecordUpstreamAttempt("users", "success")
	m.RecordUpstreamAttempt("users", "error")

	body := scrape(t, m)
	assert.Contains(t, body, `gateway_upstream_attempts_total{outcome="error",service="users"} 1`)
	assert.Contains(t, body, `gateway_upstream_attempts_total{outcome="success",service="users"} 1`)
}

func TestSetServiceHealth(t *testing.T) {
	m := NewMetrics("gateway")

	m.SetServiceHealth("users", true)
	m.SetServiceHealth("orders", false)

	body := scrape(t, m)
	assert.Contains(t, body, `gateway_service_health{service="users"} 1`)
	assert.Contains(t, body, `gateway_service_health{service="orders"} 0`)
}

func TestRecordRateLimitRejection(t *testing.T) {
	m := NewMetrics("gateway")

	m.RecordRateLimitRejection("ip")
	m.RecordRateLimitRejection("ip")
	m.RecordRateLimitRejection("user")

	body := scrape(t, m)
	assert.Contains(t, body, `gateway_rate_limit_rejections_total{key_type="ip"} 2`)
	assert.Contains(t, body, `gateway_rate_limit_rejections_total{key_type="user"} 1`)
}
