package diag

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_Health(t *testing.T) {
	m := NewMetrics()
	h := Handler(m, func() HealthStatus {
		return HealthStatus{Connected: true, Pending: 2}
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "healthy", got.Status)
	assert.True(t, got.Connected)
	assert.Equal(t, 2, got.Pending)
}

func TestHandler_Metrics(t *testing.T) {
	m := NewMetrics()
	m.Alert("critical", "played")
	m.Probe(true)
	m.QueueDepth(3, 1)

	rec := httptest.NewRecorder()
	Handler(m, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `runalert_alerts_total{outcome="played",priority="critical"} 1`))
	assert.True(t, strings.Contains(body, "runalert_connected 1"))
	assert.True(t, strings.Contains(body, "runalert_queue_pending 3"))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Alert("info", "played")
		m.Flush("ok")
		m.Replay("markRead", "ok")
		m.QueueDepth(1, 1)
		m.Probe(false)
		m.Delivery()
		m.PendingSounds(1)
	})
}
