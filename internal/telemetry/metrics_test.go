package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_InstrumentUsesRoutePattern(t *testing.T) {
	m := NewMetrics()

	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", m.Handler())

	for _, id := range []string{"1", "2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/"+id, nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/users/{id}", "418")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.httpInFlight))
}

func TestMetrics_RecordFlowExposed(t *testing.T) {
	m := NewMetrics()
	m.RecordFlow("register", OutcomeSuccess)
	m.RecordFlow("register", OutcomeCallbackFailed)
	m.RecordFlow("register", OutcomeSuccess)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.flowsTotal.WithLabelValues("register", OutcomeSuccess)))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `gridlogin_flow_total{flow="register",outcome="callback_failed"} 1`)
}

func TestMetrics_NilRecordFlow(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.RecordFlow("login", OutcomeError) })
}
