package telemetry

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turfscan/turfscan/internal/adapter"
)

func TestIsolatedRegistries(t *testing.T) {
	// Two instances must not trip duplicate registration.
	assert.NotPanics(t, func() {
		_ = New()
		_ = New()
	})
}

func TestObserveReports(t *testing.T) {
	m := New()
	m.ObserveReports([]adapter.Report{
		{Adapter: "oddsboard", Status: adapter.StatusSuccess, Duration: 800 * time.Millisecond, TrustRatio: 0.9},
		{Adapter: "raceform", Status: adapter.StatusFailed, ErrorMessage: "timeout"},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AdapterFetches.WithLabelValues("oddsboard", adapter.StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AdapterFetches.WithLabelValues("raceform", adapter.StatusFailed)))
	assert.Equal(t, 0.9, testutil.ToFloat64(m.AdapterTrust.WithLabelValues("oddsboard")))
	// Failed fetches record no duration or trust sample.
	assert.Equal(t, 0.0, testutil.ToFloat64(m.AdapterTrust.WithLabelValues("raceform")))
}

func TestObserveHTTP(t *testing.T) {
	m := New()
	m.ObserveHTTP("/api/races", "GET", 200, 40*time.Millisecond)
	m.ObserveHTTP("/api/races", "GET", 200, 60*time.Millisecond)
	m.ObserveHTTP("/api/races", "GET", 503, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/races", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/races", "GET", "503")))
}

func TestHandlerServesExposition(t *testing.T) {
	m := New()
	m.EngineRequests.WithLabelValues("live").Inc()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "turfscan_engine_responses_total")
}
