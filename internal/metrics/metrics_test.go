package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpalmerr/sensorsync/internal/reconcile"
	"github.com/jpalmerr/sensorsync/reading"
)

func liveState(version uint64) reconcile.SyncState {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return reconcile.SyncState{
		Current: reading.New(reading.Number(22), reading.Number(300), reading.Number(40), "ok"),
		Clock:   reconcile.NewStalenessMonitor(now),
		Version: version,
	}
}

func TestObserveTick(t *testing.T) {
	m := New()

	m.ObserveTick(reconcile.Outcome{
		Decision: reconcile.DecisionCommitted,
		State:    liveState(3),
		Elapsed:  2 * time.Second,
	}, 40*time.Millisecond, "")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ticks.WithLabelValues("committed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ticks.WithLabelValues("held")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.live))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.version))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sinceLive))
}

func TestObserveTick_FailureGoesFallback(t *testing.T) {
	m := New()
	fallback := reconcile.InitialState(time.Now())
	fallback.Version = 4

	m.ObserveTick(reconcile.Outcome{
		Decision: reconcile.DecisionCommitted,
		State:    fallback,
	}, time.Second, "transport")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchFailures.WithLabelValues("transport")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.live))
}

func TestTickSkippedAndSinkError(t *testing.T) {
	m := New()
	m.TickSkipped()
	m.TickSkipped()
	m.SinkError("mqtt")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.skipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sinkErrors.WithLabelValues("mqtt")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	m.ObserveTick(reconcile.Outcome{}, 0, "malformed")
	m.TickSkipped()
	m.SinkError("kafka")
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_ExposesEngineSeries(t *testing.T) {
	m := New()
	m.TickSkipped()

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "sensorsync_ticks_skipped_total 1")
	assert.Contains(t, string(body), `sensorsync_ticks_total{decision="stale_reverted"} 0`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.TickSkipped()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.skipped))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.skipped))
}
