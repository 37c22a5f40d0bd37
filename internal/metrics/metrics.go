// Package metrics exposes the engine's Prometheus instruments.
//
// Every engine owns its own registry so that several engines (or tests) can
// coexist in one process without duplicate-registration panics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/sensorsync/internal/reconcile"
)

const namespace = "sensorsync"

// Metrics holds the engine's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ticks         *prometheus.CounterVec
	fetchFailures *prometheus.CounterVec
	skipped       prometheus.Counter
	live          prometheus.Gauge
	version       prometheus.Gauge
	sinceLive     prometheus.Gauge
	fetchLatency  prometheus.Histogram
	sinkErrors    *prometheus.CounterVec
}

// New creates a Metrics with a fresh registry, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Completed poll ticks by reconciliation decision.",
		}, []string{"decision"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Ticks whose payload could not be normalized, by failure kind.",
		}, []string{"kind"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_skipped_total",
			Help:      "Ticks dropped because the previous tick was still in flight.",
		}),
		live: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live",
			Help:      "1 when a live reading is displayed, 0 on the fallback reading.",
		}),
		version: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state_version",
			Help:      "Number of commits since the engine started.",
		}),
		sinceLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "seconds_since_live_update",
			Help:      "Seconds since the last accepted live reading, as of the latest tick.",
		}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Histogram of sensor endpoint fetch durations.",
			Buckets:   prometheus.DefBuckets,
		}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed deliveries to output sinks by sink name.",
		}, []string{"sink"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ticks,
		m.fetchFailures,
		m.skipped,
		m.live,
		m.version,
		m.sinceLive,
		m.fetchLatency,
		m.sinkErrors,
	)

	// pre-create label values so the series exist before the first tick
	for _, d := range []reconcile.Decision{reconcile.DecisionHeld, reconcile.DecisionCommitted, reconcile.DecisionStaleReverted} {
		m.ticks.WithLabelValues(string(d))
	}

	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveTick records one completed tick.
//
// failureKind is empty when the payload normalized cleanly.
func (m *Metrics) ObserveTick(out reconcile.Outcome, latency time.Duration, failureKind string) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(string(out.Decision)).Inc()
	m.fetchLatency.Observe(latency.Seconds())
	if failureKind != "" {
		m.fetchFailures.WithLabelValues(failureKind).Inc()
	}

	if out.State.Mode() == reconcile.ModeLive {
		m.live.Set(1)
	} else {
		m.live.Set(0)
	}
	m.version.Set(float64(out.State.Version))
	m.sinceLive.Set(out.Elapsed.Seconds())
}

// TickSkipped records a tick dropped by the poller.
func (m *Metrics) TickSkipped() {
	if m == nil {
		return
	}
	m.skipped.Inc()
}

// SinkError records a failed delivery to the named sink.
func (m *Metrics) SinkError(sink string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(sink).Inc()
}
