// Package metrics exposes the collector and upstream counters as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "telemetry"

// Metrics is safe to use as a nil pointer, in which case every observation is dropped.
type Metrics struct {
	registry *prometheus.Registry

	cyclesTotal      *prometheus.CounterVec
	droppedTicks     prometheus.Counter
	cycleDuration    prometheus.Histogram
	lastSuccessUnix  prometheus.Gauge
	eventsAppended   prometheus.Counter
	upstreamAttempts *prometheus.CounterVec
	eventsPublished  prometheus.Counter
	eventsIndexed    prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	auto := promauto.With(registry)

	return &Metrics{
		registry: registry,

		cyclesTotal: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "cycles_total",
			Help:      "Collection cycles by result",
		}, []string{"result"}),
		droppedTicks: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "dropped_ticks_total",
			Help:      "Ticks dropped because a cycle was already running",
		}),
		cycleDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a collection cycle including upstream retries",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		lastSuccessUnix: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last committed cycle",
		}),
		eventsAppended: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "events_appended_total",
			Help:      "Telemetry events committed to storage",
		}),
		upstreamAttempts: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "attempts_total",
			Help:      "Upstream fetch attempts by outcome",
		}, []string{"outcome"}),
		eventsPublished: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Telemetry events published to the event queue",
		}),
		eventsIndexed: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "events_indexed_total",
			Help:      "Telemetry events handed to the Elasticsearch bulk indexer",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveCycle(result string, duration time.Duration) {
	if m == nil {
		return
	}

	m.cyclesTotal.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(duration.Seconds())
}

func (m *Metrics) ObserveCommit(events int, at time.Time) {
	if m == nil {
		return
	}

	m.eventsAppended.Add(float64(events))
	m.lastSuccessUnix.Set(float64(at.Unix()))
}

func (m *Metrics) DroppedTick() {
	if m == nil {
		return
	}

	m.droppedTicks.Inc()
}

func (m *Metrics) ObserveUpstreamAttempt(outcome string) {
	if m == nil {
		return
	}

	m.upstreamAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) EventsPublished(n int) {
	if m == nil {
		return
	}

	m.eventsPublished.Add(float64(n))
}

func (m *Metrics) EventsIndexed(n int) {
	if m == nil {
		return
	}

	m.eventsIndexed.Add(float64(n))
}
