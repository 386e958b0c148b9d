package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "holdings"

// Metrics holds the service collectors on a dedicated registry
type Metrics struct {
	registry *prometheus.Registry

	loads           *prometheus.CounterVec
	loadDuration    prometheus.Histogram
	persistFailures prometheus.Counter
	droppedRecords  prometheus.Counter
	rows            prometheus.Gauge
	consumed        *prometheus.CounterVec
}

// New registers the collectors on a fresh registry. withRuntime adds the
// process and Go runtime collectors.
func New(withRuntime bool) *Metrics {
	registry := prometheus.NewRegistry()
	if withRuntime {
		registry.MustRegister(
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewGoCollector(),
		)
	}

	m := &Metrics{
		registry: registry,
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Settled load sequences by outcome.",
		}, []string{"outcome"}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Time from trigger to settled state.",
			Buckets:   prometheus.DefBuckets,
		}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Background writes to the local store that failed.",
		}),
		droppedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_records_total",
			Help:      "Holding records dropped because they could not be decoded.",
		}),
		rows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rows",
			Help:      "Rows currently published to the view.",
		}),
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_consumed_total",
			Help:      "Kafka events consumed by event type and result.",
		}, []string{"event_type", "result"}),
	}

	registry.MustRegister(m.loads, m.loadDuration, m.persistFailures, m.droppedRecords, m.rows, m.consumed)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveLoad records a settled load sequence.
func (m *Metrics) ObserveLoad(outcome string, elapsed time.Duration) {
	m.loads.WithLabelValues(outcome).Inc()
	m.loadDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) PersistFailed() {
	m.persistFailures.Inc()
}

func (m *Metrics) RecordsDropped(n int) {
	m.droppedRecords.Add(float64(n))
}

func (m *Metrics) SetRows(n int) {
	m.rows.Set(float64(n))
}

// EventConsumed counts a Kafka event; result is "applied", "ignored" or "failed".
func (m *Metrics) EventConsumed(eventType, result string) {
	m.consumed.WithLabelValues(eventType, result).Inc()
}
