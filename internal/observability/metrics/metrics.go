// Package metrics exposes the Prometheus collectors for the watch loop.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cycle triggers.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerStartup  = "startup"
)

// Cycle results.
const (
	ResultOK         = "ok"
	ResultFetchError = "fetch_error"
	ResultEmpty      = "empty"
	ResultSaveError  = "save_error"
)

type Metrics struct {
	reg *prometheus.Registry

	cycles        *prometheus.CounterVec
	newEntries    prometheus.Counter
	knownEntries  prometheus.Gauge
	deliveries    *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	resets        prometheus.Counter
}

// New builds the collectors on a private registry. Go runtime and process
// collectors are registered alongside.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newWith(reg)
}

func newWith(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		reg: reg,
		cycles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamewatch_cycles_total",
				Help: "Total number of check cycles by trigger and result",
			},
			[]string{"trigger", "result"},
		),
		newEntries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gamewatch_new_entries_total",
				Help: "Total number of catalog entries detected as new",
			},
		),
		knownEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gamewatch_known_entries",
				Help: "Current number of known catalog entries",
			},
		),
		deliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamewatch_deliveries_total",
				Help: "Total number of announcement deliveries by result",
			},
			[]string{"result"},
		),
		fetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gamewatch_fetch_duration_seconds",
				Help:    "Duration of catalog check cycles in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		resets: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gamewatch_resets_total",
				Help: "Total number of known-set resets",
			},
		),
	}
}

func (m *Metrics) ObserveCycle(trigger, result string, took time.Duration, newEntries, known int) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(trigger, result).Inc()
	m.fetchDuration.Observe(took.Seconds())
	if newEntries > 0 {
		m.newEntries.Add(float64(newEntries))
	}
	m.knownEntries.Set(float64(known))
}

func (m *Metrics) ObserveDeliveries(delivered, failed int) {
	if m == nil {
		return
	}
	if delivered > 0 {
		m.deliveries.WithLabelValues("ok").Add(float64(delivered))
	}
	if failed > 0 {
		m.deliveries.WithLabelValues("error").Add(float64(failed))
	}
}

func (m *Metrics) ObserveReset() {
	if m == nil {
		return
	}
	m.resets.Inc()
	m.knownEntries.Set(0)
}

func (m *Metrics) SetKnown(n int) {
	if m == nil {
		return
	}
	m.knownEntries.Set(float64(n))
}

// Gatherer returns the registry backing the collectors.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
