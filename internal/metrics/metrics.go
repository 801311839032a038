// Package metrics exposes synchronization counters as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "deskmirror"

// Metrics holds all Prometheus metrics. It implements desktop.Recorder.
type Metrics struct {
	EventsPublished *prometheus.CounterVec
	WritesIssued    *prometheus.CounterVec
	WritesSettled   *prometheus.CounterVec
	ReadFailures    *prometheus.CounterVec
	ProtocolErrors  *prometheus.CounterVec

	Applications prometheus.Gauge
	Windows      prometheus.Gauge

	registry *prometheus.Registry
}

// New creates the collectors on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events published to subscribers, by event type",
		}, []string{"event"}),
		WritesIssued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_issued_total",
			Help:      "Property writes sent to the backend",
		}, []string{"property"}),
		WritesSettled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_settled_total",
			Help:      "Property writes by final outcome",
		}, []string{"property", "outcome"}),
		ReadFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_failures_total",
			Help:      "Backend property reads that failed",
		}, []string{"property"}),
		ProtocolErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Backend notifications that were ignored as inconsistent",
		}, []string{"kind"}),
		Applications: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "applications",
			Help:      "Applications currently mirrored",
		}),
		Windows: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "windows",
			Help:      "Windows currently mirrored",
		}),
		registry: reg,
	}
}

func (m *Metrics) EventPublished(event string) {
	m.EventsPublished.WithLabelValues(event).Inc()
}

func (m *Metrics) WriteIssued(property string) {
	m.WritesIssued.WithLabelValues(property).Inc()
}

func (m *Metrics) WriteSettled(property, outcome string) {
	m.WritesSettled.WithLabelValues(property, outcome).Inc()
}

func (m *Metrics) ReadFailed(property string) {
	m.ReadFailures.WithLabelValues(property).Inc()
}

func (m *Metrics) ProtocolError(kind string) {
	m.ProtocolErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) EntitiesKnown(apps, windows int) {
	m.Applications.Set(float64(apps))
	m.Windows.Set(float64(windows))
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
