// Package metrics exposes the server's prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for one server instance. Each server gets its
// own registry so multiple instances in one process do not collide.
type Metrics struct {
	registry *prometheus.Registry

	ConnectedClients   prometheus.Gauge
	SamplesStreamed    prometheus.Counter
	EventsBroadcast    prometheus.Counter
	SubscribersDropped prometheus.Counter
}

// New creates and registers the collector set.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cpumon_connected_clients",
			Help: "Number of currently connected streaming clients.",
		}),
		SamplesStreamed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cpumon_samples_streamed_total",
			Help: "Telemetry payloads successfully written to clients.",
		}),
		EventsBroadcast: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cpumon_events_broadcast_total",
			Help: "Workload events fanned out to the subscriber set.",
		}),
		SubscribersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cpumon_subscribers_dropped_total",
			Help: "Subscribers removed after a failed delivery.",
		}),
	}
	m.registry.MustRegister(
		m.ConnectedClients,
		m.SamplesStreamed,
		m.EventsBroadcast,
		m.SubscribersDropped,
	)
	return m
}

// Handler returns the exposition endpoint for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
