package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "mockrelay"

// Metrics holds the Prometheus metrics of one relay instance. Each instance
// has its own registry so several can run in one process.
type Metrics struct {
	registry *prometheus.Registry

	Messages   *prometheus.CounterVec
	Events     *prometheus.CounterVec
	Notices    prometheus.Counter
	Deliveries prometheus.Counter
	Sessions   prometheus.Counter
}

func NewMetrics() (m *Metrics) {
	m = &Metrics{
		registry: prometheus.NewRegistry(),
		Messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "messages_total",
				Help:      "Client messages handled, by label",
			},
			[]string{"label"},
		),
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "events_total",
				Help:      "Submitted events, by outcome",
			},
			[]string{"outcome"},
		),
		Notices: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "notices_total",
			Help:      "NOTICE messages sent for undecodable frames",
		}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "broadcast_deliveries_total",
			Help:      "Live events sent to subscriptions",
		}),
		Sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_total",
			Help:      "Websocket connections accepted",
		}),
	}
	m.registry.MustRegister(
		m.Messages,
		m.Events,
		m.Notices,
		m.Deliveries,
		m.Sessions,
		collectors.NewGoCollector(),
	)
	return
}

// Watch adds gauges that read the relay's current state on every scrape.
func (m *Metrics) Watch(rl *Relay) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "stored_events",
			Help:      "Events in the store",
		}, func() float64 { return float64(rl.Store.Count()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "subscriptions",
			Help:      "Open subscriptions",
		}, func() float64 { return float64(rl.Registry.Size()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connections",
			Help:      "Open websocket connections",
		}, func() float64 { return float64(rl.Clients()) }),
	)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
