package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "chatrelay"

// Metrics holds the Prometheus collectors of the relay.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	Broadcasts        prometheus.Counter
	Deliveries        prometheus.Counter
	SendFailures      prometheus.Counter
	MalformedInbound  prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of registered WebSocket connections.",
		}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "messages_total",
			Help:      "Total number of messages fanned out to local connections.",
		}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "deliveries_total",
			Help:      "Total number of successful per-connection sends.",
		}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "send_failures_total",
			Help:      "Total number of failed per-connection sends.",
		}),
		MalformedInbound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inbound",
			Name:      "malformed_total",
			Help:      "Total number of rejected inbound client frames.",
		}),
	}

	reg.MustRegister(m.ActiveConnections, m.Broadcasts, m.Deliveries, m.SendFailures, m.MalformedInbound)
	return m
}
