package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all platform-level metrics (not component-specific)
type Metrics struct {
	// Schema lattice metrics
	TargetsOpen         prometheus.Gauge
	QueriesActive       prometheus.Gauge
	QueriesWaiting      prometheus.Gauge
	FieldSetsRegistered *prometheus.GaugeVec

	// Event flow metrics
	EventsReceived  *prometheus.CounterVec
	EventsForwarded *prometheus.CounterVec
	EventsSkipped   *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec

	// NATS metrics
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		TargetsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "norikra",
				Subsystem: "targets",
				Name:      "open",
				Help:      "Current number of open targets",
			},
		),

		QueriesActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "norikra",
				Subsystem: "queries",
				Name:      "active",
				Help:      "Current number of active continuous queries",
			},
		),

		QueriesWaiting: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "norikra",
				Subsystem: "queries",
				Name:      "waiting",
				Help:      "Current number of queries parked waiting for field types",
			},
		),

		FieldSetsRegistered: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "norikra",
				Subsystem: "fieldsets",
				Name:      "registered",
				Help:      "Currently registered fieldsets by target and level",
			},
			[]string{"target", "level"},
		),

		EventsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "norikra",
				Subsystem: "events",
				Name:      "received_total",
				Help:      "Total number of events received per target",
			},
			[]string{"target"},
		),

		EventsForwarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "norikra",
				Subsystem: "events",
				Name:      "forwarded_total",
				Help:      "Total number of events forwarded to the CEP runtime per target",
			},
			[]string{"target"},
		),

		EventsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "norikra",
				Subsystem: "events",
				Name:      "skipped_total",
				Help:      "Total number of events skipped (unopened target or empty batch)",
			},
			[]string{"target", "reason"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "norikra",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors by component and class",
			},
			[]string{"component", "class"},
		),

		// NATS metrics
		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "norikra",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "norikra",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

// RecordEventReceived increments the received event counter
func (c *Metrics) RecordEventReceived(target string) {
	c.EventsReceived.WithLabelValues(target).Inc()
}

// RecordEventForwarded increments the forwarded event counter
func (c *Metrics) RecordEventForwarded(target string) {
	c.EventsForwarded.WithLabelValues(target).Inc()
}

// RecordEventSkipped increments the skipped event counter
func (c *Metrics) RecordEventSkipped(target, reason string) {
	c.EventsSkipped.WithLabelValues(target, reason).Inc()
}

// RecordError increments error counter
func (c *Metrics) RecordError(component, class string) {
	c.ErrorsTotal.WithLabelValues(component, class).Inc()
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}
