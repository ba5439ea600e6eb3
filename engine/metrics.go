package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/meganemura/norikra/errors"
	"github.com/meganemura/norikra/fieldset"
	"github.com/meganemura/norikra/metric"
)

// engineMetrics holds Prometheus metrics for engine operations. A nil
// receiver disables all recording.
type engineMetrics struct {
	core       *metric.Metrics
	operations *prometheus.CounterVec // by operation
}

// newEngineMetrics creates and registers engine metrics with the provided
// registry.
func newEngineMetrics(registry *metric.MetricsRegistry) (*engineMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &engineMetrics{
		core: registry.CoreMetrics(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "norikra",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Total number of engine operations by kind",
		}, []string{"operation"}),
	}

	if err := registry.RegisterCounterVec("engine", "operations", m.operations); err != nil {
		return nil, err
	}
	return m, nil
}

type queryCounts struct {
	active  int
	waiting int
}

// countQueriesLocked tallies queries by status for the lattice gauges.
func (e *Engine) countQueriesLocked() queryCounts {
	var counts queryCounts
	for _, qs := range e.queries {
		switch qs.status {
		case StatusActive:
			counts.active++
		case StatusWaiting:
			counts.waiting++
		}
	}
	return counts
}

func (m *engineMetrics) recordOp(operation string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation).Inc()
}

func (m *engineMetrics) recordError(operation string, err error) {
	if m == nil {
		return
	}
	m.core.RecordError("engine."+operation, errors.Classify(err).String())
}

func (m *engineMetrics) setLatticeGauges(targets int, counts queryCounts) {
	if m == nil {
		return
	}
	m.core.TargetsOpen.Set(float64(targets))
	m.core.QueriesActive.Set(float64(counts.active))
	m.core.QueriesWaiting.Set(float64(counts.waiting))
}

func (m *engineMetrics) fieldSetRegistered(target string, level fieldset.Level) {
	if m == nil {
		return
	}
	m.core.FieldSetsRegistered.WithLabelValues(target, string(level)).Inc()
}

func (m *engineMetrics) fieldSetDeregistered(target string, level fieldset.Level) {
	if m == nil {
		return
	}
	m.core.FieldSetsRegistered.WithLabelValues(target, string(level)).Dec()
}

// dropTarget clears the per-level fieldset gauges when a target closes.
func (m *engineMetrics) dropTarget(target string) {
	if m == nil {
		return
	}
	m.core.FieldSetsRegistered.DeletePartialMatch(prometheus.Labels{"target": target})
}

func (m *engineMetrics) eventsReceived(target string, count int) {
	if m == nil {
		return
	}
	m.core.EventsReceived.WithLabelValues(target).Add(float64(count))
}

func (m *engineMetrics) eventForwarded(target string) {
	if m == nil {
		return
	}
	m.core.RecordEventForwarded(target)
}

func (m *engineMetrics) eventsSkipped(target, reason string, count int) {
	if m == nil {
		return
	}
	if count <= 0 {
		count = 1
	}
	m.core.EventsSkipped.WithLabelValues(target, reason).Add(float64(count))
}
