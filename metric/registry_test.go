package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meganemura/norikra/errors"
)

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()
	require.NotNil(t, registry)
	require.NotNil(t, registry.PrometheusRegistry())
	require.NotNil(t, registry.CoreMetrics())

	// Core metrics must be gatherable immediately.
	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestRegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "norikra",
		Subsystem: "test",
		Name:      "ops_total",
		Help:      "test counter",
	})

	require.NoError(t, registry.RegisterCounter("engine", "ops", counter))

	// Same key is rejected as a client error.
	err := registry.RegisterCounter("engine", "ops", counter)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestRegisterVecs(t *testing.T) {
	registry := NewMetricsRegistry()

	counterVec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "norikra",
		Subsystem: "test",
		Name:      "by_target_total",
		Help:      "test counter vec",
	}, []string{"target"})
	require.NoError(t, registry.RegisterCounterVec("engine", "by_target", counterVec))

	gaugeVec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "norikra",
		Subsystem: "test",
		Name:      "state",
		Help:      "test gauge vec",
	}, []string{"target"})
	require.NoError(t, registry.RegisterGaugeVec("engine", "state", gaugeVec))

	histVec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "norikra",
		Subsystem: "test",
		Name:      "duration_seconds",
		Help:      "test histogram vec",
	}, []string{"operation"})
	require.NoError(t, registry.RegisterHistogramVec("engine", "duration", histVec))

	counterVec.WithLabelValues("visit").Inc()
	gaugeVec.WithLabelValues("visit").Set(3)
	histVec.WithLabelValues("open").Observe(0.01)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["norikra_test_by_target_total"])
	assert.True(t, names["norikra_test_state"])
	assert.True(t, names["norikra_test_duration_seconds"])
}

func TestUnregister(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "norikra",
		Subsystem: "test",
		Name:      "gone",
		Help:      "test gauge",
	})
	require.NoError(t, registry.RegisterGauge("engine", "gone", gauge))

	assert.True(t, registry.Unregister("engine", "gone"))
	assert.False(t, registry.Unregister("engine", "gone"), "second unregister is a no-op")
	assert.False(t, registry.Unregister("engine", "never-was"))

	// Key is free again after unregistering.
	require.NoError(t, registry.RegisterGauge("engine", "gone", gauge))
}

func TestCoreMetricRecorders(t *testing.T) {
	registry := NewMetricsRegistry()
	core := registry.CoreMetrics()

	core.RecordEventReceived("visit")
	core.RecordEventForwarded("visit")
	core.RecordEventSkipped("ghost", "not_open")
	core.RecordError("engine", "fatal")
	core.RecordNATSStatus(true)
	core.RecordNATSReconnect()
	core.TargetsOpen.Set(1)
	core.QueriesActive.Set(2)
	core.QueriesWaiting.Set(1)
	core.FieldSetsRegistered.WithLabelValues("visit", "data").Set(1)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
