package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorUpdateAndGet(t *testing.T) {
	m := NewMonitor()

	m.UpdateHealthy("nats", "connected")
	status, ok := m.Get("nats")
	require.True(t, ok)
	assert.True(t, status.Healthy)
	assert.Equal(t, StateHealthy, status.Status)
	assert.Equal(t, "nats", status.Component)
	assert.False(t, status.Timestamp.IsZero())

	_, ok = m.Get("unknown")
	assert.False(t, ok)
}

func TestMonitorRemove(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("nats", "connected")
	m.Remove("nats")
	_, ok := m.Get("nats")
	assert.False(t, ok)
}

func TestSystemAggregation(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("engine", "running")
	m.UpdateHealthy("nats", "connected")

	system := m.System("norikra")
	assert.True(t, system.Healthy)
	assert.Equal(t, StateHealthy, system.Status)
	require.Len(t, system.SubStatuses, 2)
	assert.Equal(t, "engine", system.SubStatuses[0].Component)
	assert.Equal(t, "nats", system.SubStatuses[1].Component)

	m.UpdateDegraded("nats", "reconnecting")
	system = m.System("norikra")
	assert.Equal(t, StateDegraded, system.Status)
	assert.False(t, system.Healthy)

	m.UpdateUnhealthy("nats", "connection lost")
	system = m.System("norikra")
	assert.Equal(t, StateUnhealthy, system.Status)
}

func TestAggregateEmpty(t *testing.T) {
	status := Aggregate("norikra", nil)
	assert.True(t, status.Healthy)
	assert.Equal(t, StateHealthy, status.Status)
}
