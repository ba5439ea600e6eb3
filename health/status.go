// Package health tracks the liveness of the server's moving parts (CEP
// runtime, NATS connection, admin API) and aggregates them into one
// system status served over HTTP.
package health

import (
	"time"
)

// Health states, from best to worst.
const (
	StateHealthy   = "healthy"
	StateDegraded  = "degraded"
	StateUnhealthy = "unhealthy"
)

// Status is the health of one component at a point in time.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
}

// NewHealthy returns a healthy status for a component.
func NewHealthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   true,
		Status:    StateHealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewDegraded returns a degraded status: operational, but impaired.
func NewDegraded(component, message string) Status {
	return Status{
		Component: component,
		Status:    StateDegraded,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewUnhealthy returns an unhealthy status for a component.
func NewUnhealthy(component, message string) Status {
	return Status{
		Component: component,
		Status:    StateUnhealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Aggregate folds component statuses into one system status: unhealthy
// if any component is unhealthy, degraded if any is degraded, healthy
// otherwise.
func Aggregate(systemName string, statuses []Status) Status {
	state := StateHealthy
	for _, s := range statuses {
		switch s.Status {
		case StateUnhealthy:
			state = StateUnhealthy
		case StateDegraded:
			if state == StateHealthy {
				state = StateDegraded
			}
		}
	}

	return Status{
		Component:   systemName,
		Healthy:     state == StateHealthy,
		Status:      state,
		Timestamp:   time.Now(),
		SubStatuses: statuses,
	}
}
