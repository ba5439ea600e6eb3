// Package output delivers continuous-query results to their consumers.
// The engine forwards CEP-runtime listener invocations verbatim to a
// single Sink; fan-out to multiple consumers is a Tee of sinks.
package output

import (
	"log/slog"
	"sync"
)

// Sink receives the result events of one listener invocation for a query.
// Implementations must be safe for concurrent use: the CEP runtime may
// deliver results for different queries from different goroutines.
type Sink interface {
	Deliver(queryName string, events []map[string]any)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(queryName string, events []map[string]any)

// Deliver implements Sink.
func (f SinkFunc) Deliver(queryName string, events []map[string]any) {
	f(queryName, events)
}

// LogSink writes query results to a structured logger. It is the default
// sink when no delivery transport is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging to logger, defaulting to slog.Default.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Deliver implements Sink.
func (s *LogSink) Deliver(queryName string, events []map[string]any) {
	s.logger.Info("query results", "query", queryName, "count", len(events), "events", events)
}

// Tee fans one delivery out to several sinks. Branches can be attached and
// detached while deliveries are in flight.
type Tee struct {
	mu     sync.RWMutex
	nextID int
	sinks  map[int]Sink
}

// NewTee creates a fan-out sink over the given branches.
func NewTee(sinks ...Sink) *Tee {
	t := &Tee{sinks: make(map[int]Sink)}
	for _, s := range sinks {
		t.Attach(s)
	}
	return t
}

// Attach adds a branch and returns a function that detaches it again.
func (t *Tee) Attach(s Sink) (detach func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.sinks[id] = s
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.sinks, id)
	}
}

// Len returns the number of attached branches.
func (t *Tee) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sinks)
}

// Deliver implements Sink.
func (t *Tee) Deliver(queryName string, events []map[string]any) {
	t.mu.RLock()
	sinks := make([]Sink, 0, len(t.sinks))
	for _, s := range t.sinks {
		sinks = append(sinks, s)
	}
	t.mu.RUnlock()

	for _, s := range sinks {
		s.Deliver(queryName, events)
	}
}
