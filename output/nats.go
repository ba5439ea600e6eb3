package output

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// Publisher is the transport slice NATSSink needs. *natsclient.Client
// satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes query results as JSON to one subject per query,
// "<prefix>.<queryName>". Consumers subscribe to the queries they care
// about; a wildcard subscription sees everything.
type NATSSink struct {
	publisher Publisher
	prefix    string
	logger    *slog.Logger
}

// NewNATSSink creates a sink publishing under prefix (default
// "norikra.query").
func NewNATSSink(publisher Publisher, prefix string, logger *slog.Logger) *NATSSink {
	if prefix == "" {
		prefix = "norikra.query"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSink{publisher: publisher, prefix: prefix, logger: logger}
}

// resultBatch is the wire form of one delivery.
type resultBatch struct {
	Query  string           `json:"query"`
	Events []map[string]any `json:"events"`
}

// Deliver implements Sink. Delivery is best effort: a failed publish is
// logged and dropped, never retried, so a slow consumer cannot stall the
// CEP runtime's listener thread.
func (s *NATSSink) Deliver(queryName string, events []map[string]any) {
	data, err := json.Marshal(resultBatch{Query: queryName, Events: events})
	if err != nil {
		s.logger.Error("failed to encode query results", "query", queryName, "error", err)
		return
	}

	subject := fmt.Sprintf("%s.%s", s.prefix, queryName)
	if err := s.publisher.Publish(subject, data); err != nil {
		s.logger.Warn("failed to publish query results", "query", queryName, "subject", subject, "error", err)
	}
}
