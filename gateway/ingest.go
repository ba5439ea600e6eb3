package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/meganemura/norikra/engine"
	"github.com/meganemura/norikra/errors"
)

// Subscriber is the slice of the NATS client the consumer needs.
type Subscriber interface {
	Subscribe(subject string, handler func(subject string, data []byte)) error
}

// Consumer feeds events published on "<prefix>.<target>" subjects into
// the engine. Malformed payloads and events for unopened targets are
// dropped, matching the engine's silent-discard rule for ingestion.
type Consumer struct {
	engine *engine.Engine
	logger *slog.Logger
	prefix string
}

// NewConsumer creates a NATS event consumer with the given subject
// prefix, e.g. "norikra.event".
func NewConsumer(eng *engine.Engine, prefix string, logger *slog.Logger) (*Consumer, error) {
	if eng == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Consumer", "NewConsumer", "engine validation")
	}
	if prefix == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Consumer", "NewConsumer", "subject prefix validation")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{engine: eng, logger: logger, prefix: prefix}, nil
}

// Start subscribes to the event subject tree.
func (c *Consumer) Start(sub Subscriber) error {
	subject := c.prefix + ".>"
	if err := sub.Subscribe(subject, c.handle); err != nil {
		return err
	}
	c.logger.Info("event ingestion started", "subject", subject)
	return nil
}

// handle processes one inbound message.
func (c *Consumer) handle(subject string, data []byte) {
	target, ok := c.targetOf(subject)
	if !ok {
		c.logger.Debug("ignoring message with no target token", "subject", subject)
		return
	}

	events, err := decodeEvents(data)
	if err != nil {
		c.logger.Warn("dropping undecodable event payload", "subject", subject, "error", err)
		return
	}

	if err := c.engine.Send(target, events); err != nil {
		c.logger.Error("event ingestion failed", "target", target, "error", err)
	}
}

// targetOf extracts the target name: the single token following the
// prefix. Deeper subjects are ignored rather than guessed at.
func (c *Consumer) targetOf(subject string) (string, bool) {
	rest, found := strings.CutPrefix(subject, c.prefix+".")
	if !found || rest == "" || strings.Contains(rest, ".") {
		return "", false
	}
	return rest, true
}

// decodeEvents parses an event payload: either a single JSON object or a
// JSON array of objects.
func decodeEvents(data []byte) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	if trimmed[0] == '[' {
		var events []map[string]any
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, err
		}
		return events, nil
	}

	var event map[string]any
	if err := json.Unmarshal(trimmed, &event); err != nil {
		return nil, err
	}
	return []map[string]any{event}, nil
}
