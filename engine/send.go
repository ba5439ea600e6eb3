package engine

import (
	"github.com/meganemura/norikra/fieldset"
)

// Send ingests a batch of events for a target. Events for an unopened
// target, or an empty batch, are silently discarded (logged, counted,
// no error). The first event for a lazy, not-yet-activated target derives
// and registers the base fieldset.
//
// Events are processed strictly in input order: a schema discovered by an
// earlier event is visible to later events in the same batch. The whole
// call holds the engine lock, the conservative choice that rules out
// racing a schema replacement mid-batch.
func (e *Engine) Send(target string, events []map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics.recordOp("send")

	if _, open := e.targets[target]; !open {
		e.logger.Debug("send: target not open, events discarded", "target", target, "count", len(events))
		e.metrics.eventsSkipped(target, "not_open", len(events))
		return nil
	}
	if len(events) == 0 {
		e.logger.Debug("send: empty batch", "target", target)
		e.metrics.eventsSkipped(target, "empty_batch", 0)
		return nil
	}
	e.metrics.eventsReceived(target, len(events))

	if !e.typedefs.Activated(target) {
		if err := e.activateTargetLocked(target, events[0]); err != nil {
			return err
		}
	}

	for _, event := range events {
		fs, known, err := e.typedefs.Classify(target, event)
		if err != nil {
			e.logger.Warn("event not classifiable, dropped", "target", target, "error", err)
			e.metrics.eventsSkipped(target, "unclassifiable", 1)
			continue
		}

		if !known {
			fs.Bind(target, fieldset.LevelData)
			if err := e.registerFieldSetLocked(target, fs, fieldset.LevelData, false); err != nil {
				return err
			}

			// A new schema variant may resolve waiting queries, and their
			// query fieldsets may rebind the one just registered.
			e.retryWaitingLocked()

			// Re-classify: the fieldset's identity can have changed under
			// rebinding.
			fs, _, err = e.typedefs.Classify(target, event)
			if err != nil {
				e.logger.Warn("event not classifiable after rebind, dropped", "target", target, "error", err)
				e.metrics.eventsSkipped(target, "unclassifiable", 1)
				continue
			}
		}

		payload := e.typedefs.Normalize(event, fs)
		if err := e.runtime.SendEvent(payload, fs.EventTypeName()); err != nil {
			e.metrics.recordError("send", err)
			e.logger.Error("failed to forward event", "target", target,
				"eventType", fs.EventTypeName(), "error", err)
			continue
		}
		e.metrics.eventForwarded(target)
	}
	return nil
}
