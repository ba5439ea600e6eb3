package engine

import (
	"github.com/meganemura/norikra/fieldset"
)

// Open registers a new target. With declared fields (or any prior
// reservations making the target non-lazy) the base fieldset is derived
// and registered immediately; otherwise base derivation waits for the
// first event. Returns false with no error if the target is already open.
func (e *Engine) Open(target string, fields map[string]string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics.recordOp("open")

	if _, open := e.targets[target]; open {
		e.logger.Debug("open: target already open", "target", target)
		return false, nil
	}
	if err := e.openTargetLocked(target, fields, false); err != nil {
		return false, err
	}
	return true, nil
}

// openTargetLocked creates the target and, for eager targets, establishes
// the base fieldset. Failures leave no target state behind.
func (e *Engine) openTargetLocked(target string, fields map[string]string, auto bool) error {
	lazy, err := e.typedefs.AddTarget(target, fields)
	if err != nil {
		return err
	}
	e.targets[target] = &targetState{
		name:       target,
		auto:       auto,
		supertypes: make(map[string][]string),
	}

	if !lazy {
		if err := e.activateTargetLocked(target, nil); err != nil {
			delete(e.targets, target)
			e.typedefs.RemoveTarget(target)
			return err
		}
	}

	e.logger.Info("target opened", "target", target, "lazy", lazy, "auto", auto)
	e.metrics.setLatticeGauges(len(e.targets), e.countQueriesLocked())
	return nil
}

// activateTargetLocked derives the base fieldset (from declared fields
// when sampleEvent is nil, from the sample otherwise), registers it with
// the CEP runtime, and marks the target activated. Establishing types may
// unblock waiting queries.
func (e *Engine) activateTargetLocked(target string, sampleEvent map[string]any) error {
	base, err := e.typedefs.DeriveBaseFieldSet(target, sampleEvent)
	if err != nil {
		return err
	}
	base.Bind(target, fieldset.LevelBase)

	if err := e.registerFieldSetLocked(target, base, fieldset.LevelBase, false); err != nil {
		return err
	}
	if err := e.typedefs.ActivateTarget(target, base); err != nil {
		return err
	}

	e.logger.Info("target activated", "target", target, "base", base.EventTypeName())
	e.retryWaitingLocked()
	return nil
}

// Close discards a target: every query referencing it is deregistered
// first, then its fieldset registrations and type state are dropped.
// Returns false with no error if the target is not open; double-close is
// a benign no-op.
func (e *Engine) Close(target string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics.recordOp("close")

	if _, open := e.targets[target]; !open {
		e.logger.Debug("close: target not open", "target", target)
		return false, nil
	}

	// Cascade: queries first, so no statement outlives the types it uses.
	for _, name := range sortedQueryNames(e.queries) {
		if e.queries[name].references(target) {
			e.deregisterLocked(e.queries[name])
		}
	}

	// Remove remaining registrations child-first: data fieldsets inherit
	// from the base, so they go before it.
	for _, data := range e.typedefs.DataFieldSets(target) {
		if err := e.runtime.RemoveEventType(data.EventTypeName(), true); err != nil {
			e.logger.Warn("failed to remove data event type", "target", target,
				"eventType", data.EventTypeName(), "error", err)
		}
	}
	if base := e.typedefs.BaseFieldSet(target); base != nil {
		if err := e.runtime.RemoveEventType(base.EventTypeName(), true); err != nil {
			e.logger.Warn("failed to remove base event type", "target", target,
				"eventType", base.EventTypeName(), "error", err)
		}
	}

	e.typedefs.RemoveTarget(target)
	delete(e.targets, target)
	e.metrics.dropTarget(target)
	e.metrics.setLatticeGauges(len(e.targets), e.countQueriesLocked())
	e.logger.Info("target closed", "target", target)
	return true, nil
}

// Reserve records an explicit field-type reservation on an open target.
// Returns false with no error if the target is not open. A reservation
// can make a waiting query resolvable without any new data fieldset, so
// the waiting set is re-evaluated.
func (e *Engine) Reserve(target, field, fieldType string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics.recordOp("reserve")

	if _, open := e.targets[target]; !open {
		e.logger.Debug("reserve: target not open", "target", target, "field", field)
		return false, nil
	}
	if err := e.typedefs.ReserveFieldType(target, field, fieldType); err != nil {
		return false, err
	}

	e.retryWaitingLocked()
	return true, nil
}
