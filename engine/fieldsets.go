package engine

import (
	"slices"

	"github.com/meganemura/norikra/errors"
	"github.com/meganemura/norikra/fieldset"
)

// registerFieldSetLocked registers a bound fieldset with the CEP runtime
// at the given level and records it in the lattice bookkeeping.
//
//   - base: registered with no supertypes.
//   - query: registered with the target's base event type as sole
//     supertype.
//   - data: registered with every base/query fieldset it structurally
//     contains as supertype. Without replace, an identical-summary data
//     registration already present makes this a no-op; with replace the
//     caller is swapping in a rebound fieldset and handles the
//     bookkeeping swap itself.
//
// A runtime rejection here is a configuration defect, never retried.
func (e *Engine) registerFieldSetLocked(target string, fs *fieldset.FieldSet, level fieldset.Level, replace bool) error {
	ts, ok := e.targets[target]
	if !ok {
		return errors.Wrap(errors.ErrTargetNotOpen, "Engine", "registerFieldSet", target)
	}

	switch level {
	case fieldset.LevelBase:
		if err := e.runtime.AddEventType(fs.EventTypeName(), fs.Definition(), nil); err != nil {
			return errors.WrapFatal(err, "Engine", "registerFieldSet", "base event type "+fs.EventTypeName())
		}

	case fieldset.LevelQuery:
		base := e.typedefs.BaseFieldSet(target)
		if base == nil {
			return errors.WrapFatal(errors.ErrBaseFieldSetMissing, "Engine", "registerFieldSet", target)
		}
		supertypes := []string{base.EventTypeName()}
		if err := e.runtime.AddEventType(fs.EventTypeName(), fs.Definition(), supertypes); err != nil {
			return errors.WrapFatal(err, "Engine", "registerFieldSet", "query event type "+fs.EventTypeName())
		}

	case fieldset.LevelData:
		if !replace {
			if _, exists := e.typedefs.LookupDataFieldSet(target, fs.Summary()); exists {
				e.logger.Debug("data fieldset already registered", "target", target, "summary", fs.Summary())
				return nil
			}
		}

		supertypes := eventTypeNames(e.typedefs.SubsetsOf(target, fs))
		if err := e.runtime.AddEventType(fs.EventTypeName(), fs.Definition(), supertypes); err != nil {
			return errors.WrapFatal(err, "Engine", "registerFieldSet", "data event type "+fs.EventTypeName())
		}
		ts.supertypes[fs.Summary()] = supertypes
		if !replace {
			if err := e.typedefs.RegisterDataFieldSet(target, fs); err != nil {
				return err
			}
		}
	}

	if !replace {
		e.metrics.fieldSetRegistered(target, level)
	}
	e.logger.Debug("fieldset registered", "target", target, "level", string(level),
		"eventType", fs.EventTypeName(), "summary", fs.Summary())
	return nil
}

// deregisterFieldSetLocked removes a fieldset registration from the CEP
// runtime. Base fieldsets are never individually removed while the target
// is open. The caller must have made any replacement registration take
// effect first, so in-flight events always have a valid registration.
func (e *Engine) deregisterFieldSetLocked(target, eventTypeName string, level fieldset.Level) {
	if level == fieldset.LevelBase {
		return
	}
	if err := e.runtime.RemoveEventType(eventTypeName, true); err != nil {
		e.logger.Warn("failed to remove event type", "target", target,
			"eventType", eventTypeName, "error", err)
		return
	}
	e.metrics.fieldSetDeregistered(target, level)
}

// rebindSupersetsLocked keeps the runtime's type hierarchy in sync with
// the lattice after queryFS joins (or leaves) it. Every data fieldset
// that is a superset of queryFS and does not yet inherit from it is
// rebound: a copy with a fresh event-type name is registered with the
// current subset fieldsets as supertypes, the bookkeeping pointer is
// swapped, and only then is the old name removed, so no in-flight event
// is ever classified against a since-removed type.
//
// The walk only ever adds inheritance edges. On the deregistration path
// every superset already lists queryFS, so the walk is a no-op and a
// stale edge persists until that data fieldset is itself replaced.
func (e *Engine) rebindSupersetsLocked(target string, queryFS *fieldset.FieldSet) error {
	ts, ok := e.targets[target]
	if !ok {
		return errors.Wrap(errors.ErrTargetNotOpen, "Engine", "rebindSupersets", target)
	}

	for _, data := range e.typedefs.SupersetsOf(target, queryFS) {
		if slices.Contains(ts.supertypes[data.Summary()], queryFS.EventTypeName()) {
			continue
		}

		rebound := data.Rebind(true)
		if err := e.registerFieldSetLocked(target, rebound, fieldset.LevelData, true); err != nil {
			return err
		}
		if err := e.typedefs.ReplaceFieldSet(target, data, rebound); err != nil {
			return errors.WrapFatal(err, "Engine", "rebindSupersets", "bookkeeping swap")
		}
		e.deregisterFieldSetLocked(target, data.EventTypeName(), fieldset.LevelData)
		e.metrics.fieldSetRegistered(target, fieldset.LevelData)

		e.logger.Info("data fieldset rebound", "target", target,
			"old", data.EventTypeName(), "new", rebound.EventTypeName(),
			"inherits", queryFS.EventTypeName())
	}
	return nil
}

func eventTypeNames(fieldsets []*fieldset.FieldSet) []string {
	names := make([]string, 0, len(fieldsets))
	for _, fs := range fieldsets {
		names = append(names, fs.EventTypeName())
	}
	return names
}
