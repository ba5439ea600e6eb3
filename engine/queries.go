package engine

import (
	"github.com/meganemura/norikra/errors"
	"github.com/meganemura/norikra/fieldset"
)

// Register adds a named continuous query. Targets the expression
// references are opened implicitly (lazy) when needed. If any referenced
// field type is not yet resolvable the query parks in the waiting set and
// is retried automatically as new data arrives; otherwise it is compiled,
// installed in the CEP runtime, and becomes active.
//
// A duplicate name is a client error and leaves no partial state.
func (e *Engine) Register(q Query) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics.recordOp("register")

	if q.Name == "" || q.Expression == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "Engine", "Register", "query name and expression validation")
	}
	if _, exists := e.queries[q.Name]; exists {
		return errors.WrapInvalid(errors.ErrDuplicateQueryName, "Engine", "Register", q.Name)
	}

	compiled, err := e.runtime.CompileQuery(q.Expression)
	if err != nil {
		return errors.WrapInvalid(err, "Engine", "Register", "query compilation")
	}

	refs := make(map[string][]string)
	for _, target := range compiled.Targets() {
		refs[target] = compiled.Fields(target)
	}
	if len(refs) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "Engine", "Register", "expression references no targets")
	}

	for _, target := range sortedKeys(refs) {
		if _, open := e.targets[target]; !open {
			if err := e.openTargetLocked(target, nil, true); err != nil {
				return err
			}
		}
	}

	qs := &queryState{
		query:     q,
		compiled:  compiled,
		refs:      refs,
		status:    StatusNew,
		fieldsets: make(map[string]*fieldset.FieldSet),
	}

	if !e.typedefs.IsQueryReady(refs) {
		qs.status = StatusWaiting
		e.queries[q.Name] = qs
		e.waiting[q.Name] = qs
		e.metrics.setLatticeGauges(len(e.targets), e.countQueriesLocked())
		e.logger.Info("query waiting for field types", "query", q.Name)
		return nil
	}

	if err := e.resolveLocked(qs); err != nil {
		return err
	}
	e.queries[q.Name] = qs
	e.metrics.setLatticeGauges(len(e.targets), e.countQueriesLocked())
	return nil
}

// resolveLocked takes a query from resolvable to active: per referenced
// target it derives and binds the query fieldset, registers fresh ones
// with the CEP runtime, rebinds superset data fieldsets, then compiles the
// expression against the resolved event-type names and installs it. Any
// failure unwinds the bindings made so far, leaving no partial state.
func (e *Engine) resolveLocked(qs *queryState) error {
	mapping, err := e.typedefs.ResolveFieldSetMapping(qs.refs)
	if err != nil {
		return err
	}

	type binding struct {
		target string
		fs     *fieldset.FieldSet
	}
	var bound []binding
	unwind := func() {
		for _, b := range bound {
			if removed := e.typedefs.UnbindQueryFieldSet(b.target, b.fs); removed {
				e.deregisterFieldSetLocked(b.target, b.fs.EventTypeName(), fieldset.LevelQuery)
			}
		}
		qs.fieldsets = make(map[string]*fieldset.FieldSet)
	}

	eventTypes := make(map[string]string, len(mapping))
	for _, target := range sortedKeys(mapping) {
		fs := mapping[target]
		fs.Bind(target, fieldset.LevelQuery)

		shared, fresh, err := e.typedefs.BindQueryFieldSet(target, fs)
		if err != nil {
			unwind()
			return err
		}
		bound = append(bound, binding{target: target, fs: shared})

		if fresh {
			if err := e.registerFieldSetLocked(target, shared, fieldset.LevelQuery, false); err != nil {
				unwind()
				return err
			}
			if err := e.rebindSupersetsLocked(target, shared); err != nil {
				unwind()
				return err
			}
		}

		qs.fieldsets[target] = shared
		eventTypes[target] = shared.EventTypeName()
	}

	rewritten, err := e.runtime.RewriteEventTypeReferences(qs.compiled, eventTypes)
	if err != nil {
		unwind()
		return errors.WrapFatal(err, "Engine", "resolve", "event type rewrite")
	}
	statement, err := e.runtime.InstallQuery(rewritten, qs.query.Name, e.deliver)
	if err != nil {
		unwind()
		return errors.WrapFatal(err, "Engine", "resolve", "statement install")
	}

	qs.statement = statement
	qs.status = StatusActive
	delete(e.waiting, qs.query.Name)
	e.logger.Info("query active", "query", qs.query.Name, "eventTypes", eventTypes)
	return nil
}

// Deregister removes a named query. Returns false with no error if no
// query with that name exists.
func (e *Engine) Deregister(name string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics.recordOp("deregister")

	qs, ok := e.queries[name]
	if !ok {
		e.logger.Debug("deregister: query not found", "query", name)
		return false, nil
	}
	e.deregisterLocked(qs)
	return true, nil
}

// deregisterLocked tears a query down: the statement is stopped first,
// then every query-fieldset binding it introduced is released. A binding
// whose last reference goes away is rebound (a conservative no-op that
// never removes inheritance edges) and its registration removed from the
// runtime.
func (e *Engine) deregisterLocked(qs *queryState) {
	name := qs.query.Name

	if qs.status == StatusActive {
		if err := e.runtime.StopAndDestroy(qs.statement); err != nil {
			e.logger.Warn("failed to stop statement", "query", name, "error", err)
		}
		for _, target := range sortedKeys(qs.fieldsets) {
			fs := qs.fieldsets[target]
			if removed := e.typedefs.UnbindQueryFieldSet(target, fs); removed {
				if err := e.rebindSupersetsLocked(target, fs); err != nil {
					e.logger.Error("rebind after unbind failed", "query", name, "target", target, "error", err)
				}
				e.deregisterFieldSetLocked(target, fs.EventTypeName(), fieldset.LevelQuery)
			}
		}
	}

	delete(e.waiting, name)
	delete(e.queries, name)
	qs.status = StatusRemoved
	e.metrics.setLatticeGauges(len(e.targets), e.countQueriesLocked())
	e.logger.Info("query deregistered", "query", name)
}

// retryWaitingLocked re-evaluates every waiting query after new type
// information appears (a new data fieldset, a target activation, or an
// explicit reservation). Queries that now resolve become active; a
// resolution failure is logged and the query stays parked.
func (e *Engine) retryWaitingLocked() {
	for _, name := range sortedQueryNames(e.waiting) {
		qs := e.waiting[name]
		if !e.typedefs.IsQueryReady(qs.refs) {
			continue
		}
		if err := e.resolveLocked(qs); err != nil {
			e.metrics.recordError("retryWaiting", err)
			e.logger.Error("waiting query resolution failed", "query", name, "error", err)
			continue
		}
	}
	e.metrics.setLatticeGauges(len(e.targets), e.countQueriesLocked())
}
