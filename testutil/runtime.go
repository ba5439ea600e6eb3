package testutil

import (
	"fmt"
	"sort"
	"sync"

	"github.com/meganemura/norikra/cep"
)

// FakeQuery is a declarative cep.CompiledQuery: tests state up front
// which targets and fields an expression references instead of parsing
// anything.
type FakeQuery struct {
	Expr string
	// Refs maps target name to the field names the expression reads on
	// that target. An entry with an empty slice models a query like
	// count(*) that needs the stream but no fields.
	Refs map[string][]string
	// Rewrites holds the target-to-event-type mapping applied by the
	// last RewriteEventTypeReferences call, nil before rewriting.
	Rewrites map[string]string
}

// Expression implements cep.CompiledQuery.
func (q *FakeQuery) Expression() string { return q.Expr }

// Targets implements cep.CompiledQuery. Names come back sorted so test
// assertions are stable.
func (q *FakeQuery) Targets() []string {
	names := make([]string, 0, len(q.Refs))
	for name := range q.Refs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fields implements cep.CompiledQuery.
func (q *FakeQuery) Fields(target string) []string { return q.Refs[target] }

// FakeStatement is the handle returned by FakeRuntime.InstallQuery.
type FakeStatement struct {
	StatementID string
	QueryName   string
	Query       cep.CompiledQuery
	Listener    cep.Listener
	Destroyed   bool
}

// ID implements cep.Statement.
func (s *FakeStatement) ID() string { return s.StatementID }

// RegisteredType records one AddEventType call.
type RegisteredType struct {
	Definition map[string]string
	Supertypes []string
}

// SentEvent records one SendEvent call.
type SentEvent struct {
	EventType string
	Payload   map[string]any
}

// FakeRuntime is an in-memory cep.Runtime that records every call.
// Queries must be declared with DeclareQuery before CompileQuery will
// accept their expression. Error fields, when set, are returned by the
// corresponding method to exercise failure paths.
type FakeRuntime struct {
	mu sync.Mutex

	declared map[string]map[string][]string

	// Types holds every currently registered event type by name.
	Types map[string]RegisteredType
	// Removed lists event-type names in removal order.
	Removed []string
	// Statements holds every installed statement by query name,
	// including destroyed ones.
	Statements map[string]*FakeStatement
	// Sent lists events in the order they were fed to the runtime.
	Sent []SentEvent
	// Extensions lists descriptors passed to RegisterExtension.
	Extensions []string

	AddTypeErr    error
	RemoveTypeErr error
	CompileErr    error
	InstallErr    error
	SendErr       error

	nextStatement int
}

// NewFakeRuntime returns an empty fake runtime.
func NewFakeRuntime() *FakeRuntime {
	return &FakeRuntime{
		declared:   make(map[string]map[string][]string),
		Types:      make(map[string]RegisteredType),
		Statements: make(map[string]*FakeStatement),
	}
}

// DeclareQuery teaches the fake compiler that expression references the
// given targets and fields.
func (r *FakeRuntime) DeclareQuery(expression string, refs map[string][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.declared[expression] = refs
}

// AddEventType implements cep.Runtime.
func (r *FakeRuntime) AddEventType(name string, definition map[string]string, supertypes []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.AddTypeErr != nil {
		return r.AddTypeErr
	}
	if _, dup := r.Types[name]; dup {
		return fmt.Errorf("event type %q already registered", name)
	}
	def := make(map[string]string, len(definition))
	for k, v := range definition {
		def[k] = v
	}
	r.Types[name] = RegisteredType{
		Definition: def,
		Supertypes: append([]string(nil), supertypes...),
	}
	return nil
}

// RemoveEventType implements cep.Runtime.
func (r *FakeRuntime) RemoveEventType(name string, _ bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.RemoveTypeErr != nil {
		return r.RemoveTypeErr
	}
	if _, ok := r.Types[name]; !ok {
		return fmt.Errorf("event type %q not registered", name)
	}
	delete(r.Types, name)
	r.Removed = append(r.Removed, name)
	return nil
}

// CompileQuery implements cep.Runtime. The expression must have been
// declared with DeclareQuery.
func (r *FakeRuntime) CompileQuery(expression string) (cep.CompiledQuery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CompileErr != nil {
		return nil, r.CompileErr
	}
	refs, ok := r.declared[expression]
	if !ok {
		return nil, fmt.Errorf("cannot parse expression %q", expression)
	}
	return &FakeQuery{Expr: expression, Refs: refs}, nil
}

// RewriteEventTypeReferences implements cep.Runtime.
func (r *FakeRuntime) RewriteEventTypeReferences(query cep.CompiledQuery, eventTypes map[string]string) (cep.CompiledQuery, error) {
	fq, ok := query.(*FakeQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected compiled query type %T", query)
	}
	mapping := make(map[string]string, len(eventTypes))
	for k, v := range eventTypes {
		mapping[k] = v
	}
	return &FakeQuery{Expr: fq.Expr, Refs: fq.Refs, Rewrites: mapping}, nil
}

// InstallQuery implements cep.Runtime.
func (r *FakeRuntime) InstallQuery(query cep.CompiledQuery, queryName string, listener cep.Listener) (cep.Statement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.InstallErr != nil {
		return nil, r.InstallErr
	}
	r.nextStatement++
	st := &FakeStatement{
		StatementID: fmt.Sprintf("stmt-%d", r.nextStatement),
		QueryName:   queryName,
		Query:       query,
		Listener:    listener,
	}
	r.Statements[queryName] = st
	return st, nil
}

// StopAndDestroy implements cep.Runtime.
func (r *FakeRuntime) StopAndDestroy(statement cep.Statement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := statement.(*FakeStatement)
	if !ok {
		return fmt.Errorf("unexpected statement type %T", statement)
	}
	st.Destroyed = true
	return nil
}

// SendEvent implements cep.Runtime.
func (r *FakeRuntime) SendEvent(payload map[string]any, eventTypeName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SendErr != nil {
		return r.SendErr
	}
	if _, ok := r.Types[eventTypeName]; !ok {
		return fmt.Errorf("event type %q not registered", eventTypeName)
	}
	r.Sent = append(r.Sent, SentEvent{EventType: eventTypeName, Payload: payload})
	return nil
}

// RegisterExtension implements cep.Runtime.
func (r *FakeRuntime) RegisterExtension(descriptor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Extensions = append(r.Extensions, descriptor)
	return nil
}

// Emit invokes the listener of an installed query with result events,
// simulating the runtime matching a pattern. It returns false when no
// live statement exists for the query.
func (r *FakeRuntime) Emit(queryName string, events []map[string]any) bool {
	r.mu.Lock()
	st, ok := r.Statements[queryName]
	r.mu.Unlock()
	if !ok || st.Destroyed || st.Listener == nil {
		return false
	}
	st.Listener(queryName, events)
	return true
}

// TypeNames returns the currently registered event-type names, sorted.
func (r *FakeRuntime) TypeNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.Types))
	for name := range r.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LiveStatements returns the names of queries whose statements have not
// been destroyed, sorted.
func (r *FakeRuntime) LiveStatements() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for name, st := range r.Statements {
		if !st.Destroyed {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
