// Package cep declares the boundary to the externally supplied
// complex-event-processing runtime. The orchestrator only configures the
// runtime (event types, compiled queries) and feeds it events; pattern
// matching, windowing, and query evaluation are entirely the runtime's
// concern.
package cep

// Listener receives new result events for an installed query. The
// orchestrator forwards listener invocations verbatim to the
// output-delivery sink.
type Listener func(queryName string, newEvents []map[string]any)

// CompiledQuery is an opaque compiled form of a continuous-query
// expression. The orchestrator inspects only the referenced targets and
// per-target field references; everything else is runtime-internal.
type CompiledQuery interface {
	// Expression returns the source expression the model was compiled from.
	Expression() string
	// Targets returns the target names the expression references.
	Targets() []string
	// Fields returns the field names the expression references on one
	// target. An empty slice means the query needs the stream but no
	// specific fields (e.g. count(*)).
	Fields(target string) []string
}

// Statement is a handle to an installed, running query.
type Statement interface {
	// ID identifies the installed statement within the runtime.
	ID() string
}

// Runtime is the in-process configuration surface of the CEP engine.
//
// All calls are synchronous and non-retryable: a failed event-type
// registration indicates a logic defect (duplicate name, inconsistent
// supertype set), never a transient condition.
type Runtime interface {
	// AddEventType registers an event type under name with the given
	// field definition, inheriting from the named supertypes. Fails if
	// name is already registered with an incompatible definition.
	AddEventType(name string, definition map[string]string, supertypes []string) error

	// RemoveEventType removes a registered event type. With force set,
	// removal proceeds even if statements still reference the type.
	RemoveEventType(name string, force bool) error

	// CompileQuery parses and compiles a continuous-query expression.
	CompileQuery(expression string) (CompiledQuery, error)

	// RewriteEventTypeReferences returns a copy of the compiled query
	// with each target-name reference replaced by its resolved
	// event-type name.
	RewriteEventTypeReferences(query CompiledQuery, eventTypes map[string]string) (CompiledQuery, error)

	// InstallQuery installs and starts a compiled query. Result events
	// are delivered to listener tagged with queryName.
	InstallQuery(query CompiledQuery, queryName string, listener Listener) (Statement, error)

	// StopAndDestroy stops a running statement and releases it.
	StopAndDestroy(statement Statement) error

	// SendEvent feeds one normalized event payload into the runtime,
	// tagged with its resolved event-type name.
	SendEvent(payload map[string]any, eventTypeName string) error

	// RegisterExtension loads an extension function (UDF or aggregation)
	// described by descriptor into the runtime.
	RegisterExtension(descriptor string) error
}
