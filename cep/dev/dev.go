// Package dev provides an in-memory cep.Runtime adapter, registered
// under the name "dev". It accepts the full configuration surface
// (event types, compiled queries, extensions, events) without
// evaluating anything, which makes it suitable for local development
// and smoke tests of the orchestration layer against a runnable
// binary. Production deployments link a real CEP engine adapter
// instead.
//
// Query compilation extracts stream references from the FROM clause
// only; expressions with no FROM clause are rejected as unparsable.
package dev

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/meganemura/norikra/cep"
)

func init() {
	cep.RegisterRuntime("dev", New)
}

// fromClause captures everything between FROM and the next clause
// keyword; each comma-separated piece starts with a stream name.
var (
	fromClause = regexp.MustCompile(`(?is)\bfrom\s+(.+?)(?:\bwhere\b|\bgroup\s+by\b|\bhaving\b|\boutput\b|\border\s+by\b|\binsert\b|$)`)
	streamName = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)`)
)

// New constructs the dev runtime. The only recognized option is
// "verbose" (bool): log every accepted event at info level.
func New(options map[string]any) (cep.Runtime, error) {
	verbose := false
	if v, ok := options["verbose"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("dev runtime: option verbose must be a bool, got %T", v)
		}
		verbose = b
	}
	return &runtime{
		verbose:    verbose,
		logger:     slog.Default().With("component", "devruntime"),
		types:      make(map[string]typeEntry),
		statements: make(map[string]*statement),
	}, nil
}

type typeEntry struct {
	definition map[string]string
	supertypes []string
}

type query struct {
	expression string
	targets    []string
}

func (q *query) Expression() string { return q.expression }

func (q *query) Targets() []string { return append([]string(nil), q.targets...) }

// Fields reports no per-target field references: the dev compiler
// does not analyze select or where clauses, so queries resolve against
// the stream's base content.
func (q *query) Fields(string) []string { return nil }

type statement struct {
	id        string
	queryName string
	query     *query
	destroyed bool
}

func (s *statement) ID() string { return s.id }

type runtime struct {
	mu         sync.Mutex
	verbose    bool
	logger     *slog.Logger
	types      map[string]typeEntry
	statements map[string]*statement
	received   int
	nextID     int
}

func (r *runtime) AddEventType(name string, definition map[string]string, supertypes []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.types[name]; dup {
		return fmt.Errorf("dev runtime: event type %q already registered", name)
	}
	def := make(map[string]string, len(definition))
	for k, v := range definition {
		def[k] = v
	}
	for _, super := range supertypes {
		if _, ok := r.types[super]; !ok {
			return fmt.Errorf("dev runtime: supertype %q of %q not registered", super, name)
		}
	}
	r.types[name] = typeEntry{definition: def, supertypes: append([]string(nil), supertypes...)}
	return nil
}

func (r *runtime) RemoveEventType(name string, force bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[name]; !ok {
		return fmt.Errorf("dev runtime: event type %q not registered", name)
	}
	if !force {
		for _, st := range r.statements {
			if st.destroyed {
				continue
			}
			for _, ref := range st.query.targets {
				if ref == name {
					return fmt.Errorf("dev runtime: event type %q still referenced by query %q", name, st.queryName)
				}
			}
		}
	}
	delete(r.types, name)
	return nil
}

func (r *runtime) CompileQuery(expression string) (cep.CompiledQuery, error) {
	targets, err := parseStreamRefs(expression)
	if err != nil {
		return nil, err
	}
	return &query{expression: expression, targets: targets}, nil
}

func (r *runtime) RewriteEventTypeReferences(compiled cep.CompiledQuery, eventTypes map[string]string) (cep.CompiledQuery, error) {
	q, ok := compiled.(*query)
	if !ok {
		return nil, fmt.Errorf("dev runtime: unexpected compiled query type %T", compiled)
	}
	expr := q.expression
	targets := make([]string, 0, len(q.targets))
	for _, target := range q.targets {
		name, ok := eventTypes[target]
		if !ok {
			return nil, fmt.Errorf("dev runtime: no event type resolved for stream %q", target)
		}
		ref := regexp.MustCompile(`\b` + regexp.QuoteMeta(target) + `\b`)
		expr = ref.ReplaceAllString(expr, name)
		targets = append(targets, name)
	}
	return &query{expression: expr, targets: targets}, nil
}

func (r *runtime) InstallQuery(compiled cep.CompiledQuery, queryName string, _ cep.Listener) (cep.Statement, error) {
	q, ok := compiled.(*query)
	if !ok {
		return nil, fmt.Errorf("dev runtime: unexpected compiled query type %T", compiled)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	st := &statement{
		id:        fmt.Sprintf("dev-%d", r.nextID),
		queryName: queryName,
		query:     q,
	}
	r.statements[st.id] = st
	r.logger.Debug("query installed", "query", queryName, "statement", st.id)
	return st, nil
}

func (r *runtime) StopAndDestroy(handle cep.Statement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.statements[handle.ID()]
	if !ok {
		return fmt.Errorf("dev runtime: unknown statement %q", handle.ID())
	}
	st.destroyed = true
	return nil
}

func (r *runtime) SendEvent(payload map[string]any, eventTypeName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[eventTypeName]; !ok {
		return fmt.Errorf("dev runtime: event type %q not registered", eventTypeName)
	}
	r.received++
	if r.verbose {
		r.logger.Info("event received", "eventType", eventTypeName, "payload", payload)
	}
	return nil
}

func (r *runtime) RegisterExtension(descriptor string) error {
	if strings.TrimSpace(descriptor) == "" {
		return fmt.Errorf("dev runtime: empty extension descriptor")
	}
	r.logger.Debug("extension accepted", "descriptor", descriptor)
	return nil
}

// parseStreamRefs extracts the distinct stream names from every FROM
// clause of an expression, in order of first appearance.
func parseStreamRefs(expression string) ([]string, error) {
	matches := fromClause.FindAllStringSubmatch(expression, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("dev runtime: no FROM clause in %q", expression)
	}
	var targets []string
	seen := make(map[string]bool)
	for _, match := range matches {
		for _, piece := range strings.Split(match[1], ",") {
			name := streamName.FindStringSubmatch(piece)
			if name == nil {
				return nil, fmt.Errorf("dev runtime: unparsable stream reference %q", strings.TrimSpace(piece))
			}
			if !seen[name[1]] {
				seen[name[1]] = true
				targets = append(targets, name[1])
			}
		}
	}
	return targets, nil
}
