package engine

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/meganemura/norikra/cep"
	"github.com/meganemura/norikra/errors"
	"github.com/meganemura/norikra/fieldset"
	"github.com/meganemura/norikra/metric"
	"github.com/meganemura/norikra/output"
	"github.com/meganemura/norikra/typedef"
)

// QueryStatus is the lifecycle state of a registered query.
type QueryStatus int

// Query lifecycle: NEW -> WAITING <-> ACTIVE -> REMOVED.
const (
	StatusNew QueryStatus = iota
	StatusWaiting
	StatusActive
	StatusRemoved
)

// String returns the string representation of QueryStatus
func (s QueryStatus) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusWaiting:
		return "waiting"
	case StatusActive:
		return "active"
	case StatusRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Query is a named continuous query as submitted by a caller. Group is a
// free-form label carried through to listings; the orchestrator attaches
// no semantics to it.
type Query struct {
	Name       string `json:"name"`
	Group      string `json:"group,omitempty"`
	Expression string `json:"expression"`
}

// queryState is the engine's record of one registered query.
type queryState struct {
	query    Query
	compiled cep.CompiledQuery

	// refs maps each referenced target to the field names the expression
	// references on it.
	refs map[string][]string

	status QueryStatus

	// fieldsets holds the bound query-level fieldset per target once the
	// query is active.
	fieldsets map[string]*fieldset.FieldSet

	statement cep.Statement
}

func (qs *queryState) references(target string) bool {
	_, ok := qs.refs[target]
	return ok
}

// targetState is the engine's record of one open target.
type targetState struct {
	name string

	// auto marks targets opened implicitly by query registration.
	auto bool

	// supertypes records, per data-fieldset summary, the supertype
	// event-type names its current registration carries. This is the
	// bookkeeping rebindSupersets consults to decide whether a data
	// fieldset already inherits from a query fieldset.
	supertypes map[string][]string
}

// Deps holds runtime dependencies for the engine.
type Deps struct {
	Runtime  cep.Runtime             // CEP runtime configuration surface (required)
	Typedefs *typedef.Manager        // type-inference collaborator; defaults to a fresh manager
	Sink     output.Sink             // query-result delivery; defaults to a LogSink
	Registry *metric.MetricsRegistry // optional metrics
	Logger   *slog.Logger            // defaults to slog.Default()
}

// Engine is the schema-evolution and query-registration orchestrator. It
// owns the open-target set, the per-target fieldset lattice bookkeeping,
// and the query registry, and is the only component allowed to mutate the
// CEP runtime's type-configuration table.
//
// All state mutation is serialized through one exclusive lock across all
// targets; locked sections are finite and perform no network I/O.
type Engine struct {
	mu sync.Mutex

	runtime  cep.Runtime
	typedefs *typedef.Manager
	sink     output.Sink
	logger   *slog.Logger
	metrics  *engineMetrics

	targets map[string]*targetState
	queries map[string]*queryState
	waiting map[string]*queryState
}

// New creates an engine from its dependencies.
func New(deps Deps) (*Engine, error) {
	if deps.Runtime == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Engine", "New", "CEP runtime validation")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	typedefs := deps.Typedefs
	if typedefs == nil {
		typedefs = typedef.NewManager(logger)
	}
	sink := deps.Sink
	if sink == nil {
		sink = output.NewLogSink(logger)
	}

	metrics, err := newEngineMetrics(deps.Registry)
	if err != nil {
		logger.Error("failed to initialize engine metrics", "error", err)
		metrics = nil // Continue without metrics
	}

	return &Engine{
		runtime:  deps.Runtime,
		typedefs: typedefs,
		sink:     sink,
		logger:   logger,
		metrics:  metrics,
		targets:  make(map[string]*targetState),
		queries:  make(map[string]*queryState),
		waiting:  make(map[string]*queryState),
	}, nil
}

// Typedefs exposes the type-inference collaborator for read-only
// inspection.
func (e *Engine) Typedefs() *typedef.Manager { return e.typedefs }

// deliver is the listener handed to InstallQuery; it forwards runtime
// results verbatim to the output sink.
func (e *Engine) deliver(queryName string, events []map[string]any) {
	e.sink.Deliver(queryName, events)
}

// LoadExtension loads an extension function descriptor into the CEP
// runtime.
func (e *Engine) LoadExtension(descriptor string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.runtime.RegisterExtension(descriptor); err != nil {
		return errors.WrapFatal(err, "Engine", "LoadExtension", descriptor)
	}
	e.logger.Info("extension loaded", "descriptor", descriptor)
	return nil
}

// TargetInfo is a read-only snapshot of one open target.
type TargetInfo struct {
	Name      string `json:"name"`
	Lazy      bool   `json:"lazy"`
	Activated bool   `json:"activated"`
	Auto      bool   `json:"auto"`
}

// QueryInfo is a read-only snapshot of one registered query.
type QueryInfo struct {
	Name       string   `json:"name"`
	Group      string   `json:"group,omitempty"`
	Expression string   `json:"expression"`
	Status     string   `json:"status"`
	Targets    []string `json:"targets"`
}

// Targets lists the open targets sorted by name.
func (e *Engine) Targets() []TargetInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]TargetInfo, 0, len(e.targets))
	for name, ts := range e.targets {
		out = append(out, TargetInfo{
			Name:      name,
			Lazy:      e.typedefs.IsLazy(name),
			Activated: e.typedefs.Activated(name),
			Auto:      ts.auto,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Queries lists the registered queries sorted by name.
func (e *Engine) Queries() []QueryInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]QueryInfo, 0, len(e.queries))
	for name, qs := range e.queries {
		targets := make([]string, 0, len(qs.refs))
		for target := range qs.refs {
			targets = append(targets, target)
		}
		sort.Strings(targets)
		out = append(out, QueryInfo{
			Name:       name,
			Group:      qs.query.Group,
			Expression: qs.query.Expression,
			Status:     qs.status.String(),
			Targets:    targets,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Shutdown stops every active statement in the CEP runtime. In-memory
// state is not torn down; the process is expected to exit afterwards and
// all state is rebuilt from scratch on the next start.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, name := range sortedQueryNames(e.queries) {
		qs := e.queries[name]
		if qs.status != StatusActive {
			continue
		}
		if err := e.runtime.StopAndDestroy(qs.statement); err != nil {
			e.logger.Warn("failed to stop statement during shutdown", "query", name, "error", err)
		}
	}
	e.logger.Info("engine shut down", "queries", len(e.queries), "targets", len(e.targets))
}

func sortedQueryNames(m map[string]*queryState) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
