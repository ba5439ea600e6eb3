package typedef

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/meganemura/norikra/errors"
	"github.com/meganemura/norikra/fieldset"
)

// Manager owns the Typedef of every open target. It answers the engine's
// type questions (readiness, classification, subset/superset relations) and
// records lattice membership, but registration with the CEP runtime stays
// the engine's responsibility.
//
// The engine serializes all mutation through its own lock; the Manager
// still guards its maps so read-only inspection stays safe without it.
type Manager struct {
	mu      sync.RWMutex
	targets map[string]*Typedef
	logger  *slog.Logger
}

// NewManager creates an empty typedef manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		targets: make(map[string]*Typedef),
		logger:  logger,
	}
}

// AddTarget registers a target. Declared fields become reserved types and
// make the target eager; a nil field map makes it lazy. Returns whether the
// target was created lazy.
func (m *Manager) AddTarget(target string, fields map[string]string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.targets[target]; exists {
		return false, errors.WrapInvalid(errors.ErrTargetAlreadyOpen, "TypedefManager", "AddTarget", target)
	}

	td := newTypedef(target, len(fields) == 0)
	for name, typeName := range fields {
		typ, err := fieldset.NormalizeType(typeName)
		if err != nil {
			return false, errors.WrapInvalid(err, "TypedefManager", "AddTarget", "field "+name)
		}
		td.reserved[name] = typ
	}
	m.targets[target] = td
	m.logger.Debug("target typedef added", "target", target, "lazy", td.lazy)
	return td.lazy, nil
}

// RemoveTarget discards all type state for a target. Unknown targets are a
// no-op.
func (m *Manager) RemoveTarget(target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.targets, target)
}

// HasTarget reports whether the target is known.
func (m *Manager) HasTarget(target string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.targets[target]
	return ok
}

// IsLazy reports whether a target defers base-fieldset derivation to its
// first event. Unknown targets report false.
func (m *Manager) IsLazy(target string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	td, ok := m.targets[target]
	return ok && td.lazy
}

// Activated reports whether a target's base fieldset is established.
func (m *Manager) Activated(target string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	td, ok := m.targets[target]
	return ok && td.activated
}

// ReserveFieldType records an explicit field-type reservation for a target.
func (m *Manager) ReserveFieldType(target, field, typeName string) error {
	typ, err := fieldset.NormalizeType(typeName)
	if err != nil {
		return errors.WrapInvalid(err, "TypedefManager", "ReserveFieldType", field)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	td, ok := m.targets[target]
	if !ok {
		return errors.Wrap(errors.ErrTargetNotOpen, "TypedefManager", "ReserveFieldType", target)
	}
	td.reserved[field] = typ
	m.logger.Debug("field type reserved", "target", target, "field", field, "type", string(typ))
	return nil
}

// DeriveBaseFieldSet derives the base fieldset for a target. With a sample
// event it mixes reserved types with scalar guesses (lazy activation path);
// with a nil sample it builds from the declared reservations alone (eager
// open path). The result is unbound.
func (m *Manager) DeriveBaseFieldSet(target string, sampleEvent map[string]any) (*fieldset.FieldSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	td, ok := m.targets[target]
	if !ok {
		return nil, errors.Wrap(errors.ErrTargetNotOpen, "TypedefManager", "DeriveBaseFieldSet", target)
	}

	if sampleEvent != nil {
		fs, err := td.deriveFieldSet(sampleEvent)
		if err != nil {
			return nil, errors.WrapInvalid(err, "TypedefManager", "DeriveBaseFieldSet", target)
		}
		return fs, nil
	}

	if len(td.reserved) == 0 {
		return nil, errors.Wrap(errors.ErrBaseFieldSetMissing, "TypedefManager", "DeriveBaseFieldSet", target)
	}
	fields := make([]fieldset.Field, 0, len(td.reserved))
	for name, typ := range td.reserved {
		fields = append(fields, fieldset.Field{Name: name, Type: typ})
	}
	fs, err := fieldset.FromFields(fields)
	if err != nil {
		return nil, errors.WrapInvalid(err, "TypedefManager", "DeriveBaseFieldSet", target)
	}
	return fs, nil
}

// ActivateTarget installs a bound base fieldset and marks the target
// non-lazy from here on.
func (m *Manager) ActivateTarget(target string, base *fieldset.FieldSet) error {
	if base == nil || base.EventTypeName() == "" {
		return errors.WrapInvalid(fmt.Errorf("base fieldset must be bound before activation"),
			"TypedefManager", "ActivateTarget", target)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	td, ok := m.targets[target]
	if !ok {
		return errors.Wrap(errors.ErrTargetNotOpen, "TypedefManager", "ActivateTarget", target)
	}
	td.base = base
	td.activated = true
	td.lazy = false
	m.logger.Debug("target activated", "target", target, "base", base.EventTypeName())
	return nil
}

// BaseFieldSet returns a target's base fieldset, or nil before activation.
func (m *Manager) BaseFieldSet(target string) *fieldset.FieldSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if td, ok := m.targets[target]; ok {
		return td.base
	}
	return nil
}

// Classify resolves the fieldset for one event's shape. The boolean
// reports whether the fieldset is an already-known data fieldset; when
// false the returned fieldset is freshly derived and unbound, and the
// caller is expected to bind and register it.
func (m *Manager) Classify(target string, event map[string]any) (*fieldset.FieldSet, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	td, ok := m.targets[target]
	if !ok {
		return nil, false, errors.Wrap(errors.ErrTargetNotOpen, "TypedefManager", "Classify", target)
	}

	derived, err := td.deriveFieldSet(event)
	if err != nil {
		return nil, false, errors.WrapInvalid(err, "TypedefManager", "Classify", target)
	}
	// A shape hit only counts when the types agree too: a reservation can
	// retype a field, making the same names a structurally new schema.
	if known, ok := td.byNamesKey[derived.NamesKey()]; ok && known.Summary() == derived.Summary() {
		return known, true, nil
	}
	return derived, false, nil
}

// Normalize casts an event's values to the types of its resolved fieldset,
// producing the payload handed to the CEP runtime. An uncastable value is
// kept as-is and logged rather than silently coerced; the runtime's own
// type check decides its fate.
func (m *Manager) Normalize(event map[string]any, fs *fieldset.FieldSet) map[string]any {
	payload := make(map[string]any, fs.Len())
	for _, f := range fs.Fields() {
		value, ok := event[f.Name]
		if !ok {
			continue
		}
		cast, ok := castValue(value, f.Type)
		if !ok {
			m.logger.Debug("field value not castable, kept raw",
				"field", f.Name, "type", string(f.Type), "value", value)
		}
		payload[f.Name] = cast
	}
	return payload
}

// IsQueryReady reports whether every referenced field of every referenced
// target has a resolvable type. A target referenced with no explicit
// fields only needs to be activated.
func (m *Manager) IsQueryReady(fieldsByTarget map[string][]string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for target, fields := range fieldsByTarget {
		td, ok := m.targets[target]
		if !ok || !td.activated {
			return false
		}
		for _, field := range fields {
			if _, ok := td.fieldType(field); !ok {
				return false
			}
		}
	}
	return true
}

// ResolveFieldSetMapping derives the per-target query fieldsets for a
// query's field references. Targets referenced without explicit fields
// resolve to the content of their base fieldset. Results are unbound.
func (m *Manager) ResolveFieldSetMapping(fieldsByTarget map[string][]string) (map[string]*fieldset.FieldSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mapping := make(map[string]*fieldset.FieldSet, len(fieldsByTarget))
	for target, fields := range fieldsByTarget {
		td, ok := m.targets[target]
		if !ok || !td.activated {
			return nil, errors.Wrap(errors.ErrQueryNotResolvable, "TypedefManager", "ResolveFieldSetMapping", target)
		}

		if len(fields) == 0 {
			fs, err := fieldset.FromFields(td.base.Fields())
			if err != nil {
				return nil, errors.WrapInvalid(err, "TypedefManager", "ResolveFieldSetMapping", target)
			}
			mapping[target] = fs
			continue
		}

		resolved := make([]fieldset.Field, 0, len(fields))
		for _, field := range fields {
			typ, ok := td.fieldType(field)
			if !ok {
				return nil, errors.Wrap(errors.ErrQueryNotResolvable, "TypedefManager", "ResolveFieldSetMapping",
					target+"."+field)
			}
			resolved = append(resolved, fieldset.Field{Name: field, Type: typ})
		}
		fs, err := fieldset.FromFields(resolved)
		if err != nil {
			return nil, errors.WrapInvalid(err, "TypedefManager", "ResolveFieldSetMapping", target)
		}
		mapping[target] = fs
	}
	return mapping, nil
}

// BindQueryFieldSet records a bound query fieldset in the lattice. If a
// query fieldset with the same summary already exists, its registration is
// shared: the existing fieldset is returned and the caller must use its
// event-type name instead of registering a duplicate.
func (m *Manager) BindQueryFieldSet(target string, fs *fieldset.FieldSet) (*fieldset.FieldSet, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	td, ok := m.targets[target]
	if !ok {
		return nil, false, errors.Wrap(errors.ErrTargetNotOpen, "TypedefManager", "BindQueryFieldSet", target)
	}

	if existing, ok := td.queryFieldsets[fs.Summary()]; ok {
		td.queryRefs[fs.Summary()]++
		return existing, false, nil
	}
	td.queryFieldsets[fs.Summary()] = fs
	td.queryRefs[fs.Summary()] = 1
	return fs, true, nil
}

// UnbindQueryFieldSet releases one query's reference to a query fieldset.
// The boolean reports whether the fieldset left the lattice entirely, which
// is when its CEP-runtime registration should be removed.
func (m *Manager) UnbindQueryFieldSet(target string, fs *fieldset.FieldSet) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	td, ok := m.targets[target]
	if !ok {
		return false
	}
	if _, ok := td.queryFieldsets[fs.Summary()]; !ok {
		return false
	}
	td.queryRefs[fs.Summary()]--
	if td.queryRefs[fs.Summary()] > 0 {
		return false
	}
	delete(td.queryFieldsets, fs.Summary())
	delete(td.queryRefs, fs.Summary())
	return true
}

// RegisterDataFieldSet records a bound data fieldset under its summary and
// shape key for duplicate detection and classification.
func (m *Manager) RegisterDataFieldSet(target string, fs *fieldset.FieldSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	td, ok := m.targets[target]
	if !ok {
		return errors.Wrap(errors.ErrTargetNotOpen, "TypedefManager", "RegisterDataFieldSet", target)
	}
	td.dataFieldsets[fs.Summary()] = fs
	td.byNamesKey[fs.NamesKey()] = fs
	return nil
}

// LookupDataFieldSet finds a registered data fieldset by summary.
func (m *Manager) LookupDataFieldSet(target, summary string) (*fieldset.FieldSet, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	td, ok := m.targets[target]
	if !ok {
		return nil, false
	}
	fs, ok := td.dataFieldsets[summary]
	return fs, ok
}

// ReplaceFieldSet atomically swaps a rebound data fieldset in for its
// predecessor in the lattice bookkeeping. Content identity is unchanged,
// so both keys simply point at the replacement.
func (m *Manager) ReplaceFieldSet(target string, old, replacement *fieldset.FieldSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	td, ok := m.targets[target]
	if !ok {
		return errors.Wrap(errors.ErrTargetNotOpen, "TypedefManager", "ReplaceFieldSet", target)
	}
	if _, ok := td.dataFieldsets[old.Summary()]; !ok {
		return errors.Wrap(errors.ErrFieldSetNotFound, "TypedefManager", "ReplaceFieldSet", old.EventTypeName())
	}
	td.dataFieldsets[replacement.Summary()] = replacement
	td.byNamesKey[replacement.NamesKey()] = replacement
	return nil
}

// SupersetsOf returns the data fieldsets of a target whose fields contain
// every field of fs.
func (m *Manager) SupersetsOf(target string, fs *fieldset.FieldSet) []*fieldset.FieldSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if td, ok := m.targets[target]; ok {
		return td.supersetsOf(fs)
	}
	return nil
}

// SubsetsOf returns the base and query fieldsets of a target structurally
// contained in fs.
func (m *Manager) SubsetsOf(target string, fs *fieldset.FieldSet) []*fieldset.FieldSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if td, ok := m.targets[target]; ok {
		return td.subsetsOf(fs)
	}
	return nil
}

// DataFieldSets returns a target's registered data fieldsets.
func (m *Manager) DataFieldSets(target string) []*fieldset.FieldSet {
	m.mu.RLock()
	defer m.mu.RUnlock()

	td, ok := m.targets[target]
	if !ok {
		return nil
	}
	out := make([]*fieldset.FieldSet, 0, len(td.dataFieldsets))
	for _, fs := range td.dataFieldsets {
		out = append(out, fs)
	}
	return out
}

// castValue coerces a raw event value onto a field type. The boolean
// reports whether the cast succeeded; on failure the value comes back
// unchanged.
func castValue(value any, typ fieldset.Type) (any, bool) {
	switch typ {
	case fieldset.TypeBoolean:
		switch v := value.(type) {
		case bool:
			return v, true
		case string:
			b, err := strconv.ParseBool(v)
			if err == nil {
				return b, true
			}
		}
		return value, false
	case fieldset.TypeInteger:
		switch v := value.(type) {
		case int:
			return int64(v), true
		case int32:
			return int64(v), true
		case int64:
			return v, true
		case float64:
			return int64(v), true
		case float32:
			return int64(v), true
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err == nil {
				return n, true
			}
		}
		return value, false
	case fieldset.TypeFloat:
		switch v := value.(type) {
		case float64:
			return v, true
		case float32:
			return float64(v), true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err == nil {
				return f, true
			}
		}
		return value, false
	default:
		if s, ok := value.(string); ok {
			return s, true
		}
		return fmt.Sprint(value), true
	}
}
