// Package fieldset defines the schema value type of the orchestrator: an
// immutable set of named, typed fields for one target, identified by a
// content-derived summary and registered with the CEP runtime under a
// generated event-type name.
package fieldset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Level classifies a fieldset within a target's schema lattice.
type Level string

// Fieldset levels. A target has exactly one base fieldset, one query
// fieldset per active query referencing it, and one data fieldset per
// structurally distinct event shape observed in traffic.
const (
	LevelBase  Level = "base"
	LevelQuery Level = "query"
	LevelData  Level = "data"
)

// FieldSet is an immutable description of one concrete schema variant for a
// target. Two fieldsets with the same fields and types produce the same
// Summary regardless of construction order.
//
// A fieldset is unbound until Bind assigns it a target, level, and
// event-type name; binding does not change its content identity.
type FieldSet struct {
	fields    map[string]Field
	summary   string
	namesKey  string
	target    string
	level     Level
	eventType string
}

// New builds a fieldset from a field-name to type-name mapping.
// Type names are normalized; unknown type names are rejected.
func New(fields map[string]string) (*FieldSet, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("fieldset requires at least one field")
	}
	fs := &FieldSet{fields: make(map[string]Field, len(fields))}
	for name, typeName := range fields {
		if name == "" {
			return nil, fmt.Errorf("empty field name")
		}
		typ, err := NormalizeType(typeName)
		if err != nil {
			return nil, err
		}
		fs.fields[name] = Field{Name: name, Type: typ}
	}
	fs.computeKeys()
	return fs, nil
}

// FromFields builds a fieldset from already-normalized fields.
func FromFields(fields []Field) (*FieldSet, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("fieldset requires at least one field")
	}
	fs := &FieldSet{fields: make(map[string]Field, len(fields))}
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("empty field name")
		}
		fs.fields[f.Name] = f
	}
	fs.computeKeys()
	return fs, nil
}

func (fs *FieldSet) computeKeys() {
	defs := make([]string, 0, len(fs.fields))
	names := make([]string, 0, len(fs.fields))
	for _, f := range fs.fields {
		defs = append(defs, f.Definition())
		names = append(names, f.Name)
	}
	sort.Strings(defs)
	sort.Strings(names)
	fs.summary = strings.Join(defs, ",")
	fs.namesKey = strings.Join(names, ",")
}

// Summary returns the canonical content key of this fieldset: the sorted
// "name:type" definitions joined by commas. Structurally identical
// fieldsets always share a summary.
func (fs *FieldSet) Summary() string { return fs.summary }

// NamesKey returns the sorted field names joined by commas. Events are
// classified by shape first, so the names key is the data-level lookup key.
func (fs *FieldSet) NamesKey() string { return fs.namesKey }

// Target returns the target this fieldset is bound to, or "" if unbound.
func (fs *FieldSet) Target() string { return fs.target }

// Level returns the lattice level this fieldset is bound at.
func (fs *FieldSet) Level() Level { return fs.level }

// EventTypeName returns the registration identity with the CEP runtime,
// or "" if the fieldset is unbound.
func (fs *FieldSet) EventTypeName() string { return fs.eventType }

// Len returns the number of fields.
func (fs *FieldSet) Len() int { return len(fs.fields) }

// Field returns the named field and whether it exists.
func (fs *FieldSet) Field(name string) (Field, bool) {
	f, ok := fs.fields[name]
	return f, ok
}

// FieldNames returns the sorted field names.
func (fs *FieldSet) FieldNames() []string {
	names := make([]string, 0, len(fs.fields))
	for name := range fs.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fields returns the fields sorted by name.
func (fs *FieldSet) Fields() []Field {
	fields := make([]Field, 0, len(fs.fields))
	for _, f := range fs.fields {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return fields
}

// Definition returns the field-name to type-name mapping handed to the CEP
// runtime's addEventType call.
func (fs *FieldSet) Definition() map[string]string {
	def := make(map[string]string, len(fs.fields))
	for name, f := range fs.fields {
		def[name] = string(f.Type)
	}
	return def
}

// SubsetOf reports whether every field of fs appears in other with the same
// type. A fieldset is a subset of itself.
func (fs *FieldSet) SubsetOf(other *FieldSet) bool {
	if other == nil || len(fs.fields) > len(other.fields) {
		return false
	}
	for name, f := range fs.fields {
		of, ok := other.fields[name]
		if !ok || of.Type != f.Type {
			return false
		}
	}
	return true
}

// SupersetOf reports whether fs contains every field of other.
func (fs *FieldSet) SupersetOf(other *FieldSet) bool {
	return other != nil && other.SubsetOf(fs)
}

// Bind assigns the fieldset its registration identity for a target and
// level. Bind returns the receiver for chaining and is a no-op on content.
func (fs *FieldSet) Bind(target string, level Level) *FieldSet {
	fs.target = target
	fs.level = level
	fs.eventType = generateEventTypeName(target, level)
	return fs
}

// Rebind returns a copy of this fieldset bound to the same target and
// level. When renameEventType is true the copy carries a fresh event-type
// name, which is how inheritance-graph rebinding swaps a data fieldset's
// registration without changing its content identity.
func (fs *FieldSet) Rebind(renameEventType bool) *FieldSet {
	dup := &FieldSet{
		fields:    make(map[string]Field, len(fs.fields)),
		summary:   fs.summary,
		namesKey:  fs.namesKey,
		target:    fs.target,
		level:     fs.level,
		eventType: fs.eventType,
	}
	for name, f := range fs.fields {
		dup.fields[name] = f
	}
	if renameEventType {
		dup.eventType = generateEventTypeName(fs.target, fs.level)
	}
	return dup
}

// generateEventTypeName builds a unique registration name. The target and
// level prefixes keep runtime-side listings readable; the uuid suffix makes
// every binding (and every rebind) distinct.
func generateEventTypeName(target string, level Level) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%s", target, level, suffix)
}

// String implements fmt.Stringer for log output.
func (fs *FieldSet) String() string {
	if fs.eventType != "" {
		return fmt.Sprintf("%s(%s)", fs.eventType, fs.summary)
	}
	return fmt.Sprintf("unbound(%s)", fs.summary)
}
