// Package typedef maintains per-target type knowledge: the lattice of
// base/query/data fieldsets, explicitly reserved field types, and lazy
// activation state. It is the in-process type-inference collaborator the
// engine consults to derive, classify, and resolve fieldsets; it never
// talks to the CEP runtime itself.
package typedef

import (
	"fmt"
	"sort"

	"github.com/meganemura/norikra/fieldset"
)

// Typedef holds everything known about one target's types.
type Typedef struct {
	target    string
	lazy      bool
	activated bool

	// reserved maps field names to caller-reserved types. Reservations
	// survive until the target closes and override guessed types.
	reserved map[string]fieldset.Type

	base *fieldset.FieldSet

	// queryFieldsets is keyed by summary; refs counts how many active
	// queries bound each one, so shared query fieldsets survive a single
	// deregistration.
	queryFieldsets map[string]*fieldset.FieldSet
	queryRefs      map[string]int

	// dataFieldsets is keyed by summary; byNamesKey is the shape index
	// used to classify incoming events.
	dataFieldsets map[string]*fieldset.FieldSet
	byNamesKey    map[string]*fieldset.FieldSet
}

func newTypedef(target string, lazy bool) *Typedef {
	return &Typedef{
		target:         target,
		lazy:           lazy,
		reserved:       make(map[string]fieldset.Type),
		queryFieldsets: make(map[string]*fieldset.FieldSet),
		queryRefs:      make(map[string]int),
		dataFieldsets:  make(map[string]*fieldset.FieldSet),
		byNamesKey:     make(map[string]*fieldset.FieldSet),
	}
}

// Target returns the target name.
func (td *Typedef) Target() string { return td.target }

// Lazy reports whether base-fieldset derivation is deferred to the first
// event.
func (td *Typedef) Lazy() bool { return td.lazy }

// Activated reports whether the base fieldset has been established.
func (td *Typedef) Activated() bool { return td.activated }

// Base returns the base fieldset, or nil before activation.
func (td *Typedef) Base() *fieldset.FieldSet { return td.base }

// fieldType resolves the known type of a field, in priority order:
// explicit reservation, base fieldset, any query fieldset, any data
// fieldset.
func (td *Typedef) fieldType(name string) (fieldset.Type, bool) {
	if typ, ok := td.reserved[name]; ok {
		return typ, true
	}
	if td.base != nil {
		if f, ok := td.base.Field(name); ok {
			return f.Type, true
		}
	}
	for _, fs := range td.queryFieldsets {
		if f, ok := fs.Field(name); ok {
			return f.Type, true
		}
	}
	for _, fs := range td.dataFieldsets {
		if f, ok := fs.Field(name); ok {
			return f.Type, true
		}
	}
	return "", false
}

// deriveFieldSet builds an unbound fieldset for an event shape, using
// known types where available and scalar guesses elsewhere.
func (td *Typedef) deriveFieldSet(event map[string]any) (*fieldset.FieldSet, error) {
	if len(event) == 0 {
		return nil, fmt.Errorf("cannot derive fieldset from empty event")
	}
	fields := make([]fieldset.Field, 0, len(event))
	for name, value := range event {
		typ, ok := td.fieldType(name)
		if !ok {
			typ = fieldset.GuessType(value)
		}
		fields = append(fields, fieldset.Field{Name: name, Type: typ})
	}
	return fieldset.FromFields(fields)
}

// supersetsOf returns the data fieldsets containing every field of fs,
// sorted by event-type name for deterministic iteration.
func (td *Typedef) supersetsOf(fs *fieldset.FieldSet) []*fieldset.FieldSet {
	var out []*fieldset.FieldSet
	for _, data := range td.dataFieldsets {
		if data.SupersetOf(fs) {
			out = append(out, data)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventTypeName() < out[j].EventTypeName() })
	return out
}

// subsetsOf returns the base and query fieldsets structurally contained in
// fs, sorted by event-type name. These become fs's supertypes when it is
// registered at data level.
func (td *Typedef) subsetsOf(fs *fieldset.FieldSet) []*fieldset.FieldSet {
	var out []*fieldset.FieldSet
	if td.base != nil && td.base.SubsetOf(fs) {
		out = append(out, td.base)
	}
	for _, query := range td.queryFieldsets {
		if query.SubsetOf(fs) {
			out = append(out, query)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventTypeName() < out[j].EventTypeName() })
	return out
}
