// Package engine implements the schema-evolution and query-registration
// orchestrator sitting in front of a generic CEP runtime.
//
// # Responsibilities
//
// The engine keeps three interacting collections consistent under
// concurrent mutation:
//
//   - the set of open targets (named logical event streams),
//   - the per-target lattice of fieldsets (base/query/data schema
//     variants related by subset/superset inheritance),
//   - the set of active and waiting continuous queries whose validity
//     depends on that lattice.
//
// Callers send semi-structured events tagged with a target name; the
// engine infers, registers, and evolves typed fieldsets for that target
// on the fly, then maps declarative queries onto those fieldsets so the
// CEP runtime can execute them without pre-declared static types.
//
// # Collaborators
//
// Pattern matching, windowing, and query evaluation belong to the
// injected cep.Runtime. Field-type knowledge and lattice relations belong
// to the typedef.Manager. Query results flow to an output.Sink. The
// engine owns all Target, Fieldset, and Query records exclusively;
// collaborators only ever see copies and identifiers.
//
// # Concurrency
//
// One exclusive lock serializes every mutation across all targets:
// open/close, fieldset registration and rebinding, query register and
// deregister, waiting-query resolution, and schema discovery during
// Send. Locked sections are finite and perform no network I/O. There are
// no retries: a rejected runtime registration is a configuration defect
// surfaced as a fatal error.
package engine
