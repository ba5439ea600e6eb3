// Package norikra is a schema-evolving front end for complex event
// processing: callers stream semi-structured JSON events at named
// targets and register SQL-like continuous queries against them, without
// ever declaring schemas up front.
//
// The orchestrator infers typed fieldsets from the events themselves,
// maintains the per-target inheritance lattice relating schema variants,
// and maps queries onto concrete event types in a pluggable CEP runtime.
// Queries whose field types are not yet known park in a waiting state
// and activate automatically once matching data arrives.
//
// # Layout
//
//   - engine: the orchestrator owning targets, fieldsets, and queries
//   - typedef: per-target field-type knowledge and lattice relations
//   - fieldset: typed fieldsets, summaries, and event-type binding
//   - cep: the consumed CEP-runtime boundary and adapter registry
//   - output: query-result delivery sinks (log, NATS, fan-out)
//   - gateway: HTTP admin API, NATS event ingestion, WebSocket streams
//   - natsclient, metric, health, config, errors: supporting
//     infrastructure
//
// The norikra server binary lives in cmd/norikra. All state is held in
// memory; a restart starts from scratch.
package norikra
