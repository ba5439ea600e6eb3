// Package gateway is the network surface of the orchestrator.
//
// It exposes three entry points:
//
//   - an HTTP admin API for target and query management and direct event
//     submission,
//   - a NATS consumer feeding events from "<prefix>.<target>" subjects
//     into the engine,
//   - a WebSocket endpoint streaming live query results.
//
// The gateway holds no state of its own; every request is translated
// into one engine call and the engine's soft-miss and error-class
// conventions map directly onto HTTP status codes.
package gateway
