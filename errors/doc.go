// Package errors provides standardized error handling patterns for Norikra components.
//
// # Overview
//
// The errors package implements a three-class error classification system for the
// schema orchestrator: Transient (temporary, network-edge only), Invalid (bad
// client request, non-retryable), and Fatal (unrecoverable configuration defect,
// stop processing).
//
// The orchestrator core performs no retries: a rejected event-type registration
// indicates a logic bug (duplicate type name, inconsistent supertype set), not a
// transient condition, and is surfaced as Fatal. The Transient class exists for
// the NATS/HTTP gateway edge, where connection loss is a normal condition.
//
// # Error Classification
//
//   - Transient: connection timeouts, connection loss, temporary unavailability
//   - Invalid: duplicate query names, double-open targets, malformed events
//   - Fatal: event-type conflicts, inconsistent supertype sets, bad configuration
//
// Benign absences (close of an unknown target, deregister of an unknown query)
// are not classified errors at all; operations report them with a false success
// indicator and IsNotFound recognizes the matching sentinels.
//
// The classification system integrates with Go's standard error handling,
// supporting errors.Is(), errors.As(), and error wrapping chains.
//
// # Quick Start
//
// Use standard error variables for known conditions:
//
//	if _, exists := e.queries[q.Name]; exists {
//	    return errors.WrapInvalid(errors.ErrDuplicateQueryName, "Engine", "Register", q.Name)
//	}
//
// Classify at the boundary:
//
//	if errors.IsFatal(err) {
//	    logger.Error("unrecoverable engine error", "error", err)
//	}
package errors
