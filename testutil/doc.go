// Package testutil provides test doubles shared across packages, most
// importantly an in-memory fake of the cep.Runtime boundary. The fakes
// record every configuration call so tests can assert on the exact
// sequence of event-type registrations, installed statements, and
// forwarded events without a real CEP engine.
package testutil
