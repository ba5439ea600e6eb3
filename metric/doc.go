// Package metric provides Prometheus-based metrics for the Norikra
// orchestrator.
//
// # Overview
//
// The package has three parts:
//
//   - Metrics: the core platform metrics (open targets, active/waiting
//     queries, registered fieldsets by level, event flow counters, NATS
//     connection state)
//   - MetricsRegistry: a wrapper around a private prometheus.Registry that
//     owns the core metrics and lets components register their own
//     collectors under a "component.metric" key with duplicate detection
//   - Server: an HTTP server exposing the registry on /metrics via
//     promhttp, plus a trivial /health endpoint
//
// # Usage
//
//	registry := metric.NewMetricsRegistry()
//	registry.CoreMetrics().RecordEventReceived("visit")
//
//	srv := metric.NewServer(9090, "/metrics", registry)
//	go srv.Start()
//	defer srv.Stop()
//
// Components that need their own metrics build prometheus collectors and
// register them through the MetricsRegistrar interface, which keeps all
// collectors on the single scrape endpoint.
package metric
