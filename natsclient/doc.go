// Package natsclient manages the NATS connection used for event
// ingestion and query-result publishing.
//
// The client wraps a single nats.Conn with status tracking, reconnect
// handling, and an optional metrics hook. It is deliberately core NATS
// only: events flowing through the orchestrator are fire-and-forget and
// nothing here persists, so there is no JetStream surface.
//
// Typical usage:
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//		natsclient.WithClientName("norikra"),
//		natsclient.WithLogger(logger))
//	if err != nil { ... }
//	if err := client.Connect(ctx); err != nil { ... }
//	defer client.Close(ctx)
//
//	err = client.Subscribe("norikra.event.>", func(subject string, data []byte) { ... })
package natsclient
