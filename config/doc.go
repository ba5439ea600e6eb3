// Package config defines the application configuration: HTTP and
// metrics listen addresses, the NATS connection, result publishing, and
// optional targets and queries to install at startup.
//
// Configuration is a single JSON file loaded once at process start.
// There is no hot reload: the orchestrator rebuilds all state from
// scratch on restart, and so does its configuration.
package config
