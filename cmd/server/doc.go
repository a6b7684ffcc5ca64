// Package main is the entry point for the component lifecycle host.
//
// The host owns the lifecycle of every component record, the task back
// stacks they live in, and the saved state captured for them. Clients drive
// it over HTTP and watch transitions over a WebSocket stream.
//
// Endpoints:
//   - /components, /tasks: launch, finish, results and navigation
//   - /host: configuration changes, memory trim and services
//   - /definitions: the component registry
//   - /stream: committed transitions and component failures
//   - /metrics: Prometheus metrics
//
// Configuration:
//   - Environment variables (12-factor)
//   - Optional TOML policy file (POLICY_FILE)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Saved state on disk, manifests from a directory
//	./server -port 8000 -state-dir /var/lib/lifecycle -manifests ./components
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
