// Package http provides the admin REST API of the lifecycle host.
//
// Every handler that touches controller state submits a closure to the
// controller loop and waits for it, so requests are serialized with queue
// processing. Priority is the exception: it reads the atomically published
// rank directly.
//
// Endpoints:
//   - Health: /, /health, /stats, /priority
//   - Components: /components, /components/stack, /components/:id/{finish,
//     finish-affinity, result, intent, start-postponed, recreate, reclaim}
//   - Tasks: /tasks, /tasks/:id/{back, front, navigate-up}
//   - Host: /host/configuration, /host/trim, /host/services
//   - Definitions: /definitions, /definitions/:identity
//   - Logs: /components/:id/logs, /logs/level
//
// Domain errors map to status codes: unknown records, tasks and identities
// to 404, pending results and unkillable records to 409, a stopped loop to
// 503.
//
// Example Usage:
//
//	handlers := http.NewHandlers(loop, registry, metrics, logger, zapLogger)
//	http.Register(router, handlers)
package http
