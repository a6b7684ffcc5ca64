// Package ws streams lifecycle transitions over WebSocket.
//
// The Hub is registered as a controller observer and supervisor. Every
// committed transition and every component failure becomes one JSON frame
// fanned out to the connected subscribers. Publishing happens on the
// controller goroutine and never blocks it: a subscriber that falls behind
// its buffer loses frames and the loss is counted.
//
// Message Types (Client → Server):
//   - ping: keep-alive ping
//   - filter: replace the subscriber filter ({"identity": ..., "task": ...})
//
// Message Types (Server → Client):
//   - system: sent once on connect, carries the subscriber id
//   - transition: a committed state change
//   - component_failed: a component destroyed by its own callback
//   - pong, filtered, error
//
// Example Usage:
//
//	hub := ws.NewHub(64, logger)
//	ctrl.Observe(hub)
//	router.GET("/stream", ws.NewHandler(hub, metrics, logger).HandleConnection)
package ws
