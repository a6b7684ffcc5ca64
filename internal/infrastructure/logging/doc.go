// Package logging builds the host's zap logger.
//
// Production logs are JSON, optionally sampled; development logs are
// colored console lines. Each part of the host logs through a named child
// (controller, store, api, stream, tracing) so entries can be filtered by
// subsystem, and the level can be changed at runtime through the admin API.
// Recovered lifecycle errors carry a "kind" field (invalid_transition,
// stale_target, transition_handler_failure, restore_blob_corrupt).
//
//	logger, err := logging.New(logging.Config{Level: "info", Service: "lifecycle"})
//	ctrl := controller.New(controller.Options{Logger: logger.Subsystem("controller")})
//	_ = logger.SetLevel("debug")
package logging
