// Package persistence captures and restores component state across
// destroy/recreate cycles.
//
// A blob is the zstd-compressed JSON envelope
//
//	{"identity":..., "position":..., "state":{...}, "task":..., "version":1}
//
// encoded with sorted keys, so capturing an unchanged component twice returns
// byte-identical blobs. Blobs are keyed by identity, task and position; a
// blob that cannot be decoded or belongs to another slot is treated as absent.
//
// Stores:
//   - MemoryStore: process memory
//   - FileStore: one file per key under a state directory
//   - BreakerStore: circuit breaker in front of another store
//
// Example Usage:
//
//	bridge := persistence.NewBridge(store, owner, logger, persistence.Options{})
//	machine.Register("persistence", bridge.Handle)
//	machine.Observe(bridge)
package persistence
