// Package types provides shared data structures for the lifecycle host.
//
// Core Types:
//   - Component: one component record (identity, state, task slot, result routing)
//   - Task: ordered stack of component ids
//   - Request, LaunchOptions, LaunchFlags: launch requests
//   - Event: lifecycle event queue entry
//   - Rank: process reclaim importance
//
// State Management:
//   - State: created, started, resumed, paused, stopped, destroyed
//   - Stats: controller statistics
//
// Example Usage:
//
//	req := &types.Request{Identity: "com.example/.Main"}
//	opts := types.LaunchOptions{Flags: types.FlagNewTask}
package types
