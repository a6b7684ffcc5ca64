// Package lifecycle implements the component state machine.
//
// States: created, started, resumed, paused, stopped, destroyed.
//
// Edges:
//
//	created  -> started            (start)
//	started  -> resumed            (resume)
//	resumed  -> paused             (pause)
//	paused   -> resumed | stopped  (resume | stop)
//	stopped  -> started            (start)
//	any live -> destroyed          (destroy)
//
// Destroyed is absorbing. Behavior is attached by registering named
// capability handlers on a Machine; they run in registration order before a
// state is committed. A failing handler forces the record to destroyed and
// is reported as a *HandlerFailure; the transition is never retried.
//
// Example Usage:
//
//	m := lifecycle.NewMachine(logger)
//	m.Register("window", windows.Handle)
//	m.Register("component", callbacks.Handle)
//	_, err := m.Apply(ctx, rec, types.EventStart)
package lifecycle
