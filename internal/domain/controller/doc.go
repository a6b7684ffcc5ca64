// Package controller owns component records, tasks and the lifecycle event
// queue.
//
// Every operation mutates the arena and plans transitions; nothing is
// applied until Drain pops the queued events in FIFO order and runs them
// through the state machine. Within one operation, records leaving the
// foreground are paused first, entering records are started and resumed
// next, and the leaving records are stopped or destroyed last.
//
// Core Operations:
//   - Launch, LaunchStack: resolve a task and push or reuse a record
//   - Finish, FinishAffinity, NavigateUpTo: pop records
//   - MoveTaskToBack, MoveTaskToFront: reorder task recency
//   - DeliverResult, DeliverNewIntent: route results and intents
//   - Reclaim, TrimMemory: destroy killable records and keep their slots
//   - ConfigurationChanged, Recreate: restart records in place
//
// The Controller is single-goroutine. Loop runs it on its own goroutine and
// drains after every submitted job:
//
//	loop := controller.NewLoop(controller.New(opts), 64)
//	go loop.Run(ctx)
//	cid, err := controller.Call(ctx, loop, func(ctx context.Context, c *controller.Controller) (id.ComponentID, error) {
//		return c.Launch(ctx, types.Request{Identity: "com.example/.Main"}, types.LaunchOptions{})
//	})
package controller
