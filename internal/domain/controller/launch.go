package controller

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/registry"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// Launch resolves the target task for req and either reuses an existing
// record (single-top, clear-top, reorder-to-front) or pushes a new Created
// record and schedules it through Started to Resumed. A launch into a task
// that is still being torn down is queued behind the teardown; the returned
// id is reserved for the record it will create.
func (c *Controller) Launch(ctx context.Context, req types.Request, opts types.LaunchOptions) (id.ComponentID, error) {
	return c.launch(ctx, req, opts, "", false)
}

func (c *Controller) launch(ctx context.Context, req types.Request, opts types.LaunchOptions, reserved id.ComponentID, dequeued bool) (id.ComponentID, error) {
	if req.Identity == "" {
		return "", fmt.Errorf("launch: identity is required")
	}
	def, err := c.definition(req.Identity)
	if err != nil {
		return "", fmt.Errorf("launch %s: %w", req.Identity, err)
	}

	flags := opts.Flags
	if def.LaunchMode == registry.LaunchSingleTop {
		flags |= types.FlagSingleTop
	}
	if def.NoHistory {
		flags |= types.FlagNoHistory
	}

	callerTask := opts.CallerTaskID
	if opts.CallerID != "" {
		caller := c.live(opts.CallerID)
		if caller == nil {
			return "", fmt.Errorf("launch %s: caller %w: %s", req.Identity, ErrComponentNotFound, opts.CallerID)
		}
		if callerTask == "" {
			callerTask = caller.c.TaskID
		}
	}

	affinity := req.Affinity
	if affinity == "" {
		affinity = def.ResolveAffinity()
	}

	task := c.resolveTask(flags, callerTask, affinity)
	if task != nil && !dequeued && c.teardown[task.ID] > 0 {
		return c.deferLaunch(req, opts, task), nil
	}
	if task == nil {
		task = c.newTask(affinity)
	} else {
		c.bringToFront(task.ID)
	}

	if flags.Has(types.FlagClearTask) {
		c.popAbove(ctx, task, -1, true)
	}

	if flags.Has(types.FlagClearTop) || flags.Has(types.FlagReorderToFront) {
		if i := c.findLive(task, req.Identity); i >= 0 {
			existing := c.records[task.Stack[i]]
			switch {
			case flags.Has(types.FlagClearTop):
				c.popAbove(ctx, task, i, true)
				if flags.Has(types.FlagSingleTop) {
					c.deliverNewIntent(existing, &req)
					c.reconcile(ctx)
					return existing.c.ID, nil
				}
				c.finishRecord(ctx, existing, true)
			default:
				c.moveToTop(ctx, task, i)
				c.deliverNewIntent(existing, &req)
				c.reconcile(ctx)
				return existing.c.ID, nil
			}
		}
	}

	if flags.Has(types.FlagSingleTop) {
		if top, ok := task.Top(); ok {
			if r := c.live(top); r != nil && !r.c.Finishing && r.c.Identity == req.Identity {
				c.deliverNewIntent(r, &req)
				c.reconcile(ctx)
				return r.c.ID, nil
			}
		}
	}

	cid := c.push(ctx, task, def, req, opts, flags, affinity, reserved)
	c.reconcile(ctx)

	c.logger.Info("Component launched",
		zap.String("component", cid.String()),
		zap.String("identity", string(req.Identity)),
		zap.String("task", task.ID.String()),
		zap.String("flags", flags.String()),
	)
	return cid, nil
}

// resolveTask picks the task a launch joins. Nil means a new task.
func (c *Controller) resolveTask(flags types.LaunchFlags, callerTask id.TaskID, affinity string) *types.Task {
	if !flags.Has(types.FlagNewTask) && callerTask != "" {
		if t, ok := c.tasks[callerTask]; ok {
			return t
		}
	}
	if flags.Has(types.FlagNewTask | types.FlagMultipleTask) {
		return nil
	}
	for _, tid := range c.recency {
		if c.tasks[tid].Affinity == affinity {
			return c.tasks[tid]
		}
	}
	return nil
}

// deferLaunch queues a launch behind the teardown of task
func (c *Controller) deferLaunch(req types.Request, opts types.LaunchOptions, task *types.Task) id.ComponentID {
	cid := id.NewComponentID()
	c.enqueue(&types.Event{
		Target:  opts.CallerID,
		Kind:    types.EventLaunch,
		Payload: &pendingLaunch{req: req, opts: opts, id: cid},
	})
	c.logger.Debug("Launch queued behind task teardown",
		zap.String("component", cid.String()),
		zap.String("identity", string(req.Identity)),
		zap.String("task", task.ID.String()),
	)
	return cid
}

// push adds a new Created record on top of task. When the top slot is a
// ghost of the same identity, the new record takes that slot so it is
// restored from the ghost's saved state.
func (c *Controller) push(ctx context.Context, task *types.Task, def *registry.Definition, req types.Request, opts types.LaunchOptions, flags types.LaunchFlags, affinity string, reserved id.ComponentID) id.ComponentID {
	cid := reserved
	if cid == "" {
		cid = id.NewComponentID()
	}

	intent := req
	comp := &types.Component{
		ID:        cid,
		Identity:  req.Identity,
		Affinity:  affinity,
		State:     types.StateCreated,
		Intent:    &intent,
		TaskID:    task.ID,
		Position:  len(task.Stack),
		NoHistory: flags.Has(types.FlagNoHistory),
		CreatedAt: now(),
	}

	if opts.WantsResult() {
		if target := c.live(opts.CallerID); target != nil {
			comp.ResultTarget = &types.ResultTarget{ID: target.c.ID, RequestCode: *opts.RequestCode}
		}
	}

	if top, ok := task.Top(); ok {
		if g, isGhost := c.ghosts[top]; isGhost && g.Identity == req.Identity {
			delete(c.ghosts, top)
			comp.Position = len(task.Stack) - 1
			task.Stack[comp.Position] = cid
			c.records[cid] = &record{c: comp, def: def, scheduled: types.StateCreated}
			return cid
		}
	}

	task.Stack = append(task.Stack, cid)
	c.records[cid] = &record{c: comp, def: def, scheduled: types.StateCreated}
	return cid
}

// LaunchStack builds a synthetic back stack in a new task: reqs[0] at the
// bottom, the last request on top. Only the top record is started.
func (c *Controller) LaunchStack(ctx context.Context, reqs []types.Request) ([]id.ComponentID, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("launch stack: no requests")
	}

	defs := make([]*registry.Definition, len(reqs))
	for i, req := range reqs {
		if req.Identity == "" {
			return nil, fmt.Errorf("launch stack: request %d has no identity", i)
		}
		def, err := c.definition(req.Identity)
		if err != nil {
			return nil, fmt.Errorf("launch stack %s: %w", req.Identity, err)
		}
		defs[i] = def
	}

	affinity := reqs[0].Affinity
	if affinity == "" {
		affinity = defs[0].ResolveAffinity()
	}
	task := c.newTask(affinity)

	ids := make([]id.ComponentID, len(reqs))
	for i, req := range reqs {
		var flags types.LaunchFlags
		if defs[i].NoHistory {
			flags |= types.FlagNoHistory
		}
		a := req.Affinity
		if a == "" {
			a = defs[i].ResolveAffinity()
		}
		ids[i] = c.push(ctx, task, defs[i], req, types.LaunchOptions{}, flags, a, "")
	}
	c.reconcile(ctx)
	return ids, nil
}

// findLive returns the index of the topmost live record with identity, or -1
func (c *Controller) findLive(task *types.Task, identity types.Identity) int {
	for i := len(task.Stack) - 1; i >= 0; i-- {
		if r := c.live(task.Stack[i]); r != nil && !r.c.Finishing && r.c.Identity == identity {
			return i
		}
	}
	return -1
}

// moveToTop reorders the entry at index i to the top of task
func (c *Controller) moveToTop(ctx context.Context, task *types.Task, i int) {
	cid := task.Stack[i]
	copy(task.Stack[i:], task.Stack[i+1:])
	task.Stack[len(task.Stack)-1] = cid
	c.renumber(ctx, task, i)
}

// popAbove finishes every entry above index i, top first. Ghost slots are
// dropped with their blobs. With keep the task survives being emptied.
func (c *Controller) popAbove(ctx context.Context, task *types.Task, i int, keep bool) {
	for len(task.Stack)-1 > i {
		top := task.Stack[len(task.Stack)-1]
		if _, isGhost := c.ghosts[top]; isGhost {
			c.dropGhost(ctx, top, keep)
			continue
		}
		r, ok := c.records[top]
		if !ok {
			task.Stack = task.Stack[:len(task.Stack)-1]
			continue
		}
		c.finishRecord(ctx, r, keep)
	}
}
