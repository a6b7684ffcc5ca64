package controller

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// Finish pops a record from its task and schedules its teardown. The record
// below it, or the next most recent task when the task empties, is resumed.
// Finishing an already finishing record is a no-op.
func (c *Controller) Finish(ctx context.Context, cid id.ComponentID) error {
	r := c.live(cid)
	if r == nil {
		return fmt.Errorf("finish: %w: %s", ErrComponentNotFound, cid)
	}
	if r.c.Finishing {
		return nil
	}

	c.finishRecord(ctx, r, false)
	c.reconcile(ctx)
	return nil
}

// finishRecord marks r finishing, routes its result, removes it from its
// task and plans its teardown. The caller reconciles.
func (c *Controller) finishRecord(ctx context.Context, r *record, keepTask bool) {
	comp := r.c
	comp.Finishing = true
	delete(c.held, comp.ID)

	if comp.ResultTarget != nil {
		res := types.Result{Code: types.ResultCanceled}
		if comp.PendingResult != nil {
			res = *comp.PendingResult
		}
		c.routeResult(comp, res)
	}

	c.bridge.Discard(ctx, comp)
	tid := comp.TaskID
	c.removeFromTask(ctx, comp, keepTask)
	c.teardown[tid]++

	r.recreate = false
	c.plan.leaving(comp.ID, lifecycle.PlanTeardown(r.scheduled))
	r.scheduled = types.StateDestroyed

	c.logger.Info("Component finishing",
		zap.String("component", comp.ID.String()),
		zap.String("identity", string(comp.Identity)),
		zap.String("task", tid.String()),
	)
}

// FinishAffinity finishes the caller and every record below it in its task
// that shares the caller's affinity. Records above the caller are left alone.
// A caller that owes a result cannot finish its affinity.
func (c *Controller) FinishAffinity(ctx context.Context, cid id.ComponentID) error {
	r := c.live(cid)
	if r == nil {
		return fmt.Errorf("finish affinity: %w: %s", ErrComponentNotFound, cid)
	}
	if r.c.ResultTarget != nil {
		return fmt.Errorf("finish affinity %s: %w", cid, ErrResultPending)
	}
	if r.c.Finishing {
		return nil
	}

	task, ok := c.tasks[r.c.TaskID]
	if !ok {
		return fmt.Errorf("finish affinity: %w: %s", ErrTaskNotFound, r.c.TaskID)
	}
	affinity := r.c.Affinity

	var victims []id.ComponentID
	for i := r.c.Position; i >= 0; i-- {
		entry := task.Stack[i]
		if g, isGhost := c.ghosts[entry]; isGhost {
			if g.Affinity == affinity {
				victims = append(victims, entry)
			}
			continue
		}
		if rec, ok := c.records[entry]; ok && !rec.c.Finishing && rec.c.Affinity == affinity {
			victims = append(victims, entry)
		}
	}

	for _, v := range victims {
		if _, isGhost := c.ghosts[v]; isGhost {
			c.dropGhost(ctx, v, false)
			continue
		}
		c.finishRecord(ctx, c.records[v], false)
	}
	c.reconcile(ctx)
	return nil
}
