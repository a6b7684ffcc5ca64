package controller

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/registry"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// reconcile derives which records should be resumed from task recency and
// queues the transitions that get every record there. The top record of the
// most recent task is resumed; under multi-resume so are the tops of the
// next MaxResumed-1 tasks. Every other record in a task is stopped. Ghost
// slots that must be shown are recreated first.
func (c *Controller) reconcile(ctx context.Context) {
	want := make(map[id.ComponentID]bool)
	slots := c.policy.resumeSlots()

	for _, tid := range c.recency {
		if len(want) >= slots {
			break
		}
		task := c.tasks[tid]
		top, ok := task.Top()
		if !ok {
			continue
		}
		if _, isGhost := c.ghosts[top]; isGhost {
			top = c.materialize(task, len(task.Stack)-1, nil)
		}
		want[top] = true
	}

	for _, tid := range c.recency {
		for _, cid := range c.tasks[tid].Stack {
			r, ok := c.records[cid]
			if !ok || r.c.Finishing || r.recreate {
				continue
			}
			if want[cid] {
				c.steer(r, types.StateResumed)
			} else {
				c.steer(r, types.StateStopped)
			}
		}
	}

	c.flush()
}

// steer plans the transitions from a record's scheduled state to desired
func (c *Controller) steer(r *record, desired types.State) {
	if r.scheduled == desired {
		return
	}
	// never shown, so nothing to stop
	if desired == types.StateStopped && r.scheduled == types.StateCreated {
		return
	}

	kinds, ok := lifecycle.Plan(r.scheduled, desired)
	if !ok {
		return
	}
	if desired == types.StateResumed {
		c.plan.entering(r.c.ID, kinds)
	} else {
		c.plan.leaving(r.c.ID, kinds)
	}
	r.scheduled = desired
}

// newTask creates an empty task at the front of the recency order
func (c *Controller) newTask(affinity string) *types.Task {
	t := &types.Task{
		ID:           id.NewTaskID(),
		Affinity:     affinity,
		CreatedAt:    now(),
		LastActiveAt: now(),
	}
	c.tasks[t.ID] = t
	c.recency = append([]id.TaskID{t.ID}, c.recency...)
	c.logger.Debug("Task created",
		zap.String("task", t.ID.String()),
		zap.String("affinity", affinity),
	)
	return t
}

// bringToFront makes tid the most recent task. It reports whether the order
// changed.
func (c *Controller) bringToFront(tid id.TaskID) bool {
	i := slices.Index(c.recency, tid)
	if i <= 0 {
		return false
	}
	c.recency = slices.Delete(c.recency, i, i+1)
	c.recency = slices.Insert(c.recency, 0, tid)
	c.tasks[tid].LastActiveAt = now()
	return true
}

// removeTask drops an empty task; control passes to the next most recent
func (c *Controller) removeTask(tid id.TaskID) {
	delete(c.tasks, tid)
	if i := slices.Index(c.recency, tid); i >= 0 {
		c.recency = slices.Delete(c.recency, i, i+1)
	}
	c.logger.Debug("Task removed", zap.String("task", tid.String()))
}

// removeFromTask pops comp's entry from its task and closes the gap. An
// emptied task is removed unless keep is set. comp keeps the position it
// left, so its teardown transitions report that slot.
func (c *Controller) removeFromTask(ctx context.Context, comp *types.Component, keep bool) {
	task, ok := c.tasks[comp.TaskID]
	if !ok {
		return
	}
	i := task.IndexOf(comp.ID)
	if i < 0 {
		return
	}
	task.Stack = slices.Delete(task.Stack, i, i+1)
	c.renumber(ctx, task, i)

	if len(task.Stack) == 0 && !keep {
		c.removeTask(task.ID)
	}
}

// renumber rewrites positions from index `from` upward so they stay
// contiguous, moving any held blob with its record
func (c *Controller) renumber(ctx context.Context, task *types.Task, from int) {
	for i := from; i < len(task.Stack); i++ {
		cid := task.Stack[i]
		var comp *types.Component
		if r, ok := c.records[cid]; ok {
			comp = r.c
		} else if g, ok := c.ghosts[cid]; ok {
			comp = g
		} else {
			continue
		}
		if comp.Position == i {
			continue
		}
		old := comp.Position
		comp.Position = i
		c.bridge.Relocate(ctx, comp, old)
	}
}

// ghostify keeps a destroyed record's slot so it can be recreated in place
func (c *Controller) ghostify(r *record) {
	shell := r.c.Snapshot()
	shell.Window = ""
	c.ghosts[shell.ID] = &shell
	c.logger.Info("Component slot held for recreation",
		zap.String("component", shell.ID.String()),
		zap.String("identity", string(shell.Identity)),
		zap.String("task", shell.TaskID.String()),
		zap.Int("position", shell.Position),
	)
}

// materialize replaces the ghost at index i of task with a fresh Created
// record of the same identity. intent overrides the ghost's request when set.
func (c *Controller) materialize(task *types.Task, i int, intent *types.Request) id.ComponentID {
	gid := task.Stack[i]
	g := c.ghosts[gid]
	delete(c.ghosts, gid)

	if intent == nil {
		intent = g.Intent
	}
	def, err := c.definition(g.Identity)
	if err != nil {
		def = &registry.Definition{Identity: g.Identity, LaunchMode: registry.LaunchStandard}
	}

	comp := &types.Component{
		ID:        id.NewComponentID(),
		Identity:  g.Identity,
		Affinity:  g.Affinity,
		State:     types.StateCreated,
		Intent:    intent,
		TaskID:    task.ID,
		Position:  i,
		NoHistory: g.NoHistory,
		CreatedAt: now(),
	}
	if g.ResultTarget != nil && c.live(g.ResultTarget.ID) != nil {
		rt := *g.ResultTarget
		comp.ResultTarget = &rt
	}

	task.Stack[i] = comp.ID
	c.records[comp.ID] = &record{c: comp, def: def, scheduled: types.StateCreated}

	c.logger.Info("Recreating component in held slot",
		zap.String("component", comp.ID.String()),
		zap.String("previous", gid.String()),
		zap.String("identity", string(comp.Identity)),
	)
	return comp.ID
}

// dropGhost removes a ghost slot and its blob
func (c *Controller) dropGhost(ctx context.Context, gid id.ComponentID, keep bool) {
	g, ok := c.ghosts[gid]
	if !ok {
		return
	}
	c.bridge.Discard(ctx, g)
	delete(c.ghosts, gid)
	c.removeFromTask(ctx, g, keep)
}

func (c *Controller) teardownDone(tid id.TaskID) {
	if c.teardown[tid] <= 1 {
		delete(c.teardown, tid)
		return
	}
	c.teardown[tid]--
}
