package controller

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// MoveTaskToBack sends a task to the back of the recency order. It reports
// false when there is no other task to take the foreground.
func (c *Controller) MoveTaskToBack(ctx context.Context, tid id.TaskID) (bool, error) {
	if _, ok := c.tasks[tid]; !ok {
		return false, fmt.Errorf("move task to back: %w: %s", ErrTaskNotFound, tid)
	}
	if len(c.recency) < 2 || c.recency[len(c.recency)-1] == tid {
		return false, nil
	}

	for i, t := range c.recency {
		if t == tid {
			c.recency = append(c.recency[:i], c.recency[i+1:]...)
			break
		}
	}
	c.recency = append(c.recency, tid)
	c.logger.Debug("Task moved to back", zap.String("task", tid.String()))

	c.reconcile(ctx)
	return true, nil
}

// MoveTaskToFront makes a task the most recent one and resumes its top record
func (c *Controller) MoveTaskToFront(ctx context.Context, tid id.TaskID) error {
	if _, ok := c.tasks[tid]; !ok {
		return fmt.Errorf("move task to front: %w: %s", ErrTaskNotFound, tid)
	}
	if c.bringToFront(tid) {
		c.logger.Debug("Task moved to front", zap.String("task", tid.String()))
	}
	c.reconcile(ctx)
	return nil
}

// NavigateResult is the outcome of NavigateUpTo
type NavigateResult struct {
	// Target is the record that became the top of the task, empty when the
	// root was reached
	Target id.ComponentID `json:"target,omitempty"`

	// RootReached is set when no record below the caller matched and the
	// whole task was cleared
	RootReached bool `json:"root_reached"`
}

// NavigateUpTo walks down from the record below the top of the caller's task
// looking for identity. Every record above the match is finished and the
// match receives req as a new intent. With no match the task is cleared.
func (c *Controller) NavigateUpTo(ctx context.Context, identity types.Identity, callerTask id.TaskID) (NavigateResult, error) {
	task, ok := c.tasks[callerTask]
	if !ok {
		return NavigateResult{}, fmt.Errorf("navigate up: %w: %s", ErrTaskNotFound, callerTask)
	}

	for i := len(task.Stack) - 2; i >= 0; i-- {
		entry := task.Stack[i]
		var match bool
		if r, ok := c.records[entry]; ok {
			match = !r.c.Finishing && r.c.Identity == identity
		} else if g, ok := c.ghosts[entry]; ok {
			match = g.Identity == identity
		}
		if !match {
			continue
		}

		c.popAbove(ctx, task, i, true)
		c.bringToFront(task.ID)
		if _, isGhost := c.ghosts[entry]; isGhost {
			entry = c.materialize(task, i, nil)
		} else {
			c.deliverNewIntent(c.records[entry], &types.Request{Identity: identity})
		}
		c.reconcile(ctx)
		return NavigateResult{Target: entry}, nil
	}

	c.popAbove(ctx, task, -1, false)
	c.reconcile(ctx)
	return NavigateResult{RootReached: true}, nil
}
