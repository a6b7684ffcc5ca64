package controller

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// batch orders the transitions planned by one operation: records leaving
// the foreground pause first, entering records start and resume next, and
// the leaving records stop or are destroyed last.
type batch struct {
	first  []*types.Event
	second []*types.Event
	third  []*types.Event
}

func (b *batch) leaving(target id.ComponentID, kinds []types.EventKind) {
	split := 0
	for i, k := range kinds {
		if k == types.EventPause {
			split = i + 1
		}
	}
	for i, k := range kinds {
		ev := &types.Event{Target: target, Kind: k}
		if i < split {
			b.first = append(b.first, ev)
		} else {
			b.third = append(b.third, ev)
		}
	}
}

func (b *batch) entering(target id.ComponentID, kinds []types.EventKind) {
	for _, k := range kinds {
		b.second = append(b.second, &types.Event{Target: target, Kind: k})
	}
}

// flush moves the planned batch onto the queue
func (c *Controller) flush() {
	for _, phase := range [][]*types.Event{c.plan.first, c.plan.second, c.plan.third} {
		for _, ev := range phase {
			c.enqueue(ev)
		}
	}
	c.plan = batch{}
}

// enqueue appends ev to the global FIFO
func (c *Controller) enqueue(ev *types.Event) {
	c.seq++
	ev.Seq = c.seq
	c.queue = append(c.queue, ev)
}

// insertBeforeResume queues ev immediately ahead of the target's next queued
// resume, or at the tail when none is queued
func (c *Controller) insertBeforeResume(ev *types.Event) {
	c.seq++
	ev.Seq = c.seq
	for i, q := range c.queue {
		if q.Target == ev.Target && q.Kind == types.EventResume {
			c.queue = append(c.queue, nil)
			copy(c.queue[i+1:], c.queue[i:])
			c.queue[i] = ev
			return
		}
	}
	c.queue = append(c.queue, ev)
}

// resumeQueued reports whether a resume for cid is waiting in the queue
func (c *Controller) resumeQueued(cid id.ComponentID) bool {
	for _, q := range c.queue {
		if q.Target == cid && q.Kind == types.EventResume {
			return true
		}
	}
	return false
}

// next pops the first event whose target is not postponed
func (c *Controller) next() (*types.Event, bool) {
	for i, ev := range c.queue {
		if ev.Target != "" && c.held[ev.Target] {
			continue
		}
		c.queue = append(c.queue[:i], c.queue[i+1:]...)
		return ev, true
	}
	return nil, false
}

// dropQueued removes every queued event aimed at cid. Launches queued on
// behalf of cid are cancelled.
func (c *Controller) dropQueued(cid id.ComponentID) {
	kept := c.queue[:0]
	for _, ev := range c.queue {
		if ev.Target != cid {
			kept = append(kept, ev)
			continue
		}
		c.dropEvent(ev)
	}
	for i := len(kept); i < len(c.queue); i++ {
		c.queue[i] = nil
	}
	c.queue = kept
}

// dropEvent records an event whose target no longer exists
func (c *Controller) dropEvent(ev *types.Event) {
	outcome := OutcomeDropped
	if ev.Kind == types.EventLaunch {
		outcome = OutcomeCancelled
	}
	c.logger.Debug("Dropping event for destroyed target",
		zap.String("kind", string(lifecycle.KindStaleTarget)),
		zap.String("event", ev.Kind.String()),
		zap.String("target", ev.Target.String()),
		zap.String("outcome", outcome),
	)
	c.metrics.EventProcessed(ev.Kind, outcome)
}

// reproject recomputes a record's scheduled state from its committed state
// and the transitions still queued for it
func (c *Controller) reproject(r *record) {
	state := r.c.State
	for _, ev := range c.queue {
		if ev.Target != r.c.ID || !ev.Kind.IsTransition() {
			continue
		}
		if next, ok := lifecycle.Next(state, ev.Kind); ok {
			state = next
		}
	}
	r.scheduled = state
}

// StartPostponed releases a postponed record's queue
func (c *Controller) StartPostponed(cid id.ComponentID) error {
	if _, ok := c.records[cid]; !ok {
		return fmt.Errorf("%w: %s", ErrComponentNotFound, cid)
	}
	delete(c.held, cid)
	return nil
}

// Postponed reports whether cid's queue is held
func (c *Controller) Postponed(cid id.ComponentID) bool {
	return c.held[cid]
}

// pendingLaunch is the payload of a launch queued behind a task teardown
type pendingLaunch struct {
	req  types.Request
	opts types.LaunchOptions
	id   id.ComponentID
}

func (c *Controller) processLaunch(ctx context.Context, ev *types.Event) {
	p := ev.Payload.(*pendingLaunch)
	if ev.Target != "" {
		if caller := c.live(ev.Target); caller == nil || caller.c.Finishing {
			c.dropEvent(ev)
			return
		}
	}

	if _, err := c.launch(ctx, p.req, p.opts, p.id, true); err != nil {
		c.logger.Warn("Queued launch failed",
			zap.String("identity", string(p.req.Identity)),
			zap.Error(err),
		)
		c.metrics.EventProcessed(ev.Kind, OutcomeFailed)
		return
	}
	c.metrics.EventProcessed(ev.Kind, OutcomeDelivered)
}

// guard runs a component callback, converting a panic into an error
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
