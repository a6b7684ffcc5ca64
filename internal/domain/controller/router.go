package controller

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// SetResult stages the result a record hands back when it finishes
func (c *Controller) SetResult(cid id.ComponentID, code int, data types.Bundle) error {
	r := c.live(cid)
	if r == nil {
		return fmt.Errorf("set result: %w: %s", ErrComponentNotFound, cid)
	}
	r.c.PendingResult = &types.Result{Code: code, Data: data.Clone()}
	return nil
}

// DeliverResult routes a result from source to the record that launched it.
// A source with no result target, or whose target is gone, is a no-op.
func (c *Controller) DeliverResult(ctx context.Context, source id.ComponentID, code int, data types.Bundle) error {
	r, ok := c.records[source]
	if !ok {
		return fmt.Errorf("deliver result: %w: %s", ErrComponentNotFound, source)
	}
	if r.c.ResultTarget == nil {
		return nil
	}
	c.routeResult(r.c, types.Result{Code: code, Data: data.Clone()})
	c.flush()
	return nil
}

// routeResult clears the source's result target and queues the result ahead
// of the target's next resume. A target that stays resumed is paused for
// the delivery and resumed after it. The caller flushes the plan.
func (c *Controller) routeResult(source *types.Component, res types.Result) {
	rt := source.ResultTarget
	source.ResultTarget = nil
	source.PendingResult = nil
	if rt == nil {
		return
	}

	target := c.live(rt.ID)
	if target == nil {
		c.logger.Debug("Discarding result for destroyed target",
			zap.String("kind", string(lifecycle.KindStaleTarget)),
			zap.String("source", source.ID.String()),
			zap.String("target", rt.ID.String()),
		)
		c.metrics.EventProcessed(types.EventDeliverResult, OutcomeDropped)
		return
	}

	ev := &types.Event{
		Target: rt.ID,
		Kind:   types.EventDeliverResult,
		Payload: types.ResultPayload{
			From:        source.ID,
			RequestCode: rt.RequestCode,
			ResultCode:  res.Code,
			Data:        res.Data,
		},
	}
	if target.scheduled == types.StateResumed && !c.resumeQueued(rt.ID) {
		c.plan.first = append(c.plan.first, &types.Event{Target: rt.ID, Kind: types.EventPause})
		c.plan.second = append(c.plan.second, ev, &types.Event{Target: rt.ID, Kind: types.EventResume})
		return
	}
	c.insertBeforeResume(ev)
}

// DeliverNewIntent hands req to an existing record. A resumed record is
// paused first and resumed after the delivery. A missing target is a no-op.
func (c *Controller) DeliverNewIntent(ctx context.Context, target id.ComponentID, req *types.Request) error {
	if req == nil {
		return fmt.Errorf("deliver new intent: nil request")
	}
	r := c.live(target)
	if r == nil || r.c.Finishing {
		c.logger.Debug("Discarding new intent for destroyed target",
			zap.String("kind", string(lifecycle.KindStaleTarget)),
			zap.String("target", target.String()),
		)
		return nil
	}
	c.deliverNewIntent(r, req)
	c.flush()
	return nil
}

// deliverNewIntent swaps the intent reference and plans the delivery
func (c *Controller) deliverNewIntent(r *record, req *types.Request) {
	r.c.Intent = req
	ev := &types.Event{Target: r.c.ID, Kind: types.EventDeliverNewIntent, Payload: req}

	if r.scheduled != types.StateResumed {
		c.plan.second = append(c.plan.second, ev)
		return
	}
	c.plan.first = append(c.plan.first, &types.Event{Target: r.c.ID, Kind: types.EventPause})
	c.plan.second = append(c.plan.second, ev, &types.Event{Target: r.c.ID, Kind: types.EventResume})
}
