package controller

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// ConfigurationChanged applies a host configuration change to every record.
// Records whose definition handles all changed keys get a config change
// event; the rest are destroyed and recreated in place from their saved
// state. It returns the number of records scheduled for recreation.
func (c *Controller) ConfigurationChanged(ctx context.Context, change types.ConfigChange) int {
	recreated := 0
	for _, tid := range c.recency {
		for _, cid := range c.tasks[tid].Stack {
			r, ok := c.records[cid]
			if !ok || r.c.Finishing || r.recreate || r.scheduled == types.StateCreated {
				continue
			}
			if r.def.Handles(change.Keys) {
				c.plan.second = append(c.plan.second, &types.Event{
					Target:  cid,
					Kind:    types.EventConfigChange,
					Payload: change,
				})
				continue
			}
			c.recreateRecord(r)
			recreated++
		}
	}
	c.flush()

	c.logger.Info("Configuration changed",
		zap.Strings("keys", change.Keys),
		zap.Int("recreated", recreated),
	)
	return recreated
}

// Recreate destroys a record and rebuilds it at the same slot with its
// saved state
func (c *Controller) Recreate(ctx context.Context, cid id.ComponentID) error {
	r := c.live(cid)
	if r == nil || r.c.Finishing {
		return fmt.Errorf("recreate: %w: %s", ErrComponentNotFound, cid)
	}
	if r.recreate {
		return nil
	}
	c.recreateRecord(r)
	c.flush()
	return nil
}

// recreateRecord plans an orderly teardown that ends in a ghost slot
func (c *Controller) recreateRecord(r *record) {
	r.recreate = true
	r.c.ChangingConfigurations = true
	c.plan.leaving(r.c.ID, lifecycle.PlanTeardown(r.scheduled))
	r.scheduled = types.StateDestroyed
}
