package controller

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/priority"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// Reclaim destroys a killable record without finishing it. Its slot is kept
// and the record is recreated from its saved state when it is next shown.
func (c *Controller) Reclaim(ctx context.Context, cid id.ComponentID) error {
	r := c.live(cid)
	if r == nil {
		return fmt.Errorf("reclaim: %w: %s", ErrComponentNotFound, cid)
	}
	if r.c.Finishing || r.scheduled != r.c.State || !lifecycle.Killable(r.c.State, c.policy.KillPolicy) {
		return fmt.Errorf("reclaim %s in state %s: %w", cid, r.c.State, ErrNotKillable)
	}

	identity := r.c.Identity
	// stopped records were captured on the way down; paused ones were not
	if r.c.State == types.StatePaused {
		if _, err := c.bridge.Capture(ctx, r.c); err != nil {
			c.logger.Warn("Capture before reclaim failed",
				zap.String("component", cid.String()),
				zap.Error(err),
			)
		}
	}
	r.recreate = true
	r.scheduled = types.StateDestroyed
	c.applyTransition(ctx, r, types.EventDestroy)

	c.metrics.Reclaimed(identity)
	c.refreshRank()
	c.logger.Info("Component reclaimed",
		zap.String("component", cid.String()),
		zap.String("identity", string(identity)),
	)
	return nil
}

// TrimMemory reclaims up to n records, least recently used first. It
// returns the ids that were reclaimed.
func (c *Controller) TrimMemory(ctx context.Context, n int) []id.ComponentID {
	var out []id.ComponentID
	for _, cid := range priority.Candidates(c.snapshot(), c.policy.KillPolicy) {
		if len(out) >= n {
			break
		}
		if err := c.Reclaim(ctx, cid); err != nil {
			continue
		}
		out = append(out, cid)
	}
	return out
}
