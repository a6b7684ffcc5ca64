package registry

import (
	"context"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// Dispatcher routes lifecycle callbacks to each component's definition. A
// component with no callback for a concern gets the default behavior: its
// Data bundle is what gets saved and restored.
type Dispatcher struct {
	manager *Manager
}

// NewDispatcher creates a dispatcher over manager
func NewDispatcher(manager *Manager) *Dispatcher {
	return &Dispatcher{manager: manager}
}

func (d *Dispatcher) callbacks(c *types.Component) Callbacks {
	if def, ok := d.manager.Get(c.Identity); ok {
		return def.Callbacks
	}
	return Callbacks{}
}

// Handle is registered on the state machine as the component capability
func (d *Dispatcher) Handle(ctx context.Context, t *lifecycle.Transition) error {
	if cb := d.callbacks(t.Component).OnTransition; cb != nil {
		return cb(ctx, t)
	}
	return nil
}

// SaveState implements persistence.StateOwner
func (d *Dispatcher) SaveState(ctx context.Context, c *types.Component) (types.Bundle, error) {
	if cb := d.callbacks(c).OnSaveState; cb != nil {
		return cb(ctx, c)
	}
	return c.Data.Clone(), nil
}

// RestoreState implements persistence.StateOwner
func (d *Dispatcher) RestoreState(ctx context.Context, c *types.Component, state types.Bundle) error {
	if cb := d.callbacks(c).OnRestoreState; cb != nil {
		return cb(ctx, c, state)
	}
	c.Data = state
	return nil
}

// DeliverResult hands a result to the waiting component
func (d *Dispatcher) DeliverResult(ctx context.Context, c *types.Component, result types.ResultPayload) error {
	if cb := d.callbacks(c).OnResult; cb != nil {
		return cb(ctx, c, result)
	}
	return nil
}

// DeliverNewIntent hands a replacement request to the component
func (d *Dispatcher) DeliverNewIntent(ctx context.Context, c *types.Component, req *types.Request) error {
	if cb := d.callbacks(c).OnNewIntent; cb != nil {
		return cb(ctx, c, req)
	}
	return nil
}

// ConfigChanged hands an absorbed configuration change to the component
func (d *Dispatcher) ConfigChanged(ctx context.Context, c *types.Component, change types.ConfigChange) error {
	if cb := d.callbacks(c).OnConfigChange; cb != nil {
		return cb(ctx, c, change)
	}
	return nil
}
