package registry

import (
	"context"
	"fmt"
	"slices"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// LaunchMode controls record reuse on launch
type LaunchMode string

const (
	LaunchStandard  LaunchMode = "standard"
	LaunchSingleTop LaunchMode = "single_top"
)

// Callbacks are a component's own transition and delivery handlers. Any of
// them may be nil.
type Callbacks struct {
	OnTransition   func(ctx context.Context, t *lifecycle.Transition) error
	OnSaveState    func(ctx context.Context, c *types.Component) (types.Bundle, error)
	OnRestoreState func(ctx context.Context, c *types.Component, state types.Bundle) error
	OnResult       func(ctx context.Context, c *types.Component, result types.ResultPayload) error
	OnNewIntent    func(ctx context.Context, c *types.Component, req *types.Request) error
	OnConfigChange func(ctx context.Context, c *types.Component, change types.ConfigChange) error
}

// Definition describes one component class
type Definition struct {
	Identity      types.Identity `json:"identity" yaml:"-"`
	Class         string         `json:"-" yaml:"class"`
	Affinity      string         `json:"affinity,omitempty" yaml:"affinity"`
	LaunchMode    LaunchMode     `json:"launch_mode" yaml:"launch_mode"`
	NoHistory     bool           `json:"no_history,omitempty" yaml:"no_history"`
	Layout        string         `json:"layout,omitempty" yaml:"layout"`
	Theme         string         `json:"theme,omitempty" yaml:"theme"`
	HandlesConfig []string       `json:"handles_config,omitempty" yaml:"handles_config"`
	Source        string         `json:"source,omitempty" yaml:"-"`

	Callbacks Callbacks `json:"-" yaml:"-"`
}

// Validate checks a definition before registration
func (d *Definition) Validate() error {
	if d.Identity == "" {
		return fmt.Errorf("definition identity is required")
	}
	switch d.LaunchMode {
	case "":
		d.LaunchMode = LaunchStandard
	case LaunchStandard, LaunchSingleTop:
	default:
		return fmt.Errorf("definition %s: unknown launch mode %q", d.Identity, d.LaunchMode)
	}
	return nil
}

// ResolveAffinity returns the declared affinity or the identity's package
func (d *Definition) ResolveAffinity() string {
	if d.Affinity != "" {
		return d.Affinity
	}
	return d.Identity.Package()
}

// Handles reports whether the component absorbs every changed key itself
func (d *Definition) Handles(keys []string) bool {
	if len(keys) == 0 {
		return true
	}
	for _, k := range keys {
		if !slices.Contains(d.HandlesConfig, k) {
			return false
		}
	}
	return true
}
