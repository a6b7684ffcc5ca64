package lifecycle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// Transition is handed to every capability handler before a state is committed
type Transition struct {
	Component *types.Component
	From      types.State
	To        types.State
	Event     types.EventKind

	postpone bool
}

// PostponeNext asks the controller to hold this component's queue after the
// transition commits, until the postponement is released.
func (t *Transition) PostponeNext() {
	t.postpone = true
}

// Postponed reports whether a handler asked to hold the next transition
func (t *Transition) Postponed() bool {
	return t.postpone
}

// Entering reports whether the transition ends in state s
func (t *Transition) Entering(s types.State) bool {
	return t.To == s
}

// HandlerFunc runs as part of a transition. A non-nil error or a panic forces
// the component to Destroyed.
type HandlerFunc func(ctx context.Context, t *Transition) error

// Observer is notified after every committed transition
type Observer interface {
	StateChanged(c *types.Component, from, to types.State)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(c *types.Component, from, to types.State)

// StateChanged calls f
func (f ObserverFunc) StateChanged(c *types.Component, from, to types.State) {
	f(c, from, to)
}

type capability struct {
	name string
	fn   HandlerFunc
}

// Machine applies table transitions to component records and runs the
// registered capability handlers in registration order. It is not safe for
// concurrent use; the controller goroutine owns it.
type Machine struct {
	handlers  []capability
	observers []Observer
	logger    *zap.Logger
}

// NewMachine creates a state machine with no handlers
func NewMachine(logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{logger: logger}
}

// Register appends a capability handler
func (m *Machine) Register(name string, fn HandlerFunc) {
	m.handlers = append(m.handlers, capability{name: name, fn: fn})
}

// Capabilities lists registered handler names in invocation order
func (m *Machine) Capabilities() []string {
	names := make([]string, len(m.handlers))
	for i, h := range m.handlers {
		names[i] = h.name
	}
	return names
}

// Observe adds a committed-transition observer
func (m *Machine) Observe(o Observer) {
	m.observers = append(m.observers, o)
}

// Apply moves c along the edge selected by kind. Handlers run before the new
// state is committed. On handler failure the record is forced to Destroyed,
// observers see that transition, and a *HandlerFailure is returned.
func (m *Machine) Apply(ctx context.Context, c *types.Component, kind types.EventKind) (*Transition, error) {
	to, ok := Next(c.State, kind)
	if !ok {
		return nil, &InvalidTransitionError{Component: c.ID, From: c.State, Event: kind}
	}

	t := &Transition{Component: c, From: c.State, To: to, Event: kind}

	for _, h := range m.handlers {
		if err := m.invoke(ctx, h, t); err != nil {
			failure := &HandlerFailure{
				Component:  c.ID,
				Identity:   c.Identity,
				Capability: h.name,
				From:       t.From,
				To:         t.To,
				Err:        err,
			}
			m.ForceDestroy(c)
			return t, failure
		}
	}

	m.commit(c, to)
	return t, nil
}

// ForceDestroy moves a live record straight to Destroyed without running handlers
func (m *Machine) ForceDestroy(c *types.Component) {
	if c.State == types.StateDestroyed {
		return
	}
	m.commit(c, types.StateDestroyed)
}

func (m *Machine) commit(c *types.Component, to types.State) {
	from := c.State
	c.State = to
	for _, o := range m.observers {
		o.StateChanged(c, from, to)
	}
}

// invoke runs one handler, converting a panic into an error
func (m *Machine) invoke(ctx context.Context, h capability, t *Transition) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("transition handler panicked",
				zap.String("capability", h.name),
				zap.String("component", t.Component.ID.String()),
				zap.Any("panic", r),
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.fn(ctx, t)
}
