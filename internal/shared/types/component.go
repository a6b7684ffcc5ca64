package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"
)

// State represents component lifecycle states
type State int

const (
	StateCreated State = iota
	StateStarted
	StateResumed
	StatePaused
	StateStopped
	StateDestroyed
)

var stateNames = [...]string{
	StateCreated:   "created",
	StateStarted:   "started",
	StateResumed:   "resumed",
	StatePaused:    "paused",
	StateStopped:   "stopped",
	StateDestroyed: "destroyed",
}

// String returns the string representation of the state
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseState converts a state name back to a State
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return StateDestroyed, fmt.Errorf("unknown state %q", name)
}

// Live reports whether the state is not terminal
func (s State) Live() bool {
	return s != StateDestroyed
}

// Identity names a component class: "package/Class"
type Identity string

// Package returns the package part of the identity, used as the default affinity
func (i Identity) Package() string {
	pkg, _, found := strings.Cut(string(i), "/")
	if !found {
		return string(i)
	}
	return pkg
}

// Bundle is an opaque key-value blob owned by a component
type Bundle map[string]interface{}

// Clone returns a shallow copy of the bundle
func (b Bundle) Clone() Bundle {
	if b == nil {
		return nil
	}
	out := make(Bundle, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Standard result codes
const (
	ResultCanceled  = 0
	ResultOK        = -1
	ResultFirstUser = 1
)

// ResultTarget points at the record waiting for this record's result
type ResultTarget struct {
	ID          id.ComponentID `json:"id"`
	RequestCode int            `json:"request_code"`
}

// Result is the outcome a component hands back to its caller
type Result struct {
	Code int    `json:"code"`
	Data Bundle `json:"data,omitempty"`
}

// Component is one instantiated component record
type Component struct {
	ID       id.ComponentID `json:"id"`
	Identity Identity       `json:"identity"`
	Affinity string         `json:"affinity"`
	State    State          `json:"state"`

	// Data is the component's own observable instance state
	Data Bundle `json:"data,omitempty"`

	// SavedState is populated only while a captured blob is held
	SavedState Bundle `json:"saved_state,omitempty"`

	// Intent is replaced, never copied, on new-intent delivery
	Intent *Request `json:"intent,omitempty"`

	ResultTarget  *ResultTarget `json:"result_target,omitempty"`
	PendingResult *Result       `json:"pending_result,omitempty"`

	TaskID   id.TaskID `json:"task_id"`
	Position int       `json:"position"`

	Finishing              bool `json:"finishing"`
	ChangingConfigurations bool `json:"changing_configurations"`
	NoHistory              bool `json:"no_history,omitempty"`

	Window    id.WindowID `json:"window_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Snapshot returns a copy safe to hand outside the controller goroutine
func (c *Component) Snapshot() Component {
	cp := *c
	cp.Data = c.Data.Clone()
	cp.SavedState = c.SavedState.Clone()
	if c.ResultTarget != nil {
		rt := *c.ResultTarget
		cp.ResultTarget = &rt
	}
	if c.PendingResult != nil {
		pr := *c.PendingResult
		cp.PendingResult = &pr
	}
	return cp
}
