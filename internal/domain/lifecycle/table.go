package lifecycle

import (
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// edges is the complete transition table. Anything not listed is invalid.
var edges = map[types.State]map[types.EventKind]types.State{
	types.StateCreated: {
		types.EventStart:   types.StateStarted,
		types.EventDestroy: types.StateDestroyed,
	},
	types.StateStarted: {
		types.EventResume:  types.StateResumed,
		types.EventDestroy: types.StateDestroyed,
	},
	types.StateResumed: {
		types.EventPause:   types.StatePaused,
		types.EventDestroy: types.StateDestroyed,
	},
	types.StatePaused: {
		types.EventResume:  types.StateResumed,
		types.EventStop:    types.StateStopped,
		types.EventDestroy: types.StateDestroyed,
	},
	types.StateStopped: {
		types.EventStart:   types.StateStarted,
		types.EventDestroy: types.StateDestroyed,
	},
}

// Next returns the state reached from `from` by event kind
func Next(from types.State, kind types.EventKind) (types.State, bool) {
	to, ok := edges[from][kind]
	return to, ok
}

// CanTransition reports whether a single edge joins from and to
func CanTransition(from, to types.State) bool {
	for _, target := range edges[from] {
		if target == to {
			return true
		}
	}
	return false
}

// ValidSequence reports whether states is a walk along table edges
// starting at Created
func ValidSequence(states []types.State) bool {
	if len(states) == 0 {
		return true
	}
	if states[0] != types.StateCreated {
		return false
	}
	for i := 1; i < len(states); i++ {
		if !CanTransition(states[i-1], states[i]) {
			return false
		}
	}
	return true
}

// planOrder fixes the order in which outgoing edges are explored so plans are
// deterministic. Destroy is never taken unless it is the goal.
var planOrder = []types.EventKind{
	types.EventStart,
	types.EventResume,
	types.EventPause,
	types.EventStop,
}

// Plan returns the shortest event sequence that walks from `from` to `to`
// without passing through Destroyed. Reaching Destroyed is always a single
// destroy event from any live state.
func Plan(from, to types.State) ([]types.EventKind, bool) {
	if from == to {
		return nil, true
	}
	if from == types.StateDestroyed {
		return nil, false
	}
	if to == types.StateDestroyed {
		return []types.EventKind{types.EventDestroy}, true
	}

	type step struct {
		state types.State
		path  []types.EventKind
	}
	seen := map[types.State]bool{from: true}
	queue := []step{{state: from}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, kind := range planOrder {
			next, ok := edges[cur.state][kind]
			if !ok || seen[next] {
				continue
			}
			path := append(append([]types.EventKind(nil), cur.path...), kind)
			if next == to {
				return path, true
			}
			seen[next] = true
			queue = append(queue, step{state: next, path: path})
		}
	}
	return nil, false
}

// PlanTeardown returns the orderly finish sequence: a resumed record is
// paused and stopped before it is destroyed so its state is captured and its
// focus released in order.
func PlanTeardown(from types.State) []types.EventKind {
	switch from {
	case types.StateResumed:
		return []types.EventKind{types.EventPause, types.EventStop, types.EventDestroy}
	case types.StatePaused:
		return []types.EventKind{types.EventStop, types.EventDestroy}
	case types.StateDestroyed:
		return nil
	default:
		return []types.EventKind{types.EventDestroy}
	}
}

// Project applies a sequence of events to a state without side effects
func Project(from types.State, kinds []types.EventKind) (types.State, bool) {
	cur := from
	for _, k := range kinds {
		next, ok := Next(cur, k)
		if !ok {
			return cur, false
		}
		cur = next
	}
	return cur, true
}

// KillPolicy decides which states may be reclaimed asynchronously
type KillPolicy int

const (
	// KillAfterStop allows reclaiming only stopped records
	KillAfterStop KillPolicy = iota
	// KillAfterPause is the legacy policy that also allows paused records
	KillAfterPause
)

// ParseKillPolicy maps a config string to a policy
func ParseKillPolicy(s string) KillPolicy {
	if s == "pause" || s == "legacy" {
		return KillAfterPause
	}
	return KillAfterStop
}

// Killable reports whether a record in state s may be reclaimed under policy p
func Killable(s types.State, p KillPolicy) bool {
	switch s {
	case types.StateStopped:
		return true
	case types.StatePaused:
		return p == KillAfterPause
	default:
		return false
	}
}
