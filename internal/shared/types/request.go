package types

import (
	"strings"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"
)

// LaunchFlags modify how a launch request resolves its task and record
type LaunchFlags uint32

const (
	// FlagNewTask starts the component in the most recent task with a matching
	// affinity, or a new task when none exists
	FlagNewTask LaunchFlags = 1 << iota
	// FlagMultipleTask with FlagNewTask always creates a new task
	FlagMultipleTask
	// FlagSingleTop reuses the foreground-most record when it has the same identity
	FlagSingleTop
	// FlagClearTop finishes every record above an existing instance
	FlagClearTop
	// FlagClearTask empties the resolved task before pushing
	FlagClearTask
	// FlagReorderToFront moves an existing instance to the top of its task
	FlagReorderToFront
	// FlagNoHistory finishes the record as soon as it is stopped
	FlagNoHistory
)

var flagNames = []struct {
	flag LaunchFlags
	name string
}{
	{FlagNewTask, "new_task"},
	{FlagMultipleTask, "multiple_task"},
	{FlagSingleTop, "single_top"},
	{FlagClearTop, "clear_top"},
	{FlagClearTask, "clear_task"},
	{FlagReorderToFront, "reorder_to_front"},
	{FlagNoHistory, "no_history"},
}

// Has reports whether all bits of flag are set
func (f LaunchFlags) Has(flag LaunchFlags) bool {
	return f&flag == flag
}

// String lists the set flags joined by '|'
func (f LaunchFlags) String() string {
	var names []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// ParseLaunchFlags converts flag names (as produced by String) into LaunchFlags.
// Unknown names are reported through the second return value.
func ParseLaunchFlags(names []string) (LaunchFlags, []string) {
	var flags LaunchFlags
	var unknown []string
outer:
	for _, name := range names {
		for _, fn := range flagNames {
			if fn.name == name {
				flags |= fn.flag
				continue outer
			}
		}
		unknown = append(unknown, name)
	}
	return flags, unknown
}

// Request describes what to launch
type Request struct {
	Identity Identity `json:"identity" binding:"required"`
	Action   string   `json:"action,omitempty"`
	Affinity string   `json:"affinity,omitempty"`
	Extras   Bundle   `json:"extras,omitempty"`
}

// LaunchOptions carry the caller context of a launch
type LaunchOptions struct {
	Flags        LaunchFlags
	CallerTaskID id.TaskID
	CallerID     id.ComponentID

	// RequestCode routes a result back to CallerID. Nil or negative means
	// fire-and-forget.
	RequestCode *int
}

// WantsResult reports whether the launch records a result target
func (o LaunchOptions) WantsResult() bool {
	return o.RequestCode != nil && *o.RequestCode >= 0 && o.CallerID != ""
}

// RequestCode is a convenience for building LaunchOptions
func RequestCode(code int) *int {
	return &code
}
