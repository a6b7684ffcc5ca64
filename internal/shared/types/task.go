package types

import (
	"time"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"
)

// Task is an ordered stack of component records; the last entry is foreground-most
type Task struct {
	ID           id.TaskID        `json:"id"`
	Affinity     string           `json:"affinity"`
	Stack        []id.ComponentID `json:"stack"`
	CreatedAt    time.Time        `json:"created_at"`
	LastActiveAt time.Time        `json:"last_active_at"`
}

// Top returns the foreground-most record id of the task
func (t *Task) Top() (id.ComponentID, bool) {
	if len(t.Stack) == 0 {
		return "", false
	}
	return t.Stack[len(t.Stack)-1], true
}

// IndexOf returns the stack position of cid, or -1
func (t *Task) IndexOf(cid id.ComponentID) int {
	for i, s := range t.Stack {
		if s == cid {
			return i
		}
	}
	return -1
}

// Snapshot returns a deep copy of the task
func (t *Task) Snapshot() Task {
	cp := *t
	cp.Stack = append([]id.ComponentID(nil), t.Stack...)
	return cp
}

// Stats contains controller statistics
type Stats struct {
	TotalComponents int            `json:"total_components"`
	ByState         map[string]int `json:"by_state"`
	Tasks           int            `json:"tasks"`
	QueueDepth      int            `json:"queue_depth"`
	Postponed       int            `json:"postponed"`
	ForegroundTask  *id.TaskID     `json:"foreground_task,omitempty"`
	Priority        Rank           `json:"priority"`
}
