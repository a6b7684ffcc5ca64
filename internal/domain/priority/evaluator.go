package priority

import (
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// Service is hosted work that is not a visible component
type Service struct {
	Name       string `json:"name"`
	Foreground bool   `json:"foreground"`
}

// Snapshot is the controller state the evaluator reads
type Snapshot struct {
	Records map[id.ComponentID]*types.Component
	// Tasks in recency order, most recent first
	Tasks    []*types.Task
	Services []Service
}

// RecordRank returns the importance contributed by a single record
func RecordRank(c *types.Component) types.Rank {
	switch c.State {
	case types.StateResumed:
		return types.RankForeground
	case types.StateStarted, types.StatePaused:
		return types.RankVisible
	case types.StateCreated, types.StateStopped:
		return types.RankBackground
	default:
		return types.RankEmpty
	}
}

// ServiceRank returns the importance contributed by hosted work
func ServiceRank(s Service) types.Rank {
	if s.Foreground {
		return types.RankForegroundService
	}
	return types.RankService
}

// Rank returns the most important rank among hosted records and services.
// With nothing live the host is Empty.
func Rank(s Snapshot) types.Rank {
	best := types.RankEmpty
	for _, c := range s.Records {
		if r := RecordRank(c); r.MoreImportant(best) {
			best = r
			if best == types.RankForeground {
				return best
			}
		}
	}
	for _, svc := range s.Services {
		if r := ServiceRank(svc); r.MoreImportant(best) {
			best = r
		}
	}
	return best
}

// Candidates lists records that may be reclaimed under policy, least recently
// used first: tasks from least to most recent, each from the bottom of its
// stack upward. Finishing records are skipped.
func Candidates(s Snapshot, policy lifecycle.KillPolicy) []id.ComponentID {
	var out []id.ComponentID
	for i := len(s.Tasks) - 1; i >= 0; i-- {
		for _, cid := range s.Tasks[i].Stack {
			c, ok := s.Records[cid]
			if !ok || c.Finishing {
				continue
			}
			if lifecycle.Killable(c.State, policy) {
				out = append(out, cid)
			}
		}
	}
	return out
}

// Breakdown counts live records by rank for stats and metrics
func Breakdown(s Snapshot) map[types.Rank]int {
	out := make(map[types.Rank]int)
	for _, c := range s.Records {
		if c.State.Live() {
			out[RecordRank(c)]++
		}
	}
	for _, svc := range s.Services {
		out[ServiceRank(svc)]++
	}
	return out
}
