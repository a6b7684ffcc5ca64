package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name string
		from types.State
		to   types.State
		want []types.EventKind
		ok   bool
	}{
		{"same state", types.StateResumed, types.StateResumed, nil, true},
		{"cold start", types.StateCreated, types.StateResumed,
			[]types.EventKind{types.EventStart, types.EventResume}, true},
		{"restart", types.StateStopped, types.StateResumed,
			[]types.EventKind{types.EventStart, types.EventResume}, true},
		{"background", types.StateResumed, types.StateStopped,
			[]types.EventKind{types.EventPause, types.EventStop}, true},
		{"started to stopped goes through resumed", types.StateStarted, types.StateStopped,
			[]types.EventKind{types.EventResume, types.EventPause, types.EventStop}, true},
		{"destroy is direct", types.StateStarted, types.StateDestroyed,
			[]types.EventKind{types.EventDestroy}, true},
		{"nothing leaves destroyed", types.StateDestroyed, types.StateCreated, nil, false},
		{"nothing returns to created", types.StateStopped, types.StateCreated, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Plan(tt.from, tt.to)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)

			if ok {
				end, valid := Project(tt.from, got)
				assert.True(t, valid)
				assert.Equal(t, tt.to, end)
			}
		})
	}
}

func TestPlanTeardown(t *testing.T) {
	assert.Equal(t, []types.EventKind{types.EventPause, types.EventStop, types.EventDestroy},
		PlanTeardown(types.StateResumed))
	assert.Equal(t, []types.EventKind{types.EventStop, types.EventDestroy},
		PlanTeardown(types.StatePaused))
	assert.Equal(t, []types.EventKind{types.EventDestroy}, PlanTeardown(types.StateStopped))
	assert.Equal(t, []types.EventKind{types.EventDestroy}, PlanTeardown(types.StateCreated))
	assert.Nil(t, PlanTeardown(types.StateDestroyed))
}

func TestValidSequence(t *testing.T) {
	assert.True(t, ValidSequence([]types.State{types.StateCreated, types.StateStarted, types.StateResumed}))
	assert.False(t, ValidSequence([]types.State{types.StateCreated, types.StateResumed}))
	assert.False(t, ValidSequence([]types.State{types.StateStarted}))
	assert.True(t, ValidSequence(nil))
}

func TestKillable(t *testing.T) {
	assert.True(t, Killable(types.StateStopped, KillAfterStop))
	assert.False(t, Killable(types.StatePaused, KillAfterStop))
	assert.True(t, Killable(types.StatePaused, KillAfterPause))
	assert.False(t, Killable(types.StateResumed, KillAfterPause))
	assert.False(t, Killable(types.StateDestroyed, KillAfterPause))

	assert.Equal(t, KillAfterPause, ParseKillPolicy("legacy"))
	assert.Equal(t, KillAfterStop, ParseKillPolicy("stop"))
	assert.Equal(t, KillAfterStop, ParseKillPolicy(""))
}
