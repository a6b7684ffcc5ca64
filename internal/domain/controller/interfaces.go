package controller

import (
	"context"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/persistence"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// WindowManager is the compositor collaborator
type WindowManager interface {
	CreateWindow(ctx context.Context, cid id.ComponentID) (id.WindowID, error)
	DestroyWindow(ctx context.Context, w id.WindowID) error
	SetFocus(ctx context.Context, w id.WindowID, focused bool) error
}

// ViewTree is whatever the inflater produced; the controller only holds it
type ViewTree interface{}

// Inflater is the resource loader collaborator. It is called only during
// Created->Started.
type Inflater interface {
	Inflate(ctx context.Context, layout, theme string) (ViewTree, error)
}

// Supervisor is told about components that died in their own callbacks
type Supervisor interface {
	ComponentFailed(c types.Component, err error)
}

// SupervisorFunc adapts a function to Supervisor
type SupervisorFunc func(c types.Component, err error)

// ComponentFailed calls f
func (f SupervisorFunc) ComponentFailed(c types.Component, err error) {
	f(c, err)
}

// Event outcomes reported to Metrics
const (
	OutcomeApplied   = "applied"
	OutcomeDelivered = "delivered"
	OutcomeDropped   = "dropped"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Metrics receives controller telemetry
type Metrics interface {
	persistence.Recorder
	lifecycle.Observer

	EventProcessed(kind types.EventKind, outcome string)
	QueueDepth(n int)
	RankChanged(r types.Rank)
	Reclaimed(identity types.Identity)
	ComponentFailed(identity types.Identity, kind lifecycle.Kind)
}

type nopMetrics struct{}

func (nopMetrics) BlobCaptured(types.Identity, int) {}
func (nopMetrics) BlobRestored(types.Identity, string) {}
func (nopMetrics) StateChanged(*types.Component, types.State, types.State) {}
func (nopMetrics) EventProcessed(types.EventKind, string) {}
func (nopMetrics) QueueDepth(int) {}
func (nopMetrics) RankChanged(types.Rank) {}
func (nopMetrics) Reclaimed(types.Identity) {}
func (nopMetrics) ComponentFailed(types.Identity, lifecycle.Kind) {}
