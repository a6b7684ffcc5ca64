package controller

import (
	"errors"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/registry"
)

var (
	ErrComponentNotFound = errors.New("component not found")
	ErrTaskNotFound      = errors.New("task not found")
	ErrResultPending     = errors.New("caller still owes a result")
	ErrNotKillable       = errors.New("component is not killable in its current state")
	ErrLoopStopped       = errors.New("controller loop stopped")

	// ErrUnknownComponent is returned when definitions are required and the
	// identity has none
	ErrUnknownComponent = registry.ErrUnknownComponent
)
