package lifecycle

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

var (
	ErrInvalidTransition        = errors.New("invalid lifecycle transition")
	ErrStaleTarget              = errors.New("delivery target no longer exists")
	ErrTransitionHandlerFailure = errors.New("transition handler failed")
	ErrRestoreBlobCorrupt       = errors.New("saved state blob is corrupt")
)

// Kind is the log-facing name of an error kind
type Kind string

const (
	KindNone                     Kind = ""
	KindInvalidTransition        Kind = "invalid_transition"
	KindStaleTarget              Kind = "stale_target"
	KindTransitionHandlerFailure Kind = "transition_handler_failure"
	KindRestoreBlobCorrupt       Kind = "restore_blob_corrupt"
	KindUnknown                  Kind = "unknown"
)

// KindOf classifies err
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrTransitionHandlerFailure):
		return KindTransitionHandlerFailure
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrStaleTarget):
		return KindStaleTarget
	case errors.Is(err, ErrRestoreBlobCorrupt):
		return KindRestoreBlobCorrupt
	default:
		return KindUnknown
	}
}

// InvalidTransitionError names the rejected edge
type InvalidTransitionError struct {
	Component id.ComponentID
	From      types.State
	Event     types.EventKind
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("component %s: no %s transition from %s", e.Component, e.Event, e.From)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// HandlerFailure reports a capability handler that failed or panicked. The
// record has already been forced to Destroyed when this is returned.
type HandlerFailure struct {
	Component  id.ComponentID
	Identity   types.Identity
	Capability string
	From       types.State
	To         types.State
	Err        error
}

func (e *HandlerFailure) Error() string {
	return fmt.Sprintf("component %s (%s): %s handler failed on %s->%s: %v",
		e.Component, e.Identity, e.Capability, e.From, e.To, e.Err)
}

func (e *HandlerFailure) Unwrap() []error {
	return []error{ErrTransitionHandlerFailure, e.Err}
}
