package types

import "github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"

// EventKind identifies a queued lifecycle event
type EventKind int

const (
	EventStart EventKind = iota
	EventResume
	EventPause
	EventStop
	EventDestroy
	EventDeliverResult
	EventDeliverNewIntent
	EventConfigChange
	EventLaunch
)

var eventNames = [...]string{
	EventStart:            "start",
	EventResume:           "resume",
	EventPause:            "pause",
	EventStop:             "stop",
	EventDestroy:          "destroy",
	EventDeliverResult:    "deliver_result",
	EventDeliverNewIntent: "deliver_new_intent",
	EventConfigChange:     "config_change",
	EventLaunch:           "launch",
}

// String returns the string representation of the event kind
func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[k]
}

// IsTransition reports whether the event moves the record along a lifecycle edge
func (k EventKind) IsTransition() bool {
	return k <= EventDestroy
}

// Event is one entry in the lifecycle event queue
type Event struct {
	Seq     uint64         `json:"seq"`
	Target  id.ComponentID `json:"target"`
	Kind    EventKind      `json:"kind"`
	Payload interface{}    `json:"payload,omitempty"`
}

// ResultPayload is carried by EventDeliverResult
type ResultPayload struct {
	From        id.ComponentID `json:"from"`
	RequestCode int            `json:"request_code"`
	ResultCode  int            `json:"result_code"`
	Data        Bundle         `json:"data,omitempty"`
}

// ConfigChange is carried by EventConfigChange
type ConfigChange struct {
	Keys   []string `json:"keys"`
	Values Bundle   `json:"values,omitempty"`
}
