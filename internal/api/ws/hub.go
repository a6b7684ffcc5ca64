package ws

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// Message is one frame sent to subscribers
type Message struct {
	Type      string         `json:"type"`
	Component id.ComponentID `json:"component,omitempty"`
	Identity  types.Identity `json:"identity,omitempty"`
	Task      id.TaskID      `json:"task,omitempty"`
	Position  int            `json:"position"`
	From      string         `json:"from,omitempty"`
	To        string         `json:"to,omitempty"`
	Finishing bool           `json:"finishing,omitempty"`
	Kind      string         `json:"kind,omitempty"`
	Message   string         `json:"message,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// Filter narrows the frames a subscriber receives. Empty fields match all.
type Filter struct {
	Identity types.Identity `json:"identity,omitempty"`
	Task     id.TaskID      `json:"task,omitempty"`
}

func (f Filter) match(m *Message) bool {
	if f.Identity != "" && f.Identity != m.Identity {
		return false
	}
	if f.Task != "" && f.Task != m.Task {
		return false
	}
	return true
}

// Subscriber is one stream consumer
type Subscriber struct {
	ID   string
	send chan []byte

	mu      sync.Mutex
	filter  Filter
	dropped int
}

// SetFilter replaces the subscriber's filter
func (s *Subscriber) SetFilter(f Filter) {
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
}

// Dropped returns the number of frames lost because the subscriber lagged
func (s *Subscriber) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Frames returns the subscriber's outbound channel. It is closed on
// Unsubscribe.
func (s *Subscriber) Frames() <-chan []byte {
	return s.send
}

// offer queues a frame without blocking
func (s *Subscriber) offer(m *Message, frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.filter.match(m) {
		return
	}
	select {
	case s.send <- frame:
	default:
		s.dropped++
	}
}

// Hub fans committed transitions and component failures out to
// subscribers. Publishing never blocks the controller goroutine; a
// subscriber whose buffer is full loses frames.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscriber
	buffer int
	logger *zap.Logger
}

// NewHub creates a hub whose subscribers buffer up to buffer frames
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer < 1 {
		buffer = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[string]*Subscriber),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a new subscriber
func (h *Hub) Subscribe(f Filter) *Subscriber {
	s := &Subscriber{
		ID:     uuid.NewString(),
		send:   make(chan []byte, h.buffer),
		filter: f,
	}

	h.mu.Lock()
	h.subs[s.ID] = s
	h.mu.Unlock()
	return s
}

// Unsubscribe removes a subscriber and closes its channel
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	_, ok := h.subs[s.ID]
	delete(h.subs, s.ID)
	h.mu.Unlock()

	if ok {
		close(s.send)
	}
}

// Len returns the number of subscribers
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// StateChanged implements lifecycle.Observer
func (h *Hub) StateChanged(c *types.Component, from, to types.State) {
	h.publish(&Message{
		Type:      "transition",
		Component: c.ID,
		Identity:  c.Identity,
		Task:      c.TaskID,
		Position:  c.Position,
		From:      from.String(),
		To:        to.String(),
		Finishing: c.Finishing,
		Timestamp: time.Now().UnixMilli(),
	})
}

// ComponentFailed implements controller.Supervisor
func (h *Hub) ComponentFailed(c types.Component, err error) {
	h.publish(&Message{
		Type:      "component_failed",
		Component: c.ID,
		Identity:  c.Identity,
		Task:      c.TaskID,
		Position:  c.Position,
		Kind:      string(lifecycle.KindOf(err)),
		Message:   err.Error(),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (h *Hub) publish(m *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.subs) == 0 {
		return
	}

	frame, err := sonic.Marshal(m)
	if err != nil {
		h.logger.Error("Failed to encode stream frame", zap.Error(err))
		return
	}
	for _, s := range h.subs {
		s.offer(m, frame)
	}
}
