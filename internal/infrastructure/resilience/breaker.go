package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen rejects calls while the breaker is open
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests rejects calls beyond the half-open trial budget
	ErrTooManyRequests = errors.New("too many requests")
)

// State is the position of a breaker
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

var stateNames = [...]string{
	StateClosed:   "closed",
	StateHalfOpen: "half-open",
	StateOpen:     "open",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown breaker state %q", text)
}

// Settings tunes a breaker. Zero values take the defaults applied by New.
type Settings struct {
	// MaxRequests is the number of trial calls allowed while half-open, and
	// the number of successes that close the breaker again
	MaxRequests uint32
	// Interval clears the counts periodically while closed
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing
	Timeout time.Duration
	// ReadyToTrip decides, after a failure while closed, whether to open
	ReadyToTrip func(counts Counts) bool
	// IsSuccessful classifies a call's error. The default treats nil and
	// caller cancellation as success.
	IsSuccessful func(err error) bool
	// OnStateChange runs with the breaker locked; it must not call back
	// into the breaker
	OnStateChange func(name string, from State, to State)
}

func (s *Settings) fill() {
	if s.MaxRequests == 0 {
		s.MaxRequests = 1
	}
	if s.Interval <= 0 {
		s.Interval = time.Minute
	}
	if s.Timeout <= 0 {
		s.Timeout = time.Minute
	}
	if s.ReadyToTrip == nil {
		s.ReadyToTrip = func(c Counts) bool { return c.ConsecutiveFailures > 5 }
	}
	if s.IsSuccessful == nil {
		s.IsSuccessful = func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		}
	}
}

// Counts are the call statistics of the current window
type Counts struct {
	Requests             uint32 `json:"requests"`
	TotalSuccesses       uint32 `json:"total_successes"`
	TotalFailures        uint32 `json:"total_failures"`
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`
	ConsecutiveFailures  uint32 `json:"consecutive_failures"`
}

func (c *Counts) success() {
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) failure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// Snapshot is a point-in-time view of a breaker
type Snapshot struct {
	Name   string `json:"name"`
	State  State  `json:"state"`
	Counts Counts `json:"counts"`
}

// Breaker stops calling a dependency that keeps failing. Every state
// change, and every closed-state interval, opens a new window with fresh
// counts; outcomes of calls admitted in an earlier window are ignored.
type Breaker struct {
	name     string
	settings Settings
	clock    func() time.Time

	mu       sync.Mutex
	phase    State
	window   uint64
	counts   Counts
	deadline time.Time
}

// New returns a closed breaker
func New(name string, settings Settings) *Breaker {
	return newBreaker(name, settings, time.Now)
}

func newBreaker(name string, settings Settings, clock func() time.Time) *Breaker {
	settings.fill()
	return &Breaker{
		name:     name,
		settings: settings,
		clock:    clock,
		phase:    StateClosed,
		deadline: clock().Add(settings.Interval),
	}
}

// Name returns the breaker name
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state, advancing it if a deadline has passed
func (b *Breaker) State() State {
	return b.Snapshot().State
}

// Counts returns the counts of the current window
func (b *Breaker) Counts() Counts {
	return b.Snapshot().Counts
}

// Snapshot returns the breaker's name, state and counts
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance(b.clock())
	return Snapshot{Name: b.name, State: b.phase, Counts: b.counts}
}

// Do runs fn if the breaker admits the call. A rejected call returns
// ErrCircuitOpen or ErrTooManyRequests wrapped with the breaker name, and
// fn is not invoked.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Call runs fn through the breaker and returns its value. A panic in fn
// counts as a failure and is re-raised.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	window, err := b.admit()
	if err != nil {
		return zero, fmt.Errorf("%s: %w", b.name, err)
	}

	settled := false
	defer func() {
		if !settled {
			b.settle(window, false)
		}
	}()

	v, err := fn(ctx)
	settled = true
	b.settle(window, b.settings.IsSuccessful(err))
	return v, err
}

// admit reserves a call in the current window
func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance(b.clock())
	switch {
	case b.phase == StateOpen:
		return b.window, ErrCircuitOpen
	case b.phase == StateHalfOpen && b.counts.Requests >= b.settings.MaxRequests:
		return b.window, ErrTooManyRequests
	}
	b.counts.Requests++
	return b.window, nil
}

// settle records the outcome of a call admitted in window
func (b *Breaker) settle(window uint64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock()
	b.advance(now)
	if window != b.window {
		return
	}

	if ok {
		b.counts.success()
		if b.phase == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.MaxRequests {
			b.moveTo(StateClosed, now)
		}
		return
	}

	switch b.phase {
	case StateClosed:
		b.counts.failure()
		if b.settings.ReadyToTrip(b.counts) {
			b.moveTo(StateOpen, now)
		}
	case StateHalfOpen:
		b.moveTo(StateOpen, now)
	}
}

// advance applies deadline-driven changes: a closed breaker starts a new
// window, an open one moves to half-open
func (b *Breaker) advance(now time.Time) {
	if b.deadline.IsZero() || !now.After(b.deadline) {
		return
	}
	switch b.phase {
	case StateClosed:
		b.rollWindow(now)
	case StateOpen:
		b.moveTo(StateHalfOpen, now)
	}
}

func (b *Breaker) moveTo(next State, now time.Time) {
	if b.phase == next {
		return
	}
	prev := b.phase
	b.phase = next
	b.rollWindow(now)

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, prev, next)
	}
}

func (b *Breaker) rollWindow(now time.Time) {
	b.window++
	b.counts = Counts{}

	switch b.phase {
	case StateClosed:
		b.deadline = now.Add(b.settings.Interval)
	case StateOpen:
		b.deadline = now.Add(b.settings.Timeout)
	default:
		// half-open waits for trial outcomes, not time
		b.deadline = time.Time{}
	}
}
