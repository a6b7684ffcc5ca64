package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(settings Settings) (*Breaker, *clock) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	return newBreaker("test", settings, c.now), c
}

func succeed(context.Context) error { return nil }
func fail(context.Context) error    { return errBackend }

func tripAfter(n uint32) func(Counts) bool {
	return func(c Counts) bool { return c.ConsecutiveFailures >= n }
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		calls    []func(context.Context) error
		advance  time.Duration
		want     State
	}{
		{
			name:     "stays closed on successes",
			settings: Settings{Timeout: time.Minute},
			calls:    []func(context.Context) error{succeed, succeed, succeed},
			want:     StateClosed,
		},
		{
			name:     "opens after consecutive failures",
			settings: Settings{Timeout: time.Minute, ReadyToTrip: tripAfter(3)},
			calls:    []func(context.Context) error{fail, fail, fail},
			want:     StateOpen,
		},
		{
			name:     "success resets the failure streak",
			settings: Settings{Timeout: time.Minute, ReadyToTrip: tripAfter(2)},
			calls:    []func(context.Context) error{fail, succeed, fail},
			want:     StateClosed,
		},
		{
			name:     "half-open after timeout",
			settings: Settings{Timeout: 10 * time.Second, ReadyToTrip: tripAfter(2)},
			calls:    []func(context.Context) error{fail, fail},
			advance:  11 * time.Second,
			want:     StateHalfOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, c := newTestBreaker(tt.settings)
			for _, fn := range tt.calls {
				_ = b.Do(context.Background(), fn)
			}
			c.advance(tt.advance)
			assert.Equal(t, tt.want, b.State())
		})
	}
}

func TestBreakerCounts(t *testing.T) {
	b, _ := newTestBreaker(Settings{})
	ctx := context.Background()

	require.NoError(t, b.Do(ctx, succeed))
	counts := b.Counts()
	assert.Equal(t, uint32(1), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalSuccesses)
	assert.Equal(t, uint32(1), counts.ConsecutiveSuccesses)

	assert.ErrorIs(t, b.Do(ctx, fail), errBackend)
	counts = b.Counts()
	assert.Equal(t, uint32(2), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalFailures)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
	assert.Zero(t, counts.ConsecutiveSuccesses)
}

func TestBreakerIntervalClearsCounts(t *testing.T) {
	b, c := newTestBreaker(Settings{Interval: time.Minute, ReadyToTrip: tripAfter(2)})
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	c.advance(2 * time.Minute)
	_ = b.Do(ctx, fail)

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(1), b.Counts().ConsecutiveFailures)
}

func TestBreakerOpenRejectsWithoutCalling(t *testing.T) {
	b, _ := newTestBreaker(Settings{Timeout: time.Minute, ReadyToTrip: tripAfter(2)})
	ctx := context.Background()
	_ = b.Do(ctx, fail)
	_ = b.Do(ctx, fail)

	called := false
	err := b.Do(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Contains(t, err.Error(), "test")
	assert.False(t, called)
}

func TestBreakerHalfOpenState(t *testing.T) {
	b, c := newTestBreaker(Settings{MaxRequests: 2, Timeout: time.Second, ReadyToTrip: tripAfter(2)})
	ctx := context.Background()
	_ = b.Do(ctx, fail)
	_ = b.Do(ctx, fail)

	c.advance(2 * time.Second)
	require.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Do(ctx, succeed))
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Do(ctx, succeed))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenLimitsTrialCalls(t *testing.T) {
	b, c := newTestBreaker(Settings{MaxRequests: 1, Timeout: time.Second, ReadyToTrip: tripAfter(1)})
	ctx := context.Background()
	_ = b.Do(ctx, fail)
	c.advance(2 * time.Second)

	// the first trial call is still running when the second arrives
	err := b.Do(ctx, func(ctx context.Context) error {
		assert.ErrorIs(t, b.Do(ctx, succeed), ErrTooManyRequests)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b, c := newTestBreaker(Settings{Timeout: time.Second, ReadyToTrip: tripAfter(1)})
	ctx := context.Background()
	_ = b.Do(ctx, fail)
	c.advance(2 * time.Second)

	_ = b.Do(ctx, fail)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	b, _ := newTestBreaker(Settings{ReadyToTrip: tripAfter(1)})

	err := b.Do(context.Background(), func(context.Context) error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, b.State())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err = b.Do(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Zero(t, b.Counts().Requests)
}

func TestBreakerCustomSuccess(t *testing.T) {
	notFound := errors.New("not found")
	b, _ := newTestBreaker(Settings{
		ReadyToTrip:  tripAfter(1),
		IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, notFound) },
	})

	err := b.Do(context.Background(), func(context.Context) error { return notFound })
	assert.ErrorIs(t, err, notFound)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	b, _ := newTestBreaker(Settings{ReadyToTrip: tripAfter(1)})

	assert.Panics(t, func() {
		_ = b.Do(context.Background(), func(context.Context) error { panic("boom") })
	})
	assert.Equal(t, StateOpen, b.State())
}

func TestCallReturnsValue(t *testing.T) {
	b, _ := newTestBreaker(Settings{})

	v, err := Call(context.Background(), b, func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestBreakerCallbacks(t *testing.T) {
	var transitions []string
	b, c := newTestBreaker(Settings{
		Timeout:     time.Second,
		ReadyToTrip: tripAfter(2),
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	_ = b.Do(ctx, fail)
	c.advance(2 * time.Second)
	_ = b.Do(ctx, succeed)

	assert.Equal(t, []string{
		"test:closed->open",
		"test:open->half-open",
		"test:half-open->closed",
	}, transitions)
}

func TestSnapshotJSON(t *testing.T) {
	b, _ := newTestBreaker(Settings{})
	_ = b.Do(context.Background(), fail)

	data, err := json.Marshal(b.Snapshot())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "test",
		"state": "closed",
		"counts": {
			"requests": 1,
			"total_successes": 0,
			"total_failures": 1,
			"consecutive_successes": 0,
			"consecutive_failures": 1
		}
	}`, string(data))
}

func TestStateText(t *testing.T) {
	for _, s := range []State{StateClosed, StateHalfOpen, StateOpen} {
		text, err := s.MarshalText()
		require.NoError(t, err)
		var back State
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}
	var s State
	assert.Error(t, s.UnmarshalText([]byte("ajar")))
}
