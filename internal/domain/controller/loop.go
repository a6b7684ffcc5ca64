package controller

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// job is one unit of work run on the controller goroutine
type job struct {
	ctx   context.Context
	fn    func(ctx context.Context, ctrl *Controller) error
	reply chan error
}

// Loop serializes every access to a Controller onto one goroutine. Callers
// submit closures with Do or Post; after each closure the queued events are
// drained before the reply is sent.
type Loop struct {
	ctrl *Controller
	jobs chan job
	done chan struct{}
}

// NewLoop creates a loop with a job buffer of the given size
func NewLoop(ctrl *Controller, buffer int) *Loop {
	if buffer < 0 {
		buffer = 0
	}
	return &Loop{
		ctrl: ctrl,
		jobs: make(chan job, buffer),
		done: make(chan struct{}),
	}
}

// Run processes jobs until ctx is cancelled
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case j := <-l.jobs:
			err := l.run(j)
			if j.reply != nil {
				j.reply <- err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Loop) run(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.ctrl.logger.Error("Controller job panicked", zap.Any("panic", r))
			err = fmt.Errorf("controller job panicked: %v", r)
		}
	}()

	err = j.fn(j.ctx, l.ctrl)
	l.ctrl.Drain(j.ctx)
	return err
}

// Do runs fn on the controller goroutine and waits for it and the drain that
// follows it
func (l *Loop) Do(ctx context.Context, fn func(ctx context.Context, ctrl *Controller) error) error {
	if l.stopped() {
		return ErrLoopStopped
	}
	reply := make(chan error, 1)
	select {
	case l.jobs <- job{ctx: ctx, fn: fn, reply: reply}:
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post queues fn without waiting for it
func (l *Loop) Post(fn func(ctx context.Context, ctrl *Controller) error) error {
	if l.stopped() {
		return ErrLoopStopped
	}
	select {
	case l.jobs <- job{ctx: context.Background(), fn: fn}:
		return nil
	case <-l.done:
		return ErrLoopStopped
	}
}

func (l *Loop) stopped() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Controller returns the controller driven by the loop. Only
// QueryForegroundPriority may be called on it from other goroutines.
func (l *Loop) Controller() *Controller {
	return l.ctrl
}

// Call runs fn on the loop and returns its value
func Call[T any](ctx context.Context, l *Loop, fn func(ctx context.Context, ctrl *Controller) (T, error)) (T, error) {
	var out T
	err := l.Do(ctx, func(ctx context.Context, ctrl *Controller) error {
		v, err := fn(ctx, ctrl)
		out = v
		return err
	})
	return out, err
}
