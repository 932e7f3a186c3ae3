package router

import (
	"context"
	"errors"
)

// ErrLoopStopped is returned by Do once the loop has exited.
var ErrLoopStopped = errors.New("router loop stopped")

type task struct {
	ctx  context.Context
	fn   func(context.Context)
	done chan struct{}
}

// Loop executes submitted functions one at a time on a single goroutine.
type Loop struct {
	tasks   chan task
	stopped chan struct{}
}

// NewLoop returns a Loop. Nothing runs until Run is called.
func NewLoop() *Loop {
	return &Loop{
		tasks:   make(chan task),
		stopped: make(chan struct{}),
	}
}

// Run executes tasks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.stopped)
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-l.tasks:
			t.fn(t.ctx)
			close(t.done)
		}
	}
}

// Do runs fn on the loop goroutine and waits for it to return. fn must not
// call Do itself.
func (l *Loop) Do(ctx context.Context, fn func(context.Context)) error {
	t := task{ctx: ctx, fn: fn, done: make(chan struct{})}
	select {
	case l.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		return ErrLoopStopped
	}
	<-t.done
	return nil
}
