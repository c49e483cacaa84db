// Package loop provides the single dispatch loop that serializes modem
// events, request completions, timers and external operations.
//
// Everything that touches call or conference state runs as a function on
// the loop goroutine, so sessions need no locks.
package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrStopped is returned by Do when the loop is no longer running.
var ErrStopped = errors.New("dispatch loop stopped")

// Timer is a pending callback scheduled with AfterFunc.
type Timer interface {
	// Stop prevents the callback from running. It returns false if the
	// callback already ran or was stopped.
	Stop() bool
}

// Scheduler schedules callbacks on the dispatch loop.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// Loop is a FIFO of functions executed one at a time.
type Loop struct {
	queue chan func()
	done  chan struct{}

	mu      sync.Mutex
	stopped bool
}

// New creates a loop with room for size queued functions.
func New(size int) *Loop {
	if size <= 0 {
		size = 1024
	}
	return &Loop{
		queue: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// Post queues fn. It blocks while the queue is full and drops fn once the
// loop has stopped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()
	if stopped {
		return
	}
	select {
	case l.queue <- fn:
	case <-l.done:
	}
}

// Do runs fn on the loop and waits for it to return.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes queued functions until ctx is canceled.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("[Loop] Dispatch loop started")
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.mu.Unlock()
		close(l.done)
		slog.Info("[Loop] Dispatch loop stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-l.queue:
			l.run(fn)
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[Loop] Recovered from panic in dispatched function", "panic", r)
		}
	}()
	fn()
}

// AfterFunc runs fn on the loop after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &timer{}
	t.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.fire() {
				fn()
			}
		})
	})
	return t
}

type timer struct {
	t *time.Timer

	mu    sync.Mutex
	state int // 0 pending, 1 fired, 2 stopped
}

func (t *timer) fire() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != 0 {
		return false
	}
	t.state = 1
	return true
}

func (t *timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != 0 {
		return false
	}
	t.state = 2
	t.t.Stop()
	return true
}
