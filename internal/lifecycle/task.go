// Package lifecycle starts, pauses and stops the real-time loops and owns the
// active synthesizer configuration.
package lifecycle

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Control holds the flags shared between a Task and the loop it runs. They
// are the only values touched from both sides while the loop is live.
type Control struct {
	stop   atomic.Bool
	paused atomic.Bool
}

// Stopped reports whether the loop has been asked to exit.
func (c *Control) Stopped() bool { return c.stop.Load() }

// Paused reports whether the loop should hold without advancing.
func (c *Control) Paused() bool { return c.paused.Load() }

// RunFunc is a loop body. It must return soon after c.Stopped reports true.
type RunFunc func(c *Control)

// Task runs at most one RunFunc in its own goroutine.
type Task struct {
	name string

	mu   sync.Mutex
	ctl  *Control
	done chan struct{}
}

// NewTask returns an idle task. The name is only used for logging.
func NewTask(name string) *Task {
	return &Task{name: name}
}

// Start launches fn unless the task is already running. It reports whether
// a new goroutine was started.
func (t *Task) Start(fn RunFunc) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.runningLocked() {
		return false
	}
	ctl := &Control{}
	done := make(chan struct{})
	t.ctl, t.done = ctl, done
	go func() {
		defer close(done)
		fn(ctl)
	}()
	slog.Debug("task started", "task", t.name)
	return true
}

// Stop asks the loop to exit and waits until it has. Stopping an idle task
// does nothing.
func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ctl == nil {
		return
	}
	t.ctl.stop.Store(true)
	<-t.done
	t.ctl, t.done = nil, nil
	slog.Debug("task stopped", "task", t.name)
}

// Pause holds the loop in place. It does nothing when the task is idle.
func (t *Task) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.runningLocked() {
		t.ctl.paused.Store(true)
	}
}

// Resume continues a paused loop.
func (t *Task) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.runningLocked() {
		t.ctl.paused.Store(false)
	}
}

// Running reports whether the loop goroutine is live.
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runningLocked()
}

// Paused reports whether the loop is live and paused.
func (t *Task) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runningLocked() && t.ctl.Paused()
}

func (t *Task) runningLocked() bool {
	if t.done == nil {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}
