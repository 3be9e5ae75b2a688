// Package clock drives the synthesizer at a fixed sample rate.
package clock

import (
	"runtime"
	"time"
)

// Clock abstracts time so loops can be tested without real waits.
type Clock interface {
	Now() time.Time
	// Sleep suspends the caller for d.
	Sleep(d time.Duration)
}

// spinThreshold is the remaining wait below which the system clock yields
// instead of sleeping. The Go scheduler cannot sleep for a sample period.
const spinThreshold = 2 * time.Millisecond

type systemClock struct{}

// System is the wall clock.
var System Clock = systemClock{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	end := time.Now().Add(d)
	if d > spinThreshold {
		time.Sleep(d - spinThreshold)
	}
	for time.Now().Before(end) {
		runtime.Gosched()
	}
}

// maxSlice bounds a single sleep so a stop request is noticed promptly
// during long holds.
const maxSlice = 5 * time.Millisecond

// Pacer keeps an absolute deadline that advances by a caller-chosen step on
// every Wait. When the caller falls behind, the deadline is re-based to the
// current time instead of catching up step by step.
type Pacer struct {
	clk      Clock
	deadline time.Time
}

// NewPacer returns a Pacer whose deadline starts at the current time.
func NewPacer(clk Clock) *Pacer {
	return &Pacer{clk: clk, deadline: clk.Now()}
}

// Rebase moves the deadline to the current time.
func (p *Pacer) Rebase() {
	p.deadline = p.clk.Now()
}

// Wait advances the deadline by d and suspends until it is reached or stop
// reports true. It reports whether the deadline had already passed.
func (p *Pacer) Wait(d time.Duration, stop func() bool) (late bool) {
	p.deadline = p.deadline.Add(d)
	now := p.clk.Now()
	if now.After(p.deadline) {
		p.deadline = now
		return true
	}
	for now.Before(p.deadline) {
		if stop != nil && stop() {
			return false
		}
		p.clk.Sleep(min(p.deadline.Sub(now), maxSlice))
		now = p.clk.Now()
	}
	return false
}
