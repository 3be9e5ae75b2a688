package controller

import "time"

// Debouncer tracks the stable level of one input. A change is accepted only
// when at least the guard interval has passed since the previous accepted
// change.
type Debouncer struct {
	guard   time.Duration
	stable  bool
	changed time.Time
}

// NewDebouncer returns a debouncer whose stable level is initial as of now.
func NewDebouncer(guard time.Duration, initial bool, now time.Time) Debouncer {
	return Debouncer{guard: guard, stable: initial, changed: now}
}

// Update feeds one instantaneous reading and reports whether it produced an
// edge. Readings inside the guard interval are ignored.
func (d *Debouncer) Update(level bool, now time.Time) bool {
	if now.Sub(d.changed) < d.guard {
		return false
	}
	if level == d.stable {
		return false
	}
	d.stable = level
	d.changed = now
	return true
}

// Level returns the stable level.
func (d *Debouncer) Level() bool {
	return d.stable
}
