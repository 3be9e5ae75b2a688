// Package honk drives the horn relay through timed on/off patterns.
package honk

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDuration is returned for a pattern hold that is not positive.
var ErrInvalidDuration = errors.New("pattern duration must be positive")

// Pattern is a relay sequence: the first hold uses level FirstHigh and every
// following hold flips the level. High energizes the horn.
type Pattern struct {
	FirstHigh bool
	Holds     []time.Duration
}

// Validate checks that every hold is positive. An empty pattern is valid and
// means "do nothing".
func (p Pattern) Validate() error {
	for i, d := range p.Holds {
		if d <= 0 {
			return fmt.Errorf("hold %d: %w", i, ErrInvalidDuration)
		}
	}
	return nil
}

// Empty reports whether the pattern has no holds.
func (p Pattern) Empty() bool {
	return len(p.Holds) == 0
}

// Period returns the duration of one pass through the pattern.
func (p Pattern) Period() time.Duration {
	var total time.Duration
	for _, d := range p.Holds {
		total += d
	}
	return total
}

// Step is one hold of an expanded pattern.
type Step struct {
	High bool
	Hold time.Duration
}

// Steps expands the pattern into explicit levels.
func (p Pattern) Steps() []Step {
	steps := make([]Step, len(p.Holds))
	level := p.FirstHigh
	for i, d := range p.Holds {
		steps[i] = Step{High: level, Hold: d}
		level = !level
	}
	return steps
}

// FromSteps builds a pattern from steps, merging neighbouring steps of
// equal level so the result alternates.
func FromSteps(steps []Step) Pattern {
	var p Pattern
	var last bool
	for _, st := range steps {
		if st.Hold <= 0 {
			continue
		}
		if len(p.Holds) > 0 && st.High == last {
			p.Holds[len(p.Holds)-1] += st.Hold
			continue
		}
		if len(p.Holds) == 0 {
			p.FirstHigh = st.High
		}
		p.Holds = append(p.Holds, st.Hold)
		last = st.High
	}
	return p
}

// DefaultEmergency is the emergency pattern used until one is configured.
func DefaultEmergency() Pattern {
	return Pattern{
		FirstHigh: true,
		Holds: []time.Duration{
			25 * time.Millisecond,
			400 * time.Millisecond,
			25 * time.Millisecond,
			200 * time.Millisecond,
		},
	}
}
