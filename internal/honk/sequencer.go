package honk

import (
	"log/slog"
	"time"

	"hornsignal/internal/clock"
)

// idlePoll is how long an empty pattern sleeps between flag checks.
const idlePoll = 20 * time.Millisecond

// Relay switches the horn.
type Relay interface {
	Energize(on bool) error
}

// Flags are the control flags shared with the lifecycle manager.
type Flags interface {
	Stopped() bool
	Paused() bool
}

// Sequencer plays a Pattern on a Relay, looping until stopped.
type Sequencer struct {
	pattern Pattern
	relay   Relay
	clk     clock.Clock
}

// NewSequencer returns a sequencer for p. A nil clk means the system clock.
func NewSequencer(p Pattern, relay Relay, clk clock.Clock) *Sequencer {
	if clk == nil {
		clk = clock.System
	}
	return &Sequencer{pattern: p, relay: relay, clk: clk}
}

// Pattern returns the pattern being played.
func (s *Sequencer) Pattern() Pattern {
	return s.pattern
}

// Run drives the relay until flags reports a stop. The relay is released
// when Run returns and while paused.
func (s *Sequencer) Run(flags Flags) {
	defer s.set(false)

	if s.pattern.Empty() {
		for !flags.Stopped() {
			s.clk.Sleep(idlePoll)
		}
		return
	}

	p := clock.NewPacer(s.clk)
	steps := s.pattern.Steps()
	paused := false
	for i := 0; !flags.Stopped(); i = (i + 1) % len(steps) {
		for flags.Paused() && !flags.Stopped() {
			if !paused {
				s.set(false)
				paused = true
			}
			s.clk.Sleep(idlePoll)
		}
		if paused {
			paused = false
			p.Rebase()
		}
		if flags.Stopped() {
			return
		}
		s.set(steps[i].High)
		p.Wait(steps[i].Hold, flags.Stopped)
	}
}

func (s *Sequencer) set(on bool) {
	if err := s.relay.Energize(on); err != nil {
		slog.Warn("relay write failed", "on", on, "err", err)
	}
}
