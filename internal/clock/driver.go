package clock

import (
	"sync/atomic"
	"time"

	"hornsignal/internal/synth"
)

// pausePoll is how often a paused driver re-checks its flags.
const pausePoll = time.Millisecond

// Flags are the control flags shared between a running loop and its owner.
type Flags interface {
	Stopped() bool
	Paused() bool
}

// Source produces mixed samples in [-1, 1].
type Source interface {
	Next() float64
}

// Sink accepts one output code per sample tick.
type Sink interface {
	WriteCode(code int) error
}

// Stats is a snapshot of driver counters.
type Stats struct {
	Samples     uint64 `json:"samples"`
	Overruns    uint64 `json:"overruns"`
	WriteErrors uint64 `json:"write_errors"`
}

// Driver pulls samples from a Source at a fixed rate and forwards their
// output codes to a Sink.
type Driver struct {
	clk      Clock
	interval time.Duration
	rng      synth.Range

	samples     atomic.Uint64
	overruns    atomic.Uint64
	writeErrors atomic.Uint64
}

// NewDriver returns a driver ticking sampleRate times per second.
func NewDriver(sampleRate int, rng synth.Range, clk Clock) *Driver {
	if clk == nil {
		clk = System
	}
	return &Driver{
		clk:      clk,
		interval: time.Second / time.Duration(sampleRate),
		rng:      rng,
	}
}

// Interval returns the sample period.
func (d *Driver) Interval() time.Duration {
	return d.interval
}

// Stats returns the current counters.
func (d *Driver) Stats() Stats {
	return Stats{
		Samples:     d.samples.Load(),
		Overruns:    d.overruns.Load(),
		WriteErrors: d.writeErrors.Load(),
	}
}

// Run produces samples until flags reports a stop. While paused it holds
// the sink at the silence code without advancing src. The sink is left at
// the silence code when Run returns.
func (d *Driver) Run(flags Flags, src Source, out Sink) {
	silence := func() {
		if err := out.WriteCode(d.rng.Mid); err != nil {
			d.writeErrors.Add(1)
		}
	}
	defer silence()

	p := NewPacer(d.clk)
	paused := false
	for !flags.Stopped() {
		if flags.Paused() {
			if !paused {
				silence()
				paused = true
			}
			d.clk.Sleep(pausePoll)
			continue
		}
		if paused {
			paused = false
			p.Rebase()
		}
		if p.Wait(d.interval, flags.Stopped) {
			d.overruns.Add(1)
		}
		if flags.Stopped() {
			return
		}
		if err := out.WriteCode(d.rng.Code(src.Next())); err != nil {
			d.writeErrors.Add(1)
		}
		d.samples.Add(1)
	}
}
