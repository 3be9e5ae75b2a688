package device

import (
	"sync"
	"sync/atomic"
)

// SimPin is an input whose level is set in software.
type SimPin struct {
	level atomic.Bool
}

func (p *SimPin) Read() (bool, error) { return p.level.Load(), nil }

// Set changes the level.
func (p *SimPin) Set(on bool) { p.level.Store(on) }

// SimRelay records the relay state in memory.
type SimRelay struct {
	mu       sync.Mutex
	on       bool
	switches int
}

func (r *SimRelay) Energize(on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.on != on {
		r.switches++
	}
	r.on = on
	return nil
}

// On reports whether the relay is energized.
func (r *SimRelay) On() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.on
}

// Switches returns how many times the relay changed state.
func (r *SimRelay) Switches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.switches
}
