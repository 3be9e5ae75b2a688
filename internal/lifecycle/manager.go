package lifecycle

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hornsignal/internal/clock"
	"hornsignal/internal/honk"
	"hornsignal/internal/synth"
)

// Selector names the TrackSet the synthesizer plays.
type Selector uint8

const (
	SelectDefault Selector = iota
	SelectHorn
	SelectCustom
)

var selectorNames = [...]string{"default", "horn", "custom"}

func (s Selector) String() string {
	if int(s) < len(selectorNames) {
		return selectorNames[s]
	}
	return fmt.Sprintf("selector(%d)", s)
}

func (s Selector) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Selection picks a TrackSet. Custom is only read for SelectCustom.
type Selection struct {
	Kind   Selector
	Custom synth.TrackSet
}

// Options configures a Manager.
type Options struct {
	SampleRate int
	Envelope   synth.EnvelopeParams
	Range      synth.Range
	// Clock paces both loops. Nil means the system clock.
	Clock clock.Clock
	Sink  clock.Sink
	Relay honk.Relay
	// Default is the configurable TrackSet replaced by HotSwap.
	Default synth.TrackSet
	Pattern honk.Pattern
}

// Status is a point-in-time view of the manager.
type Status struct {
	SynthRunning   bool        `json:"synth_running"`
	SynthPaused    bool        `json:"synth_paused"`
	Selection      Selector    `json:"selection"`
	PatternRunning bool        `json:"pattern_running"`
	HornOn         bool        `json:"horn_on"`
	Clock          clock.Stats `json:"clock"`
}

// Manager owns the synthesizer state and the two real-time loops. At most
// one of the loops drives the output at a time. The synthesizer state is
// only mutated while its loop is stopped.
type Manager struct {
	mu sync.Mutex

	synthTask   *Task
	patternTask *Task

	state  *synth.State
	driver *clock.Driver
	rng    synth.Range
	sink   clock.Sink
	relay  honk.Relay
	clk    clock.Clock

	sel        Selection
	defaultSet synth.TrackSet
	hornSet    synth.TrackSet
	pattern    honk.Pattern
	hornOn     bool
}

// New returns a manager with both loops stopped.
func New(opts Options) *Manager {
	clk := opts.Clock
	if clk == nil {
		clk = clock.System
	}
	return &Manager{
		synthTask:   NewTask("synth"),
		patternTask: NewTask("pattern"),
		state:       synth.NewState(opts.SampleRate, opts.Envelope),
		driver:      clock.NewDriver(opts.SampleRate, opts.Range, clk),
		rng:         opts.Range,
		sink:        opts.Sink,
		relay:       opts.Relay,
		clk:         clk,
		defaultSet:  synth.Normalize(opts.Default),
		hornSet:     synth.Normalize(synth.HornTrackSet()),
		pattern:     opts.Pattern,
	}
}

// PlaySynth starts the synthesizer on sel. If it already plays the same
// fixed selection it is only resumed. A selection with nothing to play
// leaves the synthesizer stopped and the output silent.
func (m *Manager) PlaySynth(sel Selection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.patternTask.Stop()
	if m.synthTask.Running() && sel.Kind != SelectCustom && sel.Kind == m.sel.Kind {
		m.synthTask.Resume()
		return
	}
	m.synthTask.Stop()

	switch sel.Kind {
	case SelectHorn:
		sel.Custom = synth.TrackSet{}
		m.state.Reset(m.hornSet)
	case SelectCustom:
		sel.Custom = synth.Normalize(sel.Custom)
		m.state.Reset(sel.Custom)
	default:
		sel.Custom = synth.TrackSet{}
		m.state.Reset(m.defaultSet)
	}
	m.sel = sel
	if m.startSynthLocked() {
		slog.Info("synth started", "selection", sel.Kind)
	}
}

// startSynthLocked launches the driver on the current state or writes the
// silence code when there is nothing to play.
func (m *Manager) startSynthLocked() bool {
	if !m.state.Playable() {
		m.silenceLocked()
		slog.Debug("synth has nothing to play", "selection", m.sel.Kind)
		return false
	}
	state, sink := m.state, m.sink
	return m.synthTask.Start(func(c *Control) {
		m.driver.Run(c, state, sink)
	})
}

// StopSynth stops the synthesizer. Its cursors are reset on the next start.
func (m *Manager) StopSynth() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synthTask.Stop()
}

// PauseSynth holds the synthesizer at silence without losing its position.
func (m *Manager) PauseSynth() {
	m.synthTask.Pause()
}

// ResumeSynth continues a paused synthesizer.
func (m *Manager) ResumeSynth() {
	m.synthTask.Resume()
}

// HotSwap replaces the configurable TrackSet. If the synthesizer is playing
// it, the loop is stopped, the new set is loaded and the loop is restarted
// in the same paused state. It reports whether a restart happened.
func (m *Manager) HotSwap(ts synth.TrackSet) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.defaultSet = synth.Normalize(ts)
	if m.sel.Kind != SelectDefault || !m.synthTask.Running() {
		return false
	}
	wasPaused := m.synthTask.Paused()
	m.synthTask.Stop()
	m.state.Reset(m.defaultSet)
	if !m.startSynthLocked() {
		slog.Info("hot swap left synth stopped", "reason", "empty track set")
		return false
	}
	if wasPaused {
		m.synthTask.Pause()
	}
	slog.Info("synth hot swapped", "paused", wasPaused)
	return true
}

// DefaultSet returns a copy of the normalized configurable TrackSet.
func (m *Manager) DefaultSet() synth.TrackSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defaultSet.Clone()
}

// StartPattern stops the synthesizer and runs the honk pattern.
func (m *Manager) StartPattern() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synthTask.Stop()
	m.startPatternLocked()
}

func (m *Manager) startPatternLocked() {
	seq := honk.NewSequencer(m.pattern, m.relay, m.clk)
	if m.patternTask.Start(func(c *Control) { seq.Run(c) }) {
		m.hornOn = false
		slog.Info("pattern started", "holds", len(m.pattern.Holds), "period", m.pattern.Period())
	}
}

// StopPattern stops the pattern sequencer, releasing the relay.
func (m *Manager) StopPattern() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patternTask.Stop()
}

// SetPattern validates and installs p. A running sequencer is restarted
// with the new pattern.
func (m *Manager) SetPattern(p honk.Pattern) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("set pattern: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pattern = honk.Pattern{FirstHigh: p.FirstHigh, Holds: append([]time.Duration(nil), p.Holds...)}
	if m.patternTask.Running() {
		m.patternTask.Stop()
		m.startPatternLocked()
	}
	return nil
}

// Pattern returns the installed honk pattern.
func (m *Manager) Pattern() honk.Pattern {
	m.mu.Lock()
	defer m.mu.Unlock()
	return honk.Pattern{FirstHigh: m.pattern.FirstHigh, Holds: append([]time.Duration(nil), m.pattern.Holds...)}
}

// SetHorn drives the relay directly. The pattern sequencer is stopped first
// so the two never contend for the relay.
func (m *Manager) SetHorn(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patternTask.Stop()
	if err := m.relay.Energize(on); err != nil {
		return fmt.Errorf("set horn: %w", err)
	}
	m.hornOn = on
	return nil
}

// StopAll stops both loops, releases the relay and silences the output.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synthTask.Stop()
	m.patternTask.Stop()
	if err := m.relay.Energize(false); err != nil {
		slog.Warn("release relay", "err", err)
	}
	m.hornOn = false
	m.silenceLocked()
}

func (m *Manager) silenceLocked() {
	if err := m.sink.WriteCode(m.rng.Mid); err != nil {
		slog.Warn("write silence", "err", err)
	}
}

// Status returns the current state of both loops.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		SynthRunning:   m.synthTask.Running(),
		SynthPaused:    m.synthTask.Paused(),
		Selection:      m.sel.Kind,
		PatternRunning: m.patternTask.Running(),
		HornOn:         m.hornOn,
		Clock:          m.driver.Stats(),
	}
}
