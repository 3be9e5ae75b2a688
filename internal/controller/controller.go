// Package controller polls the control inputs, debounces them and switches
// the signal mode.
package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"hornsignal/internal/lifecycle"
)

// Pin reads the logical level of one input. Polarity is handled by the
// implementation.
type Pin interface {
	Read() (bool, error)
}

// Actions are the lifecycle commands issued on mode changes.
// *lifecycle.Manager implements it.
type Actions interface {
	StopAll()
	SetHorn(on bool) error
	PlaySynth(sel lifecycle.Selection)
	PauseSynth()
	StartPattern()
}

// Transition describes one mode change.
type Transition struct {
	From   Mode      `json:"from"`
	To     Mode      `json:"to"`
	Levels Levels    `json:"levels"`
	At     time.Time `json:"at"`
}

// Config tunes the control loop.
type Config struct {
	Guard time.Duration
	Poll  time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Controller derives the signal mode from debounced inputs and drives the
// lifecycle manager accordingly.
type Controller struct {
	pins [NumInputs]Pin
	act  Actions
	cfg  Config

	deb    [NumInputs]Debouncer
	primed bool
	errLog [NumInputs]rate.Sometimes

	mu       sync.RWMutex
	mode     Mode
	levels   Levels
	onChange func(Transition)
}

// New returns a controller in Disabled mode. Inputs are read for the first
// time on the first Step.
func New(pins [NumInputs]Pin, act Actions, cfg Config) *Controller {
	if cfg.Guard <= 0 {
		cfg.Guard = 40 * time.Millisecond
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 5 * time.Millisecond
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	c := &Controller{pins: pins, act: act, cfg: cfg}
	for i := range c.errLog {
		c.errLog[i] = rate.Sometimes{First: 1, Interval: 10 * time.Second}
	}
	return c
}

// OnModeChange registers fn to be called after every mode change. It runs
// on the control loop and must not block.
func (c *Controller) OnModeChange(fn func(Transition)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// Levels returns the stable input levels.
func (c *Controller) Levels() Levels {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.levels
}

// Run polls the inputs until ctx is done, then stops all output.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.Poll)
	defer ticker.Stop()

	slog.Info("control loop started", "poll", c.cfg.Poll, "guard", c.cfg.Guard)
	c.Step()
	for {
		select {
		case <-ctx.Done():
			c.act.StopAll()
			c.setMode(Disabled)
			slog.Info("control loop stopped")
			return ctx.Err()
		case <-ticker.C:
			c.Step()
		}
	}
}

// Step runs one control pass: read and debounce every input and, after any
// edge, re-derive the mode. The first pass only records the initial levels
// and applies the mode they select.
func (c *Controller) Step() {
	now := c.cfg.Now()
	var raw Levels
	for i, pin := range c.pins {
		level, err := pin.Read()
		if err != nil {
			c.errLog[i].Do(func() {
				slog.Warn("read input", "input", Input(i), "err", err)
			})
			level = c.deb[i].Level()
		}
		raw[i] = level
	}

	if !c.primed {
		for i := range c.deb {
			c.deb[i] = NewDebouncer(c.cfg.Guard, raw[i], now)
		}
		c.primed = true
		c.evaluate(raw, now)
		return
	}

	edge := false
	for i := range c.deb {
		if c.deb[i].Update(raw[i], now) {
			slog.Debug("input edge", "input", Input(i), "level", c.deb[i].Level())
			edge = true
		}
	}
	if !edge {
		return
	}
	var stable Levels
	for i := range c.deb {
		stable[i] = c.deb[i].Level()
	}
	c.evaluate(stable, now)
}

func (c *Controller) evaluate(l Levels, now time.Time) {
	c.mu.Lock()
	c.levels = l
	from := c.mode
	c.mu.Unlock()

	to := Derive(l)
	if to == from {
		return
	}
	c.apply(to)
	c.setMode(to)
	slog.Info("mode changed", "from", from, "to", to)

	c.mu.RLock()
	fn := c.onChange
	c.mu.RUnlock()
	if fn != nil {
		fn(Transition{From: from, To: to, Levels: l, At: now})
	}
}

func (c *Controller) setMode(m Mode) {
	c.mu.Lock()
	c.mode = m
	c.mu.Unlock()
}

func (c *Controller) apply(m Mode) {
	var err error
	switch m {
	case Disabled:
		c.act.StopAll()
	case HornDirect:
		c.act.PauseSynth()
		err = c.act.SetHorn(true)
	case HornSynthesized:
		err = c.act.SetHorn(false)
		c.act.PlaySynth(lifecycle.Selection{Kind: lifecycle.SelectHorn})
	case EmergencyPattern:
		err = c.act.SetHorn(false)
		c.act.StartPattern()
	case EmergencySynthesized:
		err = c.act.SetHorn(false)
		c.act.PlaySynth(lifecycle.Selection{Kind: lifecycle.SelectDefault})
	}
	if err != nil {
		slog.Error("apply mode", "mode", m, "err", err)
	}
}
