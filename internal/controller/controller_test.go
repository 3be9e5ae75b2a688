package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"hornsignal/internal/lifecycle"
)

type fakePin struct {
	mu    sync.Mutex
	level bool
	err   error
}

func (p *fakePin) Read() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level, p.err
}

func (p *fakePin) set(level bool) {
	p.mu.Lock()
	p.level = level
	p.mu.Unlock()
}

type recordingActions struct {
	mu    sync.Mutex
	calls []string
}

func (a *recordingActions) record(s string) {
	a.mu.Lock()
	a.calls = append(a.calls, s)
	a.mu.Unlock()
}

func (a *recordingActions) take() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	calls := a.calls
	a.calls = nil
	return calls
}

func (a *recordingActions) StopAll()                          { a.record("stop-all") }
func (a *recordingActions) SetHorn(on bool) error             { a.record(fmt.Sprintf("horn:%v", on)); return nil }
func (a *recordingActions) PlaySynth(sel lifecycle.Selection) { a.record("play:" + sel.Kind.String()) }
func (a *recordingActions) PauseSynth()                       { a.record("pause-synth") }
func (a *recordingActions) StartPattern()                     { a.record("start-pattern") }

type rig struct {
	pins [NumInputs]*fakePin
	act  *recordingActions
	now  time.Time
	c    *Controller
}

func newRig(initial Levels) *rig {
	r := &rig{act: &recordingActions{}, now: time.Unix(1000, 0)}
	var pins [NumInputs]Pin
	for i := range r.pins {
		r.pins[i] = &fakePin{level: initial[i]}
		pins[i] = r.pins[i]
	}
	r.c = New(pins, r.act, Config{
		Guard: 40 * time.Millisecond,
		Now:   func() time.Time { return r.now },
	})
	return r
}

// after advances the clock past the guard interval and sets one input.
func (r *rig) after(d time.Duration, in Input, level bool) {
	r.now = r.now.Add(d)
	r.pins[in].set(level)
	r.c.Step()
}

func TestDebouncerGuard(t *testing.T) {
	start := time.Unix(0, 0)
	d := NewDebouncer(40*time.Millisecond, false, start)

	if d.Update(true, start.Add(10*time.Millisecond)) {
		t.Fatal("edge inside guard after start")
	}
	if !d.Update(true, start.Add(40*time.Millisecond)) {
		t.Fatal("expected edge after guard")
	}
	edges := 0
	for ms := 41; ms < 80; ms++ {
		if d.Update(ms%2 == 0, start.Add(time.Duration(ms)*time.Millisecond)) {
			edges++
		}
	}
	if edges != 0 {
		t.Fatalf("expected no edges while bouncing, got %d", edges)
	}
	if d.Update(true, start.Add(200*time.Millisecond)) {
		t.Fatal("identical level must not report an edge")
	}
	if !d.Update(false, start.Add(200*time.Millisecond)) {
		t.Fatal("expected edge for a flip after the guard")
	}
	if d.Level() {
		t.Fatal("stable level not updated")
	}
}

func TestDerive(t *testing.T) {
	tests := []struct {
		levels Levels
		want   Mode
	}{
		{Levels{false, true, true, true}, Disabled},
		{Levels{true, false, false, false}, HornDirect},
		{Levels{true, false, true, true}, HornSynthesized},
		{Levels{true, true, false, false}, EmergencySynthesized},
		{Levels{true, true, true, true}, EmergencyPattern},
	}
	for _, tc := range tests {
		if got := Derive(tc.levels); got != tc.want {
			t.Errorf("Derive(%v) = %v, want %v", tc.levels, got, tc.want)
		}
	}
}

func TestStartupDisabledDoesNothing(t *testing.T) {
	r := newRig(Levels{})
	r.c.Step()
	if calls := r.act.take(); len(calls) != 0 {
		t.Fatalf("unexpected actions at startup: %v", calls)
	}
	if r.c.Mode() != Disabled {
		t.Fatalf("expected disabled, got %v", r.c.Mode())
	}
}

func TestStartupEnabledAppliesMode(t *testing.T) {
	r := newRig(Levels{true, true, false, true})
	r.c.Step()
	if diff := cmp.Diff([]string{"horn:false", "start-pattern"}, r.act.take()); diff != "" {
		t.Fatalf("unexpected actions (-want +got):\n%s", diff)
	}
	if r.c.Mode() != EmergencyPattern {
		t.Fatalf("expected emergency pattern, got %v", r.c.Mode())
	}
}

func TestModeSequence(t *testing.T) {
	r := newRig(Levels{})
	r.c.Step()

	steps := []struct {
		in    Input
		level bool
		mode  Mode
		calls []string
	}{
		{InputEnable, true, HornDirect, []string{"pause-synth", "horn:true"}},
		{InputSynthHorn, true, HornSynthesized, []string{"horn:false", "play:horn"}},
		{InputForceHorn, true, HornSynthesized, nil},
		{InputEmergency, true, EmergencyPattern, []string{"horn:false", "start-pattern"}},
		{InputSynthHorn, false, EmergencyPattern, nil},
		{InputForceHorn, false, EmergencySynthesized, []string{"horn:false", "play:default"}},
		{InputEnable, false, Disabled, []string{"stop-all"}},
		{InputEmergency, false, Disabled, nil},
		{InputEnable, true, HornDirect, []string{"pause-synth", "horn:true"}},
	}
	for i, st := range steps {
		r.after(50*time.Millisecond, st.in, st.level)
		if got := r.c.Mode(); got != st.mode {
			t.Fatalf("step %d: mode = %v, want %v", i, got, st.mode)
		}
		if diff := cmp.Diff(st.calls, r.act.take()); diff != "" {
			t.Fatalf("step %d: unexpected actions (-want +got):\n%s", i, diff)
		}
	}
}

func TestBounceInsideGuardIgnored(t *testing.T) {
	r := newRig(Levels{})
	r.c.Step()

	r.after(50*time.Millisecond, InputEnable, true)
	r.act.take()
	r.after(5*time.Millisecond, InputEnable, false)
	r.after(5*time.Millisecond, InputEnable, true)
	r.after(5*time.Millisecond, InputEnable, false)
	if r.c.Mode() != HornDirect {
		t.Fatalf("bounce changed mode to %v", r.c.Mode())
	}
	if calls := r.act.take(); len(calls) != 0 {
		t.Fatalf("bounce produced actions: %v", calls)
	}
	// The last reading is now stable and past the guard.
	r.after(40*time.Millisecond, InputEnable, false)
	if r.c.Mode() != Disabled {
		t.Fatalf("expected disabled, got %v", r.c.Mode())
	}
}

func TestReadErrorKeepsLevel(t *testing.T) {
	r := newRig(Levels{true})
	r.c.Step()
	r.act.take()

	r.pins[InputEnable].mu.Lock()
	r.pins[InputEnable].err = errors.New("i2c: no ack")
	r.pins[InputEnable].level = false
	r.pins[InputEnable].mu.Unlock()
	r.now = r.now.Add(time.Second)
	r.c.Step()
	if r.c.Mode() != HornDirect {
		t.Fatalf("read error changed mode to %v", r.c.Mode())
	}
	if !r.c.Levels()[InputEnable] {
		t.Fatal("read error changed stable level")
	}
}

func TestTransitionCallback(t *testing.T) {
	r := newRig(Levels{})
	var got []Transition
	r.c.OnModeChange(func(tr Transition) { got = append(got, tr) })
	r.c.Step()
	r.after(50*time.Millisecond, InputEnable, true)
	r.after(50*time.Millisecond, InputEmergency, true)

	want := []Transition{
		{From: Disabled, To: HornDirect, Levels: Levels{true, false, false, false}, At: time.Unix(1000, 0).Add(50 * time.Millisecond)},
		{From: HornDirect, To: EmergencySynthesized, Levels: Levels{true, true, false, false}, At: time.Unix(1000, 0).Add(100 * time.Millisecond)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected transitions (-want +got):\n%s", diff)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	act := &recordingActions{}
	var pins [NumInputs]Pin
	for i := range pins {
		pins[i] = &fakePin{level: true}
	}
	c := New(pins, act, Config{Poll: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for c.Mode() != EmergencyPattern {
		if time.Now().After(deadline) {
			t.Fatal("mode never applied")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	calls := act.take()
	if calls[len(calls)-1] != "stop-all" {
		t.Fatalf("expected stop-all last, got %v", calls)
	}
	if c.Mode() != Disabled {
		t.Fatalf("expected disabled after stop, got %v", c.Mode())
	}
}

func TestParseMode(t *testing.T) {
	for m := Disabled; m <= EmergencySynthesized; m++ {
		got, err := ParseMode(m.String())
		if err != nil || got != m {
			t.Fatalf("ParseMode(%q) = %v, %v", m.String(), got, err)
		}
	}
	if _, err := ParseMode("siren"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
