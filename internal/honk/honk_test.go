package honk

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testFlags struct {
	stop   atomic.Bool
	paused atomic.Bool
}

func (f *testFlags) Stopped() bool { return f.stop.Load() }
func (f *testFlags) Paused() bool  { return f.paused.Load() }

type change struct {
	On bool
	At time.Duration
}

// recordingRelay records every level change with its time offset and stops
// the sequencer after limit changes.
type recordingRelay struct {
	clk     *fakeClock
	start   time.Time
	changes []change
	limit   int
	flags   *testFlags
}

func (r *recordingRelay) Energize(on bool) error {
	r.changes = append(r.changes, change{On: on, At: r.clk.Now().Sub(r.start)})
	if len(r.changes) >= r.limit {
		r.flags.stop.Store(true)
	}
	return nil
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func TestSequencerEmergencyPattern(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	flags := &testFlags{}
	relay := &recordingRelay{clk: clk, start: clk.Now(), limit: 9, flags: flags}
	p := Pattern{FirstHigh: true, Holds: []time.Duration{ms(25), ms(400), ms(25), ms(200)}}

	NewSequencer(p, relay, clk).Run(flags)

	want := []change{
		{true, 0},
		{false, ms(25)},
		{true, ms(425)},
		{false, ms(450)},
		{true, ms(650)},
		{false, ms(675)},
		{true, ms(1075)},
		{false, ms(1100)},
		{true, ms(1300)},
		// Released on stop.
		{false, ms(1300)},
	}
	if diff := cmp.Diff(want, relay.changes); diff != "" {
		t.Fatalf("unexpected relay sequence (-want +got):\n%s", diff)
	}
}

func TestSequencerFirstLow(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	flags := &testFlags{}
	relay := &recordingRelay{clk: clk, start: clk.Now(), limit: 3, flags: flags}
	p := Pattern{FirstHigh: false, Holds: []time.Duration{ms(100), ms(50)}}

	NewSequencer(p, relay, clk).Run(flags)

	want := []change{{false, 0}, {true, ms(100)}, {false, ms(150)}, {false, ms(150)}}
	if diff := cmp.Diff(want, relay.changes); diff != "" {
		t.Fatalf("unexpected relay sequence (-want +got):\n%s", diff)
	}
}

func TestSequencerEmptyPatternIdles(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	flags := &testFlags{}
	relay := &recordingRelay{clk: clk, start: clk.Now(), limit: 100, flags: flags}

	done := make(chan struct{})
	go func() {
		NewSequencer(Pattern{}, relay, clk).Run(flags)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	flags.stop.Store(true)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("idle sequencer did not stop")
	}
	if len(relay.changes) != 1 || relay.changes[0].On {
		t.Fatalf("idle sequencer should only release the relay, got %v", relay.changes)
	}
}

func TestPatternValidate(t *testing.T) {
	if err := DefaultEmergency().Validate(); err != nil {
		t.Fatalf("default pattern invalid: %v", err)
	}
	if err := (Pattern{}).Validate(); err != nil {
		t.Fatalf("empty pattern should be valid: %v", err)
	}
	err := Pattern{Holds: []time.Duration{ms(10), 0}}.Validate()
	if !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
}

func TestFromStepsMerges(t *testing.T) {
	p := FromSteps([]Step{
		{High: false, Hold: ms(10)},
		{High: false, Hold: ms(5)},
		{High: true, Hold: ms(20)},
		{High: true, Hold: 0},
		{High: false, Hold: ms(30)},
	})
	want := Pattern{FirstHigh: false, Holds: []time.Duration{ms(15), ms(20), ms(30)}}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Fatalf("unexpected pattern (-want +got):\n%s", diff)
	}
}

func TestFromMorse(t *testing.T) {
	dit := ms(100)
	p := FromMorse("sos", dit)
	units := []int{1, 1, 1, 1, 1, 3, 3, 1, 3, 1, 3, 3, 1, 1, 1, 1, 1, 7}
	want := Pattern{FirstHigh: true}
	for _, u := range units {
		want.Holds = append(want.Holds, time.Duration(u)*dit)
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Fatalf("unexpected SOS pattern (-want +got):\n%s", diff)
	}
}

func TestFromMorseWords(t *testing.T) {
	p := FromMorse("E E", ms(10))
	want := Pattern{FirstHigh: true, Holds: []time.Duration{ms(10), ms(70), ms(10), ms(70)}}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Fatalf("unexpected pattern (-want +got):\n%s", diff)
	}
}

func TestFromMorseUnknownOnly(t *testing.T) {
	if p := FromMorse("#~", ms(10)); !p.Empty() {
		t.Fatalf("expected empty pattern, got %+v", p)
	}
	if p := FromMorse("straße", ms(10)); p.Empty() {
		t.Fatal("expected ß to be encoded")
	}
}
