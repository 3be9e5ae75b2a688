// Package synth implements the four-track phase-accumulator synthesizer that
// renders a horn signal one sample at a time.
package synth

import (
	"encoding/json"
	"fmt"
)

// NumTracks is the fixed number of mixed tracks in a TrackSet.
const NumTracks = 4

// Waveform selects the oscillator shape of a segment.
type Waveform uint8

const (
	Sine Waveform = iota
	Square
	Sawtooth
	Triangle
)

var waveformNames = [...]string{
	Sine:     "sine",
	Square:   "square",
	Sawtooth: "sawtooth",
	Triangle: "triangle",
}

func (w Waveform) String() string {
	if int(w) < len(waveformNames) {
		return waveformNames[w]
	}
	return fmt.Sprintf("Waveform(%d)", w)
}

// ParseWaveform returns the waveform named by s. Unknown names yield Sine.
func ParseWaveform(s string) Waveform {
	for i, name := range waveformNames {
		if name == s {
			return Waveform(i)
		}
	}
	return Sine
}

func (w Waveform) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

func (w *Waveform) UnmarshalText(b []byte) error {
	*w = ParseWaveform(string(b))
	return nil
}

// Envelope selects the gain ramp applied at segment entry.
type Envelope uint8

const (
	EnvelopeLinear Envelope = iota
	EnvelopeExp
	EnvelopeNone
)

var envelopeNames = [...]string{
	EnvelopeLinear: "linear",
	EnvelopeExp:    "exp",
	EnvelopeNone:   "none",
}

func (e Envelope) String() string {
	if int(e) < len(envelopeNames) {
		return envelopeNames[e]
	}
	return fmt.Sprintf("Envelope(%d)", e)
}

// ParseEnvelope returns the envelope named by s. Unknown names yield
// EnvelopeNone.
func ParseEnvelope(s string) Envelope {
	for i, name := range envelopeNames {
		if name == s {
			return Envelope(i)
		}
	}
	return EnvelopeNone
}

func (e Envelope) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *Envelope) UnmarshalText(b []byte) error {
	*e = ParseEnvelope(string(b))
	return nil
}

// Segment is one fixed-frequency leg of a track loop. Segments are never
// mutated once part of a TrackSet.
type Segment struct {
	// Frequency is in Hz. Zero means silence.
	Frequency  float64  `json:"freq"`
	Waveform   Waveform `json:"waveform"`
	DurationMs uint32   `json:"duration"`
	Envelope   Envelope `json:"transition"`
}

// Track is an ordered list of segments played in a loop.
type Track []Segment

// DurationMs returns the sum of the segment durations.
func (t Track) DurationMs() uint64 {
	var total uint64
	for _, seg := range t {
		total += uint64(seg.DurationMs)
	}
	return total
}

// TrackSet holds the four tracks mixed by the synthesizer.
type TrackSet [NumTracks]Track

// Empty reports whether no track holds any segment.
func (ts TrackSet) Empty() bool {
	for _, tr := range ts {
		if len(tr) > 0 {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of ts so the copy can be handed to another
// owner.
func (ts TrackSet) Clone() TrackSet {
	var out TrackSet
	for i, tr := range ts {
		if tr == nil {
			continue
		}
		out[i] = append(Track(make([]Segment, 0, len(tr))), tr...)
	}
	return out
}

// MarshalJSON encodes the set as an array of four arrays, using empty
// arrays rather than null for empty tracks.
func (ts TrackSet) MarshalJSON() ([]byte, error) {
	out := make([]Track, NumTracks)
	for i, tr := range ts {
		if tr == nil {
			tr = Track{}
		}
		out[i] = tr
	}
	return json.Marshal(out)
}

// HornTrackSet returns the fixed synthesized horn: a 335 Hz square wave on
// all four tracks.
func HornTrackSet() TrackSet {
	var ts TrackSet
	for i := range ts {
		ts[i] = Track{{Frequency: 335, Waveform: Square, DurationMs: 10000, Envelope: EnvelopeLinear}}
	}
	return ts
}
