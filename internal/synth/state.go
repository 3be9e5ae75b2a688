package synth

import "math"

// Cursor is the playback position of one track.
type Cursor struct {
	Segment   int
	Elapsed   uint32
	Remaining uint32
	// Phase is in radians, always in [0, 2π).
	Phase float64
	Step  float64
	// Gain is the exponential envelope state.
	Gain float64
}

// State owns the cursors for one TrackSet. It is not safe for concurrent
// use: exactly one goroutine may drive it at a time.
type State struct {
	sampleRate int
	env        EnvelopeParams
	set        TrackSet
	cursors    [NumTracks]Cursor
}

// NewState returns a State rendering at sampleRate with no tracks loaded.
func NewState(sampleRate int, env EnvelopeParams) *State {
	return &State{
		sampleRate: sampleRate,
		env:        env,
	}
}

// SampleRate returns the rate the state renders at.
func (s *State) SampleRate() int {
	return s.sampleRate
}

// TrackSet returns the set currently loaded.
func (s *State) TrackSet() TrackSet {
	return s.set
}

// Playable reports whether the loaded set has anything to play.
func (s *State) Playable() bool {
	return !s.set.Empty()
}

// Cursors returns a copy of the track cursors.
func (s *State) Cursors() [NumTracks]Cursor {
	return s.cursors
}

// Reset loads ts and rewinds every cursor to the start of its first
// segment. The caller should pass a normalized set; Reset does not
// normalize.
func (s *State) Reset(ts TrackSet) {
	s.set = ts
	for i, tr := range ts {
		if len(tr) == 0 {
			s.cursors[i] = Cursor{Gain: 1}
			continue
		}
		s.enter(i, 0)
	}
}

// enter positions track i at the start of segment seg.
func (s *State) enter(i, seg int) {
	sg := s.set[i][seg]
	s.cursors[i] = Cursor{
		Segment:   seg,
		Remaining: DurationSamples(sg.DurationMs, s.sampleRate),
		Step:      PhaseStep(sg.Frequency, s.sampleRate),
		Gain:      seedGain(sg.Envelope),
	}
}

// Next renders one sample of the mix and advances every cursor. The result
// is the average of the four tracks and so lies in [-1, 1].
func (s *State) Next() float64 {
	var mix float64
	for i := range s.cursors {
		tr := s.set[i]
		c := &s.cursors[i]
		if len(tr) == 0 || c.Remaining == 0 {
			continue
		}
		seg := &tr[c.Segment]

		if seg.Frequency > 0 {
			v := Wave(seg.Waveform, c.Phase)
			var g float64
			switch seg.Envelope {
			case EnvelopeLinear:
				g = s.env.LinearGain(c.Elapsed)
			case EnvelopeExp:
				c.Gain = s.env.ExpStep(c.Gain)
				g = c.Gain
			default:
				g = 1
			}
			mix += v * g
		}

		c.Phase = AdvancePhase(c.Phase, c.Step)
		c.Elapsed++
		c.Remaining--
		if c.Remaining == 0 {
			s.enter(i, (c.Segment+1)%len(tr))
		}
	}
	return mix / NumTracks
}

// Range describes the numeric range of an output device.
type Range struct {
	Low  int `json:"low"`
	High int `json:"high"`
	// Mid is the code for silence.
	Mid       int     `json:"mid"`
	Amplitude float64 `json:"amplitude"`
}

// DAC8 is the range of an unsigned 8-bit converter.
var DAC8 = Range{Low: 0, High: 255, Mid: 128, Amplitude: 127}

// Code converts a mixed sample to an output code, clamped to the range.
func (r Range) Code(mix float64) int {
	v := int(math.Round(mix*r.Amplitude + float64(r.Mid)))
	if v < r.Low {
		return r.Low
	}
	if v > r.High {
		return r.High
	}
	return v
}
