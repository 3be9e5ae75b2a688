package synth

import (
	"math"
	"time"
)

// expSeed is the gain an exponential fade is re-armed to at segment entry.
// It must stay non-zero.
const expSeed = 0.001

// EnvelopeParams holds the per-sample constants derived from the sample
// rate and fade timings. They are fixed for the life of a State.
type EnvelopeParams struct {
	LinearFadeSamples uint32
	InvLinearFade     float64
	// ExpAlpha is the one-pole coefficient 1 - exp(-1/tau).
	ExpAlpha float64
}

// NewEnvelopeParams derives envelope constants for sampleRate.
func NewEnvelopeParams(sampleRate int, linearFade, expTau time.Duration) EnvelopeParams {
	fade := DurationSamples(uint32(linearFade/time.Millisecond), sampleRate)
	tau := DurationSamples(uint32(expTau/time.Millisecond), sampleRate)
	return EnvelopeParams{
		LinearFadeSamples: fade,
		InvLinearFade:     1 / float64(fade),
		ExpAlpha:          1 - math.Exp(-1/float64(tau)),
	}
}

// DurationSamples converts ms to a sample count, rounded, never less than
// one sample.
func DurationSamples(ms uint32, sampleRate int) uint32 {
	n := uint32(math.Round(float64(ms) * float64(sampleRate) / 1000))
	if n == 0 {
		return 1
	}
	return n
}

// LinearGain returns the linear fade-in gain after elapsed samples.
func (p EnvelopeParams) LinearGain(elapsed uint32) float64 {
	if elapsed >= p.LinearFadeSamples {
		return 1
	}
	return float64(elapsed) * p.InvLinearFade
}

// ExpStep advances the exponential fade state by one sample and returns the
// new gain.
func (p EnvelopeParams) ExpStep(gain float64) float64 {
	gain += (1 - gain) * p.ExpAlpha
	if gain > 1 {
		gain = 1
	}
	return gain
}

// seedGain returns the initial envelope state for a segment of kind e.
func seedGain(e Envelope) float64 {
	if e == EnvelopeExp {
		return expSeed
	}
	return 1
}
