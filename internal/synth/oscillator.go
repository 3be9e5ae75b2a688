package synth

import "math"

const twoPi = 2 * math.Pi

// Wave returns the value of waveform w at phase (radians, in [0, 2π)).
// The result is in [-1, 1].
func Wave(w Waveform, phase float64) float64 {
	switch w {
	case Sine:
		return math.Sin(phase)
	case Square:
		if math.Sin(phase) >= 0 {
			return 1
		}
		return -1
	case Sawtooth:
		return phase/math.Pi - 1
	case Triangle:
		// Rising through zero at phase 0 like the sine.
		t := phase / twoPi
		switch {
		case t < 0.25:
			return 4 * t
		case t < 0.75:
			return 2 - 4*t
		default:
			return 4*t - 4
		}
	}
	return 0
}

// PhaseStep returns the per-sample phase increment for freq Hz.
func PhaseStep(freq float64, sampleRate int) float64 {
	return twoPi * freq / float64(sampleRate)
}

// AdvancePhase adds step to phase and reduces the result into [0, 2π).
func AdvancePhase(phase, step float64) float64 {
	phase += step
	if phase >= twoPi {
		phase = math.Mod(phase, twoPi)
	}
	return phase
}
