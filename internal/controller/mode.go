package controller

import "fmt"

// Mode is the signal state derived from the inputs.
type Mode uint8

const (
	Disabled Mode = iota
	HornDirect
	HornSynthesized
	EmergencyPattern
	EmergencySynthesized
)

var modeNames = [...]string{
	"disabled",
	"horn-direct",
	"horn-synthesized",
	"emergency-pattern",
	"emergency-synthesized",
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", m)
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if name == s {
			return Mode(i), nil
		}
	}
	return Disabled, fmt.Errorf("unknown mode %q", s)
}

// Input identifies one of the four control inputs.
type Input int

const (
	// InputEnable turns the signal on.
	InputEnable Input = iota
	// InputEmergency selects the emergency signal instead of the horn.
	InputEmergency
	// InputSynthHorn plays the horn through the synthesizer instead of the relay.
	InputSynthHorn
	// InputForceHorn plays the emergency signal on the relay horn.
	InputForceHorn

	NumInputs = 4
)

var inputNames = [NumInputs]string{"enable", "emergency", "synth-horn", "force-horn"}

func (i Input) String() string {
	if i >= 0 && int(i) < NumInputs {
		return inputNames[i]
	}
	return fmt.Sprintf("input(%d)", int(i))
}

// Levels holds the logical state of every input, true meaning asserted.
type Levels [NumInputs]bool

// Derive returns the mode for a set of stable levels.
func Derive(l Levels) Mode {
	switch {
	case !l[InputEnable]:
		return Disabled
	case !l[InputEmergency] && l[InputSynthHorn]:
		return HornSynthesized
	case !l[InputEmergency]:
		return HornDirect
	case l[InputForceHorn]:
		return EmergencyPattern
	default:
		return EmergencySynthesized
	}
}
