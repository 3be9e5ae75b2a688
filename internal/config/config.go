// Package config manages the device settings file and the JSON wire formats
// used by the web UI. Settings are stored as JSON at
// os.UserConfigDir()/hornsignal/config.json unless a path is given.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"hornsignal/internal/synth"
)

// Config holds all device settings.
type Config struct {
	SampleRate   int         `json:"sample_rate"`
	LinearFadeMs int         `json:"linear_fade_ms"`
	ExpTauMs     int         `json:"exp_tau_ms"`
	DebounceMs   int         `json:"debounce_ms"`
	PollMs       int         `json:"poll_ms"`
	MorseDitMs   int         `json:"morse_dit_ms"`
	Output       synth.Range `json:"output"`
	Audio        Audio       `json:"audio"`
	Inputs       Inputs      `json:"inputs"`
	Listen       string      `json:"listen"`
	DBPath       string      `json:"db_path"`
}

// Audio selects the output device.
type Audio struct {
	// Backend is one of "portaudio", "oto", "wav" or "null".
	Backend         string `json:"backend"`
	WAVPath         string `json:"wav_path"`
	FramesPerBuffer int    `json:"frames_per_buffer"`
}

// Inputs describes where the control inputs and the relay are wired.
type Inputs struct {
	// Backend is "i2c" for a PCF8574 expander or "sim" for simulated pins.
	Backend   string `json:"backend"`
	Bus       string `json:"bus"`
	Address   int    `json:"address"`
	Enable    Pin    `json:"enable"`
	Emergency Pin    `json:"emergency"`
	SynthHorn Pin    `json:"synth_horn"`
	ForceHorn Pin    `json:"force_horn"`
	Relay     Pin    `json:"relay"`
}

// Pin is one expander line and its polarity.
type Pin struct {
	Line      int  `json:"line"`
	ActiveLow bool `json:"active_low"`
}

// Default returns a Config populated with the reference wiring.
func Default() Config {
	return Config{
		SampleRate:   44100,
		LinearFadeMs: 50,
		ExpTauMs:     100,
		DebounceMs:   40,
		PollMs:       5,
		MorseDitMs:   200,
		Output:       synth.DAC8,
		Audio: Audio{
			Backend:         "portaudio",
			WAVPath:         "hornsignal.wav",
			FramesPerBuffer: 256,
		},
		Inputs: Inputs{
			Backend:   "i2c",
			Bus:       "/dev/i2c-1",
			Address:   0x20,
			Enable:    Pin{Line: 0},
			Emergency: Pin{Line: 1, ActiveLow: true},
			SynthHorn: Pin{Line: 2},
			ForceHorn: Pin{Line: 3, ActiveLow: true},
			Relay:     Pin{Line: 7, ActiveLow: true},
		},
		Listen: ":8080",
		DBPath: "hornsignal.db",
	}
}

// Envelope returns the envelope parameters for the configured sample rate.
func (c Config) Envelope() synth.EnvelopeParams {
	return synth.NewEnvelopeParams(c.SampleRate,
		time.Duration(c.LinearFadeMs)*time.Millisecond,
		time.Duration(c.ExpTauMs)*time.Millisecond)
}

// Guard returns the debounce guard interval.
func (c Config) Guard() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// Poll returns the control loop period.
func (c Config) Poll() time.Duration {
	return time.Duration(c.PollMs) * time.Millisecond
}

// Dit returns the Morse dot length.
func (c Config) Dit() time.Duration {
	return time.Duration(c.MorseDitMs) * time.Millisecond
}

// Path returns the absolute path to the default config file.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "hornsignal", "config.json"), nil
}

// Load reads the config file at path, or at Path() when path is empty. If
// the file is missing or unreadable, the default config is returned.
func Load(path string) Config {
	if path == "" {
		p, err := Path()
		if err != nil {
			return Default()
		}
		path = p
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Default()
	}
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default()
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = Default().SampleRate
	}
	return cfg
}

// Save writes cfg to path, or to Path() when path is empty, creating the
// directory if needed.
func Save(path string, cfg Config) error {
	if path == "" {
		p, err := Path()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
