package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hornsignal/internal/honk"
	"hornsignal/internal/synth"
)

// ErrBadLevel is returned for a pattern start level other than HIGH or LOW.
var ErrBadLevel = errors.New(`level must be "HIGH" or "LOW"`)

type tracksDoc struct {
	Tracks synth.TrackSet `json:"tracks"`
}

// DecodeTracks parses a tracks document. Tracks beyond the fourth are
// ignored and missing tracks are empty. Unknown waveform and transition
// tokens fall back to sine and none. Negative frequencies are clamped to
// zero.
func DecodeTracks(data []byte) (synth.TrackSet, error) {
	var doc tracksDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return synth.TrackSet{}, fmt.Errorf("decode tracks: %w", err)
	}
	for _, tr := range doc.Tracks {
		for j := range tr {
			if tr[j].Frequency < 0 {
				tr[j].Frequency = 0
			}
		}
	}
	return doc.Tracks, nil
}

// ParseTracks is DecodeTracks for callers that want silence instead of an
// error: malformed input yields an empty TrackSet.
func ParseTracks(data []byte) synth.TrackSet {
	ts, err := DecodeTracks(data)
	if err != nil {
		slog.Warn("ignoring malformed tracks", "err", err)
		return synth.TrackSet{}
	}
	return ts
}

// MarshalTracks encodes ts in the tracks document format.
func MarshalTracks(ts synth.TrackSet) ([]byte, error) {
	return json.Marshal(tracksDoc{Tracks: ts})
}

type patternDoc struct {
	First   string  `json:"first"`
	Changes []int64 `json:"patternChanges"`
}

// DecodePattern parses a honk pattern document. Durations are milliseconds
// and must be positive.
func DecodePattern(data []byte) (honk.Pattern, error) {
	var doc patternDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return honk.Pattern{}, fmt.Errorf("decode pattern: %w", err)
	}
	var p honk.Pattern
	switch strings.ToUpper(strings.TrimSpace(doc.First)) {
	case "HIGH":
		p.FirstHigh = true
	case "LOW", "":
	default:
		return honk.Pattern{}, fmt.Errorf("decode pattern: %w", ErrBadLevel)
	}
	for _, ms := range doc.Changes {
		p.Holds = append(p.Holds, time.Duration(ms)*time.Millisecond)
	}
	if err := p.Validate(); err != nil {
		return honk.Pattern{}, fmt.Errorf("decode pattern: %w", err)
	}
	return p, nil
}

// MarshalPattern encodes p in the pattern document format.
func MarshalPattern(p honk.Pattern) ([]byte, error) {
	doc := patternDoc{First: "LOW", Changes: make([]int64, len(p.Holds))}
	if p.FirstHigh {
		doc.First = "HIGH"
	}
	for i, d := range p.Holds {
		doc.Changes[i] = d.Milliseconds()
	}
	return json.Marshal(doc)
}
