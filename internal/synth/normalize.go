package synth

// Normalize returns a copy of ts in which every track shorter than the
// longest one is padded with a silent segment, so all four tracks share one
// loop period. Empty tracks receive a single silent segment. A set with no
// segments at all is returned unchanged.
func Normalize(ts TrackSet) TrackSet {
	out := ts.Clone()
	var longest uint64
	for _, tr := range out {
		if d := tr.DurationMs(); d > longest {
			longest = d
		}
	}
	if longest == 0 {
		return out
	}
	for i, tr := range out {
		d := tr.DurationMs()
		if d == longest {
			continue
		}
		// Pad in chunks in case the gap overflows a segment duration.
		for gap := longest - d; gap > 0; {
			n := gap
			if n > maxSegmentMs {
				n = maxSegmentMs
			}
			out[i] = append(out[i], Segment{
				Frequency:  0,
				Waveform:   Sine,
				DurationMs: uint32(n),
				Envelope:   EnvelopeNone,
			})
			gap -= n
		}
	}
	return out
}

const maxSegmentMs = 1<<32 - 1
