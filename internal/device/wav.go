package device

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/arl/blip"
	"github.com/arl/blip/wave"

	"hornsignal/internal/synth"
)

// wavChunk is the most samples handed to the wave writer at once.
const wavChunk = 1024

// WAVSink records output codes to a 16-bit mono WAV file. Code steps are
// fed to a band-limited buffer so the file can use a different rate than
// the synthesizer.
type WAVSink struct {
	mu sync.Mutex

	out   *wave.Writer
	file  io.Closer
	bl    *blip.Buffer
	rng   synth.Range
	scale int32

	frame   int
	clocks  int
	level   int32
	buf     []int16
	samples int
	closed  bool
}

// NewWAVSink creates path and returns a sink clocked at sampleRate that
// writes a file at outRate.
func NewWAVSink(path string, sampleRate, outRate int, rng synth.Range) (*WAVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav file: %w", err)
	}
	s := newWAVSink(f, sampleRate, outRate, rng)
	s.file = f
	return s, nil
}

func newWAVSink(w io.Writer, sampleRate, outRate int, rng synth.Range) *WAVSink {
	if outRate <= 0 {
		outRate = sampleRate
	}
	bl := blip.NewBuffer(outRate / 10)
	bl.SetRates(float64(sampleRate), float64(outRate))

	headroom := max(rng.High-rng.Mid, rng.Mid-rng.Low, 1)
	return &WAVSink{
		out:   wave.NewWriter(w, outRate),
		bl:    bl,
		rng:   rng,
		scale: int32(32767 / headroom),
		frame: max(sampleRate/100, 1),
		buf:   make([]int16, wavChunk),
	}
}

// WriteCode adds one code at the synthesizer rate.
func (s *WAVSink) WriteCode(code int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("wav sink closed")
	}

	level := int32(code-s.rng.Mid) * s.scale
	if delta := level - s.level; delta != 0 {
		s.bl.AddDelta(uint64(s.clocks), delta)
		s.level = level
	}
	s.clocks++
	if s.clocks == s.frame {
		s.endFrameLocked()
	}
	return nil
}

func (s *WAVSink) endFrameLocked() {
	s.bl.EndFrame(s.clocks)
	s.clocks = 0
	for s.bl.SamplesAvailable() > 0 {
		n := s.bl.ReadSamples(s.buf, len(s.buf), blip.Mono)
		if n == 0 {
			break
		}
		s.out.Write(s.buf[:n])
		s.samples += n
	}
}

// Samples returns how many samples have been written to the file so far.
func (s *WAVSink) Samples() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples
}

// Close flushes pending samples and finalizes the file.
func (s *WAVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.clocks > 0 {
		s.endFrameLocked()
	}
	if err := s.out.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
