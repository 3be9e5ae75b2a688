package device

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"

	"hornsignal/internal/synth"
)

// otoFrame is the number of samples batched per queued frame.
const otoFrame = 512

// OtoDAC plays output codes through oto. oto pulls samples with Read from
// its own goroutine; missing data is played as silence.
type OtoDAC struct {
	*frameQueue

	ctx    *oto.Context
	player *oto.Player
	mu     sync.Mutex

	frame []float32
	pos   int
}

// OpenOto creates an oto context for mono float32 output and starts playing.
func OpenOto(sampleRate int, rng synth.Range) (*OtoDAC, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, fmt.Errorf("oto context: %w", err)
	}
	<-ready

	d := &OtoDAC{
		frameQueue: newFrameQueue(rng, otoFrame, 16),
		ctx:        ctx,
	}
	d.player = ctx.NewPlayer(d)
	d.player.Play()
	slog.Info("oto output opened", "rate", sampleRate)
	return d, nil
}

// WriteCode queues one code. It never blocks.
func (d *OtoDAC) WriteCode(code int) error {
	d.push(code)
	return nil
}

// Read fills p with little-endian float32 samples.
func (d *OtoDAC) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(p) / 4
	for i := 0; i < n; i++ {
		if d.pos >= len(d.frame) && !d.nextFrame() {
			clear(p[i*4 : n*4])
			break
		}
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(d.frame[d.pos]))
		d.pos++
	}
	return n * 4, nil
}

func (d *OtoDAC) nextFrame() bool {
	select {
	case f := <-d.frames:
		d.frame, d.pos = f, 0
		return true
	default:
		return false
	}
}

// Close stops playback.
func (d *OtoDAC) Close() error {
	if d.player == nil {
		return nil
	}
	err := d.player.Close()
	d.player = nil
	slog.Info("oto output closed", "dropped_frames", d.Dropped())
	return err
}
