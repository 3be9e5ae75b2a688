package device

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"hornsignal/internal/synth"
)

// paStream abstracts a PortAudio output stream for testing.
type paStream interface {
	Start() error
	Stop() error
	Close() error
	Write() error
}

// PortAudioDAC plays output codes on the default PortAudio output device.
type PortAudioDAC struct {
	*frameQueue

	stream    paStream
	buf       []float32
	terminate func()
	done      chan struct{}
	wg        sync.WaitGroup
	once      sync.Once
}

// OpenPortAudio initializes PortAudio and opens a mono output stream. The
// caller must Close the DAC to release PortAudio.
func OpenPortAudio(sampleRate, framesPerBuffer int, rng synth.Range) (*PortAudioDAC, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	buf := make([]float32, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open output stream: %w", err)
	}
	d, err := newPortAudioDAC(stream, buf, rng)
	if err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, err
	}
	d.terminate = func() { portaudio.Terminate() }
	slog.Info("portaudio output opened", "rate", sampleRate, "frames", framesPerBuffer)
	return d, nil
}

func newPortAudioDAC(stream paStream, buf []float32, rng synth.Range) (*PortAudioDAC, error) {
	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("start output stream: %w", err)
	}
	d := &PortAudioDAC{
		frameQueue: newFrameQueue(rng, len(buf), 8),
		stream:     stream,
		buf:        buf,
		done:       make(chan struct{}),
	}
	d.wg.Add(1)
	go func() { defer d.wg.Done(); d.playbackLoop() }()
	return d, nil
}

// WriteCode queues one code. It never blocks.
func (d *PortAudioDAC) WriteCode(code int) error {
	d.push(code)
	return nil
}

// playbackLoop copies queued frames into the stream buffer. Write blocks
// until the device needs more data, which paces this goroutine.
func (d *PortAudioDAC) playbackLoop() {
	for {
		select {
		case <-d.done:
			return
		case frame := <-d.frames:
			copy(d.buf, frame)
		}
		if err := d.stream.Write(); err != nil {
			slog.Debug("portaudio write", "err", err)
		}
	}
}

// Close stops the stream and terminates PortAudio.
func (d *PortAudioDAC) Close() error {
	var err error
	d.once.Do(func() {
		close(d.done)
		d.wg.Wait()
		if stopErr := d.stream.Stop(); stopErr != nil {
			err = fmt.Errorf("stop output stream: %w", stopErr)
		}
		if closeErr := d.stream.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close output stream: %w", closeErr)
		}
		if d.terminate != nil {
			d.terminate()
		}
		slog.Info("portaudio output closed", "dropped_frames", d.Dropped())
	})
	return err
}
