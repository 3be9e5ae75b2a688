// Package device implements the output sinks and the digital inputs and
// relay used by the signal controller.
package device

import (
	"sync/atomic"

	"hornsignal/internal/synth"
)

// NullDAC discards every code but remembers the last one.
type NullDAC struct {
	last   atomic.Int64
	writes atomic.Uint64
}

func (d *NullDAC) WriteCode(code int) error {
	d.last.Store(int64(code))
	d.writes.Add(1)
	return nil
}

// Last returns the most recent code.
func (d *NullDAC) Last() int { return int(d.last.Load()) }

// Writes returns how many codes were written.
func (d *NullDAC) Writes() uint64 { return d.writes.Load() }

func (d *NullDAC) Close() error { return nil }

// frameQueue batches output codes into float32 frames for a streaming audio
// backend. The producing side never blocks: when the consumer falls behind,
// whole frames are dropped.
type frameQueue struct {
	rng    synth.Range
	frames chan []float32
	size   int

	cur     []float32
	dropped atomic.Uint64
}

func newFrameQueue(rng synth.Range, size, depth int) *frameQueue {
	q := &frameQueue{
		rng:    rng,
		frames: make(chan []float32, depth),
		size:   size,
	}
	q.cur = make([]float32, 0, size)
	return q
}

// level maps an output code to [-1, 1].
func (q *frameQueue) level(code int) float32 {
	if q.rng.Amplitude == 0 {
		return 0
	}
	return float32(float64(code-q.rng.Mid) / q.rng.Amplitude)
}

// push appends one code. It is called from the sample loop only.
func (q *frameQueue) push(code int) {
	q.cur = append(q.cur, q.level(code))
	if len(q.cur) < q.size {
		return
	}
	select {
	case q.frames <- q.cur:
	default:
		q.dropped.Add(1)
		q.cur = q.cur[:0]
		return
	}
	q.cur = make([]float32, 0, q.size)
}

// Dropped returns how many frames were discarded.
func (q *frameQueue) Dropped() uint64 {
	return q.dropped.Load()
}
