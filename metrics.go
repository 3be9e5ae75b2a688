package main

import (
	"context"
	"log/slog"
	"time"

	"hornsignal/internal/lifecycle"
	"hornsignal/internal/ws"
)

type statusSource interface {
	Status() lifecycle.Status
}

type publisher interface {
	Publish(typ string, data any)
}

var _ publisher = (*ws.Hub)(nil)

// RunMetrics logs output loop stats every interval until ctx is canceled.
// When pub is non-nil the status is also pushed to subscribers.
func RunMetrics(ctx context.Context, src statusSource, pub publisher, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := src.Status()
			samples := st.Clock.Samples - last
			last = st.Clock.Samples
			if !st.SynthRunning && samples == 0 && !st.PatternRunning {
				continue
			}
			slog.Info("metrics",
				"synth", st.SynthRunning,
				"paused", st.SynthPaused,
				"selection", st.Selection,
				"pattern", st.PatternRunning,
				"horn", st.HornOn,
				"samples", samples,
				"rate", float64(samples)/interval.Seconds(),
				"overruns", st.Clock.Overruns,
				"write_errors", st.Clock.WriteErrors)
			if pub != nil {
				pub.Publish(ws.TypeStatus, st)
			}
		}
	}
}
