package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"hornsignal/internal/clock"
	"hornsignal/internal/config"
	"hornsignal/internal/controller"
	"hornsignal/internal/device"
	"hornsignal/internal/honk"
	"hornsignal/internal/httpapi"
	"hornsignal/internal/lifecycle"
	"hornsignal/internal/store"
	"hornsignal/internal/ws"
)

// Version is injected at build time with -ldflags.
var Version = "0.1.0-dev"

const (
	metricsInterval = 30 * time.Second
	keepEvents      = 1000
)

func main() {
	cfgPath := flag.String("config", "", "Config file path (defaults to the user config dir)")
	addr := flag.String("addr", "", "Echo listen address (overrides the config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides the config)")
	sim := flag.Bool("sim", false, "Use simulated inputs and relay")
	debug := flag.Bool("debug", false, "Enable debug logging (auto-enabled for dev builds)")
	flag.Parse()

	cfg := config.Load(*cfgPath)
	if *addr != "" {
		cfg.Listen = *addr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *sim {
		cfg.Inputs.Backend = "sim"
	}

	if RunCLI(flag.Args(), cfg.DBPath) {
		return
	}

	level := slog.LevelInfo
	if *debug || strings.Contains(Version, "dev") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("starting hornsignal", "version", Version, "addr", cfg.Listen, "db", cfg.DBPath,
		"rate", cfg.SampleRate, "audio", cfg.Audio.Backend, "inputs", cfg.Inputs.Backend)

	if err := run(cfg); err != nil {
		slog.Error("hornsignal", "err", err)
		os.Exit(1)
	}
	slog.Info("hornsignal stopped")
}

func run(cfg config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open sqlite store: %w", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("close sqlite store", "err", closeErr)
		}
	}()
	if n, err := st.PruneEvents(ctx, keepEvents); err != nil {
		slog.Warn("prune events", "err", err)
	} else if n > 0 {
		slog.Debug("pruned events", "count", n)
	}

	sink := openSink(cfg)
	defer func() {
		if closeErr := sink.Close(); closeErr != nil {
			slog.Error("close audio output", "err", closeErr)
		}
	}()

	hw, err := openInputs(cfg)
	if err != nil {
		return err
	}
	defer hw.close()

	mgr := lifecycle.New(lifecycle.Options{
		SampleRate: cfg.SampleRate,
		Envelope:   cfg.Envelope(),
		Range:      cfg.Output,
		Sink:       sink,
		Relay:      hw.relay,
		Pattern:    honk.DefaultEmergency(),
	})
	defer mgr.StopAll()

	ctl := controller.New(hw.pins, mgr, controller.Config{
		Guard: cfg.Guard(),
		Poll:  cfg.Poll(),
	})

	var api *httpapi.Server
	hub := ws.NewHub(func() any { return api.Snapshot() })
	api = httpapi.New(httpapi.Options{
		Manager:    mgr,
		Controller: ctl,
		Store:      st,
		Hub:        hub,
		Sim:        hw.sim,
		Dit:        cfg.Dit(),
	})
	if err := api.LoadPersisted(ctx); err != nil {
		slog.Warn("load persisted config", "err", err)
	}

	ctl.OnModeChange(func(tr controller.Transition) {
		if _, err := st.InsertEvent(context.Background(), tr.From.String(), tr.To.String(), tr.At); err != nil {
			slog.Warn("record mode change", "err", err)
		}
		hub.Publish(ws.TypeMode, tr)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		slog.Info("received interrupt, shutting down")
		cancel()
	}()

	go func() {
		if err := ctl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("controller stopped", "err", err)
		}
	}()
	go RunMetrics(ctx, mgr, hub, metricsInterval)

	slog.Info("listening", "addr", cfg.Listen)
	if err := api.Run(ctx, cfg.Listen); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

type audioSink interface {
	clock.Sink
	io.Closer
}

// openSink opens the configured audio backend, falling back to the null
// DAC when the device cannot be opened.
func openSink(cfg config.Config) audioSink {
	var (
		sink audioSink
		err  error
	)
	switch cfg.Audio.Backend {
	case "portaudio":
		sink, err = device.OpenPortAudio(cfg.SampleRate, cfg.Audio.FramesPerBuffer, cfg.Output)
	case "oto":
		sink, err = device.OpenOto(cfg.SampleRate, cfg.Output)
	case "wav":
		sink, err = device.NewWAVSink(cfg.Audio.WAVPath, cfg.SampleRate, cfg.SampleRate, cfg.Output)
	case "null", "":
		return &device.NullDAC{}
	default:
		err = fmt.Errorf("unknown audio backend %q", cfg.Audio.Backend)
	}
	if err != nil {
		slog.Warn("audio output unavailable, using null output", "backend", cfg.Audio.Backend, "err", err)
		return &device.NullDAC{}
	}
	return sink
}

// hardware is the set of control inputs and the horn relay.
type hardware struct {
	pins  [controller.NumInputs]controller.Pin
	relay honk.Relay
	sim   *[controller.NumInputs]device.SimPin
	close func()
}

func openInputs(cfg config.Config) (hardware, error) {
	switch cfg.Inputs.Backend {
	case "sim":
		sim := new([controller.NumInputs]device.SimPin)
		hw := hardware{relay: &device.SimRelay{}, sim: sim, close: func() {}}
		for i := range sim {
			hw.pins[i] = &sim[i]
		}
		return hw, nil
	case "i2c":
		return openExpander(cfg.Inputs)
	default:
		return hardware{}, fmt.Errorf("unknown inputs backend %q", cfg.Inputs.Backend)
	}
}

func openExpander(in config.Inputs) (hardware, error) {
	exp, err := device.OpenExpander(in.Bus, in.Address)
	if err != nil {
		return hardware{}, fmt.Errorf("open expander on %s: %w", in.Bus, err)
	}
	hw := hardware{close: func() {
		if err := exp.Close(); err != nil {
			slog.Error("close expander", "err", err)
		}
	}}

	lines := [controller.NumInputs]config.Pin{
		controller.InputEnable:    in.Enable,
		controller.InputEmergency: in.Emergency,
		controller.InputSynthHorn: in.SynthHorn,
		controller.InputForceHorn: in.ForceHorn,
	}
	for i, p := range lines {
		pin, err := exp.Input(p.Line, p.ActiveLow)
		if err != nil {
			hw.close()
			return hardware{}, fmt.Errorf("input %s: %w", controller.Input(i), err)
		}
		hw.pins[i] = pin
	}
	relay, err := exp.Relay(in.Relay.Line, in.Relay.ActiveLow)
	if err != nil {
		hw.close()
		return hardware{}, fmt.Errorf("relay: %w", err)
	}
	hw.relay = relay
	return hw, nil
}
