package main

import (
	"path/filepath"
	"testing"

	"hornsignal/internal/config"
	"hornsignal/internal/controller"
	"hornsignal/internal/device"
)

func TestOpenSinkNullAndFallback(t *testing.T) {
	cfg := config.Default()

	cfg.Audio.Backend = "null"
	if _, ok := openSink(cfg).(*device.NullDAC); !ok {
		t.Error("null backend should open a NullDAC")
	}

	cfg.Audio.Backend = "cassette"
	if _, ok := openSink(cfg).(*device.NullDAC); !ok {
		t.Error("unknown backend should fall back to NullDAC")
	}
}

func TestOpenSinkWAV(t *testing.T) {
	cfg := config.Default()
	cfg.Audio.Backend = "wav"
	cfg.Audio.WAVPath = filepath.Join(t.TempDir(), "out.wav")

	sink := openSink(cfg)
	if _, ok := sink.(*device.WAVSink); !ok {
		t.Fatalf("wav backend opened %T", sink)
	}
	if err := sink.WriteCode(cfg.Output.Mid); err != nil {
		t.Fatalf("WriteCode: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenInputsSim(t *testing.T) {
	cfg := config.Default()
	cfg.Inputs.Backend = "sim"

	hw, err := openInputs(cfg)
	if err != nil {
		t.Fatalf("openInputs: %v", err)
	}
	defer hw.close()
	if hw.sim == nil {
		t.Fatal("sim backend should expose simulated pins")
	}

	hw.sim[controller.InputEmergency].Set(true)
	level, err := hw.pins[controller.InputEmergency].Read()
	if err != nil || !level {
		t.Fatalf("pin read = %v, %v; want true", level, err)
	}
	if err := hw.relay.Energize(true); err != nil {
		t.Fatalf("Energize: %v", err)
	}
}

func TestOpenInputsUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Inputs.Backend = "carrier-pigeon"
	if _, err := openInputs(cfg); err == nil {
		t.Fatal("expected error for unknown inputs backend")
	}
}
