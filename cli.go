package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"hornsignal/internal/config"
	"hornsignal/internal/device"
	"hornsignal/internal/honk"
	"hornsignal/internal/store"
	"hornsignal/internal/synth"
)

const defaultRenderSeconds = 5

// RunCLI handles subcommand execution. Returns true if a subcommand was handled.
func RunCLI(args []string, dbPath string) bool {
	if len(args) == 0 {
		return false
	}

	subcmd := args[0]
	switch subcmd {
	case "version":
		fmt.Printf("hornsignal %s\n", Version)
		return true
	case "status":
		return cliStatus(dbPath)
	case "tracks":
		return cliTracks(args[1:], dbPath)
	case "pattern":
		return cliPattern(args[1:], dbPath)
	case "events":
		return cliEvents(args[1:], dbPath)
	case "render":
		return cliRender(args[1:], dbPath)
	default:
		return false
	}
}

func openStore(dbPath string) *store.Store {
	st, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	return st
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func cliStatus(dbPath string) bool {
	st := openStore(dbPath)
	defer st.Close()

	docs, err := st.Documents(context.Background())
	if err != nil {
		fail("error: %v", err)
	}
	fmt.Printf("Database: %s\n", dbPath)
	fmt.Printf("Version: %s\n", Version)
	fmt.Printf("Documents: %d\n", len(docs))
	for _, d := range docs {
		fmt.Printf("  %-8s rev %s (%s)\n", d.Name, d.Revision, d.UpdatedAt.Format(time.RFC3339))
	}
	evs, err := st.RecentEvents(context.Background(), 1)
	if err != nil {
		fail("error: %v", err)
	}
	if len(evs) > 0 {
		fmt.Printf("Mode: %s (since %s)\n", evs[0].To, evs[0].At.Format(time.RFC3339))
	}
	return true
}

func cliTracks(args []string, dbPath string) bool {
	st := openStore(dbPath)
	defer st.Close()
	ctx := context.Background()

	if len(args) == 0 || args[0] == "show" {
		doc, err := st.Document(ctx, store.DocTracks)
		if errors.Is(err, store.ErrNotFound) {
			fmt.Println("No tracks saved.")
			return true
		}
		if err != nil {
			fail("error: %v", err)
		}
		fmt.Println(string(doc.Body))
		return true
	}

	if args[0] == "import" && len(args) > 1 {
		data, err := os.ReadFile(args[1])
		if err != nil {
			fail("error reading %s: %v", args[1], err)
		}
		ts, err := config.DecodeTracks(data)
		if err != nil {
			fail("error parsing tracks: %v", err)
		}
		body, err := config.MarshalTracks(ts)
		if err != nil {
			fail("error: %v", err)
		}
		doc, err := st.SaveDocument(ctx, store.DocTracks, body)
		if err != nil {
			fail("error saving tracks: %v", err)
		}
		fmt.Printf("Imported tracks (rev %s)\n", doc.Revision)
		return true
	}

	fmt.Fprintln(os.Stderr, "usage: hornsignal tracks [show|import <file>]")
	os.Exit(1)
	return true
}

func cliPattern(args []string, dbPath string) bool {
	st := openStore(dbPath)
	defer st.Close()
	ctx := context.Background()

	if len(args) == 0 || args[0] == "show" {
		p := honk.DefaultEmergency()
		doc, err := st.Document(ctx, store.DocPattern)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			fail("error: %v", err)
		default:
			if p, err = config.DecodePattern(doc.Body); err != nil {
				fail("error: stored pattern: %v", err)
			}
		}
		fmt.Println(formatPattern(p))
		return true
	}

	if args[0] == "set" && len(args) > 2 {
		p, err := parsePatternArgs(args[1:])
		if err != nil {
			fail("error: %v", err)
		}
		body, err := config.MarshalPattern(p)
		if err != nil {
			fail("error: %v", err)
		}
		if _, err := st.SaveDocument(ctx, store.DocPattern, body); err != nil {
			fail("error saving pattern: %v", err)
		}
		fmt.Printf("Pattern set: %s\n", formatPattern(p))
		return true
	}

	fmt.Fprintln(os.Stderr, "usage: hornsignal pattern [show|set HIGH|LOW <ms>...]")
	os.Exit(1)
	return true
}

// parsePatternArgs reads a starting level followed by hold durations in
// milliseconds.
func parsePatternArgs(args []string) (honk.Pattern, error) {
	var p honk.Pattern
	switch strings.ToUpper(args[0]) {
	case "HIGH":
		p.FirstHigh = true
	case "LOW":
	default:
		return honk.Pattern{}, config.ErrBadLevel
	}
	for _, a := range args[1:] {
		ms, err := strconv.Atoi(a)
		if err != nil {
			return honk.Pattern{}, fmt.Errorf("duration %q: %w", a, err)
		}
		p.Holds = append(p.Holds, time.Duration(ms)*time.Millisecond)
	}
	if err := p.Validate(); err != nil {
		return honk.Pattern{}, err
	}
	return p, nil
}

func formatPattern(p honk.Pattern) string {
	if p.Empty() {
		return "(empty)"
	}
	parts := make([]string, 0, len(p.Holds))
	for _, st := range p.Steps() {
		level := "LOW"
		if st.High {
			level = "HIGH"
		}
		parts = append(parts, fmt.Sprintf("%s:%d", level, st.Hold.Milliseconds()))
	}
	return strings.Join(parts, " ")
}

func cliEvents(args []string, dbPath string) bool {
	st := openStore(dbPath)
	defer st.Close()

	limit := 20
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			fail("error: invalid limit %q", args[0])
		}
		limit = n
	}
	evs, err := st.RecentEvents(context.Background(), limit)
	if err != nil {
		fail("error: %v", err)
	}
	if len(evs) == 0 {
		fmt.Println("No events recorded.")
		return true
	}
	for _, ev := range evs {
		fmt.Printf("  %s  %s -> %s\n", ev.At.Format(time.RFC3339), ev.From, ev.To)
	}
	return true
}

// cliRender writes a loop of the default or horn track set to a WAV file
// without touching the audio device.
func cliRender(args []string, dbPath string) bool {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: hornsignal render <out.wav> [seconds] [default|horn]")
		os.Exit(1)
	}
	out := args[0]
	seconds := defaultRenderSeconds
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			fail("error: invalid duration %q", args[1])
		}
		seconds = n
	}
	which := "default"
	if len(args) > 2 {
		which = args[2]
	}

	var ts synth.TrackSet
	switch which {
	case "horn":
		ts = synth.HornTrackSet()
	case "default":
		st := openStore(dbPath)
		doc, err := st.Document(context.Background(), store.DocTracks)
		st.Close()
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			fail("error: %v", err)
		}
		if err == nil {
			ts = config.ParseTracks(doc.Body)
		}
	default:
		fail("error: unknown track set %q", which)
	}

	cfg := config.Default()
	n, err := renderWAV(out, synth.Normalize(ts), cfg, seconds)
	if err != nil {
		fail("error rendering: %v", err)
	}
	fmt.Printf("Wrote %d samples to %s\n", n, out)
	return true
}

func renderWAV(path string, ts synth.TrackSet, cfg config.Config, seconds int) (int, error) {
	sink, err := device.NewWAVSink(path, cfg.SampleRate, cfg.SampleRate, cfg.Output)
	if err != nil {
		return 0, err
	}
	state := synth.NewState(cfg.SampleRate, cfg.Envelope())
	state.Reset(ts)
	playable := state.Playable()
	for i := 0; i < seconds*cfg.SampleRate; i++ {
		mix := 0.0
		if playable {
			mix = state.Next()
		}
		if err := sink.WriteCode(cfg.Output.Code(mix)); err != nil {
			sink.Close()
			return 0, err
		}
	}
	if err := sink.Close(); err != nil {
		return 0, err
	}
	return sink.Samples(), nil
}
