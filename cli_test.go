package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"hornsignal/internal/config"
	"hornsignal/internal/honk"
	"hornsignal/internal/store"
	"hornsignal/internal/synth"
)

// cliDBSetup creates a temp directory with an initialized store and returns
// the database path.
func cliDBSetup(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "hornsignal.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	st.Close()
	return dbPath
}

// cliDBWithDocument creates a database pre-seeded with one document.
func cliDBWithDocument(t *testing.T, name string, body []byte) string {
	t.Helper()
	dbPath := cliDBSetup(t)
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()
	if _, err := st.SaveDocument(context.Background(), name, body); err != nil {
		t.Fatalf("SaveDocument(%q): %v", name, err)
	}
	return dbPath
}

func readDocument(t *testing.T, dbPath, name string) (store.Document, error) {
	t.Helper()
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()
	return st.Document(context.Background(), name)
}

// ---------------------------------------------------------------------------
// RunCLI: subcommand dispatch
// ---------------------------------------------------------------------------

func TestRunCLIVersionReturnsTrue(t *testing.T) {
	if !RunCLI([]string{"version"}, "not-used.db") {
		t.Error("RunCLI(version) should return true")
	}
}

func TestRunCLIUnknownSubcommandReturnsFalse(t *testing.T) {
	if RunCLI([]string{"nonexistent-cmd"}, "not-used.db") {
		t.Error("RunCLI(unknown) should return false")
	}
}

func TestRunCLIEmptyArgsReturnsFalse(t *testing.T) {
	if RunCLI(nil, "not-used.db") {
		t.Error("RunCLI(nil) should return false")
	}
}

// ---------------------------------------------------------------------------
// "status" and "events"
// ---------------------------------------------------------------------------

func TestCLIStatusReturnsTrue(t *testing.T) {
	dbPath := cliDBWithDocument(t, store.DocMorse, []byte("sos"))
	if !RunCLI([]string{"status"}, dbPath) {
		t.Error("RunCLI(status) should return true")
	}
}

func TestCLIEventsReturnsTrue(t *testing.T) {
	dbPath := cliDBSetup(t)
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	if _, err := st.InsertEvent(context.Background(), "disabled", "horn-direct", time.Now()); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	st.Close()

	if !RunCLI([]string{"events"}, dbPath) {
		t.Error("RunCLI(events) should return true")
	}
	if !RunCLI([]string{"events", "5"}, dbPath) {
		t.Error("RunCLI(events 5) should return true")
	}
}

// ---------------------------------------------------------------------------
// "tracks"
// ---------------------------------------------------------------------------

func TestCLITracksShowEmptyDB(t *testing.T) {
	dbPath := cliDBSetup(t)
	if !RunCLI([]string{"tracks"}, dbPath) {
		t.Error("RunCLI(tracks) should return true")
	}
}

func TestCLITracksImport(t *testing.T) {
	dbPath := cliDBSetup(t)
	src := filepath.Join(t.TempDir(), "tracks.json")
	in := `{"tracks":[[{"freq":440,"waveform":"square","duration":750,"transition":"none"}],[],[],[],[]]}`
	if err := os.WriteFile(src, []byte(in), 0o644); err != nil {
		t.Fatalf("write tracks: %v", err)
	}

	if !RunCLI([]string{"tracks", "import", src}, dbPath) {
		t.Fatal("RunCLI(tracks import) should return true")
	}

	doc, err := readDocument(t, dbPath, store.DocTracks)
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	want := `{"tracks":[[{"freq":440,"waveform":"square","duration":750,"transition":"none"}],[],[],[]]}`
	if string(doc.Body) != want {
		t.Fatalf("stored tracks:\n got %s\nwant %s", doc.Body, want)
	}
	if !RunCLI([]string{"tracks", "show"}, dbPath) {
		t.Error("RunCLI(tracks show) should return true")
	}
}

// ---------------------------------------------------------------------------
// "pattern"
// ---------------------------------------------------------------------------

func TestCLIPatternShowDefault(t *testing.T) {
	dbPath := cliDBSetup(t)
	if !RunCLI([]string{"pattern"}, dbPath) {
		t.Error("RunCLI(pattern) should return true")
	}
}

func TestCLIPatternSet(t *testing.T) {
	dbPath := cliDBSetup(t)
	if !RunCLI([]string{"pattern", "set", "low", "100", "300"}, dbPath) {
		t.Fatal("RunCLI(pattern set) should return true")
	}

	doc, err := readDocument(t, dbPath, store.DocPattern)
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	p, err := config.DecodePattern(doc.Body)
	if err != nil {
		t.Fatalf("DecodePattern: %v", err)
	}
	want := honk.Pattern{Holds: []time.Duration{100 * time.Millisecond, 300 * time.Millisecond}}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Fatalf("stored pattern (-want +got):\n%s", diff)
	}
}

func TestParsePatternArgs(t *testing.T) {
	p, err := parsePatternArgs([]string{"HIGH", "25", "400"})
	if err != nil {
		t.Fatalf("parsePatternArgs: %v", err)
	}
	if !p.FirstHigh || len(p.Holds) != 2 || p.Holds[1] != 400*time.Millisecond {
		t.Fatalf("unexpected pattern %+v", p)
	}

	if _, err := parsePatternArgs([]string{"UP", "25"}); !errors.Is(err, config.ErrBadLevel) {
		t.Errorf("expected ErrBadLevel, got %v", err)
	}
	if _, err := parsePatternArgs([]string{"LOW", "0"}); !errors.Is(err, honk.ErrInvalidDuration) {
		t.Errorf("expected ErrInvalidDuration, got %v", err)
	}
	if _, err := parsePatternArgs([]string{"LOW", "ten"}); err == nil {
		t.Error("expected error for non-numeric duration")
	}
}

func TestFormatPattern(t *testing.T) {
	if got := formatPattern(honk.DefaultEmergency()); got != "HIGH:25 LOW:400 HIGH:25 LOW:200" {
		t.Errorf("formatPattern(default) = %q", got)
	}
	if got := formatPattern(honk.Pattern{}); got != "(empty)" {
		t.Errorf("formatPattern(empty) = %q", got)
	}
}

// ---------------------------------------------------------------------------
// "render"
// ---------------------------------------------------------------------------

func TestCLIRenderHorn(t *testing.T) {
	dbPath := cliDBSetup(t)
	out := filepath.Join(t.TempDir(), "horn.wav")
	if !RunCLI([]string{"render", out, "1", "horn"}, dbPath) {
		t.Fatal("RunCLI(render) should return true")
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) || !bytes.Contains(data[:64], []byte("WAVE")) {
		t.Fatalf("not a WAV file: % x", data[:16])
	}
	if len(data) < 44+2*40000 {
		t.Fatalf("expected about a second of audio, got %d bytes", len(data))
	}
}

func TestRenderWAVEmptySetIsSilent(t *testing.T) {
	out := filepath.Join(t.TempDir(), "silent.wav")
	n, err := renderWAV(out, synth.TrackSet{}, config.Default(), 1)
	if err != nil {
		t.Fatalf("renderWAV: %v", err)
	}
	if n == 0 {
		t.Fatal("expected silence to be written")
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	for i := 44; i+1 < len(data); i += 2 {
		if data[i] != 0 || data[i+1] != 0 {
			t.Fatalf("sample at byte %d is not silent", i)
		}
	}
}
