package watch_test

import (
	"testing"
	"time"

	"github.com/Badkarmaink/wodehouse/internal/watch"
)

func newTestManifest(t *testing.T, dir string) *watch.Manifest {
	t.Helper()
	m, err := watch.OpenManifest(dir)
	if err != nil {
		t.Fatalf("OpenManifest: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManifest_UnknownClip(t *testing.T) {
	m := newTestManifest(t, t.TempDir())

	seen, err := m.Seen("clip_20250512_093000.wav")
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if seen {
		t.Error("unknown clip reported as seen")
	}

	_, ok, err := m.Get("clip_20250512_093000.wav")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("unknown clip reported as present")
	}
}

func TestManifest_PutRoundTrip(t *testing.T) {
	m := newTestManifest(t, t.TempDir())

	want := watch.Record{
		Status:      watch.StatusDone,
		Transcript:  "remind me to buy milk",
		EntryType:   "reminder",
		ProcessedAt: time.Date(2025, 5, 12, 9, 30, 0, 0, time.UTC),
		ElapsedSec:  2.41,
	}
	if err := m.Put("clip_20250512_093000.wav", want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	seen, err := m.Seen("clip_20250512_093000.wav")
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if !seen {
		t.Error("recorded clip not seen")
	}

	got, ok, err := m.Get("clip_20250512_093000.wav")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("recorded clip not present")
	}
	if got.Status != want.Status || got.Transcript != want.Transcript || got.EntryType != want.EntryType {
		t.Errorf("record = %+v, want %+v", got, want)
	}
	if !got.ProcessedAt.Equal(want.ProcessedAt) {
		t.Errorf("processed at = %v, want %v", got.ProcessedAt, want.ProcessedAt)
	}
}

func TestManifest_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	m, err := watch.OpenManifest(dir)
	if err != nil {
		t.Fatalf("OpenManifest: %v", err)
	}
	rec := watch.Record{Status: watch.StatusFailed, Error: "whisper unreachable", ProcessedAt: time.Now()}
	if err := m.Put("clip_a.wav", rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := newTestManifest(t, dir)
	seen, err := reopened.Seen("clip_a.wav")
	if err != nil {
		t.Fatalf("Seen after reopen: %v", err)
	}
	if !seen {
		t.Error("record lost across reopen")
	}
	got, ok, err := reopened.Get("clip_a.wav")
	if err != nil || !ok {
		t.Fatalf("Get after reopen: ok=%v err=%v", ok, err)
	}
	if got.Error != "whisper unreachable" {
		t.Errorf("error text = %q", got.Error)
	}
}

func TestManifest_LenCounts(t *testing.T) {
	m := newTestManifest(t, t.TempDir())

	for _, name := range []string{"a.wav", "b.wav", "c.wav"} {
		if err := m.Put(name, watch.Record{Status: watch.StatusDone}); err != nil {
			t.Fatalf("Put(%s): %v", name, err)
		}
	}
	// Overwriting must not inflate the count.
	if err := m.Put("b.wav", watch.Record{Status: watch.StatusFailed}); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}

	n, err := m.Len()
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 3 {
		t.Errorf("Len = %d, want 3", n)
	}
}
