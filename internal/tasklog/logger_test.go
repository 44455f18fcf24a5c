package tasklog_test

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Badkarmaink/wodehouse/internal/tasklog"
)

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2025, 5, 12, 9, 30, 45, 0, time.UTC)
	}
}

func newTestLogger(t *testing.T) (*tasklog.Logger, string) {
	t.Helper()
	dir := t.TempDir()
	l, err := tasklog.New(dir, tasklog.WithClock(fixedClock()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l, dir
}

func TestNew_RequiresDir(t *testing.T) {
	t.Parallel()
	if _, err := tasklog.New(""); err == nil {
		t.Fatal("expected error for empty directory, got nil")
	}
}

func TestNew_CreatesNestedDir(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "shared", "logs")
	if _, err := tasklog.New(dir); err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("directory not created: %v", err)
	}
}

func TestAppend_MarkdownDailyFile(t *testing.T) {
	t.Parallel()
	l, dir := newTestLogger(t)

	err := l.Append(tasklog.Entry{
		Type:    "task",
		Title:   "buy milk",
		Details: "buy milk on the way home",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "2025-05-12_daily_log.md"))
	if err != nil {
		t.Fatalf("read markdown: %v", err)
	}
	want := "- **TASK** — buy milk  \n  buy milk on the way home\n"
	if string(data) != want {
		t.Errorf("markdown = %q, want %q", string(data), want)
	}
}

func TestAppend_MarkdownDefaults(t *testing.T) {
	t.Parallel()
	l, dir := newTestLogger(t)

	if err := l.Append(tasklog.Entry{Details: "something mumbled"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "2025-05-12_daily_log.md"))
	if err != nil {
		t.Fatalf("read markdown: %v", err)
	}
	if !strings.HasPrefix(string(data), "- **NOTE** — (untitled)") {
		t.Errorf("markdown = %q, want NOTE/(untitled) defaults", string(data))
	}
}

func TestAppend_MarkdownAccumulates(t *testing.T) {
	t.Parallel()
	l, dir := newTestLogger(t)

	for _, title := range []string{"first", "second", "third"} {
		if err := l.Append(tasklog.Entry{Type: "note", Title: title}); err != nil {
			t.Fatalf("Append(%s): %v", title, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "2025-05-12_daily_log.md"))
	if err != nil {
		t.Fatalf("read markdown: %v", err)
	}
	if got := strings.Count(string(data), "- **NOTE**"); got != 3 {
		t.Errorf("bullet count = %d, want 3", got)
	}
}

func TestAppend_CSVHeaderWrittenOnce(t *testing.T) {
	t.Parallel()
	l, dir := newTestLogger(t)

	entries := []tasklog.Entry{
		{
			Type:       "reminder",
			Title:      "dentist",
			Details:    "dentist appointment at 3pm",
			Tags:       []string{"health", "appointment"},
			Timestamp:  "2025-05-12 09:30:45",
			ElapsedSec: 3.27,
		},
		{
			Type:    "grocery",
			Title:   "shopping list",
			Details: "eggs, butter, marmalade",
			Tags:    []string{"shopping"},
		},
	}
	for i, e := range entries {
		if err := l.Append(e); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}

	f, err := os.Open(filepath.Join(dir, "task_log.csv"))
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("record count = %d, want header + 2 rows", len(records))
	}

	wantHeader := "timestamp,type,title,details,tags,elapsed_sec"
	if got := strings.Join(records[0], ","); got != wantHeader {
		t.Errorf("header = %q, want %q", got, wantHeader)
	}

	first := records[1]
	if first[0] != "2025-05-12 09:30:45" || first[1] != "reminder" || first[2] != "dentist" {
		t.Errorf("first row = %v", first)
	}
	if first[4] != "health|appointment" {
		t.Errorf("tags = %q, want pipe-joined", first[4])
	}
	if first[5] != "3.27" {
		t.Errorf("elapsed = %q, want 3.27", first[5])
	}

	// The comma inside details survives the round trip.
	second := records[2]
	if second[3] != "eggs, butter, marmalade" {
		t.Errorf("details = %q", second[3])
	}
	if second[0] != "" {
		t.Errorf("timestamp = %q, want empty when absent", second[0])
	}
	if second[5] != "" {
		t.Errorf("elapsed = %q, want empty when zero", second[5])
	}
}

func TestAppend_BothFilesPerEntry(t *testing.T) {
	t.Parallel()
	l, dir := newTestLogger(t)

	if err := l.Append(tasklog.Entry{Type: "idea", Title: "write a novel"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	for _, name := range []string{"2025-05-12_daily_log.md", "task_log.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}
}
