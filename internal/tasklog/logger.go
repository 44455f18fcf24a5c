// Package tasklog persists parsed intent entries to the shared log
// directory in two forms: a human-readable markdown daily log and a
// machine-readable CSV ledger.
package tasklog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// TimestampLayout is the wall-clock format used in entry timestamps and the
// CSV ledger.
const TimestampLayout = "2006-01-02 15:04:05"

// dayLayout names the markdown file for the day an entry is appended.
const dayLayout = "2006-01-02"

// csvName is the ledger file, one per log directory.
const csvName = "task_log.csv"

// csvHeader is written once, when the ledger file is first created.
var csvHeader = []string{"timestamp", "type", "title", "details", "tags", "elapsed_sec"}

// Entry is one parsed intent. Field names mirror the JSON contract the LLM
// is instructed to produce.
type Entry struct {
	Type       string   `json:"type"`
	Title      string   `json:"title"`
	Details    string   `json:"details"`
	Tags       []string `json:"tags"`
	Timestamp  string   `json:"timestamp"`
	ElapsedSec float64  `json:"elapsed_sec"`
}

// Option configures a [Logger].
type Option func(*Logger)

// WithClock replaces the logger's time source. The clock picks the markdown
// file for the current day.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		l.now = now
	}
}

// Logger appends entries to the log directory. Safe for concurrent use;
// appends are serialised under one mutex so markdown and CSV stay in step.
type Logger struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

// New creates a [Logger] writing to dir, creating the directory if needed.
func New(dir string, opts ...Option) (*Logger, error) {
	if dir == "" {
		return nil, fmt.Errorf("tasklog: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("tasklog: create %s: %w", dir, err)
	}
	l := &Logger{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Dir returns the log directory.
func (l *Logger) Dir() string {
	return l.dir
}

// Append writes e to the markdown daily log and the CSV ledger.
func (l *Logger) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.appendMarkdown(e); err != nil {
		return fmt.Errorf("tasklog: markdown: %w", err)
	}
	if err := l.appendCSV(e); err != nil {
		return fmt.Errorf("tasklog: csv: %w", err)
	}
	return nil
}

// appendMarkdown appends one bullet to the current day's markdown file.
func (l *Logger) appendMarkdown(e Entry) error {
	name := l.now().Format(dayLayout) + "_daily_log.md"
	f, err := os.OpenFile(filepath.Join(l.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(markdownLine(e)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// markdownLine renders one entry as a markdown bullet. The two trailing
// spaces before the newline force a line break between title and details.
func markdownLine(e Entry) string {
	entryType := e.Type
	if entryType == "" {
		entryType = "note"
	}
	title := e.Title
	if title == "" {
		title = "(untitled)"
	}
	return fmt.Sprintf("- **%s** — %s  \n  %s\n", strings.ToUpper(entryType), title, e.Details)
}

// appendCSV appends one record to the ledger, writing the header first when
// the file does not exist yet.
func (l *Logger) appendCSV(e Entry) error {
	path := filepath.Join(l.dir, csvName)
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(csvHeader); err != nil {
			f.Close()
			return err
		}
	}
	elapsed := ""
	if e.ElapsedSec != 0 {
		elapsed = strconv.FormatFloat(e.ElapsedSec, 'f', -1, 64)
	}
	if err := w.Write([]string{
		e.Timestamp,
		e.Type,
		e.Title,
		e.Details,
		strings.Join(e.Tags, "|"),
		elapsed,
	}); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
