package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Badkarmaink/wodehouse/internal/observe"
	"github.com/Badkarmaink/wodehouse/internal/resilience"
	"github.com/Badkarmaink/wodehouse/internal/tasklog"
	"github.com/Badkarmaink/wodehouse/pkg/transcribe"
)

// Parser turns one transcript into a structured log entry. An error
// alongside a non-zero entry means the model call failed and the entry
// is the fallback record, which is still written.
type Parser interface {
	Parse(ctx context.Context, transcript string) (tasklog.Entry, error)
}

// Sink receives finished entries.
type Sink interface {
	Append(e tasklog.Entry) error
}

// Config wires a [Watcher]. Dir, Transcriber, Parser, Sink and Manifest
// are required.
type Config struct {
	// Dir is the audio directory to scan for WAV clips.
	Dir string

	// Interval between scans. Default 2 seconds.
	Interval time.Duration

	// Workers bounds concurrent clip jobs. The default of 1 processes
	// clips strictly in name order.
	Workers int

	// MaxRetries is how many extra transcription attempts a clip gets
	// before it is marked failed.
	MaxRetries int

	// RetryDelay is the pause before the first transcription retry,
	// doubling on each further attempt. Default 500 milliseconds.
	RetryDelay time.Duration

	// TranscribeLabel and IntentLabel name the backends on provider
	// metrics. Default "whisper" and "llm".
	TranscribeLabel string
	IntentLabel     string

	Transcriber transcribe.Transcriber
	Parser      Parser
	Sink        Sink
	Manifest    *Manifest

	// Breaker guards the transcription and model calls. Optional; nil
	// leaves the calls unguarded.
	Breaker *resilience.Breaker

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Option configures a [Watcher].
type Option func(*Watcher)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) { w.now = now }
}

// Watcher drives clip processing. Use [New] to build one, then [Run]
// for the poll loop or [RunOnce] for a single scan.
type Watcher struct {
	dir             string
	interval        time.Duration
	workers         int
	maxRetries      int
	retryDelay      time.Duration
	transcribeLabel string
	intentLabel     string

	transcriber transcribe.Transcriber
	parser      Parser
	sink        Sink
	manifest    *Manifest
	breaker     *resilience.Breaker
	metrics     *observe.Metrics
	now         func() time.Time
}

// New validates the wiring and builds a Watcher.
func New(cfg Config, opts ...Option) (*Watcher, error) {
	switch {
	case cfg.Dir == "":
		return nil, errors.New("audio directory required")
	case cfg.Transcriber == nil:
		return nil, errors.New("transcriber required")
	case cfg.Parser == nil:
		return nil, errors.New("parser required")
	case cfg.Sink == nil:
		return nil, errors.New("sink required")
	case cfg.Manifest == nil:
		return nil, errors.New("manifest required")
	}

	w := &Watcher{
		dir:             cfg.Dir,
		interval:        cfg.Interval,
		workers:         cfg.Workers,
		maxRetries:      cfg.MaxRetries,
		retryDelay:      cfg.RetryDelay,
		transcribeLabel: cfg.TranscribeLabel,
		intentLabel:     cfg.IntentLabel,
		transcriber:     cfg.Transcriber,
		parser:          cfg.Parser,
		sink:            cfg.Sink,
		manifest:        cfg.Manifest,
		breaker:         cfg.Breaker,
		metrics:         cfg.Metrics,
		now:             time.Now,
	}
	if w.interval <= 0 {
		w.interval = 2 * time.Second
	}
	if w.workers <= 0 {
		w.workers = 1
	}
	if w.maxRetries < 0 {
		w.maxRetries = 0
	}
	if w.retryDelay <= 0 {
		w.retryDelay = 500 * time.Millisecond
	}
	if w.transcribeLabel == "" {
		w.transcribeLabel = "whisper"
	}
	if w.intentLabel == "" {
		w.intentLabel = "llm"
	}
	if w.metrics == nil {
		w.metrics = observe.DefaultMetrics()
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Stats is the snapshot served on the ops endpoint.
type Stats struct {
	Dir           string `json:"dir"`
	ClipsRecorded int    `json:"clips_recorded"`
	Workers       int    `json:"workers"`
}

// Stats summarizes the manifest. A counting error leaves the count at
// zero rather than failing the status page.
func (w *Watcher) Stats() Stats {
	n, err := w.manifest.Len()
	if err != nil {
		slog.Warn("manifest count failed", "error", err)
	}
	return Stats{Dir: w.dir, ClipsRecorded: n, Workers: w.workers}
}

// Run scans immediately, then on every tick, until ctx is canceled.
// Processing errors are logged and never stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	slog.Info("watching for new audio clips",
		"dir", w.dir,
		"interval", w.interval,
		"workers", w.workers,
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.scan(ctx); err != nil {
			slog.Error("scan failed", "dir", w.dir, "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single scan and returns its error.
func (w *Watcher) RunOnce(ctx context.Context) error {
	return w.scan(ctx)
}

// scan lists the audio directory and dispatches every unseen .wav clip.
// os.ReadDir returns names already sorted, which fixes the processing
// order when workers is 1.
func (w *Watcher) scan(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("list %s: %w", w.dir, err)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(w.workers)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".wav") {
			continue
		}
		seen, err := w.manifest.Seen(name)
		if err != nil {
			slog.Error("manifest lookup failed", "clip", name, "error", err)
			continue
		}
		if seen {
			continue
		}
		eg.Go(func() error {
			w.process(egCtx, name)
			return nil
		})
	}
	return eg.Wait()
}

// process runs one clip through transcription, intent extraction and the
// task log, then records the outcome in the manifest. A clip interrupted
// by shutdown keeps no record so the next run retries it.
func (w *Watcher) process(ctx context.Context, name string) {
	if ctx.Err() != nil {
		return
	}

	ctx, span := observe.StartSpan(ctx, "process clip")
	defer span.End()
	span.SetAttributes(observe.Attr("clip", name))

	job := uuid.NewString()[:8]
	log := observe.Logger(ctx).With("job", job, "clip", name)
	start := w.now()

	log.Info("processing clip")

	text, err := w.transcribeClip(ctx, name, log)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("shutting down, clip left for next run")
			return
		}
		log.Error("transcription failed", "error", err)
		w.metrics.RecordWatchClip(ctx, StatusFailed)
		w.record(log, name, Record{
			Status:      StatusFailed,
			Error:       err.Error(),
			ProcessedAt: start,
		})
		return
	}

	if strings.TrimSpace(text) == "" {
		log.Info("empty transcript, skipping")
		w.metrics.RecordWatchClip(ctx, StatusEmpty)
		w.record(log, name, Record{Status: StatusEmpty, ProcessedAt: start})
		return
	}

	entry, refused := w.parseIntent(ctx, text, log)
	if refused != nil {
		if ctx.Err() != nil {
			log.Info("shutting down, clip left for next run")
			return
		}
		w.metrics.RecordWatchClip(ctx, StatusFailed)
		w.record(log, name, Record{
			Status:      StatusFailed,
			Transcript:  text,
			Error:       refused.Error(),
			ProcessedAt: start,
		})
		return
	}

	// The model usually dates its own entries; stamp the ones it left
	// undated so the CSV never carries an empty timestamp.
	if entry.Timestamp == "" {
		entry.Timestamp = w.now().Format(tasklog.TimestampLayout)
	}

	if err := w.sink.Append(entry); err != nil {
		log.Error("task log append failed", "error", err)
		w.metrics.RecordWatchClip(ctx, StatusFailed)
		w.record(log, name, Record{
			Status:      StatusFailed,
			Transcript:  text,
			Error:       err.Error(),
			ProcessedAt: start,
		})
		return
	}

	w.metrics.RecordEntry(ctx, entry.Type)
	w.metrics.RecordWatchClip(ctx, StatusDone)
	elapsed := w.now().Sub(start)
	w.record(log, name, Record{
		Status:      StatusDone,
		Transcript:  text,
		EntryType:   entry.Type,
		ProcessedAt: start,
		ElapsedSec:  elapsed.Seconds(),
	})
	log.Info("entry logged",
		"type", entry.Type,
		"title", entry.Title,
		"elapsed", elapsed,
	)
}

// transcribeClip reads the clip and runs it through the transcription
// backend, retrying transient failures with a doubling backoff. An open
// breaker stops the retry loop immediately.
func (w *Watcher) transcribeClip(ctx context.Context, name string, log *slog.Logger) (string, error) {
	data, err := os.ReadFile(filepath.Join(w.dir, name))
	if err != nil {
		return "", fmt.Errorf("read clip: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		var text string
		start := w.now()
		err := w.execute(ctx, func() error {
			res, err := w.transcriber.Transcribe(ctx, data)
			if err != nil {
				return err
			}
			text = res.Text
			return nil
		})
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			w.metrics.TranscribeDuration.Record(ctx, w.now().Sub(start).Seconds())
		}
		if err == nil {
			w.metrics.RecordProviderRequest(ctx, w.transcribeLabel, "transcribe", "ok")
			return text, nil
		}

		lastErr = err
		w.metrics.RecordProviderRequest(ctx, w.transcribeLabel, "transcribe", "error")
		w.metrics.RecordProviderError(ctx, w.transcribeLabel, "transcribe")
		if errors.Is(err, resilience.ErrCircuitOpen) {
			break
		}
		if attempt < w.maxRetries {
			delay := w.retryDelay << attempt
			log.Warn("transcription attempt failed, retrying",
				"attempt", attempt+1,
				"backoff", delay,
				"error", err,
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", lastErr
}

// parseIntent runs the transcript through the model. A non-nil second
// return means the breaker refused the call outright and there is no
// entry; a parser failure still yields the fallback entry, which the
// caller writes like any other.
func (w *Watcher) parseIntent(ctx context.Context, text string, log *slog.Logger) (tasklog.Entry, error) {
	var entry tasklog.Entry
	var perr error
	ran := false

	start := w.now()
	err := w.execute(ctx, func() error {
		ran = true
		entry, perr = w.parser.Parse(ctx, text)
		return perr
	})
	if !ran {
		log.Warn("intent call refused", "error", err)
		w.metrics.RecordProviderRequest(ctx, w.intentLabel, "intent", "error")
		return tasklog.Entry{}, err
	}
	w.metrics.IntentDuration.Record(ctx, w.now().Sub(start).Seconds())

	status := "ok"
	if perr != nil {
		status = "error"
		w.metrics.RecordProviderError(ctx, w.intentLabel, "intent")
		log.Warn("intent parsing fell back to error entry", "error", perr)
	}
	w.metrics.RecordProviderRequest(ctx, w.intentLabel, "intent", status)
	return entry, nil
}

// execute runs fn through the breaker when one is configured.
func (w *Watcher) execute(ctx context.Context, fn func() error) error {
	if w.breaker == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn()
	}
	return w.breaker.Execute(ctx, fn)
}

// record stores the outcome; a manifest write failure is logged and the
// clip will be picked up again on a later scan.
func (w *Watcher) record(log *slog.Logger, name string, rec Record) {
	if err := w.manifest.Put(name, rec); err != nil {
		log.Error("manifest write failed", "error", err)
	}
}
