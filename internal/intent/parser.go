// Package intent turns raw speech transcripts into structured task
// entries by prompting a language model and extracting the JSON object
// from its reply. Every failure path yields a fallback error entry so
// the daily log always records that something was said.
package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"time"

	"github.com/Badkarmaink/wodehouse/internal/tasklog"
	"github.com/Badkarmaink/wodehouse/pkg/llm"
)

// systemTemplate primes the model persona. The date placeholder is
// filled per request so the model can resolve relative phrases like
// "tomorrow".
const systemTemplate = `You are Wodehouse, a polite and helpful personal assistant.

Given a text transcript, identify if the user is:
- creating a task, reminder, or appointment
- logging a journal entry or personal note
- tracking a habit or daily activity

Extract this intent in JSON format.

Respond in the following JSON format:
{
  "type": "reminder",
  "title": "short summary",
  "details": "full text of the user intent",
  "tags": ["optional", "contextual", "tags"],
  "timestamp": "YYYY-MM-DD HH:MM:SS"
}

Today is %s.
`

const (
	dateLayout     = "Monday, January 02, 2006"
	defaultTimeout = 60 * time.Second
)

// ErrNoJSON reports a model reply that contained no JSON object.
var ErrNoJSON = errors.New("no JSON object found in model output")

// jsonBlockRe grabs the widest brace-delimited block, newlines included.
// Models often wrap the object in prose or code fences.
var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

// Parser prompts a completion backend and decodes the reply into a
// [tasklog.Entry].
type Parser struct {
	provider llm.Provider
	timeout  time.Duration
	now      func() time.Time
}

// Option configures a [Parser].
type Option func(*Parser)

// WithTimeout bounds a single Parse call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(p *Parser) { p.timeout = d }
}

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

// New builds a Parser on top of the given completion provider.
func New(provider llm.Provider, opts ...Option) *Parser {
	p := &Parser{
		provider: provider,
		timeout:  defaultTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse sends the transcript to the model and returns the structured
// entry it describes. On any failure the returned entry is a fallback
// error record carrying the failure text, and the error is returned
// alongside it; callers log the entry either way.
//
// Successful entries keep whatever timestamp the model produced. Only
// fallback entries are stamped with the local clock.
func (p *Parser) Parse(ctx context.Context, transcript string) (tasklog.Entry, error) {
	start := p.now()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	slog.Debug("querying intent model", "transcript_len", len(transcript))

	resp, err := p.provider.Complete(ctx, llm.CompletionRequest{
		System: fmt.Sprintf(systemTemplate, start.Format(dateLayout)),
		// Inner quotes in the transcript are passed through unescaped.
		Prompt: "Transcript: \"" + transcript + "\"\nRespond with only the JSON output.",
	})
	if err != nil {
		err = fmt.Errorf("query model: %w", err)
		return p.errorEntry(err, start), err
	}

	block := jsonBlockRe.FindString(resp.Content)
	if block == "" {
		return p.errorEntry(ErrNoJSON, start), ErrNoJSON
	}

	var entry tasklog.Entry
	if err := json.Unmarshal([]byte(block), &entry); err != nil {
		err = fmt.Errorf("decode model output: %w", err)
		return p.errorEntry(err, start), err
	}

	entry.ElapsedSec = round2(p.now().Sub(start).Seconds())
	slog.Debug("intent parsed", "type", entry.Type, "elapsed_sec", entry.ElapsedSec)
	return entry, nil
}

// errorEntry is the fallback record written when the model call or the
// decode fails. It mirrors the shape of a normal entry so downstream
// logging needs no special case.
func (p *Parser) errorEntry(cause error, start time.Time) tasklog.Entry {
	now := p.now()
	elapsed := round2(now.Sub(start).Seconds())
	slog.Warn("intent parsing failed", "error", cause, "elapsed_sec", elapsed)
	return tasklog.Entry{
		Type:       "error",
		Title:      "LLM parsing error",
		Details:    cause.Error(),
		Tags:       []string{"error", "llm", "wodehouse"},
		Timestamp:  now.Format(tasklog.TimestampLayout),
		ElapsedSec: elapsed,
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
