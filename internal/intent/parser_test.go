package intent_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Badkarmaink/wodehouse/internal/intent"
	"github.com/Badkarmaink/wodehouse/pkg/llm"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 5, 12, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

type stubProvider struct {
	resp       *llm.CompletionResponse
	err        error
	onComplete func()

	req         llm.CompletionRequest
	hadDeadline bool
}

var _ llm.Provider = (*stubProvider)(nil)

func (s *stubProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.req = req
	_, s.hadDeadline = ctx.Deadline()
	if s.onComplete != nil {
		s.onComplete()
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func TestParse_ExtractsJSONFromProse(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	provider := &stubProvider{
		resp: &llm.CompletionResponse{Content: `Certainly, sir. Here is the entry:
{
  "type": "reminder",
  "title": "dentist appointment",
  "details": "dentist appointment on Thursday at 3pm",
  "tags": ["health", "appointment"],
  "timestamp": "2025-05-15 15:00:00"
}
I do hope that suffices.`},
		onComplete: func() { clock.Advance(1234 * time.Millisecond) },
	}
	p := intent.New(provider, intent.WithClock(clock.Now))

	entry, err := p.Parse(context.Background(), "remind me about the dentist on Thursday at three")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if entry.Type != "reminder" || entry.Title != "dentist appointment" {
		t.Errorf("entry = %+v", entry)
	}
	if len(entry.Tags) != 2 || entry.Tags[0] != "health" {
		t.Errorf("tags = %v", entry.Tags)
	}
	if entry.Timestamp != "2025-05-15 15:00:00" {
		t.Errorf("timestamp = %q, want the model's value preserved", entry.Timestamp)
	}
	if entry.ElapsedSec != 1.23 {
		t.Errorf("elapsed = %v, want 1.23", entry.ElapsedSec)
	}
}

func TestParse_CodeFencedJSON(t *testing.T) {
	t.Parallel()
	provider := &stubProvider{
		resp: &llm.CompletionResponse{Content: "```json\n{\"type\": \"note\", \"title\": \"weather\", \"details\": \"lovely day\", \"tags\": []}\n```"},
	}
	p := intent.New(provider, intent.WithClock(newFakeClock().Now))

	entry, err := p.Parse(context.Background(), "what a lovely day")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if entry.Type != "note" || entry.Details != "lovely day" {
		t.Errorf("entry = %+v", entry)
	}
}

func TestParse_PromptContents(t *testing.T) {
	t.Parallel()
	provider := &stubProvider{
		resp: &llm.CompletionResponse{Content: `{"type": "task", "title": "milk", "details": "buy milk", "tags": []}`},
	}
	p := intent.New(provider, intent.WithClock(newFakeClock().Now))

	if _, err := p.Parse(context.Background(), "buy milk tomorrow"); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if !strings.Contains(provider.req.System, "You are Wodehouse, a polite and helpful personal assistant.") {
		t.Errorf("system prompt missing persona:\n%s", provider.req.System)
	}
	if !strings.Contains(provider.req.System, "Today is Monday, May 12, 2025.") {
		t.Errorf("system prompt missing date:\n%s", provider.req.System)
	}
	want := "Transcript: \"buy milk tomorrow\"\nRespond with only the JSON output."
	if provider.req.Prompt != want {
		t.Errorf("prompt = %q, want %q", provider.req.Prompt, want)
	}
}

func TestParse_NoJSONFallback(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	provider := &stubProvider{
		resp:       &llm.CompletionResponse{Content: "I'm terribly sorry, I could not make that out."},
		onComplete: func() { clock.Advance(500 * time.Millisecond) },
	}
	p := intent.New(provider, intent.WithClock(clock.Now))

	entry, err := p.Parse(context.Background(), "mumble mumble")
	if !errors.Is(err, intent.ErrNoJSON) {
		t.Fatalf("err = %v, want ErrNoJSON", err)
	}
	if entry.Type != "error" || entry.Title != "LLM parsing error" {
		t.Errorf("fallback entry = %+v", entry)
	}
	if got, want := strings.Join(entry.Tags, ","), "error,llm,wodehouse"; got != want {
		t.Errorf("tags = %q, want %q", got, want)
	}
	if entry.Timestamp != "2025-05-12 09:30:00" {
		t.Errorf("timestamp = %q, want local stamp", entry.Timestamp)
	}
	if entry.ElapsedSec != 0.5 {
		t.Errorf("elapsed = %v, want 0.5", entry.ElapsedSec)
	}
}

func TestParse_ProviderErrorFallback(t *testing.T) {
	t.Parallel()
	provider := &stubProvider{err: errors.New("connection refused")}
	p := intent.New(provider, intent.WithClock(newFakeClock().Now))

	entry, err := p.Parse(context.Background(), "remind me to call")
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("err = %v, want wrapped transport error", err)
	}
	if entry.Type != "error" {
		t.Errorf("entry type = %q, want error", entry.Type)
	}
	if !strings.Contains(entry.Details, "connection refused") {
		t.Errorf("details = %q, want failure text", entry.Details)
	}
}

func TestParse_BadJSONFallback(t *testing.T) {
	t.Parallel()
	provider := &stubProvider{
		resp: &llm.CompletionResponse{Content: `{"type": 42, "title": ["not", "a", "string"]}`},
	}
	p := intent.New(provider, intent.WithClock(newFakeClock().Now))

	entry, err := p.Parse(context.Background(), "log this")
	if err == nil || !strings.Contains(err.Error(), "decode model output") {
		t.Fatalf("err = %v, want decode error", err)
	}
	if entry.Type != "error" {
		t.Errorf("entry type = %q, want error", entry.Type)
	}
}

func TestParse_DeadlineApplied(t *testing.T) {
	t.Parallel()
	provider := &stubProvider{
		resp: &llm.CompletionResponse{Content: `{"type": "note", "title": "t", "details": "d", "tags": []}`},
	}
	p := intent.New(provider, intent.WithClock(newFakeClock().Now))

	if _, err := p.Parse(context.Background(), "note this"); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !provider.hadDeadline {
		t.Error("expected a deadline on the provider context")
	}
}

func TestParse_ZeroTimeoutDisablesDeadline(t *testing.T) {
	t.Parallel()
	provider := &stubProvider{
		resp: &llm.CompletionResponse{Content: `{"type": "note", "title": "t", "details": "d", "tags": []}`},
	}
	p := intent.New(provider, intent.WithClock(newFakeClock().Now), intent.WithTimeout(0))

	if _, err := p.Parse(context.Background(), "note this"); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if provider.hadDeadline {
		t.Error("expected no deadline when timeout is zero")
	}
}
