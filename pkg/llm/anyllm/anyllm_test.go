package anyllm

import (
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/Badkarmaink/wodehouse/pkg/llm"
)

// TestNew_EmptyProviderName checks that an empty provider name returns an error.
func TestNew_EmptyProviderName(t *testing.T) {
	_, err := New("", "phi3")
	if err == nil {
		t.Fatal("expected error for empty providerName")
	}
}

// TestNew_EmptyModel checks that an empty model name returns an error.
func TestNew_EmptyModel(t *testing.T) {
	_, err := New("ollama", "")
	if err == nil {
		t.Fatal("expected error for empty model")
	}
}

// TestNew_UnsupportedProvider checks that an unsupported provider returns an error.
func TestNew_UnsupportedProvider(t *testing.T) {
	_, err := New("fakecloud", "some-model", anyllmlib.WithAPIKey("dummy"))
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

// TestNew_Ollama_NoAPIKey checks that Ollama works without an API key.
func TestNew_Ollama_NoAPIKey(t *testing.T) {
	p, err := NewOllama("phi3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
	if p.model != "phi3" {
		t.Errorf("expected model phi3, got %q", p.model)
	}
}

// TestNew_OpenAI_WithAPIKey checks that OpenAI constructs with an explicit key.
func TestNew_OpenAI_WithAPIKey(t *testing.T) {
	p, err := NewOpenAI("gpt-4o-mini", anyllmlib.WithAPIKey("sk-test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
}

// TestBuildParams_SystemAndPrompt checks message assembly order and roles.
func TestBuildParams_SystemAndPrompt(t *testing.T) {
	p := &Provider{model: "phi3"}
	params := p.buildParams(llm.CompletionRequest{
		System: "You are Wodehouse.",
		Prompt: "Transcript: \"buy milk\"",
	})
	if params.Model != "phi3" {
		t.Errorf("model = %q, want phi3", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Errorf("first message role = %q, want system", params.Messages[0].Role)
	}
	if params.Messages[1].Role != anyllmlib.RoleUser {
		t.Errorf("second message role = %q, want user", params.Messages[1].Role)
	}
}

// TestBuildParams_NoSystem checks that an absent system prompt yields one user message.
func TestBuildParams_NoSystem(t *testing.T) {
	p := &Provider{model: "phi3"}
	params := p.buildParams(llm.CompletionRequest{Prompt: "hello"})
	if len(params.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(params.Messages))
	}
	if params.Temperature != nil {
		t.Error("zero temperature must map to nil (provider default)")
	}
	if params.MaxTokens != nil {
		t.Error("zero max tokens must map to nil (provider default)")
	}
}

// TestBuildParams_Tuning checks that explicit tuning fields become pointers.
func TestBuildParams_Tuning(t *testing.T) {
	p := &Provider{model: "phi3"}
	params := p.buildParams(llm.CompletionRequest{
		Prompt:      "hello",
		Temperature: 0.2,
		MaxTokens:   512,
	})
	if params.Temperature == nil || *params.Temperature != 0.2 {
		t.Error("temperature not forwarded")
	}
	if params.MaxTokens == nil || *params.MaxTokens != 512 {
		t.Error("max tokens not forwarded")
	}
}
