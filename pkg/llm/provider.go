// Package llm defines the completion interface the intent parser talks
// to. Implementations live in subpackages; the parser never knows which
// vendor is behind the interface.
package llm

import "context"

// CompletionRequest is a single blocking completion. The parser sends one
// prompt and waits for one answer; there is no conversation state.
type CompletionRequest struct {
	// System primes the model's persona. Optional.
	System string

	// Prompt is the user-role content.
	Prompt string

	// Temperature of 0 means provider default.
	Temperature float64

	// MaxTokens of 0 means provider default.
	MaxTokens int
}

// Usage reports token accounting when the backend provides it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResponse carries the model's answer.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// Provider produces completions.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
