// Package whisper provides the two whisper.cpp transcription backends: a
// client for the whisper-server REST API (POST /inference) and an
// in-process CGO binding that loads the model directly.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/Badkarmaink/wodehouse/pkg/transcribe"
)

const (
	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second
)

var _ transcribe.Transcriber = (*Server)(nil)

// Option is a functional option for configuring a [Server].
type Option func(*Server)

// WithModel sets the model identifier forwarded to the whisper-server
// (e.g., "base.en", "small"). When empty the server uses whichever model
// it was started with.
func WithModel(model string) Option {
	return func(s *Server) { s.model = model }
}

// WithLanguage sets the BCP-47 language code sent with each request
// (e.g., "en", "de"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(s *Server) { s.language = lang }
}

// WithTimeout bounds each inference request. Defaults to 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.client.Timeout = d }
}

// WithHTTPClient replaces the HTTP client entirely.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Server) { s.client = c }
}

// Server transcribes clips against a running whisper-server binary. Safe
// for concurrent use.
type Server struct {
	baseURL  string
	model    string
	language string
	client   *http.Client
}

// NewServer creates a client for the whisper-server at baseURL
// (e.g., "http://localhost:8080").
func NewServer(baseURL string, opts ...Option) (*Server, error) {
	if baseURL == "" {
		return nil, errors.New("whisper: baseURL must not be empty")
	}
	s := &Server{
		baseURL:  baseURL,
		language: defaultLanguage,
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Transcribe uploads the WAV file as multipart/form-data to the
// /inference endpoint and returns the text the server produced.
func (s *Server) Transcribe(ctx context.Context, wav []byte) (*transcribe.Result, error) {
	if len(wav) == 0 {
		return nil, errors.New("whisper: empty audio")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, fmt.Errorf("whisper: write wav data: %w", err)
	}
	if s.language != "" {
		if err := mw.WriteField("language", s.language); err != nil {
			return nil, fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if s.model != "" {
		if err := mw.WriteField("model", s.model); err != nil {
			return nil, fmt.Errorf("whisper: write model field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	endpoint := s.baseURL + "/inference"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	return &transcribe.Result{
		Text:     result.Text,
		Language: s.language,
		Model:    s.model,
	}, nil
}
