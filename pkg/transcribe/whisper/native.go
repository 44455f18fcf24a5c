// This file contains the Native backend built on the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/Badkarmaink/wodehouse/pkg/audio"
	"github.com/Badkarmaink/wodehouse/pkg/transcribe"
)

var _ transcribe.Transcriber = (*Native)(nil)

// Native runs whisper.cpp in-process, eliminating the HTTP hop. The model
// is loaded once and shared; each transcription runs on a fresh context,
// so concurrent calls are safe.
type Native struct {
	model     whisperlib.Model
	modelName string
	language  string
}

// NativeOption is a functional option for configuring a [Native].
type NativeOption func(*Native)

// WithNativeLanguage sets the BCP-47 language code for transcription.
// Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(n *Native) { n.language = lang }
}

// NewNative loads the whisper.cpp model from the given file path. The
// caller must call Close when the backend is no longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*Native, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	n := &Native{
		model:     model,
		modelName: strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath)),
		language:  defaultLanguage,
	}
	for _, o := range opts {
		o(n)
	}
	return n, nil
}

// Close releases the model.
func (n *Native) Close() error {
	if n.model != nil {
		return n.model.Close()
	}
	return nil
}

// Transcribe decodes the WAV clip and runs inference on a fresh
// whisper.cpp context. Only mono 16-bit clips are accepted, which is the
// only format the clip writer produces.
func (n *Native) Transcribe(ctx context.Context, wav []byte) (*transcribe.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}

	h, pcm, err := audio.DecodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("whisper: decode clip: %w", err)
	}
	if h.Channels != 1 {
		return nil, fmt.Errorf("whisper: %d-channel clip not supported, want mono", h.Channels)
	}
	samples := audio.PCMToFloat32(pcm)

	// Contexts are not thread-safe but the model is, so every call gets
	// its own.
	wctx, err := n.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(n.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", n.language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return &transcribe.Result{
		Text:     strings.Join(parts, " "),
		Language: n.language,
		Model:    n.modelName,
	}, nil
}
