// Package transcribe defines the speech-to-text interface the clip
// watcher feeds finished WAV files through. Implementations live in
// subpackages; both current backends run whisper.cpp, one over HTTP and
// one in-process.
package transcribe

import "context"

// Result is the transcription of one clip.
type Result struct {
	// Text as returned by the engine, surrounding whitespace trimmed by
	// the caller's discretion.
	Text string

	// Language the engine was asked to transcribe in.
	Language string

	// Model identifies which model produced the text, when known.
	Model string
}

// Transcriber converts one complete WAV clip into text. Implementations
// must be safe for concurrent use; the watcher may process several clips
// at once.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (*Result, error)
}
