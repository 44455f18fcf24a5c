// Package clip persists finalized utterances as WAV files in the shared
// audio directory. Files are the hand-off boundary between capture and
// the transcription watcher; nothing in this package ever blocks on a
// downstream consumer.
package clip

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Badkarmaink/wodehouse/pkg/audio"
	"github.com/Badkarmaink/wodehouse/pkg/endpoint"
)

// timeLayout names clips by utterance start, second resolution. Two
// utterances starting within the same second overwrite, last one wins.
const timeLayout = "20060102_150405"

// Clip describes one file written to the audio directory.
type Clip struct {
	Path     string
	Duration time.Duration
	Size     int64
}

// Writer turns utterances into mono 16-bit WAV files under a fixed
// directory at a fixed sample rate.
type Writer struct {
	dir        string
	sampleRate int
}

// NewWriter ensures the clip directory exists and returns a writer bound
// to it.
func NewWriter(dir string, sampleRate int) (*Writer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("clip: invalid sample rate %d", sampleRate)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("clip: create directory: %w", err)
	}
	return &Writer{dir: dir, sampleRate: sampleRate}, nil
}

// Dir returns the directory clips are written to.
func (w *Writer) Dir() string { return w.dir }

// Write persists the utterance as clip_<start>.wav and returns what was
// written. The trailing silence that closed the utterance is kept in the
// clip.
func (w *Writer) Write(u *endpoint.Utterance) (Clip, error) {
	if u == nil || len(u.Frames) == 0 {
		return Clip{}, fmt.Errorf("clip: empty utterance")
	}

	pcm := u.PCM()
	data, err := audio.EncodeWAV(pcm, w.sampleRate, 1)
	if err != nil {
		return Clip{}, fmt.Errorf("clip: encode: %w", err)
	}

	name := "clip_" + u.StartedAt.Format(timeLayout) + ".wav"
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Clip{}, fmt.Errorf("clip: write %s: %w", name, err)
	}

	return Clip{
		Path:     path,
		Duration: audio.PCMDuration(len(pcm), w.sampleRate),
		Size:     int64(len(data)),
	}, nil
}
