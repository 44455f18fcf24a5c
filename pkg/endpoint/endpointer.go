// Package endpoint turns a stream of classified audio frames into discrete
// utterances. An endpointer waits in idle until it sees speech, records
// everything from that moment on, and finalizes the utterance once the
// speaker has been quiet for longer than the configured silence window.
package endpoint

import (
	"time"

	"github.com/Badkarmaink/wodehouse/pkg/audio"
)

// State is the endpointer's position in the utterance lifecycle.
type State int

const (
	// StateIdle means no speech has been detected; frames are discarded.
	StateIdle State = iota

	// StateRecording means an utterance is being accumulated.
	StateRecording
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	default:
		return "unknown"
	}
}

// DefaultSilence is how long the speaker must be quiet before an
// utterance is considered finished.
const DefaultSilence = 1500 * time.Millisecond

// Utterance is one contiguous stretch of recorded audio, from the first
// speech frame through the trailing silence that ended it.
type Utterance struct {
	// Frames in arrival order. The first frame always carried speech;
	// the tail carries the silence that closed the utterance.
	Frames []audio.Frame

	// StartedAt is the timestamp of the first speech frame.
	StartedAt time.Time

	// LastVoiceAt is the timestamp of the most recent speech frame.
	LastVoiceAt time.Time
}

// PCM concatenates the frames into one contiguous sample buffer.
func (u *Utterance) PCM() []byte {
	total := 0
	for _, f := range u.Frames {
		total += len(f.Data)
	}
	pcm := make([]byte, 0, total)
	for _, f := range u.Frames {
		pcm = append(pcm, f.Data...)
	}
	return pcm
}

// Duration returns the audio length of the utterance at the given sample
// rate, trailing silence included.
func (u *Utterance) Duration(sampleRate int) time.Duration {
	total := 0
	for _, f := range u.Frames {
		total += len(f.Data)
	}
	return audio.PCMDuration(total, sampleRate)
}

// Option tunes an [Endpointer].
type Option func(*Endpointer)

// WithMaxUtterance caps how long a single utterance may run. When the cap
// is exceeded the utterance is finalized even though the speaker has not
// paused. Zero or negative disables the cap.
func WithMaxUtterance(d time.Duration) Option {
	return func(e *Endpointer) {
		e.maxUtterance = d
	}
}

// WithClock replaces the wall clock. Tests use this to drive the silence
// window deterministically.
func WithClock(now func() time.Time) Option {
	return func(e *Endpointer) {
		e.now = now
	}
}

// Endpointer carries frames through the idle/recording state machine.
// Methods are not safe for concurrent use; the capture loop is the only
// expected caller.
type Endpointer struct {
	silence      time.Duration
	maxUtterance time.Duration
	now          func() time.Time

	state  State
	buffer []audio.Frame
	start  time.Time
	voice  time.Time
}

// New returns an idle endpointer that finalizes after the given silence
// window. Zero or negative silence means [DefaultSilence].
func New(silence time.Duration, opts ...Option) *Endpointer {
	if silence <= 0 {
		silence = DefaultSilence
	}
	e := &Endpointer{
		silence: silence,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current lifecycle state.
func (e *Endpointer) State() State {
	return e.state
}

// Pending returns how many frames the in-progress utterance holds.
func (e *Endpointer) Pending() int {
	return len(e.buffer)
}

// Process feeds one classified frame through the state machine. It returns
// a finalized utterance when this frame closed one, otherwise nil.
//
// Speech while idle opens a new utterance whose StartedAt is the frame's
// timestamp. While recording, every frame is kept, speech or not, so the
// clip preserves natural pauses and the trailing silence. The silence
// window is measured from the last speech frame's timestamp against the
// clock, never against frame count.
func (e *Endpointer) Process(frame audio.Frame, speech bool) *Utterance {
	switch e.state {
	case StateIdle:
		if !speech {
			return nil
		}
		e.buffer = e.buffer[:0]
		e.buffer = append(e.buffer, frame)
		e.start = frame.Timestamp
		e.voice = frame.Timestamp
		e.state = StateRecording

	case StateRecording:
		e.buffer = append(e.buffer, frame)
		if speech {
			e.voice = frame.Timestamp
		}
	}

	now := e.now()
	if now.Sub(e.voice) > e.silence {
		return e.finalize()
	}
	if e.maxUtterance > 0 && now.Sub(e.start) > e.maxUtterance {
		return e.finalize()
	}
	return nil
}

// Flush finalizes the in-progress utterance regardless of the silence
// window. It returns nil when nothing is being recorded. Used on shutdown
// when the operator wants the partial capture kept.
func (e *Endpointer) Flush() *Utterance {
	if e.state != StateRecording || len(e.buffer) == 0 {
		return nil
	}
	return e.finalize()
}

// Reset discards any in-progress utterance and returns to idle.
func (e *Endpointer) Reset() {
	e.state = StateIdle
	e.buffer = nil
	e.start = time.Time{}
	e.voice = time.Time{}
}

func (e *Endpointer) finalize() *Utterance {
	frames := make([]audio.Frame, len(e.buffer))
	copy(frames, e.buffer)
	u := &Utterance{
		Frames:      frames,
		StartedAt:   e.start,
		LastVoiceAt: e.voice,
	}
	e.Reset()
	return u
}
