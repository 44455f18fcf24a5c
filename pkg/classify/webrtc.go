package classify

import (
	"fmt"

	"github.com/visvasity/webrtcvad"
)

var _ Classifier = (*webrtcClassifier)(nil)

// webrtcClassifier wraps the WebRTC voice activity detector. The detector
// accepts 10, 20 or 30 ms frames at 8, 16, 32 or 48 kHz; anything else is
// reported as non-speech rather than an error, keeping the per-frame call
// infallible.
type webrtcClassifier struct {
	vad        *webrtcvad.VAD
	sampleRate int
}

func newWebRTC(sampleRate, aggressiveness int) (*webrtcClassifier, error) {
	if aggressiveness < 0 || aggressiveness > 3 {
		return nil, fmt.Errorf("classify: aggressiveness %d out of range 0-3", aggressiveness)
	}
	switch sampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("classify: webrtc vad does not support %d Hz", sampleRate)
	}
	vad, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("classify: create webrtc vad: %w", err)
	}
	if err := vad.SetMode(aggressiveness); err != nil {
		return nil, fmt.Errorf("classify: set vad mode %d: %w", aggressiveness, err)
	}
	return &webrtcClassifier{vad: vad, sampleRate: sampleRate}, nil
}

func (c *webrtcClassifier) Speech(frame []byte) bool {
	if len(frame) == 0 {
		return false
	}
	speech, err := c.vad.Process(c.sampleRate, frame)
	if err != nil {
		return false
	}
	return speech
}
