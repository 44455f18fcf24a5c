// Package classify decides, frame by frame, whether captured audio
// contains speech. Two strategies are available: the WebRTC voice
// activity detector and a plain energy gate. The strategy is fixed when
// the classifier is built; there is no runtime switching.
package classify

import (
	"fmt"
)

// Strategy names a frame classification algorithm.
type Strategy string

const (
	// StrategyWebRTC uses the WebRTC voice activity detector.
	StrategyWebRTC Strategy = "webrtc"

	// StrategyEnergy uses a mean-absolute-amplitude gate.
	StrategyEnergy Strategy = "energy"
)

// Classifier reports speech presence for single PCM frames. A classifier
// is a pure per-frame decision: it keeps no state between calls, so the
// same frame always yields the same answer. Empty frames are never speech.
type Classifier interface {
	Speech(frame []byte) bool
}

// Config selects and tunes a classification strategy.
type Config struct {
	Strategy Strategy

	// SampleRate of incoming frames in Hz. Required for the WebRTC
	// strategy, which only accepts 8000, 16000, 32000 or 48000.
	SampleRate int

	// Aggressiveness is the WebRTC VAD mode, 0 (least filtering) to
	// 3 (most aggressive).
	Aggressiveness int

	// EnergyThreshold is the mean absolute amplitude above which the
	// energy strategy reports speech. Zero means
	// DefaultEnergyThreshold.
	EnergyThreshold float64
}

// New builds the classifier the config names.
func New(cfg Config) (Classifier, error) {
	switch cfg.Strategy {
	case StrategyWebRTC:
		return newWebRTC(cfg.SampleRate, cfg.Aggressiveness)
	case StrategyEnergy:
		threshold := cfg.EnergyThreshold
		if threshold == 0 {
			threshold = DefaultEnergyThreshold
		}
		return energyClassifier{threshold: threshold}, nil
	default:
		return nil, fmt.Errorf("classify: unknown strategy %q (valid: %s, %s)", cfg.Strategy, StrategyWebRTC, StrategyEnergy)
	}
}
