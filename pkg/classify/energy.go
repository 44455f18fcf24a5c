package classify

import (
	"github.com/Badkarmaink/wodehouse/pkg/audio"
)

// DefaultEnergyThreshold is the mean absolute amplitude that speech must
// exceed under the energy strategy. Tuned for close-mic 16-bit capture.
const DefaultEnergyThreshold = 300.0

var _ Classifier = energyClassifier{}

// energyClassifier reports speech when the mean absolute sample amplitude
// of a frame is strictly above the threshold. It works at any sample rate
// and frame length since it never interprets timing.
type energyClassifier struct {
	threshold float64
}

func (c energyClassifier) Speech(frame []byte) bool {
	if len(frame) == 0 {
		return false
	}
	return audio.MeanAbs(frame) > c.threshold
}
