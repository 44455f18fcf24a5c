package audio

import (
	"encoding/binary"
	"time"
)

// bytesPerSample is fixed at 2 for 16-bit PCM.
const bytesPerSample = 2

// Int16ToBytes converts int16 samples to little-endian PCM bytes, the wire
// form consumed by the classifiers and the WAV codec.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(s))
	}
	return out
}

// BytesToInt16 converts little-endian PCM bytes back to int16 samples.
// A trailing odd byte is ignored.
func BytesToInt16(pcm []byte) []int16 {
	n := len(pcm) / 2
	out := make([]int16, n)
	for i := range n {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
	}
	return out
}

// MeanAbs returns the mean absolute sample amplitude of a 16-bit PCM
// buffer, in sample units (0-32767). Returns 0 for buffers shorter than
// one sample.
func MeanAbs(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		if v < 0 {
			v = -v
		}
		sum += v
	}
	return sum / float64(n)
}

// PCMDuration returns the play time of nBytes of mono 16-bit PCM at the
// given sample rate. Returns 0 for a non-positive rate.
func PCMDuration(nBytes, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := nBytes / bytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// PCMToFloat32 converts mono 16-bit PCM to float32 samples normalised to
// [-1.0, 1.0], the input format of whisper.cpp inference.
func PCMToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := range n {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		out[i] = float32(s) / 32768.0
	}
	return out
}
