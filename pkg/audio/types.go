// Package audio holds the PCM plumbing shared by the capture pipeline and
// the clip tooling: the Frame transport type, sample/byte conversions, and
// a minimal RIFF/WAV codec.
//
// All audio in Wodehouse is mono 16-bit signed little-endian PCM; the
// package does not attempt to represent any other format.
package audio

import "time"

// Frame is a single fixed-duration block of audio flowing through the
// pipeline. Frames are produced by the capture stream, classified once,
// consumed once by the endpointer, and never mutated after creation.
type Frame struct {
	// Data is raw mono 16-bit little-endian PCM. Its length is fixed per
	// stream: samplerate × block_ms / 1000 samples, two bytes each.
	Data []byte

	// Seq increases by one per produced frame, including frames that are
	// later dropped by the hand-off queue. Gaps in consumed Seq values
	// therefore indicate drops.
	Seq uint64

	// Timestamp is the wall-clock arrival time of the frame at the
	// capture callback.
	Timestamp time.Time
}

// Samples returns the number of 16-bit samples in the frame.
func (f Frame) Samples() int { return len(f.Data) / 2 }

// Duration returns the frame's play time at the given sample rate.
func (f Frame) Duration(sampleRate int) time.Duration {
	return PCMDuration(len(f.Data), sampleRate)
}
