package audio_test

import (
	"testing"
	"time"

	"github.com/Badkarmaink/wodehouse/pkg/audio"
)

func TestInt16ToBytesRoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 300, -300, 32767, -32768}
	got := audio.BytesToInt16(audio.Int16ToBytes(in))
	if len(got) != len(in) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], in[i])
		}
	}
}

func TestBytesToInt16_OddLength(t *testing.T) {
	// 5 bytes = 2 complete samples + 1 trailing byte that must be ignored.
	pcm := []byte{0x64, 0x00, 0xC8, 0x00, 0xFF}
	got := audio.BytesToInt16(pcm)
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
	if got[0] != 100 || got[1] != 200 {
		t.Errorf("got %v, want [100 200]", got)
	}
}

func TestMeanAbs(t *testing.T) {
	tests := []struct {
		name    string
		samples []int16
		want    float64
	}{
		{"silence", []int16{0, 0, 0, 0}, 0},
		{"constant positive", []int16{400, 400, 400}, 400},
		{"constant negative", []int16{-400, -400, -400}, 400},
		{"mixed", []int16{100, -300}, 200},
		{"single sample", []int16{-32768}, 32768},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := audio.MeanAbs(audio.Int16ToBytes(tt.samples))
			if got != tt.want {
				t.Errorf("MeanAbs = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMeanAbs_Empty(t *testing.T) {
	if got := audio.MeanAbs(nil); got != 0 {
		t.Errorf("MeanAbs(nil) = %v, want 0", got)
	}
	// A single stray byte holds no complete sample.
	if got := audio.MeanAbs([]byte{0x7F}); got != 0 {
		t.Errorf("MeanAbs(1 byte) = %v, want 0", got)
	}
}

func TestPCMDuration(t *testing.T) {
	// 480 samples at 16kHz = 30ms.
	if got := audio.PCMDuration(960, 16000); got != 30*time.Millisecond {
		t.Errorf("got %v, want 30ms", got)
	}
	// One second of 8kHz audio.
	if got := audio.PCMDuration(16000, 8000); got != time.Second {
		t.Errorf("got %v, want 1s", got)
	}
	if got := audio.PCMDuration(960, 0); got != 0 {
		t.Errorf("zero rate: got %v, want 0", got)
	}
}

func TestPCMToFloat32(t *testing.T) {
	got := audio.PCMToFloat32(audio.Int16ToBytes([]int16{0, 16384, -32768}))
	if len(got) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(got))
	}
	if got[0] != 0 {
		t.Errorf("sample 0: got %v, want 0", got[0])
	}
	if got[1] != 0.5 {
		t.Errorf("sample 1: got %v, want 0.5", got[1])
	}
	if got[2] != -1.0 {
		t.Errorf("sample 2: got %v, want -1.0", got[2])
	}
}

func TestFrameHelpers(t *testing.T) {
	f := audio.Frame{Data: audio.Int16ToBytes(make([]int16, 480))}
	if f.Samples() != 480 {
		t.Errorf("Samples = %d, want 480", f.Samples())
	}
	if d := f.Duration(16000); d != 30*time.Millisecond {
		t.Errorf("Duration = %v, want 30ms", d)
	}
}
