package capture

import (
	"testing"

	"github.com/Badkarmaink/wodehouse/pkg/audio"
)

func TestOffer_KeepsNewestWhenFull(t *testing.T) {
	s := &Stream{frames: make(chan audio.Frame, 2)}

	for seq := uint64(0); seq < 5; seq++ {
		s.offer(audio.Frame{Seq: seq})
	}

	// Capacity 2, five offers: frames 0..2 were evicted, 3 and 4 remain.
	if got := s.Dropped(); got != 3 {
		t.Errorf("Dropped = %d, want 3", got)
	}
	first := <-s.frames
	second := <-s.frames
	if first.Seq != 3 || second.Seq != 4 {
		t.Errorf("queued seqs = %d,%d, want 3,4", first.Seq, second.Seq)
	}
	select {
	case f := <-s.frames:
		t.Errorf("unexpected extra frame seq %d", f.Seq)
	default:
	}
}

func TestOffer_NoDropsWhenConsumerKeepsUp(t *testing.T) {
	s := &Stream{frames: make(chan audio.Frame, 4)}
	for seq := uint64(0); seq < 4; seq++ {
		s.offer(audio.Frame{Seq: seq})
	}
	if got := s.Dropped(); got != 0 {
		t.Errorf("Dropped = %d, want 0", got)
	}
	if got := len(s.frames); got != 4 {
		t.Errorf("queued = %d, want 4", got)
	}
}

func TestOpen_UnresolvedDevice(t *testing.T) {
	// A Device literal without the internal handle cannot back a stream.
	_, err := Open(Device{Name: "fake"}, Config{})
	if err == nil {
		t.Fatal("expected error for unresolved device")
	}
}
