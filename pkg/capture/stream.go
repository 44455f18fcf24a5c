package capture

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/Badkarmaink/wodehouse/pkg/audio"
)

const (
	// DefaultSampleRate is used when neither the config nor the device
	// reports a usable rate.
	DefaultSampleRate = 16000

	// DefaultBlockMs is the frame duration handed to consumers.
	DefaultBlockMs = 30

	// DefaultQueueSize bounds the frame queue between the audio callback
	// and the consumer.
	DefaultQueueSize = 64
)

// Config controls how a capture [Stream] is opened.
type Config struct {
	// SampleRate in Hz. Zero means use the device default, falling back
	// to DefaultSampleRate when the device reports none.
	SampleRate int

	// BlockMs is the duration of each delivered frame in milliseconds.
	// Zero means DefaultBlockMs.
	BlockMs int

	// QueueSize is the capacity of the frame queue. Zero means
	// DefaultQueueSize.
	QueueSize int
}

// Stream is an open microphone capture session. Frames arrive on the
// channel returned by [Stream.Frames]. The audio callback never blocks:
// when the consumer falls behind, the oldest queued frame is evicted and
// counted, so the channel always holds the most recent audio.
type Stream struct {
	stream    *portaudio.Stream
	frames    chan audio.Frame
	rate      int
	blockSize int

	seq             uint64 // touched only by the audio callback
	dropped         atomic.Uint64
	driverAnomalies atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

// Open prepares a mono 16-bit capture stream on the given device. The
// stream does not produce frames until [Stream.Start] is called.
func Open(dev Device, cfg Config) (*Stream, error) {
	if dev.info == nil {
		return nil, fmt.Errorf("open capture stream: device %q not resolved by this package", dev.Name)
	}

	rate := cfg.SampleRate
	if rate <= 0 {
		rate = int(dev.DefaultSampleRate)
	}
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	blockMs := cfg.BlockMs
	if blockMs <= 0 {
		blockMs = DefaultBlockMs
	}
	queue := cfg.QueueSize
	if queue <= 0 {
		queue = DefaultQueueSize
	}

	s := &Stream{
		frames:    make(chan audio.Frame, queue),
		rate:      rate,
		blockSize: rate * blockMs / 1000,
	}

	params := portaudio.LowLatencyParameters(dev.info, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(rate)
	params.FramesPerBuffer = s.blockSize

	stream, err := portaudio.OpenStream(params, s.callback)
	if err != nil {
		return nil, fmt.Errorf("open capture stream on %q: %w", dev.Name, err)
	}
	s.stream = stream
	return s, nil
}

// Start begins capturing. Frames flow on [Stream.Frames] until Close.
func (s *Stream) Start() error {
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("start capture stream: %w", err)
	}
	return nil
}

// Frames returns the channel that carries captured frames. The channel is
// closed by [Stream.Close].
func (s *Stream) Frames() <-chan audio.Frame {
	return s.frames
}

// SampleRate returns the rate the stream was actually opened with.
func (s *Stream) SampleRate() int { return s.rate }

// BlockSize returns the number of samples per delivered frame.
func (s *Stream) BlockSize() int { return s.blockSize }

// Dropped returns how many frames were evicted because the consumer fell
// behind.
func (s *Stream) Dropped() uint64 { return s.dropped.Load() }

// DriverAnomalies returns how many callbacks carried a non-zero status
// flag from the driver, such as an input overflow.
func (s *Stream) DriverAnomalies() uint64 { return s.driverAnomalies.Load() }

// Close stops the stream and closes the frame channel. Safe to call more
// than once; later calls return the first result.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		err := s.stream.Stop()
		if cerr := s.stream.Close(); cerr != nil && err == nil {
			err = cerr
		}
		// Stop returns only after the driver has finished with the
		// callback, so nothing sends on frames past this point.
		close(s.frames)
		s.closeErr = err
	})
	return s.closeErr
}

// callback runs on the PortAudio driver thread. The input slice is owned
// by the driver and reused between invocations, so the samples are copied
// out before they are queued.
func (s *Stream) callback(in []int16, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	if flags != 0 {
		s.driverAnomalies.Add(1)
	}
	frame := audio.Frame{
		Data:      audio.Int16ToBytes(in),
		Seq:       s.seq,
		Timestamp: time.Now(),
	}
	s.seq++
	s.offer(frame)
}

// offer enqueues a frame without ever blocking. When the queue is full the
// oldest frame is evicted and counted as dropped, then the send is retried.
// With a single producer the loop terminates after at most one eviction.
func (s *Stream) offer(frame audio.Frame) {
	for {
		select {
		case s.frames <- frame:
			return
		default:
		}
		select {
		case <-s.frames:
			s.dropped.Add(1)
		default:
		}
	}
}
