// Package app wires the listener pipeline into a running application:
// device resolution, the capture stream, per-frame speech classification,
// utterance endpointing and clip writing. New connects the pieces from
// configuration, Run drives the frame loop until the context is canceled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Badkarmaink/wodehouse/internal/config"
	"github.com/Badkarmaink/wodehouse/internal/observe"
	"github.com/Badkarmaink/wodehouse/pkg/audio"
	"github.com/Badkarmaink/wodehouse/pkg/capture"
	"github.com/Badkarmaink/wodehouse/pkg/classify"
	"github.com/Badkarmaink/wodehouse/pkg/clip"
	"github.com/Badkarmaink/wodehouse/pkg/endpoint"
)

// frameSource is the slice of the capture stream the frame loop consumes.
type frameSource interface {
	Start() error
	Frames() <-chan audio.Frame
	Dropped() uint64
	DriverAnomalies() uint64
	Close() error
}

var _ frameSource = (*capture.Stream)(nil)

// clipWriter persists finalized utterances.
type clipWriter interface {
	Write(u *endpoint.Utterance) (clip.Clip, error)
}

var _ clipWriter = (*clip.Writer)(nil)

// Stats is a point-in-time snapshot of the listener, served on the ops
// endpoint and logged as the final summary.
type Stats struct {
	Device          string `json:"device"`
	SampleRate      int    `json:"samplerate"`
	BlockMs         int    `json:"block_ms"`
	State           string `json:"state"`
	FramesCaptured  uint64 `json:"frames_captured"`
	SpeechFrames    uint64 `json:"speech_frames"`
	FramesDropped   uint64 `json:"frames_dropped"`
	DriverAnomalies uint64 `json:"driver_anomalies"`
	ClipsWritten    uint64 `json:"clips_written"`
	ClipFailures    uint64 `json:"clip_failures"`
	LastClip        string `json:"last_clip,omitempty"`
}

// App owns the listener pipeline from microphone to clip directory.
type App struct {
	logger  *slog.Logger
	metrics *observe.Metrics

	src        frameSource
	classifier classify.Classifier
	endpointer *endpoint.Endpointer
	writer     clipWriter

	deviceName   string
	rate         int
	blockMs      int
	silence      time.Duration
	maxUtterance time.Duration
	flushOnStop  bool

	mu            sync.Mutex
	stats         Stats
	recording     bool
	lastDropped   uint64
	lastAnomalies uint64
}

// New resolves the configured device, opens the capture stream at the
// effective sample rate and builds the classifier, endpointer and clip
// writer around it. A device resolution failure is returned wrapped so
// main can distinguish it and print the device list.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dev, err := capture.Resolve(cfg.Capture.Device)
	if err != nil {
		return nil, fmt.Errorf("resolve device %q: %w", cfg.Capture.Device, err)
	}

	src, err := capture.Open(dev, capture.Config{
		SampleRate: cfg.Capture.SampleRate,
		BlockMs:    cfg.Capture.BlockMs,
		QueueSize:  cfg.Capture.QueueSize,
	})
	if err != nil {
		return nil, err
	}
	rate := src.SampleRate()

	classifier, err := classify.New(classify.Config{
		Strategy:        cfg.Classify.Strategy,
		SampleRate:      rate,
		Aggressiveness:  cfg.Classify.Aggressiveness,
		EnergyThreshold: cfg.Classify.EnergyThreshold,
	})
	if err != nil {
		src.Close()
		return nil, err
	}

	writer, err := clip.NewWriter(cfg.Clips.Dir, rate)
	if err != nil {
		src.Close()
		return nil, err
	}

	blockMs := cfg.Capture.BlockMs
	if blockMs <= 0 {
		blockMs = capture.DefaultBlockMs
	}

	a := &App{
		logger:  logger,
		metrics: observe.DefaultMetrics(),

		src:        src,
		classifier: classifier,
		endpointer: endpoint.New(cfg.Endpoint.Silence(),
			endpoint.WithMaxUtterance(cfg.Endpoint.MaxUtterance())),
		writer: writer,

		deviceName:   dev.Name,
		rate:         rate,
		blockMs:      blockMs,
		silence:      cfg.Endpoint.Silence(),
		maxUtterance: cfg.Endpoint.MaxUtterance(),
		flushOnStop:  cfg.Endpoint.FlushOnStop,
	}

	logger.Info("listener ready",
		"device", dev.Name,
		"samplerate", rate,
		"block_ms", blockMs,
		"strategy", cfg.Classify.Strategy,
		"silence", a.silence,
		"clips_dir", cfg.Clips.Dir,
	)
	return a, nil
}

// Run starts the capture stream and consumes frames until ctx is
// canceled. Clip write failures lose that utterance only; the loop keeps
// listening. On shutdown an in-progress utterance is flushed to disk when
// configured, otherwise discarded.
func (a *App) Run(ctx context.Context) error {
	if err := a.src.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	a.logger.Info("listening for speech")

	for {
		select {
		case <-ctx.Done():
			return a.stop(ctx)
		case frame, ok := <-a.src.Frames():
			if !ok {
				return errors.New("capture stream closed unexpectedly")
			}
			a.handleFrame(ctx, frame)
		}
	}
}

// handleFrame runs one frame through classification and the endpointer,
// tracking state transitions and saving any utterance this frame closed.
func (a *App) handleFrame(ctx context.Context, frame audio.Frame) {
	a.metrics.FramesCaptured.Add(ctx, 1)

	speech := a.classifier.Speech(frame.Data)
	if speech {
		a.metrics.SpeechFrames.Add(ctx, 1)
	}

	wasRecording := a.recording
	utterance := a.endpointer.Process(frame, speech)
	nowRecording := a.endpointer.State() == endpoint.StateRecording

	if nowRecording && !wasRecording {
		a.metrics.Recording.Add(ctx, 1)
		a.logger.Debug("utterance started", "seq", frame.Seq)
	}
	if wasRecording && !nowRecording {
		a.metrics.Recording.Add(ctx, -1)
	}

	a.mu.Lock()
	a.recording = nowRecording
	a.stats.FramesCaptured++
	if speech {
		a.stats.SpeechFrames++
	}
	a.mu.Unlock()

	if utterance != nil {
		a.saveClip(ctx, utterance, a.finalizeReason(utterance))
	}

	a.reconcile(ctx)
}

// finalizeReason mirrors the endpointer's decision order: the silence
// window is checked before the utterance cap.
func (a *App) finalizeReason(u *endpoint.Utterance) string {
	if time.Since(u.LastVoiceAt) > a.silence {
		return "silence"
	}
	if a.maxUtterance > 0 {
		return "max_duration"
	}
	return "silence"
}

// saveClip writes one utterance to the clip directory. Failures are
// counted and logged; the caller keeps running either way.
func (a *App) saveClip(ctx context.Context, u *endpoint.Utterance, reason string) {
	c, err := a.writer.Write(u)
	if err != nil {
		a.logger.Error("clip write failed", "error", err, "frames", len(u.Frames))
		a.metrics.ClipFailures.Add(ctx, 1)
		a.mu.Lock()
		a.stats.ClipFailures++
		a.mu.Unlock()
		return
	}

	duration := u.Duration(a.rate)
	a.metrics.RecordClip(ctx, c.Size)
	a.metrics.RecordUtterance(ctx, reason, duration.Seconds(), len(u.Frames))

	a.mu.Lock()
	a.stats.ClipsWritten++
	a.stats.LastClip = c.Path
	a.mu.Unlock()

	a.logger.Info("clip saved",
		"path", c.Path,
		"duration", duration,
		"frames", len(u.Frames),
		"reason", reason,
	)
}

// reconcile folds the stream's dropped-frame and driver-anomaly counters
// into metrics as deltas.
func (a *App) reconcile(ctx context.Context) {
	dropped := a.src.Dropped()
	anomalies := a.src.DriverAnomalies()

	a.mu.Lock()
	defer a.mu.Unlock()

	if d := dropped - a.lastDropped; d > 0 {
		a.metrics.FramesDropped.Add(ctx, int64(d))
		a.logger.Warn("frames dropped, consumer falling behind", "count", d, "total", dropped)
		a.lastDropped = dropped
	}
	if d := anomalies - a.lastAnomalies; d > 0 {
		a.metrics.DriverAnomalies.Add(ctx, int64(d))
		a.lastAnomalies = anomalies
	}
}

// stop finishes the pipeline on shutdown.
func (a *App) stop(ctx context.Context) error {
	if a.flushOnStop {
		if u := a.endpointer.Flush(); u != nil {
			a.logger.Info("flushing partial utterance", "frames", len(u.Frames))
			a.saveClip(ctx, u, "flush")
		}
	} else if a.endpointer.State() == endpoint.StateRecording {
		a.logger.Debug("discarding partial utterance", "frames", a.endpointer.Pending())
		a.endpointer.Reset()
	}

	if a.recording {
		a.metrics.Recording.Add(ctx, -1)
		a.mu.Lock()
		a.recording = false
		a.mu.Unlock()
	}

	a.reconcile(ctx)
	if err := a.src.Close(); err != nil {
		return fmt.Errorf("close capture: %w", err)
	}
	return nil
}

// Stats returns a snapshot of the pipeline counters.
func (a *App) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.stats
	s.Device = a.deviceName
	s.SampleRate = a.rate
	s.BlockMs = a.blockMs
	s.State = endpoint.StateIdle.String()
	if a.recording {
		s.State = endpoint.StateRecording.String()
	}
	s.FramesDropped = a.src.Dropped()
	s.DriverAnomalies = a.src.DriverAnomalies()
	return s
}
