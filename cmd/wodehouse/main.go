// Command wodehouse is the always-on listener: it captures microphone
// audio, classifies each frame as speech or silence, detects utterance
// boundaries and writes one WAV clip per utterance into the shared audio
// directory for wodehouse-watch to pick up.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Badkarmaink/wodehouse/internal/app"
	"github.com/Badkarmaink/wodehouse/internal/config"
	"github.com/Badkarmaink/wodehouse/internal/health"
	"github.com/Badkarmaink/wodehouse/internal/observe"
	"github.com/Badkarmaink/wodehouse/internal/server"
	"github.com/Badkarmaink/wodehouse/pkg/capture"
	"github.com/Badkarmaink/wodehouse/pkg/classify"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ─────────────────────────────────────────────────────────────
	var (
		configPath     = flag.String("config", "", "path to the YAML configuration file")
		listDevices    = flag.Bool("list-devices", false, "print the host's audio devices and exit")
		device         = flag.String("device", "", "input device index or name substring (empty = first input device)")
		samplerate     = flag.Int("samplerate", 0, "capture sample rate in Hz (0 = device default)")
		blockMs        = flag.Int("block-ms", 30, "frame duration in milliseconds")
		strategy       = flag.String("strategy", "webrtc", "speech classifier: webrtc or energy")
		aggressiveness = flag.Int("aggressiveness", 2, "webrtc mode, 0 (permissive) to 3 (strict)")
		silenceMs      = flag.Int("silence-ms", 1500, "pause that finalizes an utterance, in milliseconds")
		logLevel       = flag.String("log-level", "", "log verbosity: debug, info, warn or error")
	)
	flag.Parse()

	// ── PortAudio ─────────────────────────────────────────────────────────────
	if err := capture.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "wodehouse: portaudio: %v\n", err)
		return 1
	}
	defer func() {
		if err := capture.Terminate(); err != nil {
			slog.Warn("portaudio terminate error", "err", err)
		}
	}()

	if *listDevices {
		if err := printDevices(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "wodehouse: %v\n", err)
			return 1
		}
		return 0
	}

	// ── Configuration ─────────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wodehouse: %v\n", err)
		return 1
	}

	// Flags beat the file and the environment, but only when given.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Capture.Device = *device
		case "samplerate":
			cfg.Capture.SampleRate = *samplerate
		case "block-ms":
			cfg.Capture.BlockMs = *blockMs
		case "strategy":
			cfg.Classify.Strategy = classify.Strategy(*strategy)
		case "aggressiveness":
			cfg.Classify.Aggressiveness = *aggressiveness
		case "silence-ms":
			cfg.Endpoint.SilenceMs = *silenceMs
		case "log-level":
			cfg.Log.Level = config.LogLevel(*logLevel)
		}
	})
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "wodehouse: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "wodehouse"})
	if err != nil {
		slog.Error("telemetry init failed", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Listener pipeline ─────────────────────────────────────────────────────
	application, err := app.New(cfg, logger)
	if err != nil {
		if errors.Is(err, capture.ErrDeviceNotFound) {
			fmt.Fprintf(os.Stderr, "wodehouse: %v\n\navailable devices:\n", err)
			if listErr := printDevices(os.Stderr); listErr != nil {
				fmt.Fprintf(os.Stderr, "wodehouse: %v\n", listErr)
			}
			fmt.Fprintln(os.Stderr, "\npick one with --device <index> or --device <name substring>")
			return 1
		}
		slog.Error("failed to initialise listener", "err", err)
		return 1
	}

	// ── Ops endpoint (optional) ───────────────────────────────────────────────
	var ops *server.Server
	if cfg.Server.ListenAddr != "" {
		checks := health.New(health.DirWritable("clips-dir", cfg.Clips.Dir))
		ops = server.New(cfg.Server.ListenAddr, observe.DefaultMetrics(), checks, func() any {
			return application.Stats()
		})
		ops.Start()
	}

	printStartupSummary(cfg, application.Stats())
	slog.Info("press Ctrl+C to stop")

	runErr := application.Run(ctx)

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	if ops != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := ops.Stop(stopCtx); err != nil {
			slog.Warn("ops server stop error", "err", err)
		}
		cancel()
	}

	stats := application.Stats()
	slog.Info("listener stopped",
		"frames_captured", stats.FramesCaptured,
		"speech_frames", stats.SpeechFrames,
		"clips_written", stats.ClipsWritten,
		"clip_failures", stats.ClipFailures,
		"frames_dropped", stats.FramesDropped,
	)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("listener error", "err", runErr)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// loadConfig returns the defaults overlaid with the config file when one was
// given. Environment overrides apply in both cases; the caller overlays flags
// and validates afterwards.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		config.ApplyEnv(cfg)
		return cfg, nil
	}
	return config.Load(path)
}

// printDevices writes one line per audio device the host exposes, inputs and
// outputs alike, so a failed selector can be compared against the full table.
// The driver's default input device is marked with an asterisk.
func printDevices(w io.Writer) error {
	devices, err := capture.List()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Fprintln(w, "no audio devices detected")
		return nil
	}
	def, defErr := capture.DefaultInput()
	for _, d := range devices {
		marker := " "
		if defErr == nil && d.Index == def.Index {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s\n", marker, d)
	}
	if defErr == nil {
		fmt.Fprintln(w, "\n* default input device")
	}
	return nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, stats app.Stats) {
	fmt.Println("╔════════════════════════════════════════╗")
	fmt.Printf("║  %-37s ║\n", "Wodehouse listener")
	fmt.Println("╠════════════════════════════════════════╣")
	printRow("Device", stats.Device)
	printRow("Sample rate", fmt.Sprintf("%d Hz", stats.SampleRate))
	printRow("Block", fmt.Sprintf("%d ms", stats.BlockMs))
	printRow("Strategy", string(cfg.Classify.Strategy))
	printRow("Silence window", cfg.Endpoint.Silence().String())
	printRow("Clips dir", cfg.Clips.Dir)
	if cfg.Server.ListenAddr != "" {
		printRow("Ops endpoint", cfg.Server.ListenAddr)
	}
	fmt.Println("╚════════════════════════════════════════╝")
}

func printRow(label, value string) {
	if len(value) > 20 {
		value = value[:19] + "…"
	}
	fmt.Printf("║  %-14s : %-20s ║\n", label, value)
}

// ── Logger ────────────────────────────────────────────────────────────────────

func newLogger(cfg config.LogConfig) *slog.Logger {
	var lvl slog.Level
	switch cfg.Level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if cfg.Format == config.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
