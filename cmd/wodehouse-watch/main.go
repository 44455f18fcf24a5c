// Command wodehouse-watch is the clip-processing daemon: it scans the
// shared audio directory for WAV clips the listener wrote, transcribes
// each one, has the intent model shape the transcript into a structured
// entry, and appends the entry to the daily task logs. A persistent
// manifest keeps already-processed clips from running twice.
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

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/Badkarmaink/wodehouse/internal/config"
	"github.com/Badkarmaink/wodehouse/internal/health"
	"github.com/Badkarmaink/wodehouse/internal/intent"
	"github.com/Badkarmaink/wodehouse/internal/observe"
	"github.com/Badkarmaink/wodehouse/internal/resilience"
	"github.com/Badkarmaink/wodehouse/internal/server"
	"github.com/Badkarmaink/wodehouse/internal/tasklog"
	"github.com/Badkarmaink/wodehouse/internal/watch"
	"github.com/Badkarmaink/wodehouse/pkg/llm"
	"github.com/Badkarmaink/wodehouse/pkg/llm/anyllm"
	"github.com/Badkarmaink/wodehouse/pkg/transcribe"
	"github.com/Badkarmaink/wodehouse/pkg/transcribe/whisper"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ─────────────────────────────────────────────────────────────
	var (
		configPath = flag.String("config", "", "path to the YAML configuration file")
		once       = flag.Bool("once", false, "scan the audio directory once and exit instead of polling")
		logLevel   = flag.String("log-level", "", "log verbosity: debug, info, warn or error")
	)
	flag.Parse()

	// ── Configuration ─────────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wodehouse-watch: %v\n", err)
		return 1
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "log-level" {
			cfg.Log.Level = config.LogLevel(*logLevel)
		}
	})
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "wodehouse-watch: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "wodehouse-watch"})
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

	// ── Backends ──────────────────────────────────────────────────────────────
	transcriber, err := newTranscriber(cfg.Transcribe)
	if err != nil {
		slog.Error("failed to build transcriber", "err", err)
		return 1
	}
	// The native backend holds a loaded model; release it on the way out.
	if c, ok := transcriber.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				slog.Warn("transcriber close error", "err", err)
			}
		}()
	}

	provider, err := newProvider(cfg.Intent)
	if err != nil {
		slog.Error("failed to build intent provider", "err", err)
		return 1
	}
	parser := intent.New(provider, intent.WithTimeout(cfg.Intent.Timeout()))

	sink, err := tasklog.New(cfg.TaskLog.Dir)
	if err != nil {
		slog.Error("failed to open task log", "err", err)
		return 1
	}

	manifest, err := watch.OpenManifest(cfg.Watch.ManifestDir)
	if err != nil {
		slog.Error("failed to open manifest", "err", err)
		return 1
	}
	defer func() {
		if err := manifest.Close(); err != nil {
			slog.Warn("manifest close error", "err", err)
		}
	}()

	// One breaker guards both backends: whisper and the intent model sit on
	// the same box in the reference deployment and tend to fail together.
	breaker := resilience.New(resilience.Config{
		Name:     "backends",
		Failures: cfg.Breaker.Failures,
		Cooldown: cfg.Breaker.Cooldown(),
	})

	watcher, err := watch.New(watch.Config{
		Dir:             cfg.Clips.Dir,
		Interval:        cfg.Watch.PollInterval(),
		Workers:         cfg.Watch.Workers,
		MaxRetries:      cfg.Transcribe.MaxRetries,
		TranscribeLabel: string(cfg.Transcribe.Backend),
		IntentLabel:     cfg.Intent.Provider,
		Transcriber:     transcriber,
		Parser:          parser,
		Sink:            sink,
		Manifest:        manifest,
		Breaker:         breaker,
	})
	if err != nil {
		slog.Error("failed to build watcher", "err", err)
		return 1
	}

	// ── Ops endpoint (optional, daemon mode only) ─────────────────────────────
	var ops *server.Server
	if cfg.Server.ListenAddr != "" && !*once {
		checkers := []health.Checker{
			health.DirWritable("audio-dir", cfg.Clips.Dir),
			health.DirWritable("tasklog-dir", cfg.TaskLog.Dir),
		}
		if cfg.Transcribe.Backend == config.BackendServer {
			checkers = append(checkers, health.HTTPReachable("whisper", cfg.Transcribe.BaseURL, nil))
		}
		if cfg.Intent.BaseURL != "" {
			checkers = append(checkers, health.HTTPReachable("intent", cfg.Intent.BaseURL, nil))
		}
		ops = server.New(cfg.Server.ListenAddr, observe.DefaultMetrics(), health.New(checkers...), func() any {
			return watcher.Stats()
		})
		ops.Start()
	}

	var runErr error
	if *once {
		runErr = watcher.RunOnce(ctx)
	} else {
		printStartupSummary(cfg)
		slog.Info("press Ctrl+C to stop")
		runErr = watcher.Run(ctx)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	if ops != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := ops.Stop(stopCtx); err != nil {
			slog.Warn("ops server stop error", "err", err)
		}
		cancel()
	}

	stats := watcher.Stats()
	slog.Info("watcher stopped", "clips_recorded", stats.ClipsRecorded)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("watcher error", "err", runErr)
		return 1
	}
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

// ── Backend wiring ────────────────────────────────────────────────────────────

// newTranscriber builds the speech-to-text backend the config selects.
func newTranscriber(cfg config.TranscribeConfig) (transcribe.Transcriber, error) {
	switch cfg.Backend {
	case config.BackendServer:
		var opts []whisper.Option
		if cfg.Model != "" {
			opts = append(opts, whisper.WithModel(cfg.Model))
		}
		if cfg.Language != "" {
			opts = append(opts, whisper.WithLanguage(cfg.Language))
		}
		if cfg.TimeoutSec > 0 {
			opts = append(opts, whisper.WithTimeout(cfg.Timeout()))
		}
		return whisper.NewServer(cfg.BaseURL, opts...)
	case config.BackendNative:
		var opts []whisper.NativeOption
		if cfg.Language != "" {
			opts = append(opts, whisper.WithNativeLanguage(cfg.Language))
		}
		return whisper.NewNative(cfg.ModelPath, opts...)
	default:
		return nil, fmt.Errorf("transcribe backend %q is not supported", cfg.Backend)
	}
}

// newProvider builds the LLM client the intent parser talks to.
func newProvider(cfg config.IntentConfig) (llm.Provider, error) {
	var opts []anyllmlib.Option
	if cfg.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
	}
	return anyllm.New(cfg.Provider, cfg.Model, opts...)
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	backend := string(cfg.Transcribe.Backend)
	if cfg.Transcribe.Model != "" {
		backend += " / " + cfg.Transcribe.Model
	}
	intentModel := cfg.Intent.Provider
	if cfg.Intent.Model != "" {
		intentModel += " / " + cfg.Intent.Model
	}

	fmt.Println("╔════════════════════════════════════════╗")
	fmt.Printf("║  %-37s ║\n", "Wodehouse watcher")
	fmt.Println("╠════════════════════════════════════════╣")
	printRow("Transcriber", backend)
	printRow("Intent model", intentModel)
	printRow("Audio dir", cfg.Clips.Dir)
	printRow("Task log dir", cfg.TaskLog.Dir)
	printRow("Poll interval", cfg.Watch.PollInterval().String())
	printRow("Workers", fmt.Sprintf("%d", cfg.Watch.Workers))
	printRow("Breaker", fmt.Sprintf("%d fails / %s", cfg.Breaker.Failures, cfg.Breaker.Cooldown()))
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
