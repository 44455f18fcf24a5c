// Command wodehouse-parse runs one transcript through the intent model and
// prints the structured entry as JSON. Handy for tuning the model choice and
// checking provider connectivity without recording any audio.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/Badkarmaink/wodehouse/internal/config"
	"github.com/Badkarmaink/wodehouse/internal/intent"
	"github.com/Badkarmaink/wodehouse/pkg/llm"
	"github.com/Badkarmaink/wodehouse/pkg/llm/anyllm"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ─────────────────────────────────────────────────────────────
	var (
		configPath = flag.String("config", "", "path to the YAML configuration file")
		logLevel   = flag.String("log-level", "", "log verbosity: debug, info, warn or error")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: wodehouse-parse [flags] \"transcript text\"\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}
	transcript := flag.Arg(0)

	// ── Configuration ─────────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wodehouse-parse: %v\n", err)
		return 1
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "log-level" {
			cfg.Log.Level = config.LogLevel(*logLevel)
		}
	})
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "wodehouse-parse: %v\n", err)
		return 1
	}

	slog.SetDefault(newLogger(cfg.Log))

	// ── Parse ─────────────────────────────────────────────────────────────────
	provider, err := newProvider(cfg.Intent)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wodehouse-parse: %v\n", err)
		return 1
	}
	parser := intent.New(provider, intent.WithTimeout(cfg.Intent.Timeout()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A model failure yields a fallback error entry; print it the same way.
	entry, _ := parser.Parse(ctx, transcript)

	out, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "wodehouse-parse: %v\n", err)
		return 1
	}
	fmt.Println(string(out))
	return 0
}

// loadConfig returns the defaults overlaid with the config file when one was
// given. Environment overrides apply in both cases.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		config.ApplyEnv(cfg)
		return cfg, nil
	}
	return config.Load(path)
}

// newProvider builds the LLM client the intent parser talks to.
func newProvider(cfg config.IntentConfig) (llm.Provider, error) {
	var opts []anyllmlib.Option
	if cfg.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
	}
	return anyllm.New(cfg.Provider, cfg.Model, opts...)
}

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
