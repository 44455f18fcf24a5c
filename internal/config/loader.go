package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Badkarmaink/wodehouse/pkg/classify"
)

// Load reads the YAML configuration file at path, applies environment
// overrides, and returns a validated [Config]. Values absent from the
// file keep their [Default] values.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of the defaults,
// applies environment overrides, and validates the result. Useful in
// tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays the recognized environment variables onto cfg.
// Precedence is defaults < file < environment < flags, so callers apply
// flags after this.
func ApplyEnv(cfg *Config) {
	if dir := os.Getenv(EnvAudioDir); dir != "" {
		cfg.Clips.Dir = dir
	}
	if model := os.Getenv(EnvWhisperModel); model != "" {
		cfg.Transcribe.Model = model
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Log.Level != "" && !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}
	if cfg.Log.Format != "" && !cfg.Log.Format.IsValid() {
		errs = append(errs, fmt.Errorf("log.format %q is invalid; valid values: text, json", cfg.Log.Format))
	}

	if cfg.Capture.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("capture.samplerate %d must not be negative (0 = device default)", cfg.Capture.SampleRate))
	}
	if cfg.Capture.BlockMs <= 0 {
		errs = append(errs, fmt.Errorf("capture.block_ms %d must be positive", cfg.Capture.BlockMs))
	}
	if cfg.Capture.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("capture.queue_size %d must be positive", cfg.Capture.QueueSize))
	}

	switch cfg.Classify.Strategy {
	case classify.StrategyWebRTC:
		switch cfg.Capture.BlockMs {
		case 10, 20, 30:
		default:
			errs = append(errs, fmt.Errorf("capture.block_ms %d is unusable with the webrtc strategy; valid values: 10, 20, 30", cfg.Capture.BlockMs))
		}
		if cfg.Classify.Aggressiveness < 0 || cfg.Classify.Aggressiveness > 3 {
			errs = append(errs, fmt.Errorf("classify.aggressiveness %d is out of range [0, 3]", cfg.Classify.Aggressiveness))
		}
	case classify.StrategyEnergy:
		if cfg.Classify.EnergyThreshold < 0 {
			errs = append(errs, fmt.Errorf("classify.energy_threshold %.1f must not be negative", cfg.Classify.EnergyThreshold))
		}
	default:
		errs = append(errs, fmt.Errorf("classify.strategy %q is invalid; valid values: webrtc, energy", cfg.Classify.Strategy))
	}

	if cfg.Endpoint.SilenceMs <= 0 {
		errs = append(errs, fmt.Errorf("endpoint.silence_ms %d must be positive", cfg.Endpoint.SilenceMs))
	}
	if cfg.Endpoint.MaxUtteranceMs < 0 {
		errs = append(errs, fmt.Errorf("endpoint.max_utterance_ms %d must not be negative (0 = unlimited)", cfg.Endpoint.MaxUtteranceMs))
	}

	if cfg.Clips.Dir == "" {
		errs = append(errs, errors.New("clips.dir is required"))
	}

	if cfg.Watch.PollMs <= 0 {
		errs = append(errs, fmt.Errorf("watch.poll_ms %d must be positive", cfg.Watch.PollMs))
	}
	if cfg.Watch.Workers < 1 {
		errs = append(errs, fmt.Errorf("watch.workers %d must be at least 1", cfg.Watch.Workers))
	}
	if cfg.Watch.ManifestDir == "" {
		errs = append(errs, errors.New("watch.manifest_dir is required"))
	}

	switch cfg.Transcribe.Backend {
	case BackendServer:
		if cfg.Transcribe.BaseURL == "" {
			errs = append(errs, errors.New("transcribe.base_url is required for the server backend"))
		}
	case BackendNative:
		if cfg.Transcribe.ModelPath == "" {
			errs = append(errs, errors.New("transcribe.model_path is required for the native backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("transcribe.backend %q is invalid; valid values: server, native", cfg.Transcribe.Backend))
	}
	if cfg.Transcribe.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("transcribe.timeout_sec %d must be positive", cfg.Transcribe.TimeoutSec))
	}
	if cfg.Transcribe.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("transcribe.max_retries %d must not be negative", cfg.Transcribe.MaxRetries))
	}

	if cfg.Intent.Provider == "" {
		errs = append(errs, errors.New("intent.provider is required"))
	}
	if cfg.Intent.Model == "" {
		errs = append(errs, errors.New("intent.model is required"))
	}
	if cfg.Intent.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("intent.timeout_sec %d must be positive", cfg.Intent.TimeoutSec))
	}

	if cfg.TaskLog.Dir == "" {
		errs = append(errs, errors.New("tasklog.dir is required"))
	}

	if cfg.Breaker.Failures < 1 {
		errs = append(errs, fmt.Errorf("breaker.failures %d must be at least 1", cfg.Breaker.Failures))
	}
	if cfg.Breaker.CooldownSec < 1 {
		errs = append(errs, fmt.Errorf("breaker.cooldown_sec %d must be at least 1", cfg.Breaker.CooldownSec))
	}

	if cfg.Classify.Strategy == classify.StrategyEnergy && cfg.Classify.Aggressiveness != Default().Classify.Aggressiveness {
		slog.Warn("classify.aggressiveness is ignored by the energy strategy")
	}

	return errors.Join(errs...)
}
