// Package config provides the configuration schema and loader shared by
// the Wodehouse listener and watcher daemons.
package config

import (
	"time"

	"github.com/Badkarmaink/wodehouse/pkg/classify"
)

// Environment variables honored by [Load]. They sit between the config
// file and command-line flags in precedence.
const (
	// EnvAudioDir overrides clips.dir and watch's input directory.
	EnvAudioDir = "AUDIO_DIR"

	// EnvWhisperModel overrides transcribe.model.
	EnvWhisperModel = "WHISPER_MODEL"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogFormat selects the log output encoding.
type LogFormat string

const (
	LogText LogFormat = "text"
	LogJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogText || f == LogJSON
}

// Backend selects how clips are transcribed.
type Backend string

const (
	// BackendServer sends clips to a running whisper-server binary.
	BackendServer Backend = "server"

	// BackendNative loads the whisper.cpp model in-process.
	BackendNative Backend = "native"
)

// IsValid reports whether b is a recognised transcription backend.
func (b Backend) IsValid() bool {
	return b == BackendServer || b == BackendNative
}

// Config is the root configuration structure. It is typically loaded from
// a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	Capture    CaptureConfig    `yaml:"capture"`
	Classify   ClassifyConfig   `yaml:"classify"`
	Endpoint   EndpointConfig   `yaml:"endpoint"`
	Clips      ClipsConfig      `yaml:"clips"`
	Watch      WatchConfig      `yaml:"watch"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Intent     IntentConfig     `yaml:"intent"`
	TaskLog    TaskLogConfig    `yaml:"tasklog"`
	Breaker    BreakerConfig    `yaml:"breaker"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level controls verbosity. Defaults to "info".
	Level LogLevel `yaml:"level"`

	// Format is "text" or "json". Defaults to "text".
	Format LogFormat `yaml:"format"`
}

// ServerConfig holds settings for the operational HTTP endpoint that
// serves health checks and Prometheus metrics.
type ServerConfig struct {
	// ListenAddr is the TCP address to listen on (e.g., ":9130").
	// Empty disables the endpoint entirely.
	ListenAddr string `yaml:"listen_addr"`
}

// CaptureConfig selects and tunes the microphone.
type CaptureConfig struct {
	// Device selects the input device: empty for the first input-capable
	// device, all digits for an exact index, anything else for a
	// case-insensitive name substring.
	Device string `yaml:"device"`

	// SampleRate in Hz. Zero means use the device's default rate,
	// falling back to 16000 when the device reports none.
	SampleRate int `yaml:"samplerate"`

	// BlockMs is the duration of each captured frame in milliseconds.
	// The WebRTC classifier accepts only 10, 20 or 30.
	BlockMs int `yaml:"block_ms"`

	// QueueSize bounds the frame queue between the audio callback and
	// the processing loop.
	QueueSize int `yaml:"queue_size"`
}

// ClassifyConfig selects the speech classification strategy.
type ClassifyConfig struct {
	// Strategy is "webrtc" or "energy". Fixed at startup.
	Strategy classify.Strategy `yaml:"strategy"`

	// Aggressiveness is the WebRTC VAD mode, 0-3. Ignored by the energy
	// strategy.
	Aggressiveness int `yaml:"aggressiveness"`

	// EnergyThreshold is the mean absolute amplitude gate for the energy
	// strategy. Ignored by the WebRTC strategy.
	EnergyThreshold float64 `yaml:"energy_threshold"`
}

// EndpointConfig tunes utterance boundary detection.
type EndpointConfig struct {
	// SilenceMs is how long the speaker must pause before the utterance
	// is finalized.
	SilenceMs int `yaml:"silence_ms"`

	// MaxUtteranceMs caps a single utterance. Zero disables the cap.
	MaxUtteranceMs int `yaml:"max_utterance_ms"`

	// FlushOnStop writes the in-progress utterance as a partial clip on
	// shutdown instead of discarding it.
	FlushOnStop bool `yaml:"flush_on_stop"`
}

// Silence returns the silence window as a duration.
func (e EndpointConfig) Silence() time.Duration {
	return time.Duration(e.SilenceMs) * time.Millisecond
}

// MaxUtterance returns the utterance cap as a duration, zero when disabled.
func (e EndpointConfig) MaxUtterance() time.Duration {
	return time.Duration(e.MaxUtteranceMs) * time.Millisecond
}

// ClipsConfig controls where finished utterances land.
type ClipsConfig struct {
	// Dir receives one WAV file per utterance. The AUDIO_DIR environment
	// variable overrides this.
	Dir string `yaml:"dir"`
}

// WatchConfig tunes the clip watcher daemon.
type WatchConfig struct {
	// PollMs is the directory scan interval in milliseconds.
	PollMs int `yaml:"poll_ms"`

	// ManifestDir holds the processed-clip manifest database.
	ManifestDir string `yaml:"manifest_dir"`

	// Workers is how many clips may be processed concurrently.
	Workers int `yaml:"workers"`
}

// PollInterval returns the scan interval as a duration.
func (w WatchConfig) PollInterval() time.Duration {
	return time.Duration(w.PollMs) * time.Millisecond
}

// TranscribeConfig selects and tunes the speech-to-text backend.
type TranscribeConfig struct {
	// Backend is "server" (whisper-server REST API) or "native"
	// (in-process whisper.cpp).
	Backend Backend `yaml:"backend"`

	// BaseURL locates the whisper-server. Required for the server backend.
	BaseURL string `yaml:"base_url"`

	// ModelPath locates the ggml model file. Required for the native
	// backend.
	ModelPath string `yaml:"model_path"`

	// Model names the model for the server backend and the log payloads
	// (e.g., "base.en"). The WHISPER_MODEL environment variable overrides
	// this.
	Model string `yaml:"model"`

	// Language is the BCP-47 code transcription runs in.
	Language string `yaml:"language"`

	// TimeoutSec bounds one transcription request.
	TimeoutSec int `yaml:"timeout_sec"`

	// MaxRetries is how many times a failed transcription is retried
	// before the clip is marked failed.
	MaxRetries int `yaml:"max_retries"`
}

// Timeout returns the per-request bound as a duration.
func (t TranscribeConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSec) * time.Second
}

// IntentConfig tunes the LLM that turns transcripts into log entries.
type IntentConfig struct {
	// Provider names the LLM vendor (e.g., "ollama", "openai").
	Provider string `yaml:"provider"`

	// BaseURL overrides the vendor's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model is the model identifier (e.g., "phi3").
	Model string `yaml:"model"`

	// TimeoutSec bounds one completion request.
	TimeoutSec int `yaml:"timeout_sec"`
}

// Timeout returns the per-request bound as a duration.
func (i IntentConfig) Timeout() time.Duration {
	return time.Duration(i.TimeoutSec) * time.Second
}

// TaskLogConfig controls the daily markdown and CSV task logs.
type TaskLogConfig struct {
	// Dir receives the YYYY-MM-DD_daily_log.md and task_log.csv files.
	Dir string `yaml:"dir"`
}

// BreakerConfig tunes the circuit breaker guarding the transcription and
// intent backends.
type BreakerConfig struct {
	// Failures is how many consecutive failures open the breaker.
	Failures int `yaml:"failures"`

	// CooldownSec is how long the breaker stays open before probing.
	CooldownSec int `yaml:"cooldown_sec"`
}

// Cooldown returns the open interval as a duration.
func (b BreakerConfig) Cooldown() time.Duration {
	return time.Duration(b.CooldownSec) * time.Second
}

// Default returns a fully-populated configuration matching the documented
// defaults. Loading a file overlays on top of this.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  LogInfo,
			Format: LogText,
		},
		Capture: CaptureConfig{
			BlockMs:   30,
			QueueSize: 64,
		},
		Classify: ClassifyConfig{
			Strategy:        classify.StrategyWebRTC,
			Aggressiveness:  2,
			EnergyThreshold: classify.DefaultEnergyThreshold,
		},
		Endpoint: EndpointConfig{
			SilenceMs: 1500,
		},
		Clips: ClipsConfig{
			Dir: "/mnt/wodehouse_data/shared/audio",
		},
		Watch: WatchConfig{
			PollMs:      2000,
			ManifestDir: "/mnt/wodehouse_data/shared/manifest",
			Workers:     1,
		},
		Transcribe: TranscribeConfig{
			Backend:    BackendServer,
			BaseURL:    "http://127.0.0.1:8080",
			Model:      "base.en",
			Language:   "en",
			TimeoutSec: 60,
			MaxRetries: 2,
		},
		Intent: IntentConfig{
			Provider:   "ollama",
			BaseURL:    "http://localhost:11434",
			Model:      "phi3",
			TimeoutSec: 60,
		},
		TaskLog: TaskLogConfig{
			Dir: "/mnt/wodehouse_data/shared/logs",
		},
		Breaker: BreakerConfig{
			Failures:    3,
			CooldownSec: 30,
		},
	}
}
