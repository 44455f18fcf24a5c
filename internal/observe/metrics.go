// Package observe provides application-wide observability primitives for
// Wodehouse: OpenTelemetry metrics, tracing helpers, and HTTP instrumentation
// that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Wodehouse metrics.
const meterName = "github.com/Badkarmaink/wodehouse"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use. The underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TranscribeDuration tracks speech-to-text transcription latency.
	TranscribeDuration metric.Float64Histogram

	// IntentDuration tracks LLM intent-parsing latency.
	IntentDuration metric.Float64Histogram

	// UtteranceSeconds tracks the audio length of each finalized utterance.
	UtteranceSeconds metric.Float64Histogram

	// UtteranceFrames tracks the frame count of each finalized utterance.
	UtteranceFrames metric.Int64Histogram

	// --- Capture counters ---

	// FramesCaptured counts audio frames delivered by the capture stream.
	FramesCaptured metric.Int64Counter

	// SpeechFrames counts frames the classifier marked as speech.
	SpeechFrames metric.Int64Counter

	// FramesDropped counts frames evicted because the pipeline fell behind.
	FramesDropped metric.Int64Counter

	// DriverAnomalies counts frames the audio driver flagged (overflow,
	// underflow, priming).
	DriverAnomalies metric.Int64Counter

	// --- Pipeline counters ---

	// Utterances counts finalized utterances. Use with attribute:
	//   attribute.String("reason", ...): "silence", "max_duration" or "flush"
	Utterances metric.Int64Counter

	// ClipsWritten counts WAV clips written to disk.
	ClipsWritten metric.Int64Counter

	// ClipFailures counts clip writes that failed.
	ClipFailures metric.Int64Counter

	// ClipBytes counts total bytes of WAV data written to disk.
	ClipBytes metric.Int64Counter

	// WatchClips counts clips handled by the watcher. Use with attribute:
	//   attribute.String("status", ...): "done", "empty" or "failed"
	WatchClips metric.Int64Counter

	// EntriesLogged counts task log entries written. Use with attribute:
	//   attribute.String("type", ...)
	EntriesLogged metric.Int64Counter

	// --- Provider counters ---

	// ProviderRequests counts transcription and LLM calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts transcription and LLM provider errors. Use with
	// attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// Recording tracks whether the endpointer currently has an open
	// utterance (0 or 1).
	Recording metric.Int64UpDownCounter

	// --- HTTP instrumentation ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for transcription and LLM call latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// audioBuckets defines histogram bucket boundaries (in seconds) for the
// length of captured utterances.
var audioBuckets = []float64{
	0.25, 0.5, 1, 2, 5, 10, 30, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranscribeDuration, err = m.Float64Histogram("wodehouse.transcribe.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.IntentDuration, err = m.Float64Histogram("wodehouse.intent.duration",
		metric.WithDescription("Latency of LLM intent parsing."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UtteranceSeconds, err = m.Float64Histogram("wodehouse.utterance.seconds",
		metric.WithDescription("Audio length of each finalized utterance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(audioBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UtteranceFrames, err = m.Int64Histogram("wodehouse.utterance.frames",
		metric.WithDescription("Frame count of each finalized utterance."),
	); err != nil {
		return nil, err
	}

	// Capture counters.
	if met.FramesCaptured, err = m.Int64Counter("wodehouse.capture.frames",
		metric.WithDescription("Total audio frames delivered by the capture stream."),
	); err != nil {
		return nil, err
	}
	if met.SpeechFrames, err = m.Int64Counter("wodehouse.capture.speech_frames",
		metric.WithDescription("Total frames classified as speech."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("wodehouse.capture.frames_dropped",
		metric.WithDescription("Total frames evicted because the pipeline fell behind."),
	); err != nil {
		return nil, err
	}
	if met.DriverAnomalies, err = m.Int64Counter("wodehouse.capture.driver_anomalies",
		metric.WithDescription("Total frames flagged by the audio driver."),
	); err != nil {
		return nil, err
	}

	// Pipeline counters.
	if met.Utterances, err = m.Int64Counter("wodehouse.utterances",
		metric.WithDescription("Total finalized utterances by reason."),
	); err != nil {
		return nil, err
	}
	if met.ClipsWritten, err = m.Int64Counter("wodehouse.clips.written",
		metric.WithDescription("Total WAV clips written to disk."),
	); err != nil {
		return nil, err
	}
	if met.ClipFailures, err = m.Int64Counter("wodehouse.clips.failures",
		metric.WithDescription("Total clip writes that failed."),
	); err != nil {
		return nil, err
	}
	if met.ClipBytes, err = m.Int64Counter("wodehouse.clips.bytes",
		metric.WithDescription("Total bytes of WAV data written to disk."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.WatchClips, err = m.Int64Counter("wodehouse.watch.clips",
		metric.WithDescription("Total clips handled by the watcher by status."),
	); err != nil {
		return nil, err
	}
	if met.EntriesLogged, err = m.Int64Counter("wodehouse.tasklog.entries",
		metric.WithDescription("Total task log entries written by type."),
	); err != nil {
		return nil, err
	}

	// Provider counters.
	if met.ProviderRequests, err = m.Int64Counter("wodehouse.provider.requests",
		metric.WithDescription("Total provider calls by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("wodehouse.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.Recording, err = m.Int64UpDownCounter("wodehouse.recording",
		metric.WithDescription("Whether an utterance is currently open (0 or 1)."),
	); err != nil {
		return nil, err
	}

	// HTTP instrumentation histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("wodehouse.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordUtterance records a finalized utterance: one counter increment with
// the finalize reason plus histogram samples for audio length and frame count.
func (m *Metrics) RecordUtterance(ctx context.Context, reason string, seconds float64, frames int) {
	m.Utterances.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
	m.UtteranceSeconds.Record(ctx, seconds)
	m.UtteranceFrames.Record(ctx, int64(frames))
}

// RecordClip records a WAV clip written to disk.
func (m *Metrics) RecordClip(ctx context.Context, bytes int64) {
	m.ClipsWritten.Add(ctx, 1)
	m.ClipBytes.Add(ctx, bytes)
}

// RecordWatchClip records a clip handled by the watcher with its outcome.
func (m *Metrics) RecordWatchClip(ctx context.Context, status string) {
	m.WatchClips.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordEntry records a task log entry written with its entry type.
func (m *Metrics) RecordEntry(ctx context.Context, entryType string) {
	m.EntriesLogged.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", entryType)),
	)
}

// RecordProviderRequest records a provider call with its outcome.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a transcription or LLM provider error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
