package telemetry

import (
	"go.opentelemetry.io/otel/metric"

	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/moduleinfo"
)

// meterName is the instrumentation scope for every bridge metric.
const meterName = "github.com/nupi-ai/plugin-stt-whisper-bridge"

// Metrics holds the OpenTelemetry instruments fed by the Recorder.
type Metrics struct {
	// LoadDuration tracks model load latency. Attribute: status.
	LoadDuration metric.Float64Histogram
	// TranscriptionDuration tracks decode latency. Attribute: status.
	TranscriptionDuration metric.Float64Histogram
	// Transcriptions counts transcription calls. Attribute: status.
	Transcriptions metric.Int64Counter
	// Samples counts audio samples handed to the engine.
	Samples metric.Int64Counter
	// ContextReleases counts released contexts. Attribute: reason.
	ContextReleases metric.Int64Counter
	// LiveContexts tracks contexts currently holding a loaded model.
	LiveContexts metric.Int64UpDownCounter
}

var latencyBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName, metric.WithInstrumentationVersion(moduleinfo.Version()))
	var err error
	met := &Metrics{}

	if met.LoadDuration, err = m.Float64Histogram("whisper_bridge.context.load.duration",
		metric.WithDescription("Latency of model loads."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("whisper_bridge.transcription.duration",
		metric.WithDescription("Latency of a single inference pass."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Transcriptions, err = m.Int64Counter("whisper_bridge.transcriptions",
		metric.WithDescription("Transcription calls by status."),
	); err != nil {
		return nil, err
	}
	if met.Samples, err = m.Int64Counter("whisper_bridge.samples",
		metric.WithDescription("Audio samples submitted for inference."),
	); err != nil {
		return nil, err
	}
	if met.ContextReleases, err = m.Int64Counter("whisper_bridge.context.releases",
		metric.WithDescription("Released inference contexts by reason."),
	); err != nil {
		return nil, err
	}
	if met.LiveContexts, err = m.Int64UpDownCounter("whisper_bridge.context.live",
		metric.WithDescription("Inference contexts currently loaded."),
	); err != nil {
		return nil, err
	}
	return met, nil
}
