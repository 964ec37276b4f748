package telemetry

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Release reasons reported by RecordRelease.
const (
	ReleaseExplicit = "released"
	ReleaseReplaced = "replaced"
	ReleaseShutdown = "shutdown"
)

// Recorder tracks context lifecycle and transcription telemetry. Counters are
// always kept; OpenTelemetry instruments are fed when metrics are supplied.
type Recorder struct {
	log     *slog.Logger
	metrics *Metrics

	contextsLoaded        atomic.Uint64
	loadFailures          atomic.Uint64
	contextsReplaced      atomic.Uint64
	contextsReleased      atomic.Uint64
	liveContexts          atomic.Int64
	transcriptions        atomic.Uint64
	transcriptionFailures atomic.Uint64
	emptyTranscripts      atomic.Uint64
	totalSamples          atomic.Uint64
}

// Snapshot captures cumulative metrics recorded so far.
type Snapshot struct {
	ContextsLoaded        uint64
	LoadFailures          uint64
	ContextsReplaced      uint64
	ContextsReleased      uint64
	LiveContexts          int64
	Transcriptions        uint64
	TranscriptionFailures uint64
	EmptyTranscripts      uint64
	TotalSamples          uint64
}

// NewRecorder constructs a Recorder using the provided logger. metrics may be
// nil.
func NewRecorder(logger *slog.Logger, metrics *Metrics) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		log:     logger.With("component", "telemetry.Recorder"),
		metrics: metrics,
	}
}

// Snapshot returns an immutable view of the recorder totals.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		ContextsLoaded:        r.contextsLoaded.Load(),
		LoadFailures:          r.loadFailures.Load(),
		ContextsReplaced:      r.contextsReplaced.Load(),
		ContextsReleased:      r.contextsReleased.Load(),
		LiveContexts:          r.liveContexts.Load(),
		Transcriptions:        r.transcriptions.Load(),
		TranscriptionFailures: r.transcriptionFailures.Load(),
		EmptyTranscripts:      r.emptyTranscripts.Load(),
		TotalSamples:          r.totalSamples.Load(),
	}
}

// RecordLoad records the outcome of a model load.
func (r *Recorder) RecordLoad(modelPath string, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		r.loadFailures.Add(1)
	} else {
		r.contextsLoaded.Add(1)
		r.liveContexts.Add(1)
	}
	if r.metrics != nil {
		ctx := context.Background()
		r.metrics.LoadDuration.Record(ctx, elapsed.Seconds(),
			metric.WithAttributes(attribute.String("status", status)))
		if err == nil {
			r.metrics.LiveContexts.Add(ctx, 1)
		}
	}
	r.log.Debug("model load recorded",
		"model_path", modelPath,
		"status", status,
		"duration_ms", elapsed.Milliseconds(),
	)
}

// RecordRelease records a released context.
func (r *Recorder) RecordRelease(reason string) {
	if r == nil {
		return
	}
	r.contextsReleased.Add(1)
	r.liveContexts.Add(-1)
	if reason == ReleaseReplaced {
		r.contextsReplaced.Add(1)
	}
	if r.metrics != nil {
		ctx := context.Background()
		r.metrics.ContextReleases.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
		r.metrics.LiveContexts.Add(ctx, -1)
	}
}

// TranscriptionMetrics accumulates statistics for a single transcription call.
type TranscriptionMetrics struct {
	recorder *Recorder
	log      *slog.Logger
	samples  int
	started  time.Time
	closed   atomic.Bool
}

// StartTranscription begins tracking one inference pass.
func (r *Recorder) StartTranscription(requestID string, handle uint64, samples int) *TranscriptionMetrics {
	if r == nil {
		return nil
	}
	r.transcriptions.Add(1)
	if samples > 0 {
		r.totalSamples.Add(uint64(samples))
	}
	return &TranscriptionMetrics{
		recorder: r,
		log: r.log.With(
			"request_id", requestID,
			"handle", handle,
		),
		samples: samples,
		started: time.Now(),
	}
}

// Finish records the outcome. Only the first call has an effect.
func (t *TranscriptionMetrics) Finish(text string, segments int, err error) {
	if t == nil {
		return
	}
	if !t.closed.CompareAndSwap(false, true) {
		return
	}

	r := t.recorder
	elapsed := time.Since(t.started)
	status := "ok"
	switch {
	case err != nil:
		status = "error"
		r.transcriptionFailures.Add(1)
	case text == "":
		status = "no_speech"
		r.emptyTranscripts.Add(1)
	}

	if r.metrics != nil {
		ctx := context.Background()
		attrs := metric.WithAttributes(attribute.String("status", status))
		r.metrics.Transcriptions.Add(ctx, 1, attrs)
		r.metrics.TranscriptionDuration.Record(ctx, elapsed.Seconds(), attrs)
		if t.samples > 0 {
			r.metrics.Samples.Add(ctx, int64(t.samples))
		}
	}

	args := []any{
		"duration_ms", elapsed.Milliseconds(),
		"samples", t.samples,
		"segments", segments,
		"chars", len(text),
		"runes", utf8.RuneCountInString(text),
		"status", status,
	}
	if err != nil {
		t.log.Debug("transcription recorded", append(args, "error", err)...)
		return
	}
	t.log.Debug("transcription recorded", args...)
}
