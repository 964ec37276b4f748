// Package transcribe runs single-pass inference over a context held by the
// registry.
package transcribe

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/engine"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/marshal"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/registry"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/telemetry"
)

// Result is the outcome of one inference pass.
type Result struct {
	RequestID string
	Text      string
	Segments  []engine.Segment
	Samples   int
	Language  string
	Duration  time.Duration
}

// NoSpeech reports whether a successful pass produced no text.
func (r Result) NoSpeech() bool { return r.Text == "" }

// Invoker builds decode parameters and runs the engine against a context.
type Invoker struct {
	registry *registry.Registry
	params   engine.Params
	log      *slog.Logger
	recorder *telemetry.Recorder
}

// New returns an Invoker decoding with params. params.Language is used when a
// context carries no language hint of its own. recorder may be nil.
func New(reg *registry.Registry, params engine.Params, logger *slog.Logger, recorder *telemetry.Recorder) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{
		registry: reg,
		params:   params,
		log:      logger.With("component", "transcribe"),
		recorder: recorder,
	}
}

// Params returns a copy of the decode parameters applied to every call.
func (i *Invoker) Params() engine.Params { return i.params }

// Transcribe decodes samples on the context behind handle. Segment text is
// concatenated verbatim in emission order. A failed pass returns no text.
func (i *Invoker) Transcribe(handle registry.Handle, samples []float32) (Result, error) {
	if _, err := marshal.SampleCount(len(samples)); err != nil {
		return Result{}, err
	}

	result := Result{
		RequestID: xid.New().String(),
		Samples:   len(samples),
	}

	err := i.registry.Use(handle, func(ctx *registry.Context) error {
		params := i.params
		params.Language = engine.NormaliseLanguage(ctx.Language(), i.params.Language)
		result.Language = params.Language

		if len(samples) == 0 {
			return nil
		}

		log := i.log.With("request_id", result.RequestID, "handle", handle.String())
		log.Debug("transcription started",
			"samples", len(samples),
			"language", params.Language,
			"strategy", params.Strategy.String(),
			"threads", params.Threads,
		)

		metrics := i.recorder.StartTranscription(result.RequestID, uint64(handle), len(samples))
		started := time.Now()
		segments, err := ctx.Model().Decode(samples, params)
		result.Duration = time.Since(started)
		if err != nil {
			metrics.Finish("", 0, err)
			log.Error("transcription failed", "samples", len(samples), "error", err)
			return err
		}

		result.Segments = segments
		result.Text = engine.JoinSegments(segments)
		metrics.Finish(result.Text, len(segments), nil)
		log.Debug("transcription completed",
			"samples", len(samples),
			"segments", len(segments),
			"chars", len(result.Text),
			"duration_ms", result.Duration.Milliseconds(),
		)
		return nil
	})
	if err != nil {
		failed := Result{RequestID: result.RequestID, Samples: result.Samples, Language: result.Language}
		if errors.Is(err, registry.ErrInvalidHandle) || errors.Is(err, engine.ErrInferenceFailed) {
			return failed, err
		}
		return failed, fmt.Errorf("%w: %w", engine.ErrInferenceFailed, err)
	}
	return result, nil
}
