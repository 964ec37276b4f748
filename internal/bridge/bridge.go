// Package bridge is the sentinel facade host code talks to. Every call
// returns a usable value or a sentinel (zero handle, empty text, no-op) and
// never lets an error or panic escape.
package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/config"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/engine"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/marshal"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/registry"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/telemetry"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/transcribe"
)

// Bridge wraps a registry and invoker behind the boundary contract.
type Bridge struct {
	registry *registry.Registry
	invoker  *transcribe.Invoker
	log      *slog.Logger
}

// New wires a Bridge around an existing registry and invoker.
func New(reg *registry.Registry, inv *transcribe.Invoker, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		registry: reg,
		invoker:  inv,
		log:      logger.With("component", "bridge"),
	}
}

// NewFromConfig selects an engine from cfg and builds the registry and
// invoker around it. A missing native backend is logged and the stub engine
// is used instead. recorder may be nil.
func NewFromConfig(cfg config.Config, logger *slog.Logger, recorder *telemetry.Recorder) (*Bridge, error) {
	if logger == nil {
		logger = slog.Default()
	}
	eng, err := engine.New(cfg, logger)
	if err != nil && !errors.Is(err, engine.ErrNativeEngineUnavailable) {
		return nil, fmt.Errorf("bridge: init engine: %w", err)
	}
	params := engine.ParamsFromConfig(cfg)
	params.Language = cfg.Language

	reg := registry.New(eng, logger, recorder)
	inv := transcribe.New(reg, params, logger, recorder)
	return New(reg, inv, logger), nil
}

// Registry exposes the underlying context registry.
func (b *Bridge) Registry() *registry.Registry { return b.registry }

// CreateContext loads modelPath as the current context, replacing any live
// one. It returns InvalidHandle on failure.
func (b *Bridge) CreateContext(modelPath, language string) registry.Handle {
	handle, _ := b.CreateContextWithStatus(modelPath, language)
	return handle
}

// CreateContextWithStatus is CreateContext plus the reason for a failure.
func (b *Bridge) CreateContextWithStatus(modelPath, language string) (handle registry.Handle, status Status) {
	defer b.recoverPanic("create_context", func() { handle, status = registry.InvalidHandle, StatusInternal })

	handle, err := b.registry.Create(modelPath, language)
	if err != nil {
		b.log.Error("create context failed", "model_path", modelPath, "error", err)
		return registry.InvalidHandle, StatusOf(err)
	}
	return handle, StatusOK
}

// OpenContext loads an additional context that coexists with the current
// one. It returns InvalidHandle on failure.
func (b *Bridge) OpenContext(modelPath, language string) registry.Handle {
	handle, _ := b.OpenContextWithStatus(modelPath, language)
	return handle
}

// OpenContextWithStatus is OpenContext plus the reason for a failure.
func (b *Bridge) OpenContextWithStatus(modelPath, language string) (handle registry.Handle, status Status) {
	defer b.recoverPanic("open_context", func() { handle, status = registry.InvalidHandle, StatusInternal })

	handle, err := b.registry.Open(modelPath, language)
	if err != nil {
		b.log.Error("open context failed", "model_path", modelPath, "error", err)
		return registry.InvalidHandle, StatusOf(err)
	}
	return handle, StatusOK
}

// Transcribe returns the recognised text, or "" on failure or silence.
func (b *Bridge) Transcribe(handle registry.Handle, samples []float32) string {
	text, _ := b.TranscribeWithStatus(handle, samples)
	return text
}

// TranscribeWithStatus returns the recognised text together with a Status
// that tells an empty transcript of silence apart from a failure.
func (b *Bridge) TranscribeWithStatus(handle registry.Handle, samples []float32) (string, Status) {
	result, status := b.TranscribeResult(handle, samples)
	return result.Text, status
}

// TranscribePCM16 converts signed 16-bit PCM to float samples and transcribes
// them.
func (b *Bridge) TranscribePCM16(handle registry.Handle, pcm []int16) string {
	var samples []float32
	if len(pcm) > 0 {
		samples = marshal.PCM16(&pcm[0], len(pcm))
	}
	return b.Transcribe(handle, samples)
}

// TranscribeResult runs inference and returns the full result. A failed call
// yields a Result with no text or segments.
func (b *Bridge) TranscribeResult(handle registry.Handle, samples []float32) (result transcribe.Result, status Status) {
	defer b.recoverPanic("transcribe", func() { result, status = transcribe.Result{}, StatusInternal })

	result, err := b.invoker.Transcribe(handle, samples)
	if err != nil {
		b.log.Error("transcription failed",
			"handle", handle.String(),
			"samples", len(samples),
			"request_id", result.RequestID,
			"error", err,
		)
		return transcribe.Result{RequestID: result.RequestID, Samples: result.Samples}, StatusOf(err)
	}
	if result.NoSpeech() {
		return result, StatusNoSpeech
	}
	return result, StatusOK
}

// ReleaseContext destroys the context behind handle. Invalid, stale and
// already released handles are ignored.
func (b *Bridge) ReleaseContext(handle registry.Handle) {
	defer b.recoverPanic("release_context", nil)

	if err := b.registry.Destroy(handle); err != nil {
		b.log.Debug("release ignored", "handle", handle.String(), "error", err)
	}
}

// Contexts describes every live context.
func (b *Bridge) Contexts() (infos []registry.Info) {
	defer b.recoverPanic("contexts", func() { infos = nil })
	return b.registry.List()
}

// Close releases every context. Further creation fails with StatusInvalidHandle.
func (b *Bridge) Close() (err error) {
	defer b.recoverPanic("close", func() { err = errors.New("bridge: panic during close") })
	return b.registry.Close()
}

// recoverPanic converts a panic into a logged sentinel. It must be deferred
// directly.
func (b *Bridge) recoverPanic(op string, sentinel func()) {
	r := recover()
	if r == nil {
		return
	}
	b.log.Error("recovered panic at boundary",
		"op", op,
		"panic", fmt.Sprint(r),
		"stack", string(debug.Stack()),
	)
	if sentinel != nil {
		sentinel()
	}
}
