package engine

import (
	"errors"
	"log/slog"

	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/config"
)

// ErrNativeEngineUnavailable indicates that the native backend was not compiled in.
var ErrNativeEngineUnavailable = errors.New("engine: native backend unavailable")

// New returns the Engine selected by cfg. When the native backend is
// unavailable the stub engine is returned together with
// ErrNativeEngineUnavailable so callers can surface a warning.
func New(cfg config.Config, logger *slog.Logger) (Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.UseStubEngine {
		logger.Warn("stub engine forced by configuration")
		return NewStubEngine(logger), nil
	}

	if !NativeAvailable() {
		logger.Warn("native backend disabled at build time; using stub engine")
		return NewStubEngine(logger), ErrNativeEngineUnavailable
	}

	native, err := NewNativeEngine(NativeOptions{
		UseGPU:         cfg.UseGPU,
		FlashAttention: cfg.FlashAttention,
	})
	if err != nil {
		logger.Error("native engine initialisation failed; using stub", "error", err)
		return NewStubEngine(logger), err
	}
	logger.Info("native engine ready", "engine", native.Name())
	return native, nil
}

// ParamsFromConfig builds decode parameters from cfg on top of DefaultParams.
// The language is left empty; it comes from the context's hint.
func ParamsFromConfig(cfg config.Config) Params {
	params := DefaultParams()
	if strategy, err := ParseStrategy(cfg.Strategy); err == nil {
		params.Strategy = strategy
	}
	if cfg.Threads != nil && *cfg.Threads > 0 {
		params.Threads = *cfg.Threads
	}
	if cfg.BeamSize != nil {
		params.BeamSize = *cfg.BeamSize
	}
	if cfg.KeepContext != nil {
		params.KeepContext = *cfg.KeepContext
	}
	return params
}
