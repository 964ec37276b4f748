package bridge

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/config"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/diag"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/telemetry"
)

var (
	defaultOnce   sync.Once
	defaultBridge *Bridge
	defaultLogger *slog.Logger
)

// SetDefaultLogger sets the logger used when the process-wide Bridge is first
// built. It has no effect once Default has been called.
func SetDefaultLogger(logger *slog.Logger) {
	defaultLogger = logger
}

// Default returns the process-wide Bridge used by foreign callers that cannot
// hold a Go value. It is configured from the environment on first use; a
// broken configuration is logged and replaced by defaults.
func Default() *Bridge {
	defaultOnce.Do(func() {
		defaultBridge = buildDefault()
	})
	return defaultBridge
}

func buildDefault() *Bridge {
	loader := config.Loader{Lookup: os.LookupEnv}
	cfg, err := loader.Load()
	logger := defaultLogger
	if logger == nil {
		logger = diag.NewLogger(cfg.LogLevel, os.Stderr)
	}
	if err != nil {
		logger.Error("invalid configuration; using defaults", "error", err)
		cfg = config.Config{ListenAddr: config.DefaultListenAddr}
		_ = cfg.Validate()
	}

	recorder := telemetry.NewRecorder(logger, nil)
	b, err := NewFromConfig(cfg, logger, recorder)
	if err != nil {
		logger.Error("bridge initialisation failed; using stub engine", "error", err)
		cfg.UseStubEngine = true
		if b, err = NewFromConfig(cfg, logger, recorder); err != nil {
			panic(fmt.Sprintf("bridge: stub initialisation failed: %v", err))
		}
	}
	return b
}
