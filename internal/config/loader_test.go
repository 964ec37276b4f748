package config_test

import (
	"errors"
	"os"
	"testing"

	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/config"
)

func TestLoaderDefaults(t *testing.T) {
	loader := config.Loader{
		Lookup: func(string) (string, bool) { return "", false },
	}
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.ListenAddr != config.DefaultListenAddr {
		t.Fatalf("expected listen addr %q, got %q", config.DefaultListenAddr, cfg.ListenAddr)
	}
	if cfg.Language != config.DefaultLanguage {
		t.Fatalf("expected language %q, got %q", config.DefaultLanguage, cfg.Language)
	}
	if cfg.LogLevel != config.DefaultLogLevel {
		t.Fatalf("expected log level %q, got %q", config.DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.Strategy != config.DefaultStrategy {
		t.Fatalf("expected strategy %q, got %q", config.DefaultStrategy, cfg.Strategy)
	}
	if cfg.ModelPath != "" {
		t.Fatalf("expected empty model path, got %q", cfg.ModelPath)
	}
	if cfg.MetricsAddr != "" {
		t.Fatalf("expected metrics disabled, got %q", cfg.MetricsAddr)
	}
	if cfg.UseStubEngine {
		t.Fatalf("expected stub engine disabled by default")
	}
	if cfg.UseGPU != nil {
		t.Fatalf("expected use_gpu default (nil), got %v", cfg.UseGPU)
	}
	if cfg.KeepContext != nil {
		t.Fatalf("expected keep_context default (nil), got %v", cfg.KeepContext)
	}
	if cfg.Threads != nil {
		t.Fatalf("expected threads default (nil), got %v", *cfg.Threads)
	}
}

func TestLoaderOverrides(t *testing.T) {
	env := map[string]string{
		"WHISPER_BRIDGE_CONFIG":          `{"language":"pl","log_level":"debug","model_path":"/tmp/models/custom.bin","use_gpu":false,"flash_attention":true,"threads":4,"strategy":"beam_search","beam_size":5}`,
		"WHISPER_BRIDGE_LISTEN_ADDR":     "0.0.0.0:6000",
		"WHISPER_BRIDGE_METRICS_ADDR":    "127.0.0.1:9464",
		"WHISPER_BRIDGE_LOG_LEVEL":       "warn",
		"WHISPER_BRIDGE_LANGUAGE":        "en",
		"WHISPER_BRIDGE_MODEL_PATH":      "/var/lib/whisper/ggml-tiny.en.bin",
		"WHISPER_BRIDGE_USE_STUB_ENGINE": "true",
		"WHISPERCPP_USE_GPU":             "true",
		"WHISPERCPP_FLASH_ATTENTION":     "false",
		"WHISPERCPP_THREADS":             "6",
		"WHISPERCPP_KEEP_CONTEXT":        "false",
	}

	loader := config.Loader{
		Lookup: func(key string) (string, bool) {
			value, ok := env[key]
			return value, ok
		},
	}

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	assertEqual(t, "0.0.0.0:6000", cfg.ListenAddr, "listen addr")
	assertEqual(t, "127.0.0.1:9464", cfg.MetricsAddr, "metrics addr")
	assertEqual(t, "en", cfg.Language, "language")
	assertEqual(t, "warn", cfg.LogLevel, "log level")
	assertEqual(t, "/var/lib/whisper/ggml-tiny.en.bin", cfg.ModelPath, "model path")
	assertEqual(t, "beam_search", cfg.Strategy, "strategy")
	assertBool(t, true, cfg.UseStubEngine, "use stub engine")
	assertBoolPtr(t, true, cfg.UseGPU, "use gpu")
	assertBoolPtr(t, false, cfg.FlashAttention, "flash attention")
	assertBoolPtr(t, false, cfg.KeepContext, "keep context")
	assertIntPtr(t, 6, cfg.Threads, "threads")
	assertIntPtr(t, 5, cfg.BeamSize, "beam size")
}

func TestLoaderYAMLFile(t *testing.T) {
	files := map[string]string{
		"/etc/whisper-bridge.yaml": `
listen_addr: 127.0.0.1:7000
model_path: /models/ggml-base.bin
language: de
strategy: beam-search
beam_size: 3
keep_context: false
`,
	}
	env := map[string]string{
		"WHISPER_BRIDGE_CONFIG_FILE": "/etc/whisper-bridge.yaml",
		"WHISPER_BRIDGE_CONFIG":      `{"language":"fr"}`,
	}

	loader := config.Loader{
		Lookup: func(key string) (string, bool) {
			value, ok := env[key]
			return value, ok
		},
		ReadFile: func(path string) ([]byte, error) {
			raw, ok := files[path]
			if !ok {
				return nil, os.ErrNotExist
			}
			return []byte(raw), nil
		},
	}

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	assertEqual(t, "127.0.0.1:7000", cfg.ListenAddr, "listen addr")
	assertEqual(t, "/models/ggml-base.bin", cfg.ModelPath, "model path")
	assertEqual(t, "fr", cfg.Language, "language")
	assertEqual(t, "beam_search", cfg.Strategy, "strategy")
	assertIntPtr(t, 3, cfg.BeamSize, "beam size")
	assertBoolPtr(t, false, cfg.KeepContext, "keep context")
}

func TestLoaderYAMLUnknownField(t *testing.T) {
	loader := config.Loader{
		Lookup: func(key string) (string, bool) {
			if key == "WHISPER_BRIDGE_CONFIG_FILE" {
				return "bridge.yaml", true
			}
			return "", false
		},
		ReadFile: func(string) ([]byte, error) {
			return []byte("model_variant: base\n"), nil
		},
	}
	if _, err := loader.Load(); err == nil {
		t.Fatalf("expected error for unknown yaml field")
	}
}

func TestLoaderMissingFile(t *testing.T) {
	loader := config.Loader{
		Lookup: func(key string) (string, bool) {
			if key == "WHISPER_BRIDGE_CONFIG_FILE" {
				return "missing.yaml", true
			}
			return "", false
		},
		ReadFile: func(string) ([]byte, error) { return nil, os.ErrNotExist },
	}
	_, err := loader.Load()
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestLoaderThreadsAuto(t *testing.T) {
	env := map[string]string{
		"WHISPER_BRIDGE_CONFIG": `{"threads":0}`,
	}

	loader := config.Loader{
		Lookup: func(key string) (string, bool) {
			value, ok := env[key]
			return value, ok
		},
	}

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Threads != nil {
		t.Fatalf("expected threads nil when configured as 0, got %v", *cfg.Threads)
	}
}

func TestLoaderRejectsInvalidValues(t *testing.T) {
	tests := map[string]map[string]string{
		"negative threads": {"WHISPERCPP_THREADS": "-1"},
		"zero beam size":   {"WHISPERCPP_BEAM_SIZE": "0"},
		"bad strategy":     {"WHISPERCPP_STRATEGY": "sampling"},
		"bad bool":         {"WHISPERCPP_USE_GPU": "maybe"},
		"bad json":         {"WHISPER_BRIDGE_CONFIG": "{"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			loader := config.Loader{
				Lookup: func(key string) (string, bool) {
					value, ok := env[key]
					return value, ok
				},
			}
			if _, err := loader.Load(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func assertEqual(t *testing.T, want, got, label string) {
	t.Helper()
	if want != got {
		t.Fatalf("unexpected %s: want %q, got %q", label, want, got)
	}
}

func assertBool(t *testing.T, want, got bool, label string) {
	t.Helper()
	if want != got {
		t.Fatalf("unexpected %s: want %v, got %v", label, want, got)
	}
}

func assertBoolPtr(t *testing.T, want bool, got *bool, label string) {
	t.Helper()
	if got == nil {
		t.Fatalf("unexpected %s: want %v, got nil", label, want)
	}
	if *got != want {
		t.Fatalf("unexpected %s: want %v, got %v", label, want, *got)
	}
}

func assertIntPtr(t *testing.T, want int, got *int, label string) {
	t.Helper()
	if got == nil {
		t.Fatalf("unexpected %s: want %d, got nil", label, want)
	}
	if *got != want {
		t.Fatalf("unexpected %s: want %d, got %d", label, want, *got)
	}
}
