package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader loads configuration from an optional YAML file, an optional JSON
// payload and environment variables, in that order of precedence (later
// sources win). Tests can override Lookup and ReadFile to inject
// deterministic inputs.
type Loader struct {
	Lookup   func(string) (string, bool)
	ReadFile func(string) ([]byte, error)
}

// Load retrieves the bridge configuration and validates it.
func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}
	if l.ReadFile == nil {
		l.ReadFile = os.ReadFile
	}

	cfg := Config{
		ListenAddr: DefaultListenAddr,
	}

	if path, ok := l.Lookup("WHISPER_BRIDGE_CONFIG_FILE"); ok && strings.TrimSpace(path) != "" {
		raw, err := l.ReadFile(strings.TrimSpace(path))
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := applyYAML(raw, &cfg); err != nil {
			return Config{}, err
		}
	}

	if raw, ok := l.Lookup("WHISPER_BRIDGE_CONFIG"); ok && strings.TrimSpace(raw) != "" {
		if err := applyJSON(raw, &cfg); err != nil {
			return Config{}, err
		}
	}

	overrideString(l.Lookup, "WHISPER_BRIDGE_LISTEN_ADDR", &cfg.ListenAddr)
	overrideString(l.Lookup, "WHISPER_BRIDGE_METRICS_ADDR", &cfg.MetricsAddr)
	overrideString(l.Lookup, "WHISPER_BRIDGE_LOG_LEVEL", &cfg.LogLevel)
	overrideString(l.Lookup, "WHISPER_BRIDGE_MODEL_PATH", &cfg.ModelPath)
	overrideString(l.Lookup, "WHISPER_BRIDGE_LANGUAGE", &cfg.Language)
	overrideString(l.Lookup, "WHISPERCPP_STRATEGY", &cfg.Strategy)
	if err := overrideBool(l.Lookup, "WHISPER_BRIDGE_USE_STUB_ENGINE", &cfg.UseStubEngine); err != nil {
		return Config{}, err
	}
	if err := overrideIntPtr(l.Lookup, "WHISPERCPP_THREADS", &cfg.Threads); err != nil {
		return Config{}, err
	}
	if err := overrideIntPtr(l.Lookup, "WHISPERCPP_BEAM_SIZE", &cfg.BeamSize); err != nil {
		return Config{}, err
	}
	if err := overrideBoolPtr(l.Lookup, "WHISPERCPP_KEEP_CONTEXT", &cfg.KeepContext); err != nil {
		return Config{}, err
	}
	if err := overrideBoolPtr(l.Lookup, "WHISPERCPP_USE_GPU", &cfg.UseGPU); err != nil {
		return Config{}, err
	}
	if err := overrideBoolPtr(l.Lookup, "WHISPERCPP_FLASH_ATTENTION", &cfg.FlashAttention); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyYAML(raw []byte, cfg *Config) error {
	var payload Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&payload); err != nil {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	merge(cfg, payload)
	return nil
}

func applyJSON(raw string, cfg *Config) error {
	var payload Config
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("config: decode WHISPER_BRIDGE_CONFIG: %w", err)
	}
	merge(cfg, payload)
	return nil
}

func merge(dst *Config, src Config) {
	mergeString(&dst.ListenAddr, src.ListenAddr)
	mergeString(&dst.MetricsAddr, src.MetricsAddr)
	mergeString(&dst.ModelPath, src.ModelPath)
	mergeString(&dst.Language, src.Language)
	mergeString(&dst.LogLevel, src.LogLevel)
	mergeString(&dst.Strategy, src.Strategy)
	if src.UseStubEngine {
		dst.UseStubEngine = true
	}
	if src.Threads != nil {
		dst.Threads = src.Threads
	}
	if src.BeamSize != nil {
		dst.BeamSize = src.BeamSize
	}
	if src.KeepContext != nil {
		dst.KeepContext = src.KeepContext
	}
	if src.UseGPU != nil {
		dst.UseGPU = src.UseGPU
	}
	if src.FlashAttention != nil {
		dst.FlashAttention = src.FlashAttention
	}
}

func mergeString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if lookup == nil || target == nil {
		return
	}
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideBool(lookup func(string) (string, bool), key string, target *bool) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*target = parsed
	return nil
}

func overrideBoolPtr(lookup func(string) (string, bool), key string, target **bool) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*target = &parsed
	return nil
}

func overrideIntPtr(lookup func(string) (string, bool), key string, target **int) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*target = &parsed
	return nil
}
