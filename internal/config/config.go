package config

import (
	"fmt"
	"strings"
)

const (
	// DefaultListenAddr is used when no explicit gRPC address is configured.
	DefaultListenAddr = "127.0.0.1:50051"
	DefaultLanguage   = "auto"
	DefaultLogLevel   = "info"
	DefaultStrategy   = "greedy"
)

// Config captures bootstrap configuration extracted from a YAML file, an
// injected JSON payload (`WHISPER_BRIDGE_CONFIG`) and environment variables.
type Config struct {
	ListenAddr    string `yaml:"listen_addr" json:"listen_addr"`
	MetricsAddr   string `yaml:"metrics_addr" json:"metrics_addr"`
	ModelPath     string `yaml:"model_path" json:"model_path"`
	Language      string `yaml:"language" json:"language"`
	LogLevel      string `yaml:"log_level" json:"log_level"`
	UseStubEngine bool   `yaml:"use_stub_engine" json:"use_stub_engine"`

	Strategy       string `yaml:"strategy" json:"strategy"`
	Threads        *int   `yaml:"threads" json:"threads"`
	BeamSize       *int   `yaml:"beam_size" json:"beam_size"`
	KeepContext    *bool  `yaml:"keep_context" json:"keep_context"`
	UseGPU         *bool  `yaml:"use_gpu" json:"use_gpu"`
	FlashAttention *bool  `yaml:"flash_attention" json:"flash_attention"`
}

// Validate applies defaults, checks required fields, and rejects out-of-range
// values.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen address is required")
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.Strategy = strings.ToLower(strings.TrimSpace(c.Strategy))
	switch c.Strategy {
	case "":
		c.Strategy = DefaultStrategy
	case "greedy", "beam_search":
	case "beam-search", "beam":
		c.Strategy = "beam_search"
	default:
		return fmt.Errorf("config: strategy must be greedy or beam_search, got %q", c.Strategy)
	}
	if c.Threads != nil && *c.Threads < 0 {
		return fmt.Errorf("config: threads must be >= 0, got %d", *c.Threads)
	}
	if c.Threads != nil && *c.Threads == 0 {
		c.Threads = nil
	}
	if c.BeamSize != nil && *c.BeamSize < 1 {
		return fmt.Errorf("config: beam_size must be >= 1, got %d", *c.BeamSize)
	}
	return nil
}
