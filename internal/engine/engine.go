package engine

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

var (
	// ErrLoadFailed indicates that a model could not be loaded from its path.
	ErrLoadFailed = errors.New("engine: model load failed")
	// ErrInferenceFailed indicates that the engine reported a non-zero status.
	ErrInferenceFailed = errors.New("engine: inference failed")
	// ErrModelClosed is returned when a released model is used.
	ErrModelClosed = errors.New("engine: model closed")
)

// Engine loads models for the opaque inference backend.
type Engine interface {
	// Load reads the model at modelPath and returns a ready inference context.
	Load(modelPath string) (Model, error)
	// Name identifies the backend in logs.
	Name() string
}

// Model is one loaded inference context. A Model is not safe for concurrent
// use; callers serialise access.
type Model interface {
	// Decode runs a single synchronous pass over the whole buffer and returns
	// the emitted segments in order. On failure no segments are returned.
	Decode(samples []float32, params Params) ([]Segment, error)
	// Close releases the model. It is idempotent.
	Close() error
}

// Segment is one unit of text emitted by the engine.
type Segment struct {
	Text  string
	Start time.Duration
	End   time.Duration
}

// Strategy selects the decoding algorithm.
type Strategy int

const (
	StrategyGreedy Strategy = iota
	StrategyBeamSearch
)

func (s Strategy) String() string {
	switch s {
	case StrategyGreedy:
		return "greedy"
	case StrategyBeamSearch:
		return "beam_search"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy accepts "greedy", "beam_search" and "beam-search".
func ParseStrategy(value string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "greedy":
		return StrategyGreedy, nil
	case "beam_search", "beam-search", "beam":
		return StrategyBeamSearch, nil
	default:
		return StrategyGreedy, fmt.Errorf("engine: unknown sampling strategy %q", value)
	}
}

// Params configures a decode pass.
type Params struct {
	Strategy Strategy
	// BeamSize applies to StrategyBeamSearch; 0 keeps the engine default.
	BeamSize int
	Threads  int

	PrintProgress   bool
	PrintRealtime   bool
	PrintTimestamps bool
	PrintSpecial    bool

	// KeepContext carries decoder state from previous calls into the next one.
	KeepContext bool
	// Language forces a language code; "" or "auto" enables detection.
	Language  string
	Translate bool
}

// DefaultParams returns greedy decoding on every available core with all
// printing disabled.
func DefaultParams() Params {
	return Params{
		Strategy:    StrategyGreedy,
		Threads:     runtime.NumCPU(),
		KeepContext: true,
	}
}
