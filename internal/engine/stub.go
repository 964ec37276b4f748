package engine

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/moduleinfo"
)

const (
	// StubModelHeader is the leading magic the stub engine expects in a model
	// file. It matches the little-endian "ggml" magic of whisper.cpp models.
	StubModelHeader = "lmgg"

	stubSampleRate      = 16000
	stubWindowSamples   = stubSampleRate
	stubSpeechThreshold = 0.01
)

// StubEngine produces deterministic transcripts without invoking Whisper.
type StubEngine struct {
	log *slog.Logger
}

// NewStubEngine returns an Engine that generates placeholder transcripts.
func NewStubEngine(logger *slog.Logger) *StubEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubEngine{
		log: logger.With(
			"component", "engine.stub",
			"module", moduleinfo.Info.Slug,
		),
	}
}

// Name implements Engine.
func (e *StubEngine) Name() string { return "stub" }

// Load implements Engine. The file must exist and start with StubModelHeader.
func (e *StubEngine) Load(modelPath string) (Model, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("%w: model path required", ErrLoadFailed)
	}
	f, err := os.Open(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	defer f.Close()

	header := make([]byte, len(StubModelHeader))
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, fmt.Errorf("%w: %s: read header: %w", ErrLoadFailed, modelPath, err)
	}
	if !bytes.Equal(header, []byte(StubModelHeader)) {
		return nil, fmt.Errorf("%w: %s: unrecognised model header", ErrLoadFailed, modelPath)
	}

	e.log.Debug("stub model loaded", "model_path", modelPath)
	return &stubModel{name: filepath.Base(modelPath), log: e.log}, nil
}

// stubModel emits one segment for every second of audio whose RMS level
// crosses stubSpeechThreshold. Silence yields no segments.
type stubModel struct {
	mu     sync.Mutex
	name   string
	log    *slog.Logger
	closed bool
	passes int
}

func (m *stubModel) Decode(samples []float32, params Params) ([]Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrModelClosed
	}
	if !params.KeepContext {
		m.passes = 0
	}
	m.passes++

	lang := NormaliseLanguage(params.Language, "")
	var segments []Segment
	for start, idx := 0, 0; start < len(samples); start, idx = start+stubWindowSamples, idx+1 {
		end := min(start+stubWindowSamples, len(samples))
		if rms(samples[start:end]) < stubSpeechThreshold {
			continue
		}
		segments = append(segments, Segment{
			Text:  fmt.Sprintf(" [stub:%s] pass %d segment %d (%d samples)", lang, m.passes, idx, end-start),
			Start: sampleOffset(start),
			End:   sampleOffset(end),
		})
	}
	m.log.Debug("stub decode", "model", m.name, "samples", len(samples), "segments", len(segments))
	return segments, nil
}

func (m *stubModel) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func sampleOffset(n int) time.Duration {
	return time.Duration(n) * time.Second / stubSampleRate
}
