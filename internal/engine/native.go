//go:build whispercpp

package engine

/*
#cgo CFLAGS: -I${SRCDIR}/../../third_party/whisper.cpp -I${SRCDIR}/../../third_party/whisper.cpp/include -I${SRCDIR}/../../third_party/whisper.cpp/ggml/include
#cgo CXXFLAGS: -std=c++17 -I${SRCDIR}/../../third_party/whisper.cpp -I${SRCDIR}/../../third_party/whisper.cpp/include -I${SRCDIR}/../../third_party/whisper.cpp/ggml/include
#cgo LDFLAGS: -L${SRCDIR}/../../third_party/whisper.cpp/build -L${SRCDIR}/../../third_party/whisper.cpp/build/src -Wl,-rpath,${SRCDIR}/../../third_party/whisper.cpp/build/src -lwhisper -lstdc++ -lm

#include "stdlib.h"
#include "include/whisper.h"
*/
import "C"

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/marshal"
)

// NativeAvailable reports whether the native whisper backend is compiled in.
func NativeAvailable() bool { return true }

// NativeEngine loads whisper.cpp contexts.
type NativeEngine struct {
	opts NativeOptions
}

// NewNativeEngine returns an Engine backed by whisper.cpp.
func NewNativeEngine(opts NativeOptions) (Engine, error) {
	return &NativeEngine{opts: opts}, nil
}

// Name implements Engine.
func (e *NativeEngine) Name() string { return "whispercpp" }

// Load implements Engine.
func (e *NativeEngine) Load(modelPath string) (Model, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, fmt.Errorf("%w: model path required", ErrLoadFailed)
	}
	cPath := C.CString(modelPath)
	defer C.free(unsafe.Pointer(cPath))

	cParams := C.whisper_context_default_params()
	if e.opts.UseGPU != nil {
		cParams.use_gpu = C.bool(*e.opts.UseGPU)
	}
	if e.opts.FlashAttention != nil {
		cParams.flash_attn = C.bool(*e.opts.FlashAttention)
	}

	ctx := C.whisper_init_from_file_with_params(cPath, cParams)
	if ctx == nil {
		return nil, fmt.Errorf("%w: %s", ErrLoadFailed, modelPath)
	}
	return &nativeModel{ctx: ctx}, nil
}

type nativeModel struct {
	mu  sync.Mutex
	ctx *C.struct_whisper_context
}

func (m *nativeModel) Decode(samples []float32, params Params) ([]Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return nil, ErrModelClosed
	}
	if len(samples) == 0 {
		return nil, nil
	}
	n, err := marshal.SampleCount(len(samples))
	if err != nil {
		return nil, err
	}

	strategy := C.enum_whisper_sampling_strategy(C.WHISPER_SAMPLING_GREEDY)
	if params.Strategy == StrategyBeamSearch {
		strategy = C.enum_whisper_sampling_strategy(C.WHISPER_SAMPLING_BEAM_SEARCH)
	}
	cp := C.whisper_full_default_params(strategy)
	cp.print_progress = C.bool(params.PrintProgress)
	cp.print_realtime = C.bool(params.PrintRealtime)
	cp.print_timestamps = C.bool(params.PrintTimestamps)
	cp.print_special = C.bool(params.PrintSpecial)
	cp.translate = C.bool(params.Translate)
	cp.no_context = C.bool(!params.KeepContext)
	if params.Threads > 0 {
		cp.n_threads = C.int(params.Threads)
	}
	if params.Strategy == StrategyBeamSearch && params.BeamSize > 0 {
		cp.beam_search.beam_size = C.int(params.BeamSize)
	}

	cLang := C.CString(NormaliseLanguage(params.Language, ""))
	defer C.free(unsafe.Pointer(cLang))
	cp.language = cLang

	// samples is Go-owned and holds no Go pointers; whisper_full reads it
	// synchronously and keeps no reference once it returns.
	cSamples := (*C.float)(unsafe.Pointer(&samples[0]))
	if ret := C.whisper_full(m.ctx, cp, cSamples, C.int(n)); ret != 0 {
		return nil, fmt.Errorf("%w: code %d", ErrInferenceFailed, int(ret))
	}

	count := int(C.whisper_full_n_segments(m.ctx))
	if count == 0 {
		return nil, nil
	}
	segments := make([]Segment, 0, count)
	for i := 0; i < count; i++ {
		ci := C.int(i)
		text := C.whisper_full_get_segment_text(m.ctx, ci)
		if text == nil {
			continue
		}
		segments = append(segments, Segment{
			Text:  C.GoString(text),
			Start: centiseconds(int64(C.whisper_full_get_segment_t0(m.ctx, ci))),
			End:   centiseconds(int64(C.whisper_full_get_segment_t1(m.ctx, ci))),
		})
	}
	return segments, nil
}

func (m *nativeModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx != nil {
		C.whisper_free(m.ctx)
		m.ctx = nil
	}
	return nil
}

func centiseconds(v int64) time.Duration {
	return time.Duration(v) * 10 * time.Millisecond
}
