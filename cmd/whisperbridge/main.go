// Command whisperbridge builds the bridge as a C shared library:
//
//	go build -buildmode=c-shared -o libwhisperbridge.so ./cmd/whisperbridge
//
// Every exported function returns a sentinel on failure (0 handle, empty
// string, no-op) and never lets a Go panic cross into the host.
package main

/*
#include <stdint.h>
#include <stdlib.h>

typedef void (*whisper_bridge_log_fn)(int level, const char* line);

static inline void whisper_bridge_call_log(whisper_bridge_log_fn fn, int level, const char* line) {
	if (fn != NULL) {
		fn(level, line);
	}
}
*/
import "C"

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"unsafe"

	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/bridge"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/diag"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/marshal"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/registry"
)

var (
	logMu       sync.Mutex
	logCallback C.whisper_bridge_log_fn
	logLevel    = new(slog.LevelVar)
)

func init() {
	logLevel.Set(diag.ParseLevel(os.Getenv("WHISPER_BRIDGE_LOG_LEVEL")))
	bridge.SetDefaultLogger(slog.New(diag.NewFuncHandler(forwardLog, logLevel)))
}

// forwardLog hands a formatted line to the host callback, or to stderr when
// none is registered.
func forwardLog(level slog.Level, line string) {
	logMu.Lock()
	fn := logCallback
	logMu.Unlock()

	if fn == nil {
		fmt.Fprintf(os.Stderr, "whisperbridge %s %s\n", level, line)
		return
	}
	cline := C.CString(line)
	defer C.free(unsafe.Pointer(cline))
	C.whisper_bridge_call_log(fn, C.int(level), cline)
}

func guard(op string) {
	if r := recover(); r != nil {
		forwardLog(slog.LevelError, fmt.Sprintf("recovered panic in export op=%s panic=%v", op, r))
	}
}

// whisper_bridge_set_log_callback installs fn as the diagnostics sink. Levels
// follow slog numbering: -4 debug, 0 info, 4 warn, 8 error.
//
//export whisper_bridge_set_log_callback
func whisper_bridge_set_log_callback(fn C.whisper_bridge_log_fn, level C.int) {
	logMu.Lock()
	logCallback = fn
	logMu.Unlock()
	logLevel.Set(slog.Level(level))
}

//export whisper_bridge_create_context
func whisper_bridge_create_context(modelPath, language *C.char) (handle C.uint64_t) {
	defer guard("create_context")
	path := marshal.Text((*byte)(unsafe.Pointer(modelPath)))
	lang := marshal.Text((*byte)(unsafe.Pointer(language)))
	return C.uint64_t(bridge.Default().CreateContext(path, lang))
}

//export whisper_bridge_open_context
func whisper_bridge_open_context(modelPath, language *C.char) (handle C.uint64_t) {
	defer guard("open_context")
	path := marshal.Text((*byte)(unsafe.Pointer(modelPath)))
	lang := marshal.Text((*byte)(unsafe.Pointer(language)))
	return C.uint64_t(bridge.Default().OpenContext(path, lang))
}

//export whisper_bridge_transcribe
func whisper_bridge_transcribe(handle C.uint64_t, samples *C.float, n C.int) (text *C.char) {
	defer func() {
		if text == nil {
			text = C.CString("")
		}
	}()
	defer guard("transcribe")
	audio := marshal.Samples((*float32)(unsafe.Pointer(samples)), int(n))
	return C.CString(bridge.Default().Transcribe(registry.Handle(handle), audio))
}

//export whisper_bridge_transcribe_pcm16
func whisper_bridge_transcribe_pcm16(handle C.uint64_t, samples *C.int16_t, n C.int) (text *C.char) {
	defer func() {
		if text == nil {
			text = C.CString("")
		}
	}()
	defer guard("transcribe_pcm16")
	audio := marshal.PCM16((*int16)(unsafe.Pointer(samples)), int(n))
	return C.CString(bridge.Default().Transcribe(registry.Handle(handle), audio))
}

//export whisper_bridge_transcribe_status
func whisper_bridge_transcribe_status(handle C.uint64_t, samples *C.float, n C.int, status *C.int) (text *C.char) {
	result := bridge.StatusInternal
	defer func() {
		if text == nil {
			text = C.CString("")
		}
		if status != nil {
			*status = C.int(result)
		}
	}()
	defer guard("transcribe_status")
	audio := marshal.Samples((*float32)(unsafe.Pointer(samples)), int(n))
	out, st := bridge.Default().TranscribeWithStatus(registry.Handle(handle), audio)
	result = st
	return C.CString(out)
}

//export whisper_bridge_release_context
func whisper_bridge_release_context(handle C.uint64_t) {
	defer guard("release_context")
	bridge.Default().ReleaseContext(registry.Handle(handle))
}

//export whisper_bridge_free_string
func whisper_bridge_free_string(s *C.char) {
	if s != nil {
		C.free(unsafe.Pointer(s))
	}
}

func main() {}
