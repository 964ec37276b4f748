package bridge

import (
	"errors"
	"fmt"

	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/engine"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/marshal"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/registry"
)

// Status explains a sentinel return value. An empty transcript is ambiguous on
// its own; the accompanying Status separates silence from failure.
type Status int

const (
	StatusOK Status = iota
	StatusNoSpeech
	StatusInvalidHandle
	StatusLoadFailed
	StatusInferenceFailed
	StatusAudioTooLong
	StatusInternal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoSpeech:
		return "no_speech"
	case StatusInvalidHandle:
		return "invalid_handle"
	case StatusLoadFailed:
		return "load_failed"
	case StatusInferenceFailed:
		return "inference_failed"
	case StatusAudioTooLong:
		return "audio_too_long"
	case StatusInternal:
		return "internal"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Failed reports whether s describes an error rather than a result.
func (s Status) Failed() bool { return s != StatusOK && s != StatusNoSpeech }

// StatusOf maps an error returned by the core onto a Status. A nil error maps
// to StatusOK.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, registry.ErrInvalidHandle), errors.Is(err, registry.ErrClosed):
		return StatusInvalidHandle
	case errors.Is(err, engine.ErrLoadFailed):
		return StatusLoadFailed
	case errors.Is(err, marshal.ErrAudioTooLong):
		return StatusAudioTooLong
	case errors.Is(err, engine.ErrInferenceFailed), errors.Is(err, engine.ErrModelClosed):
		return StatusInferenceFailed
	default:
		return StatusInternal
	}
}
