package bridge

import (
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/marshal"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/registry"
)

// ErrAsyncClosed is returned when work is submitted after Close.
var ErrAsyncClosed = errors.New("bridge: async executor closed")

// Callbacks receive the outcome of work submitted to an Async executor. They
// run on the executor goroutine, one at a time. Nil callbacks are skipped.
type Callbacks struct {
	// OnReady fires after Initialize loaded a context.
	OnReady func(handle registry.Handle)
	// OnResult fires after a transcription succeeded, including silence.
	OnResult func(text string, status Status)
	// OnError fires when an operation produced a sentinel failure.
	OnError func(op string, status Status)
}

// Async serialises every bridge call onto one goroutine and reports results
// through callbacks. It owns a single context at a time.
type Async struct {
	bridge    *Bridge
	callbacks Callbacks
	log       *slog.Logger

	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}

	// handle is only touched by the executor goroutine.
	handle registry.Handle
}

// NewAsync starts an executor over b.
func NewAsync(b *Bridge, callbacks Callbacks, logger *slog.Logger) *Async {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Async{
		bridge:    b,
		callbacks: callbacks,
		log:       logger.With("component", "bridge.async"),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go a.run()
	return a
}

// Initialize loads modelPath, replacing the context owned by the executor.
func (a *Async) Initialize(modelPath, language string) error {
	return a.submit(func() {
		handle, status := a.bridge.CreateContextWithStatus(modelPath, language)
		a.handle = handle
		if status != StatusOK {
			a.fail("initialize", status)
			return
		}
		if a.callbacks.OnReady != nil {
			a.callbacks.OnReady(handle)
		}
	})
}

// Transcribe converts signed 16-bit PCM and transcribes it with the owned
// context. pcm is copied before Transcribe returns.
func (a *Async) Transcribe(pcm []int16) error {
	owned := slices.Clone(pcm)
	return a.submit(func() {
		if a.handle == registry.InvalidHandle {
			a.fail("transcribe", StatusInvalidHandle)
			return
		}
		var samples []float32
		if len(owned) > 0 {
			samples = marshal.PCM16(&owned[0], len(owned))
		}
		a.deliver(a.bridge.TranscribeWithStatus(a.handle, samples))
	})
}

// TranscribeSamples transcribes float samples with the owned context.
// samples is copied before TranscribeSamples returns.
func (a *Async) TranscribeSamples(samples []float32) error {
	owned := slices.Clone(samples)
	return a.submit(func() {
		if a.handle == registry.InvalidHandle {
			a.fail("transcribe", StatusInvalidHandle)
			return
		}
		a.deliver(a.bridge.TranscribeWithStatus(a.handle, owned))
	})
}

// Release destroys the owned context, if any.
func (a *Async) Release() error {
	return a.submit(func() {
		a.bridge.ReleaseContext(a.handle)
		a.handle = registry.InvalidHandle
	})
}

// Close releases the owned context after pending work has run and stops the
// executor. It blocks until the goroutine exits.
func (a *Async) Close() {
	if err := a.Release(); err != nil {
		<-a.done
		return
	}
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.signal()
	<-a.done
}

func (a *Async) submit(job func()) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrAsyncClosed
	}
	a.queue = append(a.queue, job)
	a.mu.Unlock()
	a.signal()
	return nil
}

func (a *Async) signal() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *Async) run() {
	defer close(a.done)
	for {
		a.mu.Lock()
		if len(a.queue) == 0 {
			closed := a.closed
			a.mu.Unlock()
			if closed {
				return
			}
			<-a.wake
			continue
		}
		job := a.queue[0]
		a.queue[0] = nil
		a.queue = a.queue[1:]
		a.mu.Unlock()

		a.runJob(job)
	}
}

func (a *Async) runJob(job func()) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("recovered panic in async job", "panic", r)
		}
	}()
	job()
}

func (a *Async) deliver(text string, status Status) {
	if status.Failed() {
		a.fail("transcribe", status)
		return
	}
	if a.callbacks.OnResult != nil {
		a.callbacks.OnResult(text, status)
	}
}

func (a *Async) fail(op string, status Status) {
	a.log.Warn("async operation failed", "op", op, "status", status.String())
	if a.callbacks.OnError != nil {
		a.callbacks.OnError(op, status)
	}
}
