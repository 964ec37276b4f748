// Package registry owns inference contexts on behalf of callers that only
// ever see opaque handles.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/engine"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/telemetry"
)

var (
	// ErrInvalidHandle is returned for handles that are stale, unknown or
	// already destroyed.
	ErrInvalidHandle = errors.New("registry: invalid handle")
	// ErrClosed is returned once the registry has been closed.
	ErrClosed = errors.New("registry: closed")
)

// Context is one loaded model plus its language hint. Callers reach it only
// through Use.
type Context struct {
	mu       sync.Mutex
	handle   Handle
	model    engine.Model
	path     string
	language string
	state    State
	loadedAt time.Time
}

// Handle returns the handle the context was issued under.
func (c *Context) Handle() Handle { return c.handle }

// Model returns the loaded engine model.
func (c *Context) Model() engine.Model { return c.model }

// ModelPath returns the path the model was loaded from.
func (c *Context) ModelPath() string { return c.path }

// Language returns the language hint supplied at creation.
func (c *Context) Language() string { return c.language }

// Info is a point-in-time description of a live context.
type Info struct {
	Handle    Handle
	ModelPath string
	Language  string
	State     State
	Current   bool
	LoadedAt  time.Time
}

type slot struct {
	generation uint32
	ctx        *Context
}

// Registry is an arena of contexts with at most one current entry.
type Registry struct {
	engine   engine.Engine
	log      *slog.Logger
	recorder *telemetry.Recorder

	createMu sync.Mutex

	mu      sync.Mutex
	slots   []slot
	free    []uint32
	current Handle
	closed  bool
}

// New constructs a registry loading models through eng. recorder may be nil.
func New(eng engine.Engine, logger *slog.Logger, recorder *telemetry.Recorder) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		engine:   eng,
		log:      logger.With("component", "registry"),
		recorder: recorder,
	}
}

// Create loads a model and makes it the current context. Any previous current
// context is destroyed first. On failure InvalidHandle is returned and no
// context is current.
func (r *Registry) Create(modelPath, language string) (Handle, error) {
	r.createMu.Lock()
	defer r.createMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return InvalidHandle, ErrClosed
	}
	var previous *Context
	if r.current != InvalidHandle {
		previous = r.detachLocked(r.current)
		r.current = InvalidHandle
	}
	r.mu.Unlock()

	if previous != nil {
		r.log.Info("replacing live context",
			"handle", previous.handle.String(),
			"model_path", previous.path,
			"new_model_path", modelPath,
		)
		r.release(previous, telemetry.ReleaseReplaced)
	}

	ctx, err := r.load(modelPath, language)
	if err != nil {
		return InvalidHandle, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.release(ctx, telemetry.ReleaseShutdown)
		return InvalidHandle, ErrClosed
	}
	handle := r.insertLocked(ctx)
	r.current = handle
	r.mu.Unlock()
	r.log.Info("context created", "handle", handle.String(), "model_path", modelPath, "language", language)
	return handle, nil
}

// Open loads an additional context without touching the current one.
func (r *Registry) Open(modelPath, language string) (Handle, error) {
	r.createMu.Lock()
	defer r.createMu.Unlock()

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return InvalidHandle, ErrClosed
	}

	ctx, err := r.load(modelPath, language)
	if err != nil {
		return InvalidHandle, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.release(ctx, telemetry.ReleaseShutdown)
		return InvalidHandle, ErrClosed
	}
	handle := r.insertLocked(ctx)
	r.mu.Unlock()
	r.log.Info("context opened", "handle", handle.String(), "model_path", modelPath, "language", language)
	return handle, nil
}

// Destroy releases the context behind handle. InvalidHandle is a no-op;
// stale or unknown handles return ErrInvalidHandle. Destroy waits for any
// in-flight Use of the context to finish.
func (r *Registry) Destroy(handle Handle) error {
	if handle == InvalidHandle {
		return nil
	}
	r.mu.Lock()
	ctx := r.detachLocked(handle)
	if ctx != nil && r.current == handle {
		r.current = InvalidHandle
	}
	r.mu.Unlock()

	if ctx == nil {
		return fmt.Errorf("%w: %s", ErrInvalidHandle, handle)
	}
	r.release(ctx, telemetry.ReleaseExplicit)
	r.log.Info("context released", "handle", handle.String(), "model_path", ctx.path)
	return nil
}

// Use runs fn with exclusive access to the loaded context behind handle.
func (r *Registry) Use(handle Handle, fn func(*Context) error) error {
	r.mu.Lock()
	ctx := r.lookupLocked(handle)
	r.mu.Unlock()
	if ctx == nil {
		return fmt.Errorf("%w: %s", ErrInvalidHandle, handle)
	}

	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	// Destroy may have detached the context while we waited for its lock.
	if ctx.state != StateLoaded {
		return fmt.Errorf("%w: %s", ErrInvalidHandle, handle)
	}
	return fn(ctx)
}

// Current returns the current handle, or InvalidHandle.
func (r *Registry) Current() Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Live reports the number of contexts held by the registry.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.slots {
		if s.ctx != nil {
			n++
		}
	}
	return n
}

// Info describes the context behind handle.
func (r *Registry) Info(handle Handle) (Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctx := r.lookupLocked(handle)
	if ctx == nil {
		return Info{}, fmt.Errorf("%w: %s", ErrInvalidHandle, handle)
	}
	return r.infoLocked(ctx), nil
}

// List describes every live context in slot order.
func (r *Registry) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Info, 0, len(r.slots))
	for _, s := range r.slots {
		if s.ctx != nil {
			out = append(out, r.infoLocked(s.ctx))
		}
	}
	return out
}

// Close releases every context and rejects further creation.
func (r *Registry) Close() error {
	r.createMu.Lock()
	defer r.createMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	var contexts []*Context
	for i := range r.slots {
		if r.slots[i].ctx != nil {
			contexts = append(contexts, r.detachLocked(r.slots[i].ctx.handle))
		}
	}
	r.current = InvalidHandle
	r.mu.Unlock()

	var errs []error
	for _, ctx := range contexts {
		if err := r.release(ctx, telemetry.ReleaseShutdown); err != nil {
			errs = append(errs, err)
		}
	}
	if len(contexts) > 0 {
		r.log.Info("registry closed", "released", len(contexts))
	}
	return errors.Join(errs...)
}

func (r *Registry) load(modelPath, language string) (*Context, error) {
	ctx := &Context{path: modelPath, language: language, state: StateUninitialized}

	started := time.Now()
	model, err := r.engine.Load(modelPath)
	r.recorder.RecordLoad(modelPath, time.Since(started), err)
	if err != nil {
		r.log.Error("model load failed", "model_path", modelPath, "error", err)
		if !errors.Is(err, engine.ErrLoadFailed) {
			err = fmt.Errorf("%w: %w", engine.ErrLoadFailed, err)
		}
		return nil, err
	}
	ctx.model = model
	ctx.state = StateLoaded
	ctx.loadedAt = time.Now()
	return ctx, nil
}

func (r *Registry) release(ctx *Context, reason string) error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if ctx.state == StateDestroyed {
		return nil
	}
	ctx.state = StateDestroyed
	err := ctx.model.Close()
	ctx.model = nil
	r.recorder.RecordRelease(reason)
	if err != nil {
		r.log.Warn("model close failed", "handle", ctx.handle.String(), "error", err)
	}
	return err
}

func (r *Registry) insertLocked(ctx *Context) Handle {
	var index uint32
	if n := len(r.free); n > 0 {
		index = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot{})
		index = uint32(len(r.slots) - 1)
	}
	s := &r.slots[index]
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	s.ctx = ctx
	ctx.handle = makeHandle(index, s.generation)
	return ctx.handle
}

func (r *Registry) lookupLocked(handle Handle) *Context {
	if !handle.Valid() {
		return nil
	}
	index := handle.index()
	if int(index) >= len(r.slots) {
		return nil
	}
	s := r.slots[index]
	if s.generation != handle.generation() || s.ctx == nil {
		return nil
	}
	return s.ctx
}

func (r *Registry) detachLocked(handle Handle) *Context {
	ctx := r.lookupLocked(handle)
	if ctx == nil {
		return nil
	}
	index := handle.index()
	r.slots[index].ctx = nil
	r.free = append(r.free, index)
	return ctx
}

func (r *Registry) infoLocked(ctx *Context) Info {
	return Info{
		Handle:    ctx.handle,
		ModelPath: ctx.path,
		Language:  ctx.language,
		State:     StateLoaded,
		Current:   ctx.handle == r.current,
		LoadedAt:  ctx.loadedAt,
	}
}
