package registry

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/engine"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/telemetry"
)

type fakeEngine struct {
	loads  atomic.Int32
	closes atomic.Int32
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Load(path string) (engine.Model, error) {
	if strings.HasPrefix(path, "missing/") {
		return nil, errors.New("no such file")
	}
	e.loads.Add(1)
	return &fakeModel{engine: e}, nil
}

func (e *fakeEngine) live() int32 { return e.loads.Load() - e.closes.Load() }

type fakeModel struct {
	engine *fakeEngine
	closed atomic.Bool
}

func (m *fakeModel) Decode([]float32, engine.Params) ([]engine.Segment, error) {
	if m.closed.Load() {
		return nil, engine.ErrModelClosed
	}
	return []engine.Segment{{Text: " ok"}}, nil
}

func (m *fakeModel) Close() error {
	if m.closed.CompareAndSwap(false, true) {
		m.engine.closes.Add(1)
	}
	return nil
}

func newTestRegistry(t *testing.T) (*Registry, *fakeEngine, *telemetry.Recorder) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := &fakeEngine{}
	recorder := telemetry.NewRecorder(logger, nil)
	reg := New(eng, logger, recorder)
	t.Cleanup(func() { _ = reg.Close() })
	return reg, eng, recorder
}

func TestCreateMakesContextCurrent(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	handle, err := reg.Create("valid/model.bin", "en")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !handle.Valid() {
		t.Fatalf("expected valid handle, got %s", handle)
	}
	if got := reg.Current(); got != handle {
		t.Fatalf("expected current %s, got %s", handle, got)
	}
	info, err := reg.Info(handle)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.ModelPath != "valid/model.bin" || info.Language != "en" || !info.Current || info.State != StateLoaded {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestCreateReplacesCurrentWithoutLeak(t *testing.T) {
	reg, eng, recorder := newTestRegistry(t)

	first, err := reg.Create("valid/model.bin", "en")
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}
	second, err := reg.Create("valid/model.bin", "en")
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct handles, both %s", first)
	}
	if got := eng.live(); got != 1 {
		t.Fatalf("expected exactly one live model, got %d", got)
	}
	if reg.Live() != 1 {
		t.Fatalf("expected one live context, got %d", reg.Live())
	}
	if reg.Current() != second {
		t.Fatalf("expected second handle to be current")
	}
	if err := reg.Use(first, func(*Context) error { return nil }); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("expected stale handle to be rejected, got %v", err)
	}
	if snap := recorder.Snapshot(); snap.ContextsReplaced != 1 || snap.LiveContexts != 1 {
		t.Fatalf("unexpected recorder snapshot: %+v", snap)
	}
}

func TestCreateFailureLeavesNoCurrent(t *testing.T) {
	reg, eng, _ := newTestRegistry(t)

	if _, err := reg.Create("valid/model.bin", "en"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	handle, err := reg.Create("missing/model.bin", "en")
	if !errors.Is(err, engine.ErrLoadFailed) {
		t.Fatalf("expected ErrLoadFailed, got %v", err)
	}
	if handle != InvalidHandle {
		t.Fatalf("expected invalid handle, got %s", handle)
	}
	if reg.Current() != InvalidHandle {
		t.Fatalf("expected no current context after failed create")
	}
	if eng.live() != 0 {
		t.Fatalf("expected previous model to be released, %d live", eng.live())
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	reg, eng, _ := newTestRegistry(t)

	handle, err := reg.Create("valid/model.bin", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := reg.Destroy(handle); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if err := reg.Destroy(handle); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("expected ErrInvalidHandle on second destroy, got %v", err)
	}
	if err := reg.Destroy(InvalidHandle); err != nil {
		t.Fatalf("Destroy(InvalidHandle) should be a no-op, got %v", err)
	}
	if eng.closes.Load() != 1 {
		t.Fatalf("expected model closed exactly once, got %d", eng.closes.Load())
	}
	if reg.Current() != InvalidHandle {
		t.Fatalf("expected current cleared")
	}
}

func TestStaleHandleDoesNotResolveReusedSlot(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	first, err := reg.Create("valid/model.bin", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := reg.Destroy(first); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	second, err := reg.Create("valid/model.bin", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.index() != second.index() {
		t.Fatalf("expected slot reuse, got %s and %s", first, second)
	}
	if _, err := reg.Info(first); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("expected stale handle rejected, got %v", err)
	}
	if err := reg.Destroy(first); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("expected stale destroy rejected, got %v", err)
	}
	if reg.Current() != second {
		t.Fatalf("stale destroy must not affect the live context")
	}
}

func TestForgedHandleRejected(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	if _, err := reg.Create("valid/model.bin", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, handle := range []Handle{makeHandle(0, 99), makeHandle(42, 1), Handle(12345)} {
		if err := reg.Use(handle, func(*Context) error { return nil }); !errors.Is(err, ErrInvalidHandle) {
			t.Fatalf("expected %s rejected, got %v", handle, err)
		}
	}
}

func TestOpenCoexistsWithCurrent(t *testing.T) {
	reg, eng, _ := newTestRegistry(t)

	current, err := reg.Create("valid/a.bin", "en")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	extra, err := reg.Open("valid/b.bin", "de")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if reg.Current() != current {
		t.Fatalf("Open must not change the current context")
	}
	if eng.live() != 2 || reg.Live() != 2 {
		t.Fatalf("expected two live contexts, engine=%d registry=%d", eng.live(), reg.Live())
	}

	list := reg.List()
	if len(list) != 2 {
		t.Fatalf("expected two entries, got %d", len(list))
	}
	if !list[0].Current || list[1].Current || list[1].Handle != extra {
		t.Fatalf("unexpected list: %+v", list)
	}

	if err := reg.Destroy(extra); err != nil {
		t.Fatalf("Destroy extra: %v", err)
	}
	if reg.Current() != current {
		t.Fatalf("destroying a non-current context must keep current")
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	reg, eng, _ := newTestRegistry(t)

	if _, err := reg.Create("valid/a.bin", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := reg.Open("valid/b.bin", ""); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if eng.live() != 0 {
		t.Fatalf("expected all models released, %d live", eng.live())
	}
	if _, err := reg.Create("valid/a.bin", ""); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestDestroyWaitsForInFlightUse(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	handle, err := reg.Create("valid/model.bin", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	entered := make(chan struct{})
	proceed := make(chan struct{})
	var useErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		useErr = reg.Use(handle, func(ctx *Context) error {
			close(entered)
			<-proceed
			_, err := ctx.Model().Decode(nil, engine.DefaultParams())
			return err
		})
	}()

	<-entered
	destroyed := make(chan error, 1)
	go func() { destroyed <- reg.Destroy(handle) }()

	select {
	case err := <-destroyed:
		t.Fatalf("Destroy returned while Use was in flight: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(proceed)
	wg.Wait()
	if useErr != nil {
		t.Fatalf("in-flight Use should complete against a live model, got %v", useErr)
	}
	if err := <-destroyed; err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if err := reg.Use(handle, func(*Context) error { return nil }); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("expected ErrInvalidHandle after destroy, got %v", err)
	}
}

func TestHandleString(t *testing.T) {
	if got := InvalidHandle.String(); got != "handle(invalid)" {
		t.Fatalf("unexpected invalid handle string %q", got)
	}
	if got := makeHandle(3, 7).String(); got != "handle(3@7)" {
		t.Fatalf("unexpected handle string %q", got)
	}
	if StateDestroyed.String() != "destroyed" {
		t.Fatalf("unexpected state string %q", StateDestroyed)
	}
}
