package diag

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" DEBUG ": slog.LevelDebug,
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("error", &buf)
	logger.Debug("hidden")
	logger.Error("shown", "handle", 7)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record leaked at error level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "handle=7") {
		t.Fatalf("missing error record: %q", out)
	}
}

func TestFuncHandlerFormatsLines(t *testing.T) {
	type line struct {
		level slog.Level
		text  string
	}
	var got []line
	logger := slog.New(NewFuncHandler(func(level slog.Level, text string) {
		got = append(got, line{level, text})
	}, slog.LevelDebug)).With("component", "registry")

	logger.Debug("context loaded", "handle", 4294967296)
	logger.WithGroup("engine").Error("decode failed", "code", -1)

	if len(got) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(got))
	}
	if got[0].level != slog.LevelDebug || got[0].text != "context loaded component=registry handle=4294967296" {
		t.Fatalf("unexpected first line: %+v", got[0])
	}
	if got[1].level != slog.LevelError || got[1].text != "decode failed component=registry engine.code=-1" {
		t.Fatalf("unexpected second line: %+v", got[1])
	}
}

func TestFuncHandlerFiltersAndNilCallback(t *testing.T) {
	calls := 0
	logger := slog.New(NewFuncHandler(func(slog.Level, string) { calls++ }, slog.LevelError))
	logger.Info("ignored")
	if calls != 0 {
		t.Fatalf("info record delivered at error level")
	}

	silent := slog.New(NewFuncHandler(nil, nil))
	silent.Error("dropped")
}

func TestFuncHandlerConcurrentUse(t *testing.T) {
	var (
		mu    sync.Mutex
		count int
	)
	logger := slog.New(NewFuncHandler(func(slog.Level, string) {
		mu.Lock()
		count++
		mu.Unlock()
	}, slog.LevelDebug))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.Debug("tick", "worker", i)
		}(i)
	}
	wg.Wait()
	if count != 8 {
		t.Fatalf("expected 8 lines, got %d", count)
	}
}
