package bridge

import (
	"testing"

	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/registry"
)

func TestDefaultIsSharedAndConfiguredFromEnv(t *testing.T) {
	t.Setenv("WHISPER_BRIDGE_USE_STUB_ENGINE", "true")
	SetDefaultLogger(discardLogger())

	b := Default()
	if b == nil || Default() != b {
		t.Fatalf("expected a single process-wide bridge")
	}
	if handle := b.CreateContext(t.TempDir()+"/missing.bin", "en"); handle != registry.InvalidHandle {
		t.Fatalf("expected load failure for missing model, got %s", handle)
	}
}
