package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/bridge"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/config"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/diag"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/registry"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/wav"
)

const engineSampleRate = 16000

func main() {
	var (
		model    = flag.String("model", "", "path to a ggml Whisper model")
		input    = flag.String("wav", "", "16 kHz PCM16 WAV file to transcribe")
		language = flag.String("lang", "auto", "language hint, or auto to detect")
		stub     = flag.Bool("stub", false, "use the stub engine instead of whisper.cpp")
		verbose  = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if strings.TrimSpace(*model) == "" || strings.TrimSpace(*input) == "" {
		fmt.Fprintln(os.Stderr, "transcribe_wav: --model and --wav are required")
		os.Exit(2)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger := diag.NewLogger(level, os.Stderr)

	cfg, err := config.Loader{}.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "transcribe_wav: load config: %v\n", err)
		os.Exit(1)
	}
	cfg.UseStubEngine = cfg.UseStubEngine || *stub

	audio, err := wav.ReadFile(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "transcribe_wav: %v\n", err)
		os.Exit(1)
	}
	if audio.SampleRate != engineSampleRate {
		fmt.Fprintf(os.Stderr, "transcribe_wav: %s is %d Hz, expected %d Hz\n", *input, audio.SampleRate, engineSampleRate)
		os.Exit(1)
	}

	b, err := bridge.NewFromConfig(cfg, logger, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "transcribe_wav: init bridge: %v\n", err)
		os.Exit(1)
	}
	defer b.Close()

	handle, status := b.CreateContextWithStatus(*model, *language)
	if handle == registry.InvalidHandle {
		fmt.Fprintf(os.Stderr, "transcribe_wav: load %s: %s\n", *model, status)
		b.Close()
		os.Exit(1)
	}

	text, status := b.TranscribeWithStatus(handle, audio.Mono())
	b.ReleaseContext(handle)
	if status.Failed() {
		fmt.Fprintf(os.Stderr, "transcribe_wav: transcription failed: %s\n", status)
		b.Close()
		os.Exit(1)
	}
	if status == bridge.StatusNoSpeech {
		fmt.Fprintln(os.Stderr, "transcribe_wav: no speech detected")
		return
	}
	fmt.Println(strings.TrimSpace(text))
}
