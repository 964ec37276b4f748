package engine

// NativeOptions configures context construction for the native whisper.cpp
// backend. Nil fields keep the library defaults.
type NativeOptions struct {
	UseGPU         *bool
	FlashAttention *bool
}
