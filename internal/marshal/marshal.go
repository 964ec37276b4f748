// Package marshal converts host-owned text and audio buffers into Go-owned
// values. Every function copies its input: nothing returned here aliases
// memory that belongs to the caller, so the host is free to reuse or release
// its buffers as soon as a call returns.
package marshal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unsafe"
)

// ErrAudioTooLong is returned when a sample count does not fit the engine's
// length argument.
var ErrAudioTooLong = errors.New("marshal: audio buffer too long")

// MaxSamples is the largest buffer the engine accepts in a single call.
const MaxSamples = math.MaxInt32

// Text copies a NUL-terminated UTF-8 string. A nil pointer yields "".
func Text(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return TextN(p, n)
}

// TextN copies n bytes starting at p. The bytes are taken verbatim; no
// encoding conversion happens in either direction.
func TextN(p *byte, n int) string {
	if p == nil || n <= 0 {
		return ""
	}
	return string(unsafe.Slice(p, n))
}

// Samples copies n float32 samples starting at p. Order is preserved and no
// resampling is applied. A nil pointer or non-positive length yields an empty
// slice.
func Samples(p *float32, n int) []float32 {
	if p == nil || n <= 0 {
		return []float32{}
	}
	out := make([]float32, n)
	copy(out, unsafe.Slice(p, n))
	return out
}

// PCM16 converts n signed 16-bit samples starting at p to float32 in the
// range [-1.0, 1.0).
func PCM16(p *int16, n int) []float32 {
	if p == nil || n <= 0 {
		return []float32{}
	}
	src := unsafe.Slice(p, n)
	out := make([]float32, n)
	for i, v := range src {
		out[i] = float32(v) / 32768.0
	}
	return out
}

// PCM16LE converts little-endian signed 16-bit PCM bytes to float32. A
// trailing odd byte is ignored.
func PCM16LE(buf []byte) []float32 {
	n := len(buf) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = float32(int16(binary.LittleEndian.Uint16(buf[2*i:]))) / 32768.0
	}
	return out
}

// SampleCount validates that n can be handed to the engine as a C int.
func SampleCount(n int) (int32, error) {
	if n < 0 {
		return 0, fmt.Errorf("marshal: negative sample count %d", n)
	}
	if n > MaxSamples {
		return 0, fmt.Errorf("%w: %d samples (max %d)", ErrAudioTooLong, n, MaxSamples)
	}
	return int32(n), nil
}
