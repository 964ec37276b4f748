// Package wav reads 16-bit PCM RIFF/WAVE files into float32 samples.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/marshal"
)

var (
	// ErrInvalidHeader is returned for data that is not a RIFF/WAVE stream.
	ErrInvalidHeader = errors.New("wav: invalid header")
	// ErrUnsupportedFormat is returned for anything other than PCM16.
	ErrUnsupportedFormat = errors.New("wav: unsupported format")
)

// Audio is a decoded PCM16 stream.
type Audio struct {
	SampleRate int
	Channels   int
	// Samples holds interleaved float32 samples normalised to [-1, 1).
	Samples []float32
}

// Mono returns the samples down-mixed to a single channel.
func (a Audio) Mono() []float32 {
	if a.Channels <= 1 {
		return a.Samples
	}
	frames := len(a.Samples) / a.Channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < a.Channels; ch++ {
			sum += a.Samples[i*a.Channels+ch]
		}
		out[i] = sum / float32(a.Channels)
	}
	return out
}

// ReadFile decodes the WAV file at path.
func ReadFile(path string) (Audio, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Audio{}, fmt.Errorf("wav: read %s: %w", path, err)
	}
	return Decode(data)
}

// Read decodes a WAV stream from r.
func Read(r io.Reader) (Audio, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Audio{}, fmt.Errorf("wav: read: %w", err)
	}
	return Decode(data)
}

// Decode parses an in-memory WAV file.
func Decode(data []byte) (Audio, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Audio{}, ErrInvalidHeader
	}

	offset := 12
	var (
		sampleRate    int
		audioFormat   uint16
		channels      uint16
		bitsPerSample uint16
		audioData     []byte
		haveFmt       bool
	)

	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		chunkStart := offset + 8
		chunkEnd := chunkStart + chunkSize
		if chunkEnd > len(data) || chunkEnd < chunkStart {
			return Audio{}, fmt.Errorf("%w: chunk %q out of range", ErrInvalidHeader, chunkID)
		}
		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return Audio{}, fmt.Errorf("%w: fmt chunk too small", ErrInvalidHeader)
			}
			audioFormat = binary.LittleEndian.Uint16(data[chunkStart : chunkStart+2])
			channels = binary.LittleEndian.Uint16(data[chunkStart+2 : chunkStart+4])
			sampleRate = int(binary.LittleEndian.Uint32(data[chunkStart+4 : chunkStart+8]))
			bitsPerSample = binary.LittleEndian.Uint16(data[chunkStart+14 : chunkStart+16])
			haveFmt = true
		case "data":
			audioData = data[chunkStart:chunkEnd]
		}
		// Chunks are word aligned.
		offset = chunkEnd
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if !haveFmt {
		return Audio{}, fmt.Errorf("%w: missing fmt chunk", ErrInvalidHeader)
	}
	if audioFormat != 1 {
		return Audio{}, fmt.Errorf("%w: audio format %d", ErrUnsupportedFormat, audioFormat)
	}
	if bitsPerSample != 16 {
		return Audio{}, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedFormat, bitsPerSample)
	}
	if channels == 0 {
		return Audio{}, fmt.Errorf("%w: zero channels", ErrUnsupportedFormat)
	}

	return Audio{
		SampleRate: sampleRate,
		Channels:   int(channels),
		Samples:    marshal.PCM16LE(audioData),
	}, nil
}
