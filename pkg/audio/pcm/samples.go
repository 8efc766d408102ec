package pcm

import (
	"encoding/binary"
	"fmt"
)

// MalformedAudioError reports a PCM byte buffer whose length cannot carry
// whole 16-bit frames for the stated channel count.
type MalformedAudioError struct {
	Len      int
	Channels int
}

// Error implements the error interface.
func (e *MalformedAudioError) Error() string {
	return fmt.Sprintf("pcm: %d bytes is not a multiple of %d (16-bit frames, %d channels)",
		e.Len, 2*e.Channels, e.Channels)
}

// EncodeSamples packs float samples into 16-bit little-endian PCM.
// Each sample is scaled by 32768 and truncated toward zero. Samples
// outside [-1, 1] are not clamped; callers must pre-normalize.
func EncodeSamples(samples []float32) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(s*32768)))
	}
	return out
}

// DecodeSamples unpacks 16-bit little-endian PCM into per-channel float
// buffers in [-1, 1). Returns a *MalformedAudioError when len(b) is not
// a multiple of 2*channels.
func DecodeSamples(b []byte, channels int) ([][]float32, error) {
	if channels < 1 {
		return nil, fmt.Errorf("pcm: channel count %d out of range", channels)
	}
	if len(b)%(2*channels) != 0 {
		return nil, &MalformedAudioError{Len: len(b), Channels: channels}
	}
	frames := len(b) / (2 * channels)
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			v := int16(binary.LittleEndian.Uint16(b[2*(i*channels+c):]))
			out[c][i] = float32(v) / 32768
		}
	}
	return out, nil
}
