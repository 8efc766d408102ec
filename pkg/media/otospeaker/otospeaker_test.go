package otospeaker

import (
	"testing"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/buildlink-za/sitevoice/pkg/audio/resampler"
)

func TestContextOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s := &Speaker{}
		opts := s.contextOptions(resampler.Format{Rate: 24000})
		if opts.SampleRate != 24000 {
			t.Errorf("SampleRate = %d, want 24000", opts.SampleRate)
		}
		if opts.ChannelCount != 1 {
			t.Errorf("ChannelCount = %d, want 1", opts.ChannelCount)
		}
		if opts.Format != oto.FormatSignedInt16LE {
			t.Errorf("Format = %v, want FormatSignedInt16LE", opts.Format)
		}
		if opts.BufferSize != 100*time.Millisecond {
			t.Errorf("BufferSize = %v, want 100ms", opts.BufferSize)
		}
	})

	t.Run("stereo and custom buffer", func(t *testing.T) {
		s := &Speaker{Buffer: 40 * time.Millisecond}
		opts := s.contextOptions(resampler.Format{Rate: 48000, Stereo: true})
		if opts.ChannelCount != 2 {
			t.Errorf("ChannelCount = %d, want 2", opts.ChannelCount)
		}
		if opts.BufferSize != 40*time.Millisecond {
			t.Errorf("BufferSize = %v, want 40ms", opts.BufferSize)
		}
	})
}
