// Package otospeaker implements media.Speaker on top of ebitengine/oto.
package otospeaker

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/buildlink-za/sitevoice/pkg/audio/resampler"
	"github.com/buildlink-za/sitevoice/pkg/media"
)

// Speaker plays 16-bit PCM on the default output device.
type Speaker struct {
	// Buffer is the device buffer length. Smaller means lower latency
	// at the cost of underrun glitches. Default is 100 ms.
	Buffer time.Duration
}

var _ media.Speaker = (*Speaker)(nil)

// Open creates an audio context at the given format and returns a writer
// feeding the device. The writer is safe for a single producer.
func (s *Speaker) Open(f resampler.Format) (io.WriteCloser, error) {
	octx, ready, err := oto.NewContext(s.contextOptions(f))
	if err != nil {
		return nil, fmt.Errorf("otospeaker: %w (%w)", err, media.ErrDeviceUnavailable)
	}
	<-ready

	pr, pw := io.Pipe()
	player := octx.NewPlayer(pr)
	player.Play()

	return &writer{pw: pw, player: player}, nil
}

func (s *Speaker) contextOptions(f resampler.Format) *oto.NewContextOptions {
	channels := 1
	if f.Stereo {
		channels = 2
	}
	buf := s.Buffer
	if buf <= 0 {
		buf = 100 * time.Millisecond
	}
	return &oto.NewContextOptions{
		SampleRate:   f.Rate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   buf,
	}
}

type writer struct {
	pw     *io.PipeWriter
	player *oto.Player

	mu     sync.Mutex
	closed bool
}

func (w *writer) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

// Close drains the pipe and releases the player. Idempotent.
func (w *writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.pw.Close()
	return w.player.Close()
}
