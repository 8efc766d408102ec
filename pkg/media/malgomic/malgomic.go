// Package malgomic implements media.Microphone on top of the miniaudio
// bindings (gen2brain/malgo).
package malgomic

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/buildlink-za/sitevoice/pkg/audio/resampler"
	"github.com/buildlink-za/sitevoice/pkg/media"
)

// Microphone captures 16-bit PCM from the default input device.
type Microphone struct {
	// Rate is the requested hardware sample rate. Defaults to 48000.
	Rate int

	// Stereo requests two channels. Default is mono.
	Stereo bool
}

var _ media.Microphone = (*Microphone)(nil)

// Open initializes the audio backend and starts the capture device.
func (m *Microphone) Open(ctx context.Context) (media.Stream, error) {
	rate := m.Rate
	if rate <= 0 {
		rate = 48000
	}
	channels := 1
	if m.Stereo {
		channels = 2
	}

	actx, err := malgo.InitContext(nil, malgo.ContextConfig{
		ThreadPriority: malgo.ThreadPriorityRealtime,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgomic: init context: %w (%w)", err, media.ErrDeviceUnavailable)
	}

	s := &stream{
		actx:   actx,
		format: resampler.Format{Rate: rate, Stereo: m.Stereo},
	}
	s.cond = sync.NewCond(&s.mu)

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(channels)
	cfg.SampleRate = uint32(rate)
	cfg.PeriodSizeInMilliseconds = 20

	dev, err := malgo.InitDevice(actx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			s.mu.Lock()
			if !s.closed {
				s.buf = append(s.buf, in...)
			}
			s.mu.Unlock()
			s.cond.Signal()
		},
	})
	if err != nil {
		actx.Uninit()
		return nil, fmt.Errorf("malgomic: init device: %w (%w)", err, media.ErrDeviceUnavailable)
	}
	s.dev = dev

	if err := dev.Start(); err != nil {
		dev.Uninit()
		actx.Uninit()
		return nil, fmt.Errorf("malgomic: start: %w (%w)", err, media.ErrDeviceUnavailable)
	}

	// Stop the hardware track if the caller's context dies first.
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done():
		}
	}()

	return s, nil
}

type stream struct {
	actx   *malgo.AllocatedContext
	dev    *malgo.Device
	format resampler.Format

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
	doneCh chan struct{}
}

func (s *stream) Format() resampler.Format { return s.format }

// Read blocks until captured audio is available.
func (s *stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return 0, io.EOF
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Close stops the capture device and releases the backend. Idempotent.
func (s *stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.doneCh != nil {
		close(s.doneCh)
	}
	s.mu.Unlock()
	s.cond.Broadcast()

	s.dev.Uninit()
	s.actx.Uninit()
	return nil
}

func (s *stream) done() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doneCh == nil {
		s.doneCh = make(chan struct{})
		if s.closed {
			close(s.doneCh)
		}
	}
	return s.doneCh
}
