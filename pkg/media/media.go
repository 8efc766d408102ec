// Package media abstracts the capture and playback hardware the live
// copilot uses: a microphone, an optional camera, and a speaker.
//
// Implementations live in subpackages (malgomic, otospeaker, filecam);
// tests supply in-memory fakes. All handles are revocable: closing one
// twice is a no-op, and closing releases the underlying hardware track.
package media

import (
	"context"
	"errors"
	"image"
	"io"
	"time"

	"github.com/buildlink-za/sitevoice/pkg/audio/resampler"
)

// Sentinel errors for capture acquisition.
var (
	// ErrPermissionDenied is returned when the platform refuses access
	// to the device.
	ErrPermissionDenied = errors.New("media: permission denied")

	// ErrDeviceUnavailable is returned when no usable device exists.
	ErrDeviceUnavailable = errors.New("media: device unavailable")
)

// Stream is live 16-bit PCM from a capture device at its hardware format.
type Stream interface {
	io.ReadCloser

	// Format reports the hardware sample rate and channel layout.
	Format() resampler.Format
}

// Microphone opens the audio input device. Open blocks until the platform
// grants or denies access.
type Microphone interface {
	Open(ctx context.Context) (Stream, error)
}

// FrameSource delivers still frames from a camera.
type FrameSource interface {
	// Grab returns the current frame.
	Grab(ctx context.Context) (image.Image, error)

	Close() error
}

// Camera opens the video input device.
type Camera interface {
	Open(ctx context.Context) (FrameSource, error)
}

// Speaker opens an output stream that consumes 16-bit PCM at the given
// rate and channel layout.
type Speaker interface {
	Open(f resampler.Format) (io.WriteCloser, error)
}

// Clock is the monotonic audio clock the playback scheduler works
// against. Tests substitute a manual clock.
type Clock interface {
	Now() time.Duration
}

// SystemClock is a Clock anchored at its creation time.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a Clock that starts at zero now.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Now returns the elapsed time since the clock was created.
func (c *SystemClock) Now() time.Duration {
	return time.Since(c.start)
}
