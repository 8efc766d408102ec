package live

import (
	"bytes"
	"context"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"

	"github.com/buildlink-za/sitevoice/pkg/media"
)

const defaultVideoRate = 0.5 // frames per second

// frameSampler grabs camera frames on a fixed interval, encodes them as
// JPEG and forwards them to the session. Frames are best-effort: a grab
// or send failure skips the tick rather than ending the session.
type frameSampler struct {
	src    media.FrameSource
	logger *slog.Logger

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// startSampler opens the camera and begins periodic capture. rate is in
// frames per second; zero selects the default.
func startSampler(ctx context.Context, cam media.Camera, sess *Session, rate float64, logger *slog.Logger) (*frameSampler, error) {
	if rate <= 0 {
		rate = defaultVideoRate
	}
	src, err := cam.Open(ctx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &frameSampler{
		src:    src,
		logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.run(ctx, sess, time.Duration(float64(time.Second)/rate))
	return s, nil
}

func (s *frameSampler) run(ctx context.Context, sess *Session, interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, ok := sess.sendable(); !ok {
			continue
		}
		img, err := s.src.Grab(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Debug("frame grab failed, skipping tick", "err", err)
			continue
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 75}); err != nil {
			s.logger.Debug("frame encode failed, skipping tick", "err", err)
			continue
		}
		sess.SendImageFrame(buf.Bytes())
	}
}

// stop halts sampling and releases the camera. Idempotent; blocks until
// the capture goroutine has exited.
func (s *frameSampler) stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		<-s.done
		s.src.Close()
	})
}
