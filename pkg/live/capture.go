package live

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/buildlink-za/sitevoice/pkg/audio/pcm"
	"github.com/buildlink-za/sitevoice/pkg/audio/resampler"
	"github.com/buildlink-za/sitevoice/pkg/media"
)

// uplinkFormat is the fixed transport format for microphone audio.
const uplinkFormat = pcm.L16Mono16K

// captureFrame is the cadence of uplink chunks.
const captureFrame = 20 * time.Millisecond

// capturePipeline pulls microphone audio, converts it to the uplink
// format, and feeds the session in strict temporal order.
type capturePipeline struct {
	stream media.Stream
	conv   *resampler.Stream
	logger *slog.Logger

	started  bool
	stopOnce sync.Once
	done     chan struct{}
}

// openCapture acquires the microphone and builds the conversion chain
// without pulling any audio yet; start attaches the frame loop to a
// session. The split lets callers hold the hardware before they have a
// session to feed.
func openCapture(ctx context.Context, mic media.Microphone, logger *slog.Logger) (*capturePipeline, error) {
	stream, err := mic.Open(ctx)
	if err != nil {
		return nil, err
	}

	hw := stream.Format()
	conv, err := resampler.New(stream, hw, resampler.Format{Rate: uplinkFormat.SampleRate()})
	if err != nil {
		stream.Close()
		return nil, err
	}

	return &capturePipeline{
		stream: stream,
		conv:   conv,
		logger: logger,
		done:   make(chan struct{}),
	}, nil
}

// start launches the frame loop. Call at most once; the loop stops on
// its own when the mic stream drains.
func (p *capturePipeline) start(sess *Session) {
	p.started = true
	go p.run(sess)
}

func (p *capturePipeline) run(sess *Session) {
	defer close(p.done)
	frame := make([]byte, uplinkFormat.BytesInDuration(captureFrame))
	for {
		if sess.token().Err() != nil {
			return
		}
		n, err := io.ReadFull(p.conv, frame)
		if n > 0 && sess.token().Err() == nil {
			chunk := make([]byte, n)
			copy(chunk, frame[:n])
			// Discarded by the session unless it is open; never queued.
			sess.SendAudioChunk(chunk)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) &&
				!errors.Is(err, io.ErrClosedPipe) && sess.token().Err() == nil {
				p.logger.Warn("capture stopped", "err", err)
			}
			return
		}
	}
}

// stop disconnects the conversion chain and stops the hardware track.
// Idempotent.
func (p *capturePipeline) stop() {
	p.stopOnce.Do(func() {
		p.stream.Close()
		p.conv.Close()
		if p.started {
			<-p.done
		}
	})
}
