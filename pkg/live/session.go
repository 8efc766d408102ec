package live

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/buildlink-za/sitevoice/pkg/audio/pcm"
)

// handlers receives the routed payloads of inbound frames. Nil entries
// are skipped. All handlers run on the session's reader goroutine.
type handlers struct {
	text         func(string)
	userText     func(string)
	audio        func(data []byte, format pcm.Format)
	toolCall     func(ToolCall)
	turnComplete func()
	interrupted  func()
	failure      func(error)
}

// Session owns the single live connection to the agent. At most one
// Session exists per copilot activation; it is never shared between
// activations.
type Session struct {
	ch     Channel
	logger *slog.Logger
	h      handlers

	// ctx is the activation's cancellation token. It is cancelled
	// before any resource is released, so in-flight callbacks observe
	// the invalidation first.
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	idleTimeout time.Duration
	idleTimer   *time.Timer
}

// openSession dials the agent and starts the inbound reader. On failure
// the returned session is nil and no resources remain held.
func openSession(ctx context.Context, dialer Dialer, setup Setup, h handlers, idleTimeout time.Duration, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ch, err := dialer.Dial(ctx, setup)
	if err != nil {
		var cerr *ConnectionError
		if !errors.As(err, &cerr) {
			err = &ConnectionError{Op: "dial", Err: err}
		}
		return nil, err
	}

	tctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		ch:          ch,
		logger:      logger,
		h:           h,
		ctx:         tctx,
		cancel:      cancel,
		state:       StateOpen,
		idleTimeout: idleTimeout,
	}
	s.touchIdle()
	go s.run()
	return s, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// token returns the activation's cancellation token.
func (s *Session) token() context.Context {
	return s.ctx
}

// SendAudioChunk submits one uplink audio frame. A no-op when the
// session is not open: stale audio is useless to the agent, so frames
// racing a teardown are discarded, never queued.
func (s *Session) SendAudioChunk(data []byte) {
	ch, ok := s.sendable()
	if !ok {
		return
	}
	s.touchIdle()
	if err := ch.Send(&ClientMessage{Audio: &AudioChunk{Audio: pcm.TransportText(data)}}); err != nil {
		s.fail(&ConnectionError{Op: "send audio", Err: err})
	}
}

// SendImageFrame submits one camera frame. A no-op when not open.
func (s *Session) SendImageFrame(jpeg []byte) {
	ch, ok := s.sendable()
	if !ok {
		return
	}
	if err := ch.Send(&ClientMessage{Image: &ImageFrame{
		Image:    pcm.TransportText(jpeg),
		MIMEType: "image/jpeg",
	}}); err != nil {
		s.fail(&ConnectionError{Op: "send image", Err: err})
	}
}

// SendToolResponse submits a correlated tool acknowledgement. A no-op
// when not open.
func (s *Session) SendToolResponse(resp ToolResponse) {
	ch, ok := s.sendable()
	if !ok {
		return
	}
	if err := ch.Send(&ClientMessage{ToolResponse: &resp}); err != nil {
		s.fail(&ConnectionError{Op: "send tool response", Err: err})
	}
}

// Close tears the session down. Safe to call any number of times and
// from error handlers. The token is invalidated before the connection
// is released.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosing
	s.stopIdleLocked()
	s.mu.Unlock()

	s.cancel()
	err := s.ch.Close()

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	return err
}

// fail moves the session to errored, releases the connection, and
// reports the cause. First failure wins.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return
	}
	s.state = StateErrored
	s.stopIdleLocked()
	s.mu.Unlock()

	s.cancel()
	s.ch.Close()
	s.logger.Warn("session failed", "err", err)
	if s.h.failure != nil {
		s.h.failure(err)
	}
}

// sendable returns the channel when the session is open.
func (s *Session) sendable() (Channel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return nil, false
	}
	return s.ch, true
}

// run routes inbound frames until the channel drains or fails.
func (s *Session) run() {
	for msg, err := range s.ch.Messages() {
		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			s.fail(err)
			return
		}
		s.touchIdle()
		s.route(msg)
	}
	if s.ctx.Err() == nil {
		s.fail(&ConnectionError{Op: "read", Err: errors.New("closed by agent")})
	}
}

// route fans one inbound frame out to every applicable handler.
func (s *Session) route(msg *ServerMessage) {
	if msg.UserText != nil && s.h.userText != nil {
		s.h.userText(msg.UserText.Text)
	}
	if msg.Text != nil && s.h.text != nil {
		s.h.text(msg.Text.Text)
	}
	if msg.Audio != nil && s.h.audio != nil {
		data, err := pcm.FromTransportText(msg.Audio.Audio)
		if err != nil {
			// Contained at origin: a corrupt chunk is skipped, the
			// session lives on.
			s.logger.Warn("dropping malformed audio chunk", "err", err)
		} else {
			s.h.audio(data, audioFormat(msg.Audio))
		}
	}
	for _, call := range msg.ToolCalls {
		if s.h.toolCall != nil {
			s.h.toolCall(call)
		}
	}
	if msg.Interrupted && s.h.interrupted != nil {
		s.h.interrupted()
	}
	if msg.TurnComplete && s.h.turnComplete != nil {
		s.h.turnComplete()
	}
}

// audioFormat maps a wire audio descriptor to a pcm.Format. The agent
// speaks 24 kHz mono unless it says otherwise.
func audioFormat(a *ModelAudio) pcm.Format {
	switch a.Rate {
	case 16000:
		return pcm.L16Mono16K
	case 48000:
		return pcm.L16Mono48K
	default:
		return pcm.L16Mono24K
	}
}

// touchIdle pushes the idle deadline out. No-op when no timeout is
// configured.
func (s *Session) touchIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idleTimeout <= 0 || s.state.terminal() {
		return
	}
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	s.idleTimer = time.AfterFunc(s.idleTimeout, func() {
		if s.ctx.Err() != nil {
			return
		}
		s.fail(&ConnectionError{Op: "idle", Err: errors.New("no traffic within idle timeout")})
	})
}

func (s *Session) stopIdleLocked() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}
