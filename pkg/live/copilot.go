package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/buildlink-za/sitevoice/pkg/audio/pcm"
	"github.com/buildlink-za/sitevoice/pkg/audio/resampler"
	"github.com/buildlink-za/sitevoice/pkg/jsontime"
	"github.com/buildlink-za/sitevoice/pkg/media"
	"github.com/buildlink-za/sitevoice/pkg/tool"
)

// Speaker labels for transcript entries.
const (
	SpeakerUser  = "user"
	SpeakerAgent = "agent"
)

// Entry is one transcript line.
type Entry struct {
	Speaker string         `json:"speaker"`
	Text    string         `json:"text"`
	At      jsontime.Milli `json:"at"`
}

// Config assembles a Copilot. Dialer, Microphone and Speaker are
// required; everything else has a working default.
type Config struct {
	Dialer     Dialer
	Microphone media.Microphone
	Speaker    media.Speaker

	// Camera enables video sampling. Nil disables ToggleVideo.
	Camera media.Camera
	// VideoRate is camera frames per second; zero means 0.5.
	VideoRate float64

	// Clock drives playback scheduling. Nil means the system clock.
	Clock media.Clock

	Instructions string
	Tools        *tool.Registry

	// IdleTimeout ends a session with no traffic in either direction.
	// Zero disables the idle watchdog.
	IdleTimeout time.Duration

	Logger *slog.Logger

	// OnActivity reports coarse session activity for UI display.
	OnActivity func(Activity)
	// OnTranscript reports each finalized transcript entry.
	OnTranscript func(Entry)
	// OnAlert surfaces tool alerts to the operator.
	OnAlert func(tool.Alert)
	// OnError reports the cause when a session ends abnormally.
	OnError func(error)
}

// sessionResources aggregates everything one activation owns. Dispose
// order is fixed: cancel the session token first so in-flight pipeline
// sends observe the teardown, then stop producers, then sinks.
type sessionResources struct {
	sess     *Session
	capture  *capturePipeline
	sampler  *frameSampler
	playback *playbackQueue
	sink     io.WriteCloser

	mu sync.Mutex
}

func (r *sessionResources) dispose() {
	r.sess.Close()
	r.capture.stop()
	r.mu.Lock()
	sampler := r.sampler
	r.sampler = nil
	r.mu.Unlock()
	if sampler != nil {
		sampler.stop()
	}
	r.playback.close()
	r.sink.Close()
}

// Copilot is the voice assistant front door: it owns at most one live
// session at a time and everything attached to it.
type Copilot struct {
	cfg    Config
	logger *slog.Logger
	clock  media.Clock

	mu         sync.Mutex
	res        *sessionResources
	activity   Activity
	transcript []Entry
	videoOn    bool
}

// New validates cfg and returns an inactive Copilot.
func New(cfg Config) (*Copilot, error) {
	if cfg.Dialer == nil {
		return nil, errors.New("live: config needs a dialer")
	}
	if cfg.Microphone == nil {
		return nil, errors.New("live: config needs a microphone")
	}
	if cfg.Speaker == nil {
		return nil, errors.New("live: config needs a speaker")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = media.NewSystemClock()
	}
	return &Copilot{cfg: cfg, logger: logger, clock: clock, activity: ActivityIdle}, nil
}

// Active reports whether a session is currently established.
func (c *Copilot) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.res != nil
}

// Activity returns the current coarse activity.
func (c *Copilot) Activity() Activity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activity
}

// Activate establishes a fresh session. Any previous session is torn
// down completely first, so resources never leak across activations.
// Acquisition order is audio out, audio in, then the network; a failure
// at any rung releases the rungs below it and reports the cause.
func (c *Copilot) Activate(ctx context.Context) error {
	c.Deactivate()

	sink, err := c.cfg.Speaker.Open(downlinkHardwareFormat())
	if err != nil {
		return c.activateErr(fmt.Errorf("live: open speaker: %w", err))
	}

	capture, err := openCapture(ctx, c.cfg.Microphone, c.logger)
	if err != nil {
		sink.Close()
		return c.activateErr(fmt.Errorf("live: open microphone: %w", err))
	}

	res := &sessionResources{sink: sink, capture: capture}
	res.playback = newPlaybackQueue(c.clock, sink, func() { c.setActivity(ActivityListening) }, c.logger)

	disp := &dispatcher{reg: c.registry(), onAlert: c.cfg.OnAlert, logger: c.logger}

	setup := Setup{Instructions: c.cfg.Instructions, Tools: c.registry().Manifest()}
	h := handlers{
		text:     func(text string) { c.appendTranscript(SpeakerAgent, text) },
		userText: func(text string) { c.appendTranscript(SpeakerUser, text) },
		audio: func(data []byte, format pcm.Format) {
			c.setActivity(ActivitySpeaking)
			res.playback.enqueue(data, format)
		},
		toolCall: func(call ToolCall) {
			c.setActivity(ActivityProcessing)
			disp.dispatch(context.WithoutCancel(ctx), res.sess, call)
		},
		turnComplete: func() { c.setActivity(ActivityListening) },
		interrupted: func() {
			res.playback.flush()
			c.setActivity(ActivityListening)
		},
		failure: func(err error) { c.sessionFailed(res, err) },
	}

	sess, err := openSession(ctx, c.cfg.Dialer, setup, h, c.cfg.IdleTimeout, c.logger)
	if err != nil {
		capture.stop()
		res.playback.close()
		sink.Close()
		return c.activateErr(err)
	}
	res.sess = sess
	capture.start(sess)

	c.mu.Lock()
	c.res = res
	c.videoOn = false
	c.activity = ActivityListening
	cb := c.cfg.OnActivity
	c.mu.Unlock()
	if cb != nil {
		cb(ActivityListening)
	}
	c.logger.Info("session activated")
	return nil
}

// Deactivate tears the current session down. Safe to call when
// inactive, and safe to call repeatedly.
func (c *Copilot) Deactivate() {
	c.mu.Lock()
	res := c.res
	c.res = nil
	c.videoOn = false
	c.mu.Unlock()
	if res == nil {
		return
	}
	res.dispose()
	c.setActivity(ActivityIdle)
	c.logger.Info("session deactivated")
}

// ToggleVideo starts or stops camera sampling on the current session.
// Returns the resulting on/off state.
func (c *Copilot) ToggleVideo(ctx context.Context) (bool, error) {
	if c.cfg.Camera == nil {
		return false, errors.New("live: no camera configured")
	}
	c.mu.Lock()
	res := c.res
	on := c.videoOn
	c.mu.Unlock()
	if res == nil {
		return false, errors.New("live: no active session")
	}

	if on {
		res.mu.Lock()
		sampler := res.sampler
		res.sampler = nil
		res.mu.Unlock()
		if sampler != nil {
			sampler.stop()
		}
		c.mu.Lock()
		c.videoOn = false
		c.mu.Unlock()
		return false, nil
	}

	sampler, err := startSampler(ctx, c.cfg.Camera, res.sess, c.cfg.VideoRate, c.logger)
	if err != nil {
		return false, fmt.Errorf("live: open camera: %w", err)
	}
	res.mu.Lock()
	res.sampler = sampler
	res.mu.Unlock()
	c.mu.Lock()
	c.videoOn = true
	c.mu.Unlock()
	return true, nil
}

// Transcript returns a copy of the accumulated transcript. The
// transcript survives deactivation; ClearTranscript resets it.
func (c *Copilot) Transcript() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.transcript)
}

// ClearTranscript discards all transcript entries.
func (c *Copilot) ClearTranscript() {
	c.mu.Lock()
	c.transcript = nil
	c.mu.Unlock()
}

func (c *Copilot) registry() *tool.Registry {
	if c.cfg.Tools != nil {
		return c.cfg.Tools
	}
	r, _ := tool.NewRegistry()
	return r
}

func (c *Copilot) appendTranscript(speaker, text string) {
	if text == "" {
		return
	}
	e := Entry{Speaker: speaker, Text: text, At: jsontime.NowEpochMilli()}
	c.mu.Lock()
	c.transcript = append(c.transcript, e)
	cb := c.cfg.OnTranscript
	c.mu.Unlock()
	if cb != nil {
		cb(e)
	}
}

func (c *Copilot) setActivity(a Activity) {
	c.mu.Lock()
	if c.activity == a || (c.res == nil && a != ActivityIdle && a != ActivityError) {
		c.mu.Unlock()
		return
	}
	c.activity = a
	cb := c.cfg.OnActivity
	c.mu.Unlock()
	if cb != nil {
		cb(a)
	}
}

// sessionFailed handles an abnormal session end. The failing session's
// resources are released exactly as in Deactivate, but only if the
// failed session is still the current one.
func (c *Copilot) sessionFailed(res *sessionResources, err error) {
	c.mu.Lock()
	current := c.res == res
	if current {
		c.res = nil
		c.videoOn = false
	}
	c.mu.Unlock()
	if !current {
		return
	}
	res.dispose()
	c.setActivity(ActivityError)
	c.logger.Warn("session ended abnormally", "err", err)
	if c.cfg.OnError != nil {
		c.cfg.OnError(err)
	}
}

func (c *Copilot) activateErr(err error) error {
	c.setActivity(ActivityError)
	c.logger.Warn("activation failed", "err", err)
	return err
}

// downlinkHardwareFormat is what the speaker is opened with. Agent audio
// arrives at 24 kHz mono and is played back untouched.
func downlinkHardwareFormat() resampler.Format {
	return resampler.Format{Rate: pcm.L16Mono24K.SampleRate()}
}
