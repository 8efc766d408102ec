package live

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/buildlink-za/sitevoice/pkg/audio/pcm"
	"github.com/buildlink-za/sitevoice/pkg/audio/resampler"
	"github.com/buildlink-za/sitevoice/pkg/media"
	"github.com/buildlink-za/sitevoice/pkg/tool"
)

type copilotFixture struct {
	dialer  *fakeDialer
	mic     *fakeMic
	sink    *fakeSink
	camera  *fakeCamera
	copilot *Copilot

	mu         sync.Mutex
	activities []Activity
	errs       []error
}

func newCopilotFixture(t *testing.T, mutate func(*Config)) *copilotFixture {
	t.Helper()
	f := &copilotFixture{
		dialer: &fakeDialer{},
		mic:    &fakeMic{format: resampler.Format{Rate: 16000}},
		sink:   &fakeSink{},
		camera: &fakeCamera{src: &fakeFrameSource{}},
	}
	cfg := Config{
		Dialer:       f.dialer,
		Microphone:   f.mic,
		Speaker:      &fakeSpeaker{sink: f.sink},
		Camera:       f.camera,
		VideoRate:    100, // fast enough for tests to observe frames
		Instructions: "assist on site",
		OnActivity: func(a Activity) {
			f.mu.Lock()
			f.activities = append(f.activities, a)
			f.mu.Unlock()
		},
		OnError: func(err error) {
			f.mu.Lock()
			f.errs = append(f.errs, err)
			f.mu.Unlock()
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	f.copilot = c
	t.Cleanup(c.Deactivate)
	return f
}

func (f *copilotFixture) lastActivity() (Activity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.activities) == 0 {
		return 0, false
	}
	return f.activities[len(f.activities)-1], true
}

func TestCopilotNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("want error for empty config")
	}
	sink := &fakeSink{}
	if _, err := New(Config{
		Dialer:     &fakeDialer{},
		Microphone: &fakeMic{format: resampler.Format{Rate: 16000}},
		Speaker:    &fakeSpeaker{sink: sink},
	}); err != nil {
		t.Fatal(err)
	}
}

func TestCopilotActivateEstablishesSession(t *testing.T) {
	f := newCopilotFixture(t, nil)

	if err := f.copilot.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !f.copilot.Active() {
		t.Fatal("copilot not active after Activate")
	}
	if got := f.copilot.Activity(); got != ActivityListening {
		t.Fatalf("activity = %v, want listening", got)
	}
	if f.dialer.setup.Instructions != "assist on site" {
		t.Fatalf("setup = %+v", f.dialer.setup)
	}

	// Microphone audio flows to the wire as 16 kHz chunks.
	frame := make([]byte, int(pcm.L16Mono16K.BytesInDuration(20*time.Millisecond)))
	for i := range frame {
		frame[i] = byte(i)
	}
	f.mic.stream(0).write(frame)

	ch := f.dialer.channel(0)
	waitFor(t, func() bool {
		for _, msg := range ch.sentMessages() {
			if msg.Audio != nil {
				return true
			}
		}
		return false
	})
}

func TestCopilotAgentAudioIsPlayedBack(t *testing.T) {
	f := newCopilotFixture(t, nil)
	if err := f.copilot.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}

	data := make([]byte, int(pcm.L16Mono24K.BytesInDuration(10*time.Millisecond)))
	for i := range data {
		data[i] = byte(i * 7)
	}
	f.dialer.channel(0).deliver(&ServerMessage{Audio: &ModelAudio{Audio: pcm.TransportText(data)}})

	waitFor(t, func() bool { return bytes.Equal(f.sink.written(), data) })
	waitFor(t, func() bool {
		a, ok := f.lastActivity()
		return ok && a == ActivityListening
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	var sawSpeaking bool
	for _, a := range f.activities {
		if a == ActivitySpeaking {
			sawSpeaking = true
		}
	}
	if !sawSpeaking {
		t.Fatalf("activities = %v, want speaking in the mix", f.activities)
	}
}

func TestCopilotReactivateTearsDownPrevious(t *testing.T) {
	f := newCopilotFixture(t, nil)

	if err := f.copilot.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.copilot.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}

	if f.mic.opens() != 2 {
		t.Fatalf("mic opened %d times, want 2", f.mic.opens())
	}
	if !f.dialer.channel(0).isClosed() {
		t.Fatal("first channel still open after reactivation")
	}
	if !f.mic.stream(0).isClosed() {
		t.Fatal("first mic stream still open after reactivation")
	}
	if f.dialer.channel(1).isClosed() {
		t.Fatal("second channel should be live")
	}
}

func TestCopilotDeactivateIdempotent(t *testing.T) {
	f := newCopilotFixture(t, nil)
	if err := f.copilot.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}

	f.copilot.Deactivate()
	f.copilot.Deactivate()

	if f.copilot.Active() {
		t.Fatal("still active")
	}
	if !f.dialer.channel(0).isClosed() {
		t.Fatal("channel not released")
	}
	if !f.mic.stream(0).isClosed() {
		t.Fatal("mic not released")
	}
	if !f.sink.isClosed() {
		t.Fatal("speaker not released")
	}
	if got := f.copilot.Activity(); got != ActivityIdle {
		t.Fatalf("activity = %v, want idle", got)
	}
}

func TestCopilotMicDeniedReleasesEverything(t *testing.T) {
	f := newCopilotFixture(t, nil)
	f.mic.openErr = media.ErrPermissionDenied

	err := f.copilot.Activate(context.Background())
	if !errors.Is(err, media.ErrPermissionDenied) {
		t.Fatalf("err = %v, want permission denied", err)
	}
	if f.copilot.Active() {
		t.Fatal("active after failed activation")
	}
	// The microphone is acquired before the network: a denied mic must
	// never result in a dialed session.
	if got := f.dialer.dialCount(); got != 0 {
		t.Fatalf("dials = %d, want 0", got)
	}
	if !f.sink.isClosed() {
		t.Fatal("speaker leaked after failed activation")
	}
	if got := f.copilot.Activity(); got != ActivityError {
		t.Fatalf("activity = %v, want error", got)
	}
}

func TestCopilotLateFramesAfterDeactivateMutateNothing(t *testing.T) {
	f := newCopilotFixture(t, nil)
	if err := f.copilot.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	ch := f.dialer.channel(0)

	ch.deliver(&ServerMessage{Text: &ModelText{Text: "howzit"}})
	waitFor(t, func() bool { return len(f.copilot.Transcript()) == 1 })

	f.copilot.Deactivate()
	f.mu.Lock()
	signals := len(f.activities)
	f.mu.Unlock()

	// Frames already in flight when the session went down must not
	// touch the transcript, the speaker, or the activity state.
	audio := pcm.TransportText(bytes.Repeat([]byte{1, 2}, 480))
	ch.deliver(&ServerMessage{Audio: &ModelAudio{Audio: audio}})
	ch.deliver(&ServerMessage{Text: &ModelText{Text: "ghost"}})
	time.Sleep(50 * time.Millisecond)

	if got := len(f.copilot.Transcript()); got != 1 {
		t.Fatalf("transcript grew to %d entries after deactivation", got)
	}
	if got := len(f.sink.written()); got != 0 {
		t.Fatalf("%d bytes reached the speaker after deactivation", got)
	}
	f.mu.Lock()
	after := len(f.activities)
	f.mu.Unlock()
	if after != signals {
		t.Fatalf("activity signalled %d more times after deactivation", after-signals)
	}
}

func TestCopilotDialFailureReleasesDevices(t *testing.T) {
	f := newCopilotFixture(t, nil)
	f.dialer.dialErr = errors.New("gateway down")

	err := f.copilot.Activate(context.Background())
	if err == nil {
		t.Fatal("want error when dial fails")
	}
	if f.copilot.Active() {
		t.Fatal("active after failed activation")
	}
	if !f.mic.stream(0).isClosed() {
		t.Fatal("mic leaked after failed dial")
	}
	if !f.sink.isClosed() {
		t.Fatal("speaker leaked after failed dial")
	}
}

func TestCopilotToggleVideo(t *testing.T) {
	f := newCopilotFixture(t, nil)
	if err := f.copilot.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}

	on, err := f.copilot.ToggleVideo(context.Background())
	if err != nil || !on {
		t.Fatalf("toggle on = %v, %v", on, err)
	}

	ch := f.dialer.channel(0)
	waitFor(t, func() bool {
		for _, msg := range ch.sentMessages() {
			if msg.Image != nil {
				if msg.Image.MIMEType != "image/jpeg" {
					t.Errorf("mime = %q", msg.Image.MIMEType)
				}
				return true
			}
		}
		return false
	})

	on, err = f.copilot.ToggleVideo(context.Background())
	if err != nil || on {
		t.Fatalf("toggle off = %v, %v", on, err)
	}
	if !f.camera.src.isClosed() {
		t.Fatal("camera not released after toggle off")
	}
}

func TestCopilotToggleVideoRequiresSession(t *testing.T) {
	f := newCopilotFixture(t, nil)
	if _, err := f.copilot.ToggleVideo(context.Background()); err == nil {
		t.Fatal("want error with no active session")
	}
}

func TestCopilotToggleVideoRequiresCamera(t *testing.T) {
	f := newCopilotFixture(t, func(cfg *Config) { cfg.Camera = nil })
	if err := f.copilot.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := f.copilot.ToggleVideo(context.Background()); err == nil {
		t.Fatal("want error with no camera configured")
	}
}

func TestCopilotTranscript(t *testing.T) {
	var got []Entry
	var mu sync.Mutex
	f := newCopilotFixture(t, func(cfg *Config) {
		cfg.OnTranscript = func(e Entry) {
			mu.Lock()
			got = append(got, e)
			mu.Unlock()
		}
	})
	if err := f.copilot.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}

	ch := f.dialer.channel(0)
	ch.deliver(&ServerMessage{UserText: &UserText{Text: "how much cement is left"}})
	ch.deliver(&ServerMessage{Text: &ModelText{Text: "about twelve bags"}})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	})

	entries := f.copilot.Transcript()
	if len(entries) != 2 {
		t.Fatalf("transcript has %d entries", len(entries))
	}
	if entries[0].Speaker != SpeakerUser || entries[1].Speaker != SpeakerAgent {
		t.Fatalf("speakers = %q, %q", entries[0].Speaker, entries[1].Speaker)
	}
	if entries[0].At.IsZero() {
		t.Fatal("entry missing timestamp")
	}

	// The transcript survives deactivation until cleared.
	f.copilot.Deactivate()
	if len(f.copilot.Transcript()) != 2 {
		t.Fatal("transcript lost on deactivate")
	}
	f.copilot.ClearTranscript()
	if len(f.copilot.Transcript()) != 0 {
		t.Fatal("transcript not cleared")
	}
}

func TestCopilotToolCallGetsExactlyOneAck(t *testing.T) {
	reg, err := tool.NewRegistry(
		tool.MustNew("ping", "answers pong", func(context.Context, struct{}) (any, error) {
			return map[string]string{"pong": "true"}, nil
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	f := newCopilotFixture(t, func(cfg *Config) { cfg.Tools = reg })
	if err := f.copilot.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(f.dialer.setup.Tools) != 1 || f.dialer.setup.Tools[0].Name != "ping" {
		t.Fatalf("manifest = %+v", f.dialer.setup.Tools)
	}

	ch := f.dialer.channel(0)
	ch.deliver(&ServerMessage{ToolCalls: []ToolCall{
		{ID: "c1", Name: "ping"},
		{ID: "c2", Name: "missing"},
	}})

	acks := func() map[string]string {
		out := map[string]string{}
		for _, msg := range ch.sentMessages() {
			if msg.ToolResponse != nil {
				out[msg.ToolResponse.ID] = msg.ToolResponse.Status
			}
		}
		return out
	}
	waitFor(t, func() bool { return len(acks()) == 2 })

	got := acks()
	if got["c1"] != ToolStatusOK {
		t.Fatalf("c1 ack = %q", got["c1"])
	}
	if got["c2"] != ToolStatusUnknownTool {
		t.Fatalf("c2 ack = %q", got["c2"])
	}

	// Exactly one ack per id, never more.
	var total int
	for _, msg := range ch.sentMessages() {
		if msg.ToolResponse != nil {
			total++
		}
	}
	if total != 2 {
		t.Fatalf("sent %d acks, want 2", total)
	}
}

func TestCopilotSessionFailureReported(t *testing.T) {
	f := newCopilotFixture(t, nil)
	if err := f.copilot.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}

	f.dialer.channel(0).failWith(errors.New("link down"))
	waitFor(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.errs) == 1
	})

	waitFor(t, func() bool { return !f.copilot.Active() })
	if got := f.copilot.Activity(); got != ActivityError {
		t.Fatalf("activity = %v, want error", got)
	}
	if !f.mic.stream(0).isClosed() {
		t.Fatal("mic leaked after session failure")
	}
	if !f.sink.isClosed() {
		t.Fatal("speaker leaked after session failure")
	}
}

func TestCopilotInterruptFlushesPlayback(t *testing.T) {
	f := newCopilotFixture(t, nil)
	if err := f.copilot.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}

	ch := f.dialer.channel(0)
	// A long buffer followed by a burst; the interrupt lands before the
	// queued tail starts, so only the head reaches the speaker.
	head := make([]byte, int(pcm.L16Mono24K.BytesInDuration(200*time.Millisecond)))
	tail := make([]byte, int(pcm.L16Mono24K.BytesInDuration(500*time.Millisecond)))
	ch.deliver(&ServerMessage{Audio: &ModelAudio{Audio: pcm.TransportText(head)}})
	waitFor(t, func() bool { return len(f.sink.written()) > 0 })

	ch.deliver(&ServerMessage{Audio: &ModelAudio{Audio: pcm.TransportText(tail)}})
	ch.deliver(&ServerMessage{Interrupted: true})

	// Give any stray timer a chance to misfire before checking.
	time.Sleep(300 * time.Millisecond)
	if n := len(f.sink.written()); n > len(head) {
		t.Fatalf("sink got %d bytes after interrupt, want at most %d", n, len(head))
	}
}
