package live

import (
	"context"
	"image"
	"io"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/buildlink-za/sitevoice/pkg/audio/resampler"
	"github.com/buildlink-za/sitevoice/pkg/media"
)

// fakeChannel is an in-memory Channel. Inbound frames are pushed with
// deliver/failWith; outbound frames accumulate in sent.
type fakeChannel struct {
	mu      sync.Mutex
	sent    []*ClientMessage
	sendErr error
	closed  bool

	in      chan *ServerMessage
	inErr   chan error
	closeCh chan struct{}
	once    sync.Once
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		in:      make(chan *ServerMessage, 16),
		inErr:   make(chan error, 1),
		closeCh: make(chan struct{}),
	}
}

func (c *fakeChannel) Send(msg *ClientMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeChannel) Messages() iter.Seq2[*ServerMessage, error] {
	return func(yield func(*ServerMessage, error) bool) {
		for {
			select {
			case msg := <-c.in:
				if !yield(msg, nil) {
					return
				}
			case err := <-c.inErr:
				yield(nil, err)
				return
			case <-c.closeCh:
				return
			}
		}
	}
}

func (c *fakeChannel) Close() error {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.closeCh)
	})
	return nil
}

func (c *fakeChannel) deliver(msg *ServerMessage) { c.in <- msg }
func (c *fakeChannel) failWith(err error)         { c.inErr <- err }

func (c *fakeChannel) sentMessages() []*ClientMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*ClientMessage(nil), c.sent...)
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeDialer struct {
	ch      *fakeChannel
	dialErr error

	mu     sync.Mutex
	setup  Setup
	dials  int
	opened []*fakeChannel
}

// Dial hands out ch when set, otherwise a fresh channel per call.
func (d *fakeDialer) Dial(_ context.Context, setup Setup) (Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setup = setup
	d.dials++
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	ch := d.ch
	if ch == nil {
		ch = newFakeChannel()
	}
	d.opened = append(d.opened, ch)
	return ch, nil
}

func (d *fakeDialer) channel(i int) *fakeChannel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened[i]
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// fakeStream feeds PCM pushed via write; Read blocks until data arrives
// or the stream closes.
type fakeStream struct {
	format resampler.Format

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

func newFakeStream(format resampler.Format) *fakeStream {
	s := &fakeStream{format: format}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *fakeStream) Format() resampler.Format { return s.format }

func (s *fakeStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

func (s *fakeStream) write(p []byte) {
	s.mu.Lock()
	s.buf = append(s.buf, p...)
	s.mu.Unlock()
	s.cond.Signal()
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeMic hands out a fresh stream per Open so reactivation tests can
// inspect each one.
type fakeMic struct {
	format  resampler.Format
	openErr error

	mu      sync.Mutex
	streams []*fakeStream
}

func (m *fakeMic) Open(context.Context) (media.Stream, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	s := newFakeStream(m.format)
	m.mu.Lock()
	m.streams = append(m.streams, s)
	m.mu.Unlock()
	return s, nil
}

func (m *fakeMic) opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.streams)
}

func (m *fakeMic) stream(i int) *fakeStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streams[i]
}

// fakeSink records everything written to it.
type fakeSink struct {
	mu     sync.Mutex
	data   []byte
	writes int
	closed bool
}

func (s *fakeSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append(s.data, p...)
	s.writes++
	return len(p), nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data...)
}

func (s *fakeSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeSpeaker struct {
	sink    *fakeSink
	openErr error
}

func (s *fakeSpeaker) Open(resampler.Format) (io.WriteCloser, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.sink, nil
}

type fakeFrameSource struct {
	mu     sync.Mutex
	grabs  int
	closed bool
}

func (f *fakeFrameSource) Grab(context.Context) (image.Image, error) {
	f.mu.Lock()
	f.grabs++
	f.mu.Unlock()
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

func (f *fakeFrameSource) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeFrameSource) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeCamera struct {
	src     *fakeFrameSource
	openErr error
}

func (c *fakeCamera) Open(context.Context) (media.FrameSource, error) {
	if c.openErr != nil {
		return nil, c.openErr
	}
	return c.src, nil
}

// manualClock is a settable media.Clock.
type manualClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *manualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) set(d time.Duration) {
	c.mu.Lock()
	c.now = d
	c.mu.Unlock()
}

// manualTimers captures scheduled callbacks so tests fire them in a
// controlled order.
type manualTimers struct {
	mu      sync.Mutex
	nextID  int
	entries map[int]*timerEntry
}

type timerEntry struct {
	at time.Duration
	fn func()
}

func newManualTimers() *manualTimers {
	return &manualTimers{entries: make(map[int]*timerEntry)}
}

// afterFor returns a timerFunc anchored at the clock's current reading.
func (m *manualTimers) afterFor(clock *manualClock) timerFunc {
	return func(d time.Duration, fn func()) func() {
		m.mu.Lock()
		id := m.nextID
		m.nextID++
		m.entries[id] = &timerEntry{at: clock.Now() + d, fn: fn}
		m.mu.Unlock()
		return func() {
			m.mu.Lock()
			delete(m.entries, id)
			m.mu.Unlock()
		}
	}
}

// fire runs every timer due at or before t, earliest first.
func (m *manualTimers) fire(t time.Duration) {
	for {
		m.mu.Lock()
		dueID, due := -1, (*timerEntry)(nil)
		for id, e := range m.entries {
			if e.at <= t && (due == nil || e.at < due.at || (e.at == due.at && id < dueID)) {
				dueID, due = id, e
			}
		}
		if due == nil {
			m.mu.Unlock()
			return
		}
		delete(m.entries, dueID)
		m.mu.Unlock()
		due.fn()
	}
}

// scheduledAt returns the pending fire times, sorted.
func (m *manualTimers) scheduledAt() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.at)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
