package live

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/buildlink-za/sitevoice/pkg/audio/pcm"
	"github.com/buildlink-za/sitevoice/pkg/media"
)

// timerFunc schedules fn after d and returns a cancel func. Production
// uses time.AfterFunc; tests substitute a manual scheduler.
type timerFunc func(d time.Duration, fn func()) (cancel func())

func realTimer(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// playbackQueue schedules inbound agent audio for gapless sequential
// playback. Buffers start at max(cursor, now) and the cursor only moves
// forward, so bursty arrival can never overlap two buffers or play them
// out of order.
type playbackQueue struct {
	clock  media.Clock
	sink   io.Writer
	after  timerFunc
	onIdle func()
	logger *slog.Logger

	mu     sync.Mutex
	cursor time.Duration
	nextID int64
	// pending holds cancel funcs for buffers not yet started; active
	// counts buffers between start and completion.
	pending map[int64]func()
	active  int
	closed  bool
}

func newPlaybackQueue(clock media.Clock, sink io.Writer, onIdle func(), logger *slog.Logger) *playbackQueue {
	return &playbackQueue{
		clock:   clock,
		sink:    sink,
		after:   realTimer,
		onIdle:  onIdle,
		logger:  logger,
		pending: make(map[int64]func()),
	}
}

// enqueue schedules one decoded PCM buffer. Returns the scheduled start
// time for observability.
func (q *playbackQueue) enqueue(data []byte, format pcm.Format) time.Duration {
	dur := format.Duration(int64(len(data)))

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0
	}
	now := q.clock.Now()
	start := q.cursor
	if now > start {
		start = now
	}
	q.cursor = start + dur

	id := q.nextID
	q.nextID++
	q.active++

	delay := start - now
	q.pending[id] = q.after(delay, func() { q.begin(id, data, dur) })
	q.mu.Unlock()
	return start
}

// begin fires at a buffer's start time: commit it to the sink and
// schedule its completion.
func (q *playbackQueue) begin(id int64, data []byte, dur time.Duration) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if _, ok := q.pending[id]; !ok {
		// Flushed between firing and locking.
		q.mu.Unlock()
		return
	}
	delete(q.pending, id)
	sink := q.sink
	q.mu.Unlock()

	if _, err := sink.Write(data); err != nil {
		q.logger.Warn("playback write failed", "err", err)
	}

	q.after(dur, func() { q.complete() })
}

// complete fires when a committed buffer finishes playing.
func (q *playbackQueue) complete() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.active--
	idle := q.active == 0
	q.mu.Unlock()

	if idle && q.onIdle != nil {
		q.onIdle()
	}
}

// flush cancels every scheduled-but-not-started buffer and resets the
// cursor to now. A buffer already committed to the sink finishes its
// hardware buffer; cutting it mid-write would click.
func (q *playbackQueue) flush() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	for id, cancel := range q.pending {
		cancel()
		delete(q.pending, id)
		q.active--
	}
	q.cursor = q.clock.Now()
	q.mu.Unlock()
}

// close flushes and permanently stops the queue. Idempotent.
func (q *playbackQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for id, cancel := range q.pending {
		cancel()
		delete(q.pending, id)
	}
	q.active = 0
	q.mu.Unlock()
}
