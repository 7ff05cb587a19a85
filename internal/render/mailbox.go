// Package render provides render sinks for gallery tiles.
//
// A Mailbox keeps only the newest frame ("drop frames, never queue"): the
// producer overwrites the slot, the surface reader always sees the latest
// frame, and a slow reader costs overwritten frames rather than latency.
package render

import (
	"sync"
	"time"

	"github.com/e7canasta/orion-gallery/internal/media"
)

// fpsWindow is the window over which Stats().FPS is measured.
const fpsWindow = time.Second

// Mailbox is a single-slot render sink.
//
// Thread-safety:
//   - OnFrame runs on the track's producer goroutine
//   - Next/Latest/Stats run on reader goroutines (host, tests)
//   - Destroy may be called from any goroutine; it wakes blocked readers
type Mailbox struct {
	id string

	mu     sync.Mutex
	cond   *sync.Cond
	frame  *media.Frame // newest frame, kept after reads for Latest()
	unread bool         // frame has not been returned by Next yet

	rendered    uint64
	overwritten uint64
	lastFrameAt time.Time

	windowStart time.Time
	windowCount int
	fps         float64

	destroyed bool

	now func() time.Time
}

var _ media.Renderer = (*Mailbox)(nil)

// NewMailbox creates a renderer for the tile with the given id.
func NewMailbox(id string) *Mailbox {
	m := &Mailbox{id: id, now: time.Now}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// ID returns the tile id this renderer was created for.
func (m *Mailbox) ID() string {
	return m.id
}

// OnFrame stores frame, replacing any unread one. Ignored after Destroy.
func (m *Mailbox) OnFrame(frame media.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return
	}

	if m.unread {
		m.overwritten++
	}

	now := m.now()
	m.frame = &frame
	m.unread = true
	m.rendered++
	m.lastFrameAt = now
	m.tickFPS(now)

	m.cond.Signal()
}

// tickFPS updates the arrival rate. Caller holds mu.
func (m *Mailbox) tickFPS(now time.Time) {
	if m.windowStart.IsZero() {
		m.windowStart = now
	}

	m.windowCount++
	elapsed := now.Sub(m.windowStart)
	if elapsed >= fpsWindow {
		m.fps = float64(m.windowCount) / elapsed.Seconds()
		m.windowStart = now
		m.windowCount = 0
	}
}

// Next blocks until an unread frame is available and returns it. Returns
// false once the renderer is destroyed.
func (m *Mailbox) Next() (media.Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for !m.unread && !m.destroyed {
		m.cond.Wait()
	}

	if m.destroyed {
		return media.Frame{}, false
	}

	m.unread = false
	return *m.frame, true
}

// Latest returns the newest frame without consuming it.
func (m *Mailbox) Latest() (media.Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.frame == nil || m.destroyed {
		return media.Frame{}, false
	}
	return *m.frame, true
}

// Stats returns a snapshot of the surface counters.
func (m *Mailbox) Stats() media.SurfaceStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	fps := m.fps
	if !m.lastFrameAt.IsZero() && m.now().Sub(m.lastFrameAt) > 2*fpsWindow {
		fps = 0 // stalled feed
	}

	return media.SurfaceStats{
		Rendered:    m.rendered,
		Overwritten: m.overwritten,
		LastFrameAt: m.lastFrameAt,
		FPS:         fps,
		Destroyed:   m.destroyed,
	}
}

// Destroy releases the held frame and wakes blocked readers. Idempotent.
func (m *Mailbox) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return
	}

	m.destroyed = true
	m.frame = nil
	m.unread = false
	m.cond.Broadcast()
}
