package media

import (
	"sync"
	"sync/atomic"
	"time"
)

type sinkHolder struct {
	sink  Sink
	wants SinkWants

	// unix nanos of the last delivered frame, used by MaxFramerate
	lastDelivered atomic.Int64
}

// FrameTrack fans one feed out to any number of sinks.
//
// Publish holds the read lock while calling OnFrame; AddOrUpdateSink,
// RemoveSink and Close take the write lock. That ordering is what lets
// RemoveSink promise that no frame reaches a sink after it returns.
type FrameTrack struct {
	id string

	mu     sync.RWMutex
	sinks  map[Sink]*sinkHolder
	closed bool

	seq       atomic.Uint64
	published atomic.Uint64
	delivered atomic.Uint64
	throttled atomic.Uint64
	filtered  atomic.Uint64

	now func() time.Time
}

var _ Track = (*FrameTrack)(nil)

// NewFrameTrack creates an open track with no sinks.
func NewFrameTrack(id string) *FrameTrack {
	return &FrameTrack{
		id:    id,
		sinks: make(map[Sink]*sinkHolder),
		now:   time.Now,
	}
}

// ID returns the feed id the track was created for.
func (t *FrameTrack) ID() string {
	return t.id
}

// AddOrUpdateSink registers sink with wants. Calling it again for the same
// sink replaces its wants. Nil sinks and closed tracks are ignored.
func (t *FrameTrack) AddOrUpdateSink(sink Sink, wants SinkWants) {
	if sink == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	if holder, exists := t.sinks[sink]; exists {
		holder.wants = wants
		return
	}

	t.sinks[sink] = &sinkHolder{sink: sink, wants: wants}
}

// RemoveSink unregisters sink. Blocks until in-flight deliveries finish.
func (t *FrameTrack) RemoveSink(sink Sink) {
	if sink == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.sinks, sink)
}

// HasSink reports whether sink is currently attached.
func (t *FrameTrack) HasSink(sink Sink) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.sinks[sink]
	return ok
}

// Publish delivers frame to every attached sink (non-blocking as long as
// sinks honour the OnFrame contract). A zero Seq is replaced with the
// track's own sequence.
func (t *FrameTrack) Publish(frame Frame) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return
	}

	if frame.Seq == 0 {
		frame.Seq = t.seq.Add(1)
	}
	if frame.SourceStream == "" {
		frame.SourceStream = t.id
	}
	t.published.Add(1)

	now := t.now()
	for _, holder := range t.sinks {
		if holder.wants.MaxPixelCount > 0 && frame.Pixels() > holder.wants.MaxPixelCount {
			t.filtered.Add(1)
			continue
		}

		if !holder.admit(now) {
			t.throttled.Add(1)
			continue
		}

		holder.sink.OnFrame(frame)
		t.delivered.Add(1)
	}
}

// admit applies MaxFramerate. Safe for concurrent publishers.
func (h *sinkHolder) admit(now time.Time) bool {
	if h.wants.MaxFramerate <= 0 {
		h.lastDelivered.Store(now.UnixNano())
		return true
	}

	interval := int64(float64(time.Second) / h.wants.MaxFramerate)
	for {
		last := h.lastDelivered.Load()
		if last != 0 && now.UnixNano()-last < interval {
			return false
		}
		if h.lastDelivered.CompareAndSwap(last, now.UnixNano()) {
			return true
		}
	}
}

// Stats returns a snapshot of delivery counters.
func (t *FrameTrack) Stats() TrackStats {
	t.mu.RLock()
	sinks := len(t.sinks)
	t.mu.RUnlock()

	return TrackStats{
		Published: t.published.Load(),
		Delivered: t.delivered.Load(),
		Throttled: t.throttled.Load(),
		Filtered:  t.filtered.Load(),
		Sinks:     sinks,
	}
}

// Err returns ErrTrackClosed once the track has been closed.
func (t *FrameTrack) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return ErrTrackClosed
	}
	return nil
}

// Close detaches every sink and stops delivery. Idempotent.
func (t *FrameTrack) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	t.closed = true
	t.sinks = make(map[Sink]*sinkHolder)
}
