// Package media defines the capabilities the gallery core attaches to:
// tracks that deliver decoded frames, and render sinks that consume them.
//
// Ownership:
//   - A Track is borrowed. Its lifetime is managed by whoever produces the feed.
//   - A Renderer is owned by exactly one consumer until Destroy is called.
//
// Delivery runs on the producer's goroutine. The consumer side (the gallery)
// never manages that goroutine; it relies on RemoveSink returning only after
// delivery to the sink has stopped.
package media

import (
	"errors"
	"time"
)

var (
	ErrTrackClosed = errors.New("media: track is closed")
	ErrNilSink     = errors.New("media: nil sink")
)

// Frame is one decoded video frame.
type Frame struct {
	// Seq is the monotonic sequence number within the feed
	Seq uint64
	// Timestamp is when the frame was captured/decoded
	Timestamp time.Time
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Data contains the pixel data (RGB from GStreamer sources)
	Data []byte
	// SourceStream identifies the feed that produced the frame
	SourceStream string
	// TraceID is a unique identifier for distributed tracing
	TraceID string
}

// Pixels returns Width*Height.
func (f Frame) Pixels() int {
	return f.Width * f.Height
}

// SinkWants are the delivery preferences a sink registers with.
// The zero value means no resolution or frame-rate constraints.
type SinkWants struct {
	// MaxFramerate caps delivered frames per second (0 = unlimited)
	MaxFramerate float64
	// MaxPixelCount filters frames larger than Width*Height (0 = unlimited)
	MaxPixelCount int
}

// Sink receives frames on the producer's goroutine.
//
// OnFrame must not block and must not call back into the Track that
// delivers to it. Implementations must be comparable (pointer receivers),
// since tracks key their sink sets by sink value.
type Sink interface {
	OnFrame(frame Frame)
}

// Track is the media-track capability: a source of frames that sinks can be
// attached to and detached from.
type Track interface {
	// AddOrUpdateSink attaches sink, or updates its wants if already attached.
	AddOrUpdateSink(sink Sink, wants SinkWants)

	// RemoveSink detaches sink. When it returns, no further OnFrame call for
	// sink is in flight or will start. Unknown sinks are ignored.
	RemoveSink(sink Sink)
}

// SurfaceStats is a snapshot of a render surface.
type SurfaceStats struct {
	// Rendered is the number of frames accepted by the surface
	Rendered uint64
	// Overwritten counts frames replaced before anyone read them
	Overwritten uint64
	// LastFrameAt is when the last frame arrived
	LastFrameAt time.Time
	// FPS is the measured arrival rate over the last second window
	FPS float64
	// Destroyed is true once the owning renderer has been destroyed
	Destroyed bool
}

// Surface is the handle a layout host embeds. Ownership stays with the
// renderer that backs it.
type Surface interface {
	Latest() (Frame, bool)
	Stats() SurfaceStats
}

// Renderer is the render-sink capability: a Sink with a Surface and an
// explicit teardown.
type Renderer interface {
	Sink
	Surface

	// Destroy releases the renderer. Idempotent.
	Destroy()
}

// TrackStats is a snapshot of a FrameTrack.
type TrackStats struct {
	// Published is the number of Publish() calls accepted
	Published uint64
	// Delivered is the sum of OnFrame calls across all sinks
	Delivered uint64
	// Throttled counts frames skipped by MaxFramerate
	Throttled uint64
	// Filtered counts frames skipped by MaxPixelCount
	Filtered uint64
	// Sinks is the number of currently attached sinks
	Sinks int
}
