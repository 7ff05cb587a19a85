// Package view implements ContentView: the attach/detach protocol between
// one feed's track and the renderer that draws it.
//
// State machine:
//
//	Unattached --Init() ok--> Attached --Cleanup()--> Detached
//	Unattached --Cleanup()-----------------------> Detached
//
// Detached is terminal. A feed that comes back gets a new ContentView.
package view

import "github.com/e7canasta/orion-gallery/internal/media"

// State is the lifecycle state of a ContentView.
type State int

const (
	Unattached State = iota
	Attached
	Detached
)

func (s State) String() string {
	switch s {
	case Unattached:
		return "unattached"
	case Attached:
		return "attached"
	case Detached:
		return "detached"
	default:
		return "unknown"
	}
}

// Content is what the gallery holds. ContentView is the only variant today.
type Content interface {
	// Init attaches the renderer to the track. Returns false when a
	// capability is missing or the view is already detached.
	Init() bool

	// Cleanup detaches, destroys the renderer and drops the track reference.
	// Safe to call repeatedly and after a failed Init.
	Cleanup()

	// ID returns the feed identity. Immutable.
	ID() string

	// View returns the surface to embed, or nil when there is nothing to draw.
	View() media.Surface

	// State returns the lifecycle state.
	State() State
}

// ContentView binds one feed's track to one renderer.
//
// The track is borrowed (its producer owns it). The renderer is owned by
// the ContentView until Cleanup, which destroys it.
//
// Not safe for concurrent use; the gallery drives it from one goroutine.
type ContentView struct {
	id       string
	track    media.Track
	renderer media.Renderer
	wants    media.SinkWants
	state    State
}

var _ Content = (*ContentView)(nil)

// Option configures a ContentView.
type Option func(*ContentView)

// WithWants sets the delivery preferences used on attach. Without it the
// renderer is attached with no resolution or frame-rate constraints.
func WithWants(wants media.SinkWants) Option {
	return func(v *ContentView) {
		v.wants = wants
	}
}

// New creates an unattached view. track or renderer may be nil, including a
// nil *media.FrameTrack; Init then reports failure.
func New(id string, track media.Track, renderer media.Renderer, opts ...Option) *ContentView {
	if t, ok := track.(*media.FrameTrack); ok && t == nil {
		track = nil
	}
	v := &ContentView{
		id:       id,
		track:    track,
		renderer: renderer,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *ContentView) Init() bool {
	switch v.state {
	case Attached:
		return true
	case Detached:
		return false
	}

	if v.track == nil || v.renderer == nil {
		return false
	}

	v.track.AddOrUpdateSink(v.renderer, v.wants)
	v.state = Attached
	return true
}

func (v *ContentView) Cleanup() {
	if v.state == Detached {
		return
	}

	// Detach first: RemoveSink returns only once delivery has stopped, so the
	// renderer is never written to after Destroy.
	if v.state == Attached {
		v.track.RemoveSink(v.renderer)
	}
	if v.renderer != nil {
		v.renderer.Destroy()
	}

	v.track = nil
	v.renderer = nil
	v.state = Detached
}

func (v *ContentView) ID() string {
	return v.id
}

// View returns the renderer's surface while attached. An unattached view
// has never received frames and a detached one has no renderer.
func (v *ContentView) View() media.Surface {
	if v.state != Attached {
		return nil
	}
	return v.renderer
}

func (v *ContentView) State() State {
	return v.state
}

// Wants returns the delivery preferences used on attach.
func (v *ContentView) Wants() media.SinkWants {
	return v.wants
}
