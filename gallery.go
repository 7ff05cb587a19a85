package gallery

import (
	internal "github.com/e7canasta/orion-gallery/internal/gallery"
	"github.com/e7canasta/orion-gallery/internal/media"
	"github.com/e7canasta/orion-gallery/internal/render"
	"github.com/e7canasta/orion-gallery/internal/view"
)

// New validates cfg and returns an empty gallery.
func New(cfg Config) (*GalleryView, error) {
	return internal.New(cfg)
}

// NewFrameTrack creates an open track with no sinks.
func NewFrameTrack(id string) *FrameTrack {
	return media.NewFrameTrack(id)
}

// NewView builds a view for track backed by a latest-frame mailbox
// renderer. A view is single use: build a new one to re-insert a feed.
func NewView(id string, track Track, wants SinkWants) Content {
	return view.New(id, track, render.NewMailbox(id), view.WithWants(wants))
}
