package gallery

import (
	internal "github.com/e7canasta/orion-gallery/internal/gallery"
	"github.com/e7canasta/orion-gallery/internal/media"
	"github.com/e7canasta/orion-gallery/internal/permute"
	"github.com/e7canasta/orion-gallery/internal/view"
)

// Public API - re-export internal types as stable contract

// GalleryView is the view registry and sink-lifecycle manager
type GalleryView = internal.GalleryView

// Config configures New
type Config = internal.Config

// Cell is one grid placement
type Cell = internal.Cell

// Host receives grid placements
type Host = internal.Host

// AttachPolicy decides the fate of views whose attach fails
type AttachPolicy = internal.AttachPolicy

const (
	// ShowEmptyTile keeps a failed view as an "attach failed" tile
	ShowEmptyTile = internal.ShowEmptyTile
	// Reject drops a failed view
	Reject = internal.Reject
)

// Strategy selects the ordering policy
type Strategy = permute.Kind

const (
	StrategyDefault = permute.Default
	StrategyPinned  = permute.Pinned
)

// Content is the per-feed view contract
type Content = view.Content

// ViewState is the lifecycle state of a view
type ViewState = view.State

// Frame is one decoded video frame
type Frame = media.Frame

// SinkWants are the delivery preferences a view registers with
type SinkWants = media.SinkWants

// Track delivers frames to attached sinks
type Track = media.Track

// FrameTrack is the in-process Track implementation
type FrameTrack = media.FrameTrack

// Surface is the drawable handle a Host embeds
type Surface = media.Surface

// Public API errors - re-export internal errors as stable contract
var (
	ErrInvalidColumns      = internal.ErrInvalidColumns
	ErrUnknownAttachPolicy = internal.ErrUnknownAttachPolicy
	ErrUnknownStrategy     = permute.ErrUnknownStrategy
)
