package gallery

import (
	"errors"
	"fmt"
	"strings"

	"github.com/e7canasta/orion-gallery/internal/media"
)

var (
	ErrInvalidColumns      = errors.New("gallery: columns must be >= 0")
	ErrUnknownAttachPolicy = errors.New("gallery: unknown attach policy")
)

// AttachPolicy decides what happens to a view whose Init fails.
type AttachPolicy int

const (
	// ShowEmptyTile keeps the view and places it as an "attach failed" tile
	// with no surface.
	ShowEmptyTile AttachPolicy = iota
	// Reject cleans the view up and does not store it.
	Reject
)

func (p AttachPolicy) String() string {
	switch p {
	case ShowEmptyTile:
		return "show"
	case Reject:
		return "reject"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseAttachPolicy maps a configuration name to an AttachPolicy.
func ParseAttachPolicy(name string) (AttachPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "show", "empty", "show_empty_tile":
		return ShowEmptyTile, nil
	case "reject":
		return Reject, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAttachPolicy, name)
	}
}

// Cell is one grid placement.
type Cell struct {
	// Index is the position in display order
	Index int `yaml:"index"`
	// Row = Index / columns
	Row int `yaml:"row"`
	// Column = Index % columns
	Column int `yaml:"column"`
	// ID of the feed placed in the cell
	ID string `yaml:"id"`
	// Attached is false for "attach failed" tiles
	Attached bool `yaml:"attached"`
	// Surface to embed; nil when there is nothing to draw
	Surface media.Surface `yaml:"-"`
}

// Host is the surface embedding host: it owns pixel layout and receives
// only the row/column assignment.
type Host interface {
	// Place is called after every change to the grid assignment.
	Place(cells []Cell)
	// Clear is called by RemoveAll.
	Clear()
}

type nopHost struct{}

func (nopHost) Place([]Cell) {}

func (nopHost) Clear() {}
