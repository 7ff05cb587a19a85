// Package permute holds the ordering policies that decide the display order
// of gallery tiles.
//
// Strategies are pure: they reorder the slice they are given and never touch
// the views themselves. Selection is table-driven by Kind so new policies are
// added by extending the table, not by inspecting types at runtime.
package permute

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/e7canasta/orion-gallery/internal/view"
)

var ErrUnknownStrategy = errors.New("permute: unknown strategy")

// Kind selects a strategy.
type Kind int

const (
	// Default orders tiles by ascending id
	Default Kind = iota
	// Pinned puts pinned ids first (in pin order), then the rest by id
	Pinned
)

func (k Kind) String() string {
	switch k {
	case Default:
		return "default"
	case Pinned:
		return "pinned"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a configuration name to a Kind. Empty means Default.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return Default, nil
	case "pinned":
		return Pinned, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// Kinds returns every selectable kind in table order.
func Kinds() []Kind {
	return []Kind{Default, Pinned}
}

// Strategy reorders views in place.
type Strategy interface {
	Permute(views []view.Content)
	Name() string
}

// Options carries strategy configuration.
type Options struct {
	// Pinned ids, highest priority first (Pinned strategy only)
	Pinned []string
}

var table = map[Kind]func(Options) Strategy{
	Default: func(Options) Strategy { return DefaultStrategy{} },
	Pinned:  func(o Options) Strategy { return NewPinnedStrategy(o.Pinned) },
}

// For returns the strategy registered for kind.
func For(kind Kind, opts Options) (Strategy, error) {
	build, ok := table[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, kind)
	}
	return build(opts), nil
}

// DefaultStrategy orders by ascending lexicographic id.
type DefaultStrategy struct{}

func (DefaultStrategy) Permute(views []view.Content) {
	slices.SortStableFunc(views, func(a, b view.Content) int {
		return strings.Compare(a.ID(), b.ID())
	})
}

func (DefaultStrategy) Name() string {
	return Default.String()
}

// PinnedStrategy keeps pinned feeds (e.g. the active speaker) at the head of
// the grid.
type PinnedStrategy struct {
	rank map[string]int
}

// NewPinnedStrategy creates a strategy pinning ids in the given order.
// Duplicate ids keep their first position.
func NewPinnedStrategy(pinned []string) PinnedStrategy {
	rank := make(map[string]int, len(pinned))
	for i, id := range pinned {
		if _, dup := rank[id]; !dup {
			rank[id] = i
		}
	}
	return PinnedStrategy{rank: rank}
}

func (s PinnedStrategy) Permute(views []view.Content) {
	slices.SortStableFunc(views, func(a, b view.Content) int {
		ra, pa := s.rank[a.ID()]
		rb, pb := s.rank[b.ID()]

		switch {
		case pa && pb:
			return ra - rb
		case pa:
			return -1
		case pb:
			return 1
		default:
			return strings.Compare(a.ID(), b.ID())
		}
	})
}

func (s PinnedStrategy) Name() string {
	return Pinned.String()
}
