// Package gallery implements GalleryView, the registry that owns the set of
// content views, runs the active ordering strategy and maps the result onto
// grid cells.
//
// GalleryView is driven from a single control goroutine (the UI loop) and is
// not internally synchronized. Frame delivery to the renderers it holds runs
// on producer goroutines it never manages; ContentView.Cleanup guarantees
// delivery has stopped before a renderer is destroyed.
package gallery

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/e7canasta/orion-gallery/internal/media"
	"github.com/e7canasta/orion-gallery/internal/metrics"
	"github.com/e7canasta/orion-gallery/internal/permute"
	"github.com/e7canasta/orion-gallery/internal/view"
)

// Config configures a GalleryView.
type Config struct {
	// Columns fixes the grid width; 0 computes ceil(sqrt(n))
	Columns int
	// Strategy selects the ordering policy
	Strategy permute.Kind
	// Pinned ids for the Pinned strategy
	Pinned []string
	// AttachPolicy decides the fate of views whose Init fails
	AttachPolicy AttachPolicy
	// Logger receives diagnostics; nil discards them
	Logger *slog.Logger
	// Metrics receives lifecycle events; nil uses metrics.Nop
	Metrics metrics.Recorder
	// Host receives grid placements; nil discards them
	Host Host
}

// GalleryView is the view registry and sink-lifecycle manager.
type GalleryView struct {
	cfg      Config
	strategy permute.Strategy
	log      *slog.Logger
	metrics  metrics.Recorder
	host     Host

	// views holds every registered view in display order. ids are unique.
	views []view.Content
	cells []Cell
}

// New validates cfg and returns an empty gallery.
func New(cfg Config) (*GalleryView, error) {
	if cfg.Columns < 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidColumns, cfg.Columns)
	}
	if cfg.AttachPolicy != ShowEmptyTile && cfg.AttachPolicy != Reject {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAttachPolicy, cfg.AttachPolicy)
	}

	strategy, err := permute.For(cfg.Strategy, permute.Options{Pinned: cfg.Pinned})
	if err != nil {
		return nil, fmt.Errorf("gallery: %w", err)
	}

	g := &GalleryView{
		cfg:      cfg,
		strategy: strategy,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
		host:     cfg.Host,
	}
	if g.log == nil {
		g.log = slog.New(slog.DiscardHandler)
	}
	if g.metrics == nil {
		g.metrics = metrics.Nop{}
	}
	if g.host == nil {
		g.host = nopHost{}
	}

	g.log.Debug("gallery: created",
		"columns", cfg.Columns,
		"strategy", strategy.Name(),
		"attach_policy", cfg.AttachPolicy.String(),
	)

	return g, nil
}

// InsertView registers v and attaches it.
//
// A view with an id already held replaces the old one, which is cleaned up
// first so its sink never leaks. When Init fails the AttachPolicy applies.
func (g *GalleryView) InsertView(v view.Content) {
	if v == nil {
		return
	}

	id := v.ID()
	changed := false

	if i := g.index(id); i >= 0 {
		g.log.Info("gallery: replacing view with duplicate id", "id", id)
		g.cleanup(g.views[i])
		g.views = slices.Delete(g.views, i, i+1)
		changed = true
	}

	ok := v.Init()
	g.metrics.ObserveAttach(ok)

	switch {
	case ok:
		g.log.Debug("gallery: view attached", "id", id)
		g.views = append(g.views, v)
		changed = true

	case g.cfg.AttachPolicy == Reject:
		g.log.Warn("gallery: attach failed, view rejected", "id", id)
		g.cleanup(v)

	default:
		g.log.Warn("gallery: attach failed, showing empty tile", "id", id)
		g.views = append(g.views, v)
		changed = true
	}

	if changed {
		g.permuteViews()
	}
}

// RemoveView cleans up and removes the view with id. Unknown ids are a no-op.
func (g *GalleryView) RemoveView(id string) {
	i := g.index(id)
	if i < 0 {
		return
	}

	g.cleanup(g.views[i])
	g.views = slices.Delete(g.views, i, i+1)
	g.log.Debug("gallery: view removed", "id", id)

	g.permuteViews()
}

// GetView returns the surface for id, or nil when id is absent or the view
// has nothing to draw.
func (g *GalleryView) GetView(id string) media.Surface {
	i := g.index(id)
	if i < 0 {
		return nil
	}
	return g.views[i].View()
}

// RemoveAll cleans up every view exactly once, empties the registry and
// clears the host.
func (g *GalleryView) RemoveAll() {
	n := len(g.views)
	for _, v := range g.views {
		g.cleanup(v)
	}

	clear(g.views)
	g.views = g.views[:0]
	g.cells = nil
	g.host.Clear()

	g.metrics.ObservePermute(g.strategy.Name(), 0)
	g.log.Debug("gallery: all views removed", "count", n)
}

// Len returns the number of registered views.
func (g *GalleryView) Len() int {
	return len(g.views)
}

// IDs returns the registered ids in display order.
func (g *GalleryView) IDs() []string {
	ids := make([]string, len(g.views))
	for i, v := range g.views {
		ids[i] = v.ID()
	}
	return ids
}

// Layout returns a copy of the current grid assignment.
func (g *GalleryView) Layout() []Cell {
	return slices.Clone(g.cells)
}

// Columns returns the column count the current layout uses.
func (g *GalleryView) Columns() int {
	return columnsFor(g.cfg.Columns, len(g.views))
}

// Strategy returns the active strategy kind.
func (g *GalleryView) Strategy() permute.Kind {
	return g.cfg.Strategy
}

// SetStrategy switches the ordering policy and re-lays the grid.
func (g *GalleryView) SetStrategy(kind permute.Kind) error {
	strategy, err := permute.For(kind, permute.Options{Pinned: g.cfg.Pinned})
	if err != nil {
		return fmt.Errorf("gallery: %w", err)
	}

	g.cfg.Strategy = kind
	g.strategy = strategy
	g.log.Info("gallery: strategy changed", "strategy", strategy.Name())

	g.permuteViews()
	return nil
}

// SetPinned replaces the pinned ids and re-lays the grid.
func (g *GalleryView) SetPinned(ids []string) {
	g.cfg.Pinned = slices.Clone(ids)

	// pins are baked into the strategy at construction
	strategy, err := permute.For(g.cfg.Strategy, permute.Options{Pinned: g.cfg.Pinned})
	if err != nil {
		g.log.Error("gallery: pinned ids not applied", "strategy", g.cfg.Strategy.String(), "error", err)
		return
	}
	g.strategy = strategy
	g.log.Info("gallery: pinned ids changed", "pinned", g.cfg.Pinned)
	g.permuteViews()
}

// SetColumns fixes the grid width (0 = computed) and re-lays the grid.
func (g *GalleryView) SetColumns(n int) error {
	if n < 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidColumns, n)
	}

	g.cfg.Columns = n
	g.permuteViews()
	return nil
}

// permuteViews runs the active strategy and re-lays the ordered views onto
// the grid. The host is only notified when the assignment changed, so
// re-running without a structural change is a no-op.
func (g *GalleryView) permuteViews() {
	g.strategy.Permute(g.views)

	cells := place(g.views, columnsFor(g.cfg.Columns, len(g.views)))
	g.metrics.ObservePermute(g.strategy.Name(), len(cells))

	if sameCells(g.cells, cells) {
		return
	}

	g.cells = cells
	g.host.Place(slices.Clone(cells))
}

func (g *GalleryView) cleanup(v view.Content) {
	v.Cleanup()
	g.metrics.ObserveDetach()
}

func (g *GalleryView) index(id string) int {
	return slices.IndexFunc(g.views, func(v view.Content) bool {
		return v.ID() == id
	})
}
