// Package tui is the terminal gallery host: a bubbletea program that owns
// the GalleryView on its update goroutine and draws each grid cell as a
// tile.
package tui

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/e7canasta/orion-gallery/internal/gallery"
	"github.com/e7canasta/orion-gallery/internal/layout"
	"github.com/e7canasta/orion-gallery/internal/media"
	"github.com/e7canasta/orion-gallery/internal/permute"
	"github.com/e7canasta/orion-gallery/internal/render"
	"github.com/e7canasta/orion-gallery/internal/view"
)

// Feed is one entry the gallery can show. A nil Track yields an
// "attach failed" tile.
type Feed struct {
	ID    string
	Track media.Track
	Wants media.SinkWants
}

// Options configures New.
type Options struct {
	// Gallery settings; its Host is replaced by the model (chained with
	// Host below)
	Gallery gallery.Config
	// Feeds inserted when the program starts
	Feeds []Feed
	// Refresh is the redraw interval (default 250ms)
	Refresh time.Duration
	// Host, when set, also receives every placement
	Host gallery.Host
	// Title shown in the header
	Title string
}

// columnCycle is the sequence the "c" key walks; 0 = computed.
var columnCycle = []int{0, 1, 2, 3, 4}

type tickMsg time.Time

// Model is the bubbletea model. All gallery calls happen inside Init and
// Update.
type Model struct {
	gallery *gallery.GalleryView
	log     *slog.Logger
	opts    Options

	feeds   map[string]Feed
	removed []string
	cells   []gallery.Cell
	cleared int

	width  int
	status string
	quit   bool
}

// New builds the model and its gallery.
func New(opts Options) (*Model, error) {
	if opts.Refresh <= 0 {
		opts.Refresh = 250 * time.Millisecond
	}
	if opts.Title == "" {
		opts.Title = "gallery"
	}

	m := &Model{
		log:   opts.Gallery.Logger,
		opts:  opts,
		feeds: make(map[string]Feed, len(opts.Feeds)),
	}
	if m.log == nil {
		m.log = slog.New(slog.DiscardHandler)
	}

	cfg := opts.Gallery
	cfg.Host = m
	if opts.Host != nil {
		cfg.Host = layout.Multi{m, opts.Host}
	}

	g, err := gallery.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("tui: %w", err)
	}
	m.gallery = g

	for _, f := range opts.Feeds {
		m.feeds[f.ID] = f
	}
	return m, nil
}

// Gallery exposes the owned gallery. Only call it from the program's
// goroutine or after the program has exited.
func (m *Model) Gallery() *gallery.GalleryView {
	return m.gallery
}

// Place implements gallery.Host.
func (m *Model) Place(cells []gallery.Cell) {
	m.cells = cells
}

// Clear implements gallery.Host.
func (m *Model) Clear() {
	m.cells = nil
	m.cleared++
}

func (m *Model) Init() tea.Cmd {
	for _, f := range m.opts.Feeds {
		m.insert(f)
	}
	return m.tick()
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.opts.Refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.quit {
			return m, nil
		}
		return m, m.tick()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "q", "ctrl+c":
		m.gallery.RemoveAll()
		m.quit = true
		return m, tea.Quit

	case "p":
		kinds := permute.Kinds()
		next := kinds[(slices.Index(kinds, m.gallery.Strategy())+1)%len(kinds)]
		if err := m.gallery.SetStrategy(next); err != nil {
			m.status = err.Error()
			break
		}
		m.status = "strategy: " + next.String()

	case "c":
		next := columnCycle[(slices.Index(columnCycle, m.opts.Gallery.Columns)+1)%len(columnCycle)]
		if err := m.gallery.SetColumns(next); err != nil {
			m.status = err.Error()
			break
		}
		m.opts.Gallery.Columns = next
		m.status = "columns: " + columnsLabel(next)

	case "x":
		ids := m.gallery.IDs()
		if len(ids) == 0 {
			m.status = "nothing to remove"
			break
		}
		id := ids[len(ids)-1]
		m.gallery.RemoveView(id)
		m.removed = append(m.removed, id)
		m.status = "removed " + id
		m.log.Info("tui: view removed", "id", id)

	case "r":
		if len(m.removed) == 0 {
			m.status = "nothing to restore"
			break
		}
		for _, id := range m.removed {
			if f, ok := m.feeds[id]; ok {
				m.insert(f)
			}
		}
		m.status = fmt.Sprintf("restored %d", len(m.removed))
		m.log.Info("tui: views restored", "ids", m.removed)
		m.removed = m.removed[:0]
	}
	return m, nil
}

// insert builds a fresh view for f; views are single use.
func (m *Model) insert(f Feed) {
	m.gallery.InsertView(view.New(f.ID, f.Track, render.NewMailbox(f.ID), view.WithWants(f.Wants)))
}

func columnsLabel(n int) string {
	if n == 0 {
		return "auto"
	}
	return fmt.Sprint(n)
}

var (
	_ tea.Model    = (*Model)(nil)
	_ gallery.Host = (*Model)(nil)
)
