// Package layout provides gallery hosts that do not draw pixels: a YAML
// writer for headless runs and an in-memory recorder.
package layout

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/e7canasta/orion-gallery/internal/gallery"
)

// Placement is one YAML document written by YAMLHost.
type Placement struct {
	Seq     uint64         `yaml:"seq"`
	At      time.Time      `yaml:"at"`
	Event   string         `yaml:"event"`
	Columns int            `yaml:"columns"`
	Cells   []gallery.Cell `yaml:"cells"`
}

// YAMLHost writes every grid assignment as a YAML document.
type YAMLHost struct {
	mu  sync.Mutex
	enc *yaml.Encoder
	log *slog.Logger
	seq uint64
	now func() time.Time
}

// NewYAMLHost returns a host encoding to w. A nil log uses slog.Default().
func NewYAMLHost(w io.Writer, log *slog.Logger) *YAMLHost {
	if log == nil {
		log = slog.Default()
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	return &YAMLHost{
		enc: enc,
		log: log,
		now: time.Now,
	}
}

func (h *YAMLHost) Place(cells []gallery.Cell) {
	h.write("place", cells)
}

func (h *YAMLHost) Clear() {
	h.write("clear", nil)
}

// Close flushes the encoder.
func (h *YAMLHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.enc.Close(); err != nil {
		return fmt.Errorf("layout: close encoder: %w", err)
	}
	return nil
}

func (h *YAMLHost) write(event string, cells []gallery.Cell) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	doc := Placement{
		Seq:     h.seq,
		At:      h.now(),
		Event:   event,
		Columns: columnsOf(cells),
		Cells:   cells,
	}
	if doc.Cells == nil {
		doc.Cells = []gallery.Cell{}
	}

	if err := h.enc.Encode(doc); err != nil {
		h.log.Error("layout: failed to write placement", "seq", doc.Seq, "error", err)
	}
}

// columnsOf infers the column count from the first row.
func columnsOf(cells []gallery.Cell) int {
	cols := 0
	for _, c := range cells {
		if c.Row > 0 {
			break
		}
		cols++
	}
	return cols
}

// Recorder keeps every placement in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	places [][]gallery.Cell
	clears int
}

func (r *Recorder) Place(cells []gallery.Cell) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.places = append(r.places, slices.Clone(cells))
}

func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
}

// Last returns the most recent placement, or nil.
func (r *Recorder) Last() []gallery.Cell {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.places) == 0 {
		return nil
	}
	return slices.Clone(r.places[len(r.places)-1])
}

// Placements returns how many times Place was called.
func (r *Recorder) Placements() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.places)
}

// Clears returns how many times Clear was called.
func (r *Recorder) Clears() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clears
}

// Multi fans placements out to several hosts in order.
type Multi []gallery.Host

func (m Multi) Place(cells []gallery.Cell) {
	for _, h := range m {
		h.Place(cells)
	}
}

func (m Multi) Clear() {
	for _, h := range m {
		h.Clear()
	}
}

var (
	_ gallery.Host = Multi(nil)
	_ gallery.Host = (*YAMLHost)(nil)
	_ gallery.Host = (*Recorder)(nil)
)
