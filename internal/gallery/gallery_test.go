package gallery

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/e7canasta/orion-gallery/internal/media"
	"github.com/e7canasta/orion-gallery/internal/permute"
	"github.com/e7canasta/orion-gallery/internal/render"
	"github.com/e7canasta/orion-gallery/internal/view"
)

type recordingHost struct {
	places [][]Cell
	clears int
}

func (h *recordingHost) Place(cells []Cell) { h.places = append(h.places, cells) }

func (h *recordingHost) Clear() { h.clears++ }

func (h *recordingHost) last() []Cell {
	if len(h.places) == 0 {
		return nil
	}
	return h.places[len(h.places)-1]
}

type countingRecorder struct {
	attachOK, attachFailed, detach, permute int
	tiles                                   int
}

func (r *countingRecorder) ObserveAttach(ok bool) {
	if ok {
		r.attachOK++
	} else {
		r.attachFailed++
	}
}

func (r *countingRecorder) ObserveDetach() { r.detach++ }

func (r *countingRecorder) ObservePermute(_ string, tiles int) {
	r.permute++
	r.tiles = tiles
}

// spyView wraps a ContentView and counts lifecycle calls.
type spyView struct {
	*view.ContentView
	inits, cleanups int
}

func (s *spyView) Init() bool {
	s.inits++
	return s.ContentView.Init()
}

func (s *spyView) Cleanup() {
	s.cleanups++
	s.ContentView.Cleanup()
}

type fixture struct {
	g      *GalleryView
	host   *recordingHost
	rec    *countingRecorder
	tracks map[string]*media.FrameTrack
	spies  map[string][]*spyView
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	f := &fixture{
		host:   &recordingHost{},
		rec:    &countingRecorder{},
		tracks: make(map[string]*media.FrameTrack),
		spies:  make(map[string][]*spyView),
	}
	cfg.Host = f.host
	cfg.Metrics = f.rec

	g, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	f.g = g
	return f
}

// feed builds a view for id backed by a real track and mailbox.
func (f *fixture) feed(id string) *spyView {
	track, ok := f.tracks[id]
	if !ok {
		track = media.NewFrameTrack(id)
		f.tracks[id] = track
	}
	v := &spyView{ContentView: view.New(id, track, render.NewMailbox(id))}
	f.spies[id] = append(f.spies[id], v)
	return v
}

func (f *fixture) insert(ids ...string) {
	for _, id := range ids {
		f.g.InsertView(f.feed(id))
	}
}

var ignoreSurface = cmpopts.IgnoreFields(Cell{}, "Surface")

// TestInsertOrdersByID is the b, a, c scenario.
func TestInsertOrdersByID(t *testing.T) {
	f := newFixture(t, Config{Columns: 2})

	f.insert("b", "a", "c")
	if diff := cmp.Diff([]string{"a", "b", "c"}, f.g.IDs()); diff != "" {
		t.Fatalf("order after insert (-want +got):\n%s", diff)
	}

	f.g.RemoveView("b")
	if diff := cmp.Diff([]string{"a", "c"}, f.g.IDs()); diff != "" {
		t.Fatalf("order after remove (-want +got):\n%s", diff)
	}

	f.insert("b")
	if diff := cmp.Diff([]string{"a", "b", "c"}, f.g.IDs()); diff != "" {
		t.Fatalf("order after re-insert (-want +got):\n%s", diff)
	}

	want := []Cell{
		{Index: 0, Row: 0, Column: 0, ID: "a", Attached: true},
		{Index: 1, Row: 0, Column: 1, ID: "b", Attached: true},
		{Index: 2, Row: 1, Column: 0, ID: "c", Attached: true},
	}
	if diff := cmp.Diff(want, f.g.Layout(), ignoreSurface); diff != "" {
		t.Errorf("layout mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, f.host.last(), ignoreSurface); diff != "" {
		t.Errorf("host placement mismatch (-want +got):\n%s", diff)
	}
}

// TestInsertNRemoveOne verifies N views are retrievable and removal of one
// leaves N-1.
func TestInsertNRemoveOne(t *testing.T) {
	f := newFixture(t, Config{})
	ids := []string{"peer-3", "peer-1", "local", "peer-2", "screen"}
	f.insert(ids...)

	if f.g.Len() != len(ids) {
		t.Fatalf("Len()=%d, expected %d", f.g.Len(), len(ids))
	}
	for _, id := range ids {
		if f.g.GetView(id) == nil {
			t.Errorf("GetView(%q) = nil", id)
		}
	}

	f.g.RemoveView("peer-2")

	if f.g.Len() != len(ids)-1 {
		t.Errorf("Len()=%d after remove, expected %d", f.g.Len(), len(ids)-1)
	}
	if f.g.GetView("peer-2") != nil {
		t.Error("GetView(peer-2) non-nil after remove")
	}
	if spy := f.spies["peer-2"][0]; spy.cleanups != 1 || spy.State() != view.Detached {
		t.Errorf("removed view cleanups=%d state=%v", spy.cleanups, spy.State())
	}
	if f.tracks["peer-2"].Stats().Sinks != 0 {
		t.Error("removed view still attached to its track")
	}
}

// TestGetViewReturnsRendererSurface verifies frames published on the track
// reach the surface handed out by GetView.
func TestGetViewReturnsRendererSurface(t *testing.T) {
	f := newFixture(t, Config{})
	f.insert("a")

	f.tracks["a"].Publish(media.Frame{Width: 640, Height: 480})

	frame, ok := f.g.GetView("a").Latest()
	if !ok || frame.Width != 640 {
		t.Errorf("Latest()=(%+v,%v), expected 640px frame", frame, ok)
	}
	if f.g.GetView("missing") != nil {
		t.Error("GetView(missing) non-nil")
	}
}

// TestRemoveMissingIsNoop verifies state, host and metrics stay untouched.
func TestRemoveMissingIsNoop(t *testing.T) {
	f := newFixture(t, Config{})
	f.insert("a", "b")

	layout := f.g.Layout()
	ids := f.g.IDs()
	places := len(f.host.places)
	rec := *f.rec

	f.g.RemoveView("zzz")

	if diff := cmp.Diff(ids, f.g.IDs()); diff != "" {
		t.Errorf("ids changed (-before +after):\n%s", diff)
	}
	if diff := cmp.Diff(layout, f.g.Layout(), ignoreSurface); diff != "" {
		t.Errorf("layout changed (-before +after):\n%s", diff)
	}
	if len(f.host.places) != places {
		t.Error("host notified on no-op remove")
	}
	if *f.rec != rec {
		t.Errorf("metrics changed: before %+v after %+v", rec, *f.rec)
	}
}

// TestRemoveAll verifies every view is cleaned up exactly once and the
// registry ends empty.
func TestRemoveAll(t *testing.T) {
	f := newFixture(t, Config{})

	f.insert("a", "b", "c")
	failed := view.New("d", nil, render.NewMailbox("d"))
	f.g.InsertView(failed)

	f.g.RemoveAll()

	if f.g.Len() != 0 {
		t.Errorf("Len()=%d after RemoveAll", f.g.Len())
	}
	for _, id := range []string{"a", "b", "c", "d"} {
		if f.g.GetView(id) != nil {
			t.Errorf("GetView(%q) non-nil after RemoveAll", id)
		}
	}
	for id, spies := range f.spies {
		if spies[0].cleanups != 1 {
			t.Errorf("%s cleaned up %d times, expected 1", id, spies[0].cleanups)
		}
	}
	if failed.State() != view.Detached {
		t.Errorf("failed view state %v, expected detached", failed.State())
	}
	if f.host.clears != 1 {
		t.Errorf("host cleared %d times, expected 1", f.host.clears)
	}
	if len(f.g.Layout()) != 0 {
		t.Errorf("layout has %d cells after RemoveAll", len(f.g.Layout()))
	}
	if f.rec.detach != 4 {
		t.Errorf("detach observed %d times, expected 4", f.rec.detach)
	}

	// gallery is reusable
	f.insert("a")
	if f.g.Len() != 1 {
		t.Errorf("Len()=%d after re-insert", f.g.Len())
	}
}

// TestDuplicateReplacesByID verifies the old view is cleaned up and the new
// one takes its place.
func TestDuplicateReplacesByID(t *testing.T) {
	f := newFixture(t, Config{})
	f.insert("a", "b")
	f.insert("a")

	if f.g.Len() != 2 {
		t.Fatalf("Len()=%d after duplicate insert, expected 2", f.g.Len())
	}

	old, replacement := f.spies["a"][0], f.spies["a"][1]
	if old.cleanups != 1 || old.State() != view.Detached {
		t.Errorf("old view cleanups=%d state=%v", old.cleanups, old.State())
	}
	if replacement.State() != view.Attached {
		t.Errorf("replacement state %v", replacement.State())
	}
	if f.tracks["a"].Stats().Sinks != 1 {
		t.Errorf("track a has %d sinks, expected 1 (no leaked sink)", f.tracks["a"].Stats().Sinks)
	}
	if f.g.GetView("a") != replacement.View() {
		t.Error("GetView(a) does not return the replacement surface")
	}
}

// TestAttachFailureShowsEmptyTile verifies the default policy.
func TestAttachFailureShowsEmptyTile(t *testing.T) {
	f := newFixture(t, Config{Columns: 3})
	f.insert("b")
	f.g.InsertView(view.New("a", nil, render.NewMailbox("a")))

	want := []Cell{
		{Index: 0, Row: 0, Column: 0, ID: "a", Attached: false},
		{Index: 1, Row: 0, Column: 1, ID: "b", Attached: true},
	}
	if diff := cmp.Diff(want, f.g.Layout(), ignoreSurface); diff != "" {
		t.Errorf("layout mismatch (-want +got):\n%s", diff)
	}
	if f.g.Layout()[0].Surface != nil {
		t.Error("attach-failed tile has a surface")
	}
	if f.g.GetView("a") != nil {
		t.Error("GetView(a) returned the never-attached renderer")
	}
	if f.host.last()[0].Surface != nil {
		t.Error("host received a surface for the attach-failed tile")
	}
	if f.rec.attachFailed != 1 || f.rec.attachOK != 1 {
		t.Errorf("attach metrics ok=%d failed=%d", f.rec.attachOK, f.rec.attachFailed)
	}
}

// TestAttachFailureReject verifies the reject policy cleans up and does not
// store the view.
func TestAttachFailureReject(t *testing.T) {
	f := newFixture(t, Config{AttachPolicy: Reject})
	f.insert("b")
	places := len(f.host.places)

	renderer := render.NewMailbox("a")
	failed := view.New("a", nil, renderer)
	f.g.InsertView(failed)

	if f.g.Len() != 1 {
		t.Errorf("Len()=%d, expected rejected view not stored", f.g.Len())
	}
	if failed.State() != view.Detached {
		t.Errorf("rejected view state %v, expected detached", failed.State())
	}
	if !renderer.Stats().Destroyed {
		t.Error("rejected view's renderer not destroyed")
	}
	if len(f.host.places) != places {
		t.Error("host notified for a rejected insert")
	}
}

// TestRejectedDuplicateStillRemovesOld verifies replace-by-id happens even
// when the replacement fails to attach under Reject.
func TestRejectedDuplicateStillRemovesOld(t *testing.T) {
	f := newFixture(t, Config{AttachPolicy: Reject})
	f.insert("a", "b")

	f.g.InsertView(view.New("a", nil, nil))

	if diff := cmp.Diff([]string{"b"}, f.g.IDs()); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if f.spies["a"][0].State() != view.Detached {
		t.Error("replaced view not cleaned up")
	}
}

// TestPermuteIdempotent verifies re-running placement without structural
// change keeps the same cells and does not re-notify the host.
func TestPermuteIdempotent(t *testing.T) {
	f := newFixture(t, Config{})
	f.insert("c", "a", "b", "e", "d")

	before := f.g.Layout()
	places := len(f.host.places)

	f.g.permuteViews()
	f.g.permuteViews()

	if diff := cmp.Diff(before, f.g.Layout(), ignoreSurface); diff != "" {
		t.Errorf("layout changed (-before +after):\n%s", diff)
	}
	if len(f.host.places) != places {
		t.Errorf("host notified %d extra times", len(f.host.places)-places)
	}
}

// TestComputedColumns verifies ceil(sqrt(n)) columns when unset.
func TestComputedColumns(t *testing.T) {
	tests := []struct {
		n, cols int
	}{
		{0, 1}, {1, 1}, {2, 2}, {4, 2}, {5, 3}, {9, 3}, {10, 4},
	}

	for _, tt := range tests {
		if got := columnsFor(0, tt.n); got != tt.cols {
			t.Errorf("columnsFor(0, %d)=%d, expected %d", tt.n, got, tt.cols)
		}
	}
	if got := columnsFor(2, 10); got != 2 {
		t.Errorf("fixed columns ignored: got %d", got)
	}

	f := newFixture(t, Config{})
	f.insert("a", "b", "c", "d", "e")
	last := f.g.Layout()[4]
	if last.Row != 1 || last.Column != 1 {
		t.Errorf("5th tile at (%d,%d), expected (1,1) with 3 columns", last.Row, last.Column)
	}
}

// TestSetStrategyAndColumns verifies reconfiguration re-lays the grid.
func TestSetStrategyAndColumns(t *testing.T) {
	f := newFixture(t, Config{Pinned: []string{"c"}})
	f.insert("a", "b", "c")

	if err := f.g.SetStrategy(permute.Pinned); err != nil {
		t.Fatalf("SetStrategy() failed: %v", err)
	}
	if diff := cmp.Diff([]string{"c", "a", "b"}, f.g.IDs()); diff != "" {
		t.Errorf("pinned order (-want +got):\n%s", diff)
	}

	f.g.SetPinned([]string{"b"})
	if diff := cmp.Diff([]string{"b", "a", "c"}, f.g.IDs()); diff != "" {
		t.Errorf("re-pinned order (-want +got):\n%s", diff)
	}

	if err := f.g.SetColumns(1); err != nil {
		t.Fatalf("SetColumns() failed: %v", err)
	}
	for i, c := range f.g.Layout() {
		if c.Row != i || c.Column != 0 {
			t.Errorf("cell %d at (%d,%d), expected single column", i, c.Row, c.Column)
		}
	}

	if err := f.g.SetStrategy(permute.Kind(42)); !errors.Is(err, permute.ErrUnknownStrategy) {
		t.Errorf("SetStrategy(42) error=%v", err)
	}
	if err := f.g.SetColumns(-1); !errors.Is(err, ErrInvalidColumns) {
		t.Errorf("SetColumns(-1) error=%v", err)
	}
}

// TestSetPinnedLogsStrategyError verifies a strategy that cannot be rebuilt
// is reported and leaves the current order in place.
func TestSetPinnedLogsStrategyError(t *testing.T) {
	var logs bytes.Buffer
	f := newFixture(t, Config{
		Strategy: permute.Pinned,
		Pinned:   []string{"c"},
		Logger:   slog.New(slog.NewTextHandler(&logs, nil)),
	})
	f.insert("a", "b", "c")
	places := len(f.host.places)

	f.g.cfg.Strategy = permute.Kind(42)
	f.g.SetPinned([]string{"b"})

	if diff := cmp.Diff([]string{"c", "a", "b"}, f.g.IDs()); diff != "" {
		t.Errorf("order changed (-want +got):\n%s", diff)
	}
	if len(f.host.places) != places {
		t.Error("host notified although the strategy was not rebuilt")
	}
	if !strings.Contains(logs.String(), "gallery: pinned ids not applied") {
		t.Errorf("error not logged:\n%s", logs.String())
	}
}

// TestNewValidation verifies fail-fast construction.
func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"negative columns", Config{Columns: -1}, ErrInvalidColumns},
		{"unknown policy", Config{AttachPolicy: AttachPolicy(9)}, ErrUnknownAttachPolicy},
		{"unknown strategy", Config{Strategy: permute.Kind(9)}, permute.ErrUnknownStrategy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); !errors.Is(err, tt.want) {
				t.Errorf("New() error=%v, expected %v", err, tt.want)
			}
		})
	}
}

// TestInsertNil verifies nil views are ignored.
func TestInsertNil(t *testing.T) {
	f := newFixture(t, Config{})
	f.g.InsertView(nil)

	if f.g.Len() != 0 || len(f.host.places) != 0 {
		t.Error("nil insert changed the gallery")
	}
}

// TestParseAttachPolicy verifies configuration names.
func TestParseAttachPolicy(t *testing.T) {
	if p, err := ParseAttachPolicy("reject"); err != nil || p != Reject {
		t.Errorf("ParseAttachPolicy(reject)=(%v,%v)", p, err)
	}
	if p, err := ParseAttachPolicy(""); err != nil || p != ShowEmptyTile {
		t.Errorf("ParseAttachPolicy(\"\")=(%v,%v)", p, err)
	}
	if _, err := ParseAttachPolicy("hide"); !errors.Is(err, ErrUnknownAttachPolicy) {
		t.Errorf("ParseAttachPolicy(hide) error=%v", err)
	}
}
