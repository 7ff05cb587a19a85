package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/e7canasta/orion-gallery/internal/gallery"
	"github.com/e7canasta/orion-gallery/internal/media"
)

const (
	previewCols = 20
	previewRows = 5
	tileWidth   = previewCols + 2
)

// styles
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	statusStyle = lipgloss.NewStyle().Faint(true)
	idStyle     = lipgloss.NewStyle().Bold(true)
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

var tileStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Width(tileWidth)

var failedTileStyle = tileStyle.BorderForeground(lipgloss.Color("9"))

// luminance ramp, dark to light
const ramp = " .:-=+*#%@"

func (m *Model) View() string {
	var b strings.Builder

	header := fmt.Sprintf("%s  strategy=%s  columns=%s  tiles=%d",
		m.opts.Title,
		m.gallery.Strategy(),
		columnsLabel(m.opts.Gallery.Columns),
		len(m.cells),
	)
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n")

	if len(m.cells) == 0 {
		b.WriteString("no feeds\n")
	} else {
		b.WriteString(renderGrid(m.cells))
		b.WriteString("\n")
	}

	b.WriteString("[p] Strategy  [c] Columns  [x] Remove last  [r] Restore  [q] Quit")
	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(m.status))
	}
	return b.String()
}

// renderGrid joins tiles row by row using each cell's Row/Column.
func renderGrid(cells []gallery.Cell) string {
	var rows [][]string
	for _, c := range cells {
		for len(rows) <= c.Row {
			rows = append(rows, nil)
		}
		rows[c.Row] = append(rows[c.Row], renderTile(c))
	}

	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = lipgloss.JoinHorizontal(lipgloss.Top, r...)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderTile(c gallery.Cell) string {
	if !c.Attached || c.Surface == nil {
		body := idStyle.Render(c.ID) + "\n" + failedStyle.Render("attach failed")
		return failedTileStyle.Render(body)
	}

	stats := c.Surface.Stats()
	frame, ok := c.Surface.Latest()

	var b strings.Builder
	b.WriteString(idStyle.Render(c.ID))
	b.WriteString("\n")

	if !ok {
		b.WriteString("waiting for frames")
		return tileStyle.Render(b.String())
	}

	fmt.Fprintf(&b, "%dx%d seq=%d\n", frame.Width, frame.Height, frame.Seq)
	fmt.Fprintf(&b, "%.1f fps  %s\n", stats.FPS, age(stats.LastFrameAt))
	b.WriteString(preview(frame, previewCols, previewRows))

	return tileStyle.Render(b.String())
}

func age(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return time.Since(t).Truncate(100 * time.Millisecond).String()
}

// preview downsamples an RGB24 frame to cols x rows luminance characters.
func preview(f media.Frame, cols, rows int) string {
	if f.Width <= 0 || f.Height <= 0 || len(f.Data) < f.Width*f.Height*3 {
		return strings.Repeat(strings.Repeat("?", cols)+"\n", rows-1) + strings.Repeat("?", cols)
	}

	var b strings.Builder
	for r := 0; r < rows; r++ {
		y := (r*f.Height + f.Height/2) / rows
		for c := 0; c < cols; c++ {
			x := (c*f.Width + f.Width/2) / cols
			i := (y*f.Width + x) * 3
			// Rec. 601 luma
			lum := (299*int(f.Data[i]) + 587*int(f.Data[i+1]) + 114*int(f.Data[i+2])) / 1000
			b.WriteByte(ramp[lum*(len(ramp)-1)/255])
		}
		if r < rows-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
