package gallery

import (
	"math"

	"github.com/e7canasta/orion-gallery/internal/view"
)

// columnsFor returns the column count for n tiles. A fixed count wins;
// otherwise the grid is kept as square as possible (ceil(sqrt(n))).
func columnsFor(fixed, n int) int {
	if fixed > 0 {
		return fixed
	}
	if n <= 1 {
		return 1
	}
	return int(math.Ceil(math.Sqrt(float64(n))))
}

// place maps views, already in display order, onto grid cells:
// row = i / cols, col = i % cols.
func place(views []view.Content, cols int) []Cell {
	cells := make([]Cell, len(views))
	for i, v := range views {
		cells[i] = Cell{
			Index:    i,
			Row:      i / cols,
			Column:   i % cols,
			ID:       v.ID(),
			Attached: v.State() == view.Attached,
			Surface:  v.View(),
		}
	}
	return cells
}

func sameCells(a, b []Cell) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
