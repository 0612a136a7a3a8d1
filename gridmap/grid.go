// Package gridmap rasterises floor plans into occupancy grids.
//
// Two sources are supported: PNG images, where dark pixels (luminance below
// 128) are walls, and ASCII plans, where '#' is a wall and 'S' marks an
// optional start cell.
package gridmap

import (
	"fmt"

	"drone-nav-core/sensors"
)

// Grid is a dense boolean occupancy grid.
type Grid struct {
	w, h  int
	cells []bool
	start *sensors.Point
}

var _ sensors.OccupancyGrid = (*Grid)(nil)

// New returns an all-free grid.
func New(w, h int) (*Grid, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid grid size %dx%d", w, h)
	}
	return &Grid{w: w, h: h, cells: make([]bool, w*h)}, nil
}

// Width returns the number of columns.
func (g *Grid) Width() int { return g.w }

// Height returns the number of rows.
func (g *Grid) Height() int { return g.h }

// Blocked reports whether cell (x, y) is a wall. Cells outside the grid are free.
func (g *Grid) Blocked(x, y int) bool {
	if x < 0 || y < 0 || x >= g.w || y >= g.h {
		return false
	}
	return g.cells[y*g.w+x]
}

// Set marks cell (x, y); out-of-range cells are ignored.
func (g *Grid) Set(x, y int, blocked bool) {
	if x < 0 || y < 0 || x >= g.w || y >= g.h {
		return
	}
	g.cells[y*g.w+x] = blocked
}

// FillRect marks every cell of [x0, x1) x [y0, y1).
func (g *Grid) FillRect(x0, y0, x1, y1 int, blocked bool) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			g.Set(x, y, blocked)
		}
	}
}

// Start returns the start cell centre marked in the plan, if any.
func (g *Grid) Start() (sensors.Point, bool) {
	if g.start == nil {
		return sensors.Point{}, false
	}
	return *g.start, true
}

// SquareFree reports whether no wall lies in [cx-r, cx+r) x [cy-r, cy+r).
func (g *Grid) SquareFree(cx, cy, r float64) bool {
	for x := int(cx - r); x < int(cx+r); x++ {
		for y := int(cy - r); y < int(cy+r); y++ {
			if g.Blocked(x, y) {
				return false
			}
		}
	}
	return true
}
