// Package sensors implements the virtual sensors carried by the simulated drone:
// four range sensors that ray-cast against an occupancy grid, a heading sensor,
// a speed estimator and a battery (energy) sensor.
//
// None of the sensors read a clock. The host calls UpdateSensors once per
// sensing tick and the readings stay constant until the next call.
package sensors

import "math"

// OccupancyGrid is the read-only floor plan the range sensors query.
//
// Cells are addressed by integer column x and row y with (0, 0) in the top-left
// corner. Blocked is only required to answer for cells inside the bounds.
type OccupancyGrid interface {
	Width() int
	Height() int
	Blocked(x, y int) bool
}

// Point is a position in grid units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns the vector from q to p.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Scale multiplies both coordinates by k.
func (p Point) Scale(k float64) Point {
	return Point{X: p.X * k, Y: p.Y * k}
}

// Dist returns the euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Unit returns the unit vector pointing along heading (degrees, screen
// coordinates: 0 is +x, 90 is +y).
func Unit(headingDeg float64) Point {
	rad := headingDeg * math.Pi / 180
	return Point{X: math.Cos(rad), Y: math.Sin(rad)}
}

// inBounds reports whether the continuous coordinate falls inside the grid.
func inBounds(g OccupancyGrid, x, y float64) bool {
	return x >= 0 && y >= 0 && x < float64(g.Width()) && y < float64(g.Height())
}
