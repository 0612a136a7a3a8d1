package control

import (
	"math"

	"drone-nav-core/sensors"
)

type bucketKey struct{ x, y int64 }

// Trail is the ordered history of accepted positions.
//
// Points are also indexed in square buckets whose side equals the query
// radius, so a proximity query only inspects the 3x3 buckets around the
// probe. Pop removes the tail, which is always the last entry of its bucket.
type Trail struct {
	points  []sensors.Point
	cell    float64
	buckets map[bucketKey][]int
}

// NewTrail creates an empty trail indexed for queries of the given radius.
func NewTrail(radius float64) *Trail {
	return &Trail{cell: radius, buckets: map[bucketKey][]int{}}
}

func (t *Trail) key(p sensors.Point) bucketKey {
	return bucketKey{x: int64(math.Floor(p.X / t.cell)), y: int64(math.Floor(p.Y / t.cell))}
}

// Len returns the number of recorded points.
func (t *Trail) Len() int { return len(t.points) }

// Points returns a copy of the trail, oldest first.
func (t *Trail) Points() []sensors.Point {
	out := make([]sensors.Point, len(t.points))
	copy(out, t.points)
	return out
}

// At returns the i-th point; negative indices count from the tail.
func (t *Trail) At(i int) sensors.Point {
	if i < 0 {
		i += len(t.points)
	}
	return t.points[i]
}

// Append records an accepted position.
func (t *Trail) Append(p sensors.Point) {
	k := t.key(p)
	t.buckets[k] = append(t.buckets[k], len(t.points))
	t.points = append(t.points, p)
}

// Pop removes and returns the tail. ok is false on an empty trail.
func (t *Trail) Pop() (p sensors.Point, ok bool) {
	n := len(t.points)
	if n == 0 {
		return sensors.Point{}, false
	}
	p = t.points[n-1]
	k := t.key(p)
	idx := t.buckets[k]
	if len(idx) <= 1 {
		delete(t.buckets, k)
	} else {
		t.buckets[k] = idx[:len(idx)-1]
	}
	t.points = t.points[:n-1]
	return p, true
}

// Reset clears the trail and seeds it with start.
func (t *Trail) Reset(start sensors.Point) {
	t.points = t.points[:0]
	t.buckets = map[bucketKey][]int{}
	t.Append(start)
}

// Near reports whether any recorded point lies within the index radius of p.
func (t *Trail) Near(p sensors.Point) bool {
	k := t.key(p)
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, i := range t.buckets[bucketKey{x: k.x + dx, y: k.y + dy}] {
				if t.points[i].Dist(p) <= t.cell {
					return true
				}
			}
		}
	}
	return false
}
