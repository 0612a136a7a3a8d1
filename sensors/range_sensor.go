package sensors

import (
	"fmt"
	"math"
)

// Direction is the mounting direction of a range sensor relative to the nose.
type Direction int

const (
	Forward Direction = iota
	Right
	Backward
	Left
)

// Directions lists the four mounting directions in sensor-suite order.
var Directions = [...]Direction{Forward, Right, Backward, Left}

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Right:
		return "right"
	case Backward:
		return "backward"
	case Left:
		return "left"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Offset returns the angle added to the heading to obtain the ray angle.
func (d Direction) Offset() float64 {
	switch d {
	case Right:
		return 90
	case Backward:
		return 180
	case Left:
		return 270
	default:
		return 0
	}
}

// Opposite returns the sensor facing the other way.
func (d Direction) Opposite() Direction {
	return Direction((int(d) + 2) % 4)
}

// RangeConfig holds ray-casting parameters, all in grid units.
type RangeConfig struct {
	MaxRange float64 `json:"max_range"`
	Step     float64 `json:"step"`
}

// DefaultRangeConfig matches a 300 cm sensor on a 2.5 cm-per-cell floor plan.
func DefaultRangeConfig() RangeConfig {
	return RangeConfig{MaxRange: 120, Step: 1}
}

// Validate rejects configurations that would make the ray never terminate
// or never leave the vehicle.
func (c RangeConfig) Validate() error {
	if c.MaxRange <= 0 {
		return fmt.Errorf("invalid max_range: %f", c.MaxRange)
	}
	if c.Step <= 0 {
		return fmt.Errorf("invalid step: %f", c.Step)
	}
	return nil
}

// RangeSensor measures the free distance from the vehicle edge to the first
// obstacle along one direction.
type RangeSensor struct {
	dir      Direction
	cfg      RangeConfig
	distance float64
}

// NewRangeSensor creates a sensor mounted in direction dir.
func NewRangeSensor(dir Direction, cfg RangeConfig) (*RangeSensor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s range sensor: %w", dir, err)
	}
	return &RangeSensor{dir: dir, cfg: cfg, distance: cfg.MaxRange}, nil
}

// Direction returns the mounting direction.
func (s *RangeSensor) Direction() Direction { return s.dir }

// MaxRange returns the configured cap.
func (s *RangeSensor) MaxRange() float64 { return s.cfg.MaxRange }

// Distance returns the reading from the most recent Update.
func (s *RangeSensor) Distance() float64 { return s.distance }

// Update casts a ray from the vehicle edge and stores the result.
//
// Samples are taken every Step along the ray starting one Step beyond the
// edge. The reading is the stepped distance of the first sample that is
// blocked or outside the grid, capped at MaxRange.
func (s *RangeSensor) Update(grid OccupancyGrid, pos Point, radius, heading float64) float64 {
	s.distance = castRay(grid, pos, radius, NormalizeHeading(heading+s.dir.Offset()), s.cfg)
	return s.distance
}

func castRay(grid OccupancyGrid, pos Point, radius, angle float64, cfg RangeConfig) float64 {
	u := Unit(angle)
	// integer step count avoids accumulating float error over long rays
	for k := 1; ; k++ {
		d := float64(k) * cfg.Step
		if d >= cfg.MaxRange {
			return cfg.MaxRange
		}
		x := pos.X + u.X*(radius+d)
		y := pos.Y + u.Y*(radius+d)
		if !inBounds(grid, x, y) {
			return d
		}
		if grid.Blocked(int(math.Floor(x)), int(math.Floor(y))) {
			return d
		}
	}
}
