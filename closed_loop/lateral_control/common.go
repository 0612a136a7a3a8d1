package control

import (
	"math"

	"github.com/samber/lo"

	"drone-nav-core/sensors"
)

// ClampFloat clamps value between min and max
func ClampFloat(value, min, max float64) float64 {
	return lo.Clamp(value, min, max)
}

// BoolToFloat converts bool to float64 (for CAN encoding)
func BoolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

// HeadingTo returns the heading in [0, 360) that faces to when standing at from.
func HeadingTo(from, to sensors.Point) float64 {
	deg := math.Atan2(to.Y-from.Y, to.X-from.X) * 180 / math.Pi
	return sensors.NormalizeHeading(deg)
}
