package sensors

import "math"

// NormalizeHeading maps an angle in degrees into [0, 360).
// NaN and infinities map to 0.
func NormalizeHeading(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	a := math.Mod(deg, 360)
	if a < 0 {
		a += 360
	}
	// -1e-15 + 360 rounds to 360
	if a >= 360 {
		a = 0
	}
	return a
}

// HeadingSensor holds the vehicle heading in degrees.
type HeadingSensor struct {
	deg float64
}

// NewHeadingSensor returns a sensor reading the normalised initial heading.
func NewHeadingSensor(initial float64) *HeadingSensor {
	return &HeadingSensor{deg: NormalizeHeading(initial)}
}

// Set stores angle modulo 360.
func (h *HeadingSensor) Set(angle float64) {
	h.deg = NormalizeHeading(angle)
}

// Rotate adds delta degrees to the current heading.
func (h *HeadingSensor) Rotate(delta float64) {
	h.deg = NormalizeHeading(h.deg + delta)
}

// Degrees returns the heading in [0, 360).
func (h *HeadingSensor) Degrees() float64 { return h.deg }

// IMUDegrees returns the heading as an operator display shows it:
// counter-clockwise positive, so that turning left increases the value.
func (h *HeadingSensor) IMUDegrees() float64 {
	return NormalizeHeading(360 - h.deg)
}
