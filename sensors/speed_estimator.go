package sensors

import (
	"fmt"

	"github.com/samber/lo"
)

// SpeedConfig bounds the forward speed, in grid units per tick.
type SpeedConfig struct {
	Base  float64 `json:"base"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Delta float64 `json:"delta"`
}

// DefaultSpeedConfig returns the cruising profile used by the bundled scenarios.
func DefaultSpeedConfig() SpeedConfig {
	return SpeedConfig{Base: 2, Min: 1, Max: 6, Delta: 0.5}
}

// Validate checks 0 < Min <= Base <= Max and Delta > 0.
func (c SpeedConfig) Validate() error {
	if c.Min <= 0 {
		return fmt.Errorf("invalid min speed: %f", c.Min)
	}
	if c.Max < c.Min {
		return fmt.Errorf("max speed %f below min speed %f", c.Max, c.Min)
	}
	if c.Base < c.Min || c.Base > c.Max {
		return fmt.Errorf("base speed %f outside [%f, %f]", c.Base, c.Min, c.Max)
	}
	if c.Delta <= 0 {
		return fmt.Errorf("invalid speed delta: %f", c.Delta)
	}
	return nil
}

// SpeedEstimator holds the current scalar forward speed.
type SpeedEstimator struct {
	cfg   SpeedConfig
	speed float64
}

// NewSpeedEstimator creates an estimator cruising at cfg.Base.
func NewSpeedEstimator(cfg SpeedConfig) (*SpeedEstimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SpeedEstimator{cfg: cfg, speed: cfg.Base}, nil
}

// Min returns the lowest speed the estimator can be stepped down to.
func (s *SpeedEstimator) Min() float64 { return s.cfg.Min }

// Speed returns the current speed.
func (s *SpeedEstimator) Speed() float64 { return s.speed }

// Accelerate raises the speed by one step, saturating at Max.
func (s *SpeedEstimator) Accelerate() {
	s.speed = lo.Clamp(s.speed+s.cfg.Delta, s.cfg.Min, s.cfg.Max)
}

// Decelerate lowers the speed by one step, saturating at Min.
func (s *SpeedEstimator) Decelerate() {
	s.speed = lo.Clamp(s.speed-s.cfg.Delta, s.cfg.Min, s.cfg.Max)
}

// Reset restores the cruising speed.
func (s *SpeedEstimator) Reset() {
	s.speed = s.cfg.Base
}
