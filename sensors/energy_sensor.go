package sensors

import (
	"fmt"
	"math"
)

// EnergyConfig describes the battery as a fixed number of sensing ticks.
type EnergyConfig struct {
	TickHz      float64 `json:"tick_hz"`
	LifeSeconds float64 `json:"life_seconds"`
}

// DefaultEnergyConfig is an 8 minute battery sampled at 10 Hz.
func DefaultEnergyConfig() EnergyConfig {
	return EnergyConfig{TickHz: 10, LifeSeconds: 480}
}

// TotalTicks returns the battery life expressed in ticks.
func (c EnergyConfig) TotalTicks() int {
	return int(math.Round(c.TickHz * c.LifeSeconds))
}

// Validate rejects non-positive rates and lifetimes.
func (c EnergyConfig) Validate() error {
	if c.TickHz <= 0 {
		return fmt.Errorf("invalid tick_hz: %f", c.TickHz)
	}
	if c.LifeSeconds <= 0 {
		return fmt.Errorf("invalid life_seconds: %f", c.LifeSeconds)
	}
	if c.TotalTicks() <= 0 {
		return fmt.Errorf("battery life rounds to zero ticks (tick_hz=%f life_seconds=%f)", c.TickHz, c.LifeSeconds)
	}
	return nil
}

// EnergySensor models the battery percentage draining one tick at a time.
//
// The percentage never increases except through Reset.
type EnergySensor struct {
	total     int
	remaining int
	pct       float64
}

// NewEnergySensor creates a fully charged battery.
func NewEnergySensor(cfg EnergyConfig) (*EnergySensor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("energy sensor: %w", err)
	}
	e := &EnergySensor{total: cfg.TotalTicks()}
	e.Reset()
	return e, nil
}

// Tick consumes one tick of battery life.
func (e *EnergySensor) Tick() {
	if e.remaining > 0 {
		e.remaining--
	}
	e.recompute()
}

// DrainTo lowers the charge to at most pct percent. It never charges.
func (e *EnergySensor) DrainTo(pct float64) {
	target := int(math.Floor(pct / 100 * float64(e.total)))
	if target < 0 {
		target = 0
	}
	if target < e.remaining {
		e.remaining = target
		e.recompute()
	}
}

// Reset restores a full battery.
func (e *EnergySensor) Reset() {
	e.remaining = e.total
	e.recompute()
}

// Percentage returns the remaining charge in [0, 100].
func (e *EnergySensor) Percentage() float64 { return e.pct }

// RemainingTicks returns how many ticks of life are left.
func (e *EnergySensor) RemainingTicks() int { return e.remaining }

// TotalTicks returns the full battery life in ticks.
func (e *EnergySensor) TotalTicks() int { return e.total }

func (e *EnergySensor) recompute() {
	e.pct = float64(e.remaining) / float64(e.total) * 100
}
