package sensors

import (
	"fmt"

	"github.com/samber/lo"
)

// DroneConfig groups the configuration of every onboard sensor.
type DroneConfig struct {
	Range      RangeConfig  `json:"range"`
	Speed      SpeedConfig  `json:"speed"`
	Energy     EnergyConfig `json:"energy"`
	HeadingDeg float64      `json:"heading_deg"`
}

// DefaultDroneConfig returns the default sensor configuration.
func DefaultDroneConfig() DroneConfig {
	return DroneConfig{
		Range:  DefaultRangeConfig(),
		Speed:  DefaultSpeedConfig(),
		Energy: DefaultEnergyConfig(),
	}
}

// Readings is a snapshot of every sensor after one sensing tick.
type Readings struct {
	Forward    float64
	Right      float64
	Backward   float64
	Left       float64
	HeadingDeg float64
	Speed      float64
	BatteryPct float64
}

// Range returns the reading for direction d.
func (r Readings) Range(d Direction) float64 {
	switch d {
	case Right:
		return r.Right
	case Backward:
		return r.Backward
	case Left:
		return r.Left
	default:
		return r.Forward
	}
}

// Drone is the sensor suite of one vehicle. It is owned by exactly one
// navigation core and must not be shared between vehicles.
type Drone struct {
	ranges  [4]*RangeSensor
	Heading *HeadingSensor
	Speed   *SpeedEstimator
	Energy  *EnergySensor
}

// NewDrone builds the four range sensors and the scalar sensors.
func NewDrone(cfg DroneConfig) (*Drone, error) {
	d := &Drone{Heading: NewHeadingSensor(cfg.HeadingDeg)}
	for _, dir := range Directions {
		rs, err := NewRangeSensor(dir, cfg.Range)
		if err != nil {
			return nil, err
		}
		d.ranges[dir] = rs
	}
	speed, err := NewSpeedEstimator(cfg.Speed)
	if err != nil {
		return nil, fmt.Errorf("speed estimator: %w", err)
	}
	energy, err := NewEnergySensor(cfg.Energy)
	if err != nil {
		return nil, err
	}
	d.Speed = speed
	d.Energy = energy
	return d, nil
}

// Range returns the sensor mounted in direction dir.
func (d *Drone) Range(dir Direction) *RangeSensor {
	return d.ranges[dir]
}

// UpdateSensors recomputes the four ranges at the current heading and
// consumes one tick of battery.
func (d *Drone) UpdateSensors(grid OccupancyGrid, pos Point, radius float64) {
	heading := d.Heading.Degrees()
	for _, rs := range d.ranges {
		rs.Update(grid, pos, radius, heading)
	}
	d.Energy.Tick()
}

// Readings returns the current sensor snapshot.
func (d *Drone) Readings() Readings {
	dist := lo.Map(d.ranges[:], func(rs *RangeSensor, _ int) float64 { return rs.Distance() })
	return Readings{
		Forward:    dist[Forward],
		Right:      dist[Right],
		Backward:   dist[Backward],
		Left:       dist[Left],
		HeadingDeg: d.Heading.Degrees(),
		Speed:      d.Speed.Speed(),
		BatteryPct: d.Energy.Percentage(),
	}
}

// Reset restores battery and speed for a new episode. Heading is left to the host.
func (d *Drone) Reset() {
	d.Energy.Reset()
	d.Speed.Reset()
}
