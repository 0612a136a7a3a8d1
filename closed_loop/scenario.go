package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	control "drone-nav-core/closed_loop/lateral_control"
	"drone-nav-core/sensors"
)

// Scenario defines one navigation run: map, vehicle, sensor models and gains.
type Scenario struct {
	Meta       ScenarioMeta         `json:"meta"`
	Timing     ScenarioTiming       `json:"timing"`
	Vehicle    ScenarioVehicle      `json:"vehicle"`
	MapPath    string               `json:"map_path"`
	Range      sensors.RangeConfig  `json:"range"`
	Speed      sensors.SpeedConfig  `json:"speed"`
	Energy     sensors.EnergyConfig `json:"energy"`
	Navigation control.NavConfig    `json:"navigation"`
}

// ScenarioMeta contains scenario metadata
type ScenarioMeta struct {
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Description string `json:"description"`
}

// ScenarioTiming defines timing parameters
type ScenarioTiming struct {
	DtS           float64 `json:"dt_s"`
	DurationS     float64 `json:"duration_s"`
	RealTimeMode  bool    `json:"real_time_mode"`
	LogEveryTicks int     `json:"log_every_ticks"`
}

// ScenarioVehicle places the drone. Start falls back to the map's S marker,
// then to a random free cell.
type ScenarioVehicle struct {
	Radius     float64        `json:"radius"`
	Start      *sensors.Point `json:"start,omitempty"`
	HeadingDeg float64        `json:"heading_deg"`
}

// DefaultScenario returns the values every loaded scenario starts from.
func DefaultScenario() Scenario {
	d := sensors.DefaultDroneConfig()
	return Scenario{
		Meta: ScenarioMeta{Name: "default", Version: 1},
		Timing: ScenarioTiming{
			DtS:           0.1,
			DurationS:     60,
			LogEveryTicks: 50,
		},
		Vehicle:    ScenarioVehicle{Radius: 4, HeadingDeg: d.HeadingDeg},
		Range:      d.Range,
		Speed:      d.Speed,
		Energy:     d.Energy,
		Navigation: control.DefaultNavConfig(),
	}
}

// DroneConfig assembles the sensor suite configuration.
func (s Scenario) DroneConfig() sensors.DroneConfig {
	return sensors.DroneConfig{
		Range:      s.Range,
		Speed:      s.Speed,
		Energy:     s.Energy,
		HeadingDeg: s.Vehicle.HeadingDeg,
	}
}

// Ticks is the number of control ticks in the run.
func (s Scenario) Ticks() int {
	return int(s.Timing.DurationS/s.Timing.DtS + 0.5)
}

// Validate checks timing, vehicle and every nested configuration.
func (s Scenario) Validate() error {
	if s.Timing.DtS <= 0 {
		return fmt.Errorf("invalid dt_s: %f", s.Timing.DtS)
	}
	if s.Timing.DurationS <= 0 {
		return fmt.Errorf("invalid duration_s: %f", s.Timing.DurationS)
	}
	if s.Timing.LogEveryTicks < 0 {
		return fmt.Errorf("invalid log_every_ticks: %d", s.Timing.LogEveryTicks)
	}
	if s.Vehicle.Radius <= 0 {
		return fmt.Errorf("invalid vehicle radius: %f", s.Vehicle.Radius)
	}
	if s.MapPath == "" {
		return fmt.Errorf("map_path is required")
	}
	if err := s.Range.Validate(); err != nil {
		return fmt.Errorf("range: %w", err)
	}
	if err := s.Speed.Validate(); err != nil {
		return fmt.Errorf("speed: %w", err)
	}
	if err := s.Energy.Validate(); err != nil {
		return fmt.Errorf("energy: %w", err)
	}
	if err := s.Navigation.Validate(); err != nil {
		return fmt.Errorf("navigation: %w", err)
	}
	if s.Speed.Min <= s.Navigation.LoopRadius {
		return fmt.Errorf("speed min %f must exceed navigation loop_radius %f", s.Speed.Min, s.Navigation.LoopRadius)
	}
	return nil
}

// LoadScenario loads a scenario from JSON file. A relative map_path is
// resolved against the scenario's directory.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read file: %w", err)
	}

	scen, err := ParseScenario(data)
	if err != nil {
		return Scenario{}, err
	}
	if !filepath.IsAbs(scen.MapPath) {
		scen.MapPath = filepath.Join(filepath.Dir(path), scen.MapPath)
	}
	return scen, nil
}

// ParseScenario decodes data over DefaultScenario and validates the result.
func ParseScenario(data []byte) (Scenario, error) {
	scen := DefaultScenario()
	if err := json.Unmarshal(data, &scen); err != nil {
		return Scenario{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := scen.Validate(); err != nil {
		return Scenario{}, err
	}
	return scen, nil
}
