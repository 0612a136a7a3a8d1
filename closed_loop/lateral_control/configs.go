package control

import "fmt"

// PIDConfig holds PID controller parameters
type PIDConfig struct {
	Kp          float64 `json:"kp"`
	Ki          float64 `json:"ki"`
	Kd          float64 `json:"kd"`
	OutputLimit float64 `json:"output_limit"`
	// IntegralLimit bounds the accumulated integral when positive.
	// Zero leaves it unbounded.
	IntegralLimit float64 `json:"integral_limit"`
}

// Validate rejects negative limits.
func (c PIDConfig) Validate() error {
	if c.OutputLimit <= 0 {
		return fmt.Errorf("invalid output_limit: %f", c.OutputLimit)
	}
	if c.IntegralLimit < 0 {
		return fmt.Errorf("invalid integral_limit: %f", c.IntegralLimit)
	}
	return nil
}

// NavConfig holds the wall-following, recovery and return-to-home parameters.
// Distances are in grid units, angles in degrees, times in seconds.
type NavConfig struct {
	Lateral PIDConfig `json:"lateral_pid"`
	Front   PIDConfig `json:"front_pid"`
	Narrow  PIDConfig `json:"narrow_pid"`

	DesiredWallDistance float64 `json:"desired_wall_distance"`
	FrontDangerDistance float64 `json:"front_danger_distance"`
	// NarrowPassageDistance is the opposite-side reading below which the
	// corridor counts as narrow.
	NarrowPassageDistance float64 `json:"narrow_passage_distance"`
	MaxCorrectionDeg      float64 `json:"max_correction_deg"`

	OpenSpaceDistance float64 `json:"open_space_distance"`
	RecoveryTurnDeg   float64 `json:"recovery_turn_deg"`
	LoopRadius        float64 `json:"loop_radius"`
	RecoveryCooldownS float64 `json:"recovery_cooldown_s"`

	ReturnBatteryPct float64 `json:"return_battery_pct"`
	// HoldAtHome parks the vehicle once the trail is exhausted instead of
	// resuming wall-following.
	HoldAtHome bool `json:"hold_at_home"`

	StartSide Side `json:"start_side"`
}

// DefaultNavConfig returns the tuned defaults for a 2.5 cm-per-cell map.
func DefaultNavConfig() NavConfig {
	return NavConfig{
		Lateral: PIDConfig{Kp: 0.4, Ki: 0.01, Kd: 0.2, OutputLimit: 10},
		Front:   PIDConfig{Kp: 0.3, Ki: 0, Kd: 0.05, OutputLimit: 10},
		Narrow:  PIDConfig{Kp: 0.1, Ki: 0, Kd: 0.02, OutputLimit: 5},

		DesiredWallDistance:   20,
		FrontDangerDistance:   65,
		NarrowPassageDistance: 60,
		MaxCorrectionDeg:      10,

		OpenSpaceDistance: 40,
		RecoveryTurnDeg:   10,
		LoopRadius:        0.5,
		RecoveryCooldownS: 3,

		ReturnBatteryPct: 50,
		StartSide:        SideRight,
	}
}

// Validate checks every controller and threshold.
func (c NavConfig) Validate() error {
	for name, pid := range map[string]PIDConfig{"lateral": c.Lateral, "front": c.Front, "narrow": c.Narrow} {
		if err := pid.Validate(); err != nil {
			return fmt.Errorf("%s pid: %w", name, err)
		}
	}
	if c.DesiredWallDistance <= 0 {
		return fmt.Errorf("invalid desired_wall_distance: %f", c.DesiredWallDistance)
	}
	if c.FrontDangerDistance <= 0 {
		return fmt.Errorf("invalid front_danger_distance: %f", c.FrontDangerDistance)
	}
	if c.NarrowPassageDistance <= 0 {
		return fmt.Errorf("invalid narrow_passage_distance: %f", c.NarrowPassageDistance)
	}
	if c.OpenSpaceDistance <= 0 {
		return fmt.Errorf("invalid open_space_distance: %f", c.OpenSpaceDistance)
	}
	if c.RecoveryTurnDeg <= 0 {
		return fmt.Errorf("invalid recovery_turn_deg: %f", c.RecoveryTurnDeg)
	}
	if c.MaxCorrectionDeg <= 0 {
		return fmt.Errorf("invalid max_correction_deg: %f", c.MaxCorrectionDeg)
	}
	if c.LoopRadius <= 0 {
		return fmt.Errorf("invalid loop_radius: %f", c.LoopRadius)
	}
	if c.RecoveryCooldownS < 0 {
		return fmt.Errorf("invalid recovery_cooldown_s: %f", c.RecoveryCooldownS)
	}
	if c.ReturnBatteryPct < 0 || c.ReturnBatteryPct > 100 {
		return fmt.Errorf("invalid return_battery_pct: %f", c.ReturnBatteryPct)
	}
	if c.StartSide != SideLeft && c.StartSide != SideRight {
		return fmt.Errorf("invalid start_side: %v", c.StartSide)
	}
	return nil
}
