package control

import (
	"fmt"
	"math"

	"drone-nav-core/sensors"
)

// Correction is the breakdown of the last wall-following heading correction.
// Active is false when the tick did not run the wall-following loops.
type Correction struct {
	Active    bool
	Lateral   float64
	Front     float64
	Narrow    float64
	Total     float64
	Saturated bool
}

// NavigationCore fuses the drone's sensors and three PID loops into one
// heading decision per tick.
//
// Tick protocol: the host refreshes the sensors, calls
// UpdatePositionByAlgorithm for a candidate, checks the candidate and, when
// it is accepted, commits it with UpdatePosition. The core never reads a
// clock; the recovery cooldown counts down the dt it is given.
type NavigationCore struct {
	cfg   NavConfig
	drone *sensors.Drone

	lateral *PIDController
	front   *PIDController
	narrow  *PIDController

	mode Mode
	side Side
	// recoveryFrom is the hugging side when the current recovery started.
	recoveryFrom Side
	// returnSide is the hugging side to resume after a completed return.
	returnSide Side
	homed      bool

	cooldown float64
	trail    *Trail
	started  bool
	last     Correction
}

// NewNavigationCore creates a core in WallFollow on cfg.StartSide.
// The trail is seeded by SetStartingPosition, Reset or the first tick.
func NewNavigationCore(cfg NavConfig, drone *sensors.Drone) (*NavigationCore, error) {
	if drone == nil {
		return nil, fmt.Errorf("navigation core: nil drone")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("navigation core: %w", err)
	}
	// a step no longer than the loop radius would land next to the last trail point
	if vmin := drone.Speed.Min(); vmin <= cfg.LoopRadius {
		return nil, fmt.Errorf("navigation core: min speed %f must exceed loop_radius %f", vmin, cfg.LoopRadius)
	}
	lateral, err := NewPIDController(cfg.Lateral)
	if err != nil {
		return nil, fmt.Errorf("lateral pid: %w", err)
	}
	front, err := NewPIDController(cfg.Front)
	if err != nil {
		return nil, fmt.Errorf("front pid: %w", err)
	}
	narrow, err := NewPIDController(cfg.Narrow)
	if err != nil {
		return nil, fmt.Errorf("narrow pid: %w", err)
	}
	return &NavigationCore{
		cfg:     cfg,
		drone:   drone,
		lateral: lateral,
		front:   front,
		narrow:  narrow,
		mode:    ModeWallFollow,
		side:    cfg.StartSide,
		trail:   NewTrail(cfg.LoopRadius),
	}, nil
}

// SetStartingPosition seeds the trail with the start of the run.
func (c *NavigationCore) SetStartingPosition(p sensors.Point) {
	c.trail.Reset(p)
	c.started = true
}

// Reset starts a new episode at start: trail, battery, speed, controllers
// and mode all return to their initial state.
func (c *NavigationCore) Reset(start sensors.Point) {
	c.drone.Reset()
	c.lateral.Reset()
	c.front.Reset()
	c.narrow.Reset()
	c.mode = ModeWallFollow
	c.side = c.cfg.StartSide
	c.recoveryFrom = c.side
	c.returnSide = c.side
	c.homed = false
	c.cooldown = 0
	c.last = Correction{}
	c.SetStartingPosition(start)
}

// UpdatePositionByAlgorithm runs one control tick and returns the candidate
// next position. Heading is updated on the drone's heading sensor.
func (c *NavigationCore) UpdatePositionByAlgorithm(pos sensors.Point, dt float64) sensors.Point {
	if !c.started {
		c.SetStartingPosition(pos)
	}
	if dt > 0 {
		c.cooldown = math.Max(0, c.cooldown-dt)
	}
	c.last = Correction{}

	c.checkBattery()

	switch c.mode {
	case ModeReturning:
		return c.stepReturning(pos)
	case ModeDocked:
		return pos
	case ModeRecovery:
		return c.stepRecovery(pos, dt)
	default:
		return c.stepWallFollow(pos, dt)
	}
}

// UpdatePosition commits a position the host accepted. While returning the
// trail tail is consumed instead of extended.
func (c *NavigationCore) UpdatePosition(accepted sensors.Point) {
	if c.mode == ModeReturning {
		if c.trail.Len() > 1 {
			c.trail.Pop()
		}
		return
	}
	if c.trail.Len() > 0 && c.trail.At(-1) == accepted {
		return
	}
	c.trail.Append(accepted)
}

// SwitchWall flips the hugging side by hand. During a return it changes the
// side that will be resumed afterwards.
func (c *NavigationCore) SwitchWall() {
	switch c.mode {
	case ModeReturning, ModeDocked:
		c.returnSide = c.returnSide.Opposite()
	default:
		c.setSide(c.side.Opposite())
		c.mode = ModeWallFollow
	}
}

// AdjustGain nudges one gain of one loop for live tuning.
func (c *NavigationCore) AdjustGain(loop Loop, gain Gain, delta float64) error {
	pid := c.PID(loop)
	if pid == nil {
		return fmt.Errorf("unknown control loop %v", loop)
	}
	pid.SetGain(gain, delta)
	return nil
}

// PID returns the controller of one loop, or nil for an unknown loop.
func (c *NavigationCore) PID(loop Loop) *PIDController {
	switch loop {
	case LoopLateral:
		return c.lateral
	case LoopFront:
		return c.front
	case LoopNarrow:
		return c.narrow
	default:
		return nil
	}
}

// Mode returns the active navigation mode.
func (c *NavigationCore) Mode() Mode { return c.mode }

// Side returns the hugging side.
func (c *NavigationCore) Side() Side { return c.side }

// RecoveryFrom returns the side that was hugged when the last recovery began.
func (c *NavigationCore) RecoveryFrom() Side { return c.recoveryFrom }

// Cooldown returns the seconds left before loop detection is re-armed.
func (c *NavigationCore) Cooldown() float64 { return c.cooldown }

// TrailLen returns the number of trail points.
func (c *NavigationCore) TrailLen() int { return c.trail.Len() }

// TrailPoints returns a copy of the trail, oldest first.
func (c *NavigationCore) TrailPoints() []sensors.Point { return c.trail.Points() }

// LastCorrection returns the correction computed by the last tick.
func (c *NavigationCore) LastCorrection() Correction { return c.last }

// Drone returns the sensor suite driven by this core.
func (c *NavigationCore) Drone() *sensors.Drone { return c.drone }

func (c *NavigationCore) checkBattery() {
	if c.mode == ModeReturning || c.mode == ModeDocked || c.homed {
		return
	}
	if c.drone.Energy.Percentage() > c.cfg.ReturnBatteryPct {
		return
	}
	c.returnSide = c.side
	c.mode = ModeReturning
}

func (c *NavigationCore) stepReturning(pos sensors.Point) sensors.Point {
	if c.trail.Len() <= 1 {
		c.homed = true
		c.setSide(c.returnSide)
		if c.cfg.HoldAtHome {
			c.mode = ModeDocked
		} else {
			c.mode = ModeWallFollow
		}
		return pos
	}
	from := c.trail.At(-1)
	target := c.trail.At(-2)
	c.drone.Heading.Set(HeadingTo(from, target))
	return target
}

func (c *NavigationCore) stepRecovery(pos sensors.Point, dt float64) sensors.Point {
	r := c.drone.Readings()
	newSide := c.recoveryFrom.Opposite()
	if r.Forward > c.cfg.OpenSpaceDistance && r.Range(newSide.Sensor()) > c.cfg.OpenSpaceDistance {
		return c.advance(pos)
	}
	c.setSide(newSide)
	c.mode = ModeWallFollow
	return c.stepWallFollow(pos, dt)
}

func (c *NavigationCore) stepWallFollow(pos sensors.Point, dt float64) sensors.Point {
	r := c.drone.Readings()

	var lateralErr float64
	if c.side == SideRight {
		lateralErr = r.Right - c.cfg.DesiredWallDistance
	} else {
		lateralErr = -(r.Left - c.cfg.DesiredWallDistance)
	}
	cl := c.lateral.Update(lateralErr, dt)

	frontErr := math.Max(0, c.cfg.FrontDangerDistance-r.Forward)
	cf := c.front.Update(frontErr, dt) * c.side.TurnSign()

	var narrowErr float64
	hugDir := c.side.Sensor()
	hug := r.Range(hugDir)
	opp := r.Range(hugDir.Opposite())
	if hug < opp && opp < c.cfg.NarrowPassageDistance {
		narrowErr = r.Right - r.Left
	}
	cn := c.narrow.Update(narrowErr, dt)

	sum := cl + cf + cn
	total := ClampFloat(sum, -c.cfg.MaxCorrectionDeg, c.cfg.MaxCorrectionDeg)
	c.last = Correction{Active: true, Lateral: cl, Front: cf, Narrow: cn, Total: total, Saturated: total != sum}

	c.drone.Heading.Rotate(total)
	candidate := c.advance(pos)

	if c.cooldown <= 0 && c.trail.Near(candidate) {
		c.enterRecovery()
		candidate = c.advance(pos)
	}
	return candidate
}

func (c *NavigationCore) enterRecovery() {
	c.recoveryFrom = c.side
	c.mode = ModeRecovery
	c.cooldown = c.cfg.RecoveryCooldownS
	c.drone.Heading.Rotate(c.cfg.RecoveryTurnDeg * c.side.TurnSign())
}

// advance moves one speed-length along the current heading.
func (c *NavigationCore) advance(pos sensors.Point) sensors.Point {
	step := sensors.Unit(c.drone.Heading.Degrees()).Scale(c.drone.Speed.Speed())
	return pos.Add(step)
}

// setSide switches the hugging side. The loops restart from a clean state
// because their error signals change meaning with the side.
func (c *NavigationCore) setSide(s Side) {
	if s == c.side {
		return
	}
	c.side = s
	c.lateral.Reset()
	c.front.Reset()
	c.narrow.Reset()
}
