package control

import "fmt"

// Gain selects one of the three PID gains.
type Gain int

const (
	GainKp Gain = iota
	GainKi
	GainKd
)

func (g Gain) String() string {
	switch g {
	case GainKp:
		return "Kp"
	case GainKi:
		return "Ki"
	case GainKd:
		return "Kd"
	default:
		return fmt.Sprintf("Gain(%d)", int(g))
	}
}

// PIDController implements a discrete PID controller on an externally
// computed error signal. One instance per control loop; never shared.
type PIDController struct {
	cfg PIDConfig

	// State
	integral  float64
	prevError float64
	last      PIDDiagnostics
}

// NewPIDController creates a new PID controller with given configuration
func NewPIDController(cfg PIDConfig) (*PIDController, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PIDController{cfg: cfg}, nil
}

// Reset clears the PID state
func (pid *PIDController) Reset() {
	pid.integral = 0.0
	pid.prevError = 0.0
	pid.last = PIDDiagnostics{}
}

// Update computes the correction for error over time step dt.
//
// The integral is unbounded unless IntegralLimit is set; only the final
// output is clamped to OutputLimit.
func (pid *PIDController) Update(error float64, dt float64) float64 {
	// Proportional term
	p := pid.cfg.Kp * error

	// Integral term
	pid.integral += error * dt
	if lim := pid.cfg.IntegralLimit; lim > 0 {
		pid.integral = ClampFloat(pid.integral, -lim, lim)
	}
	i := pid.cfg.Ki * pid.integral

	// Derivative term, zero when dt carries no time
	var d float64
	if dt > 0 {
		d = pid.cfg.Kd * (error - pid.prevError) / dt
	}
	pid.prevError = error

	out := ClampFloat(p+i+d, -pid.cfg.OutputLimit, pid.cfg.OutputLimit)

	pid.last = PIDDiagnostics{
		Error:    error,
		Integral: pid.integral,
		P:        p,
		I:        i,
		D:        d,
		Output:   out,
	}
	return out
}

// SetGain adjusts one gain by a signed delta. State is kept.
func (pid *PIDController) SetGain(which Gain, delta float64) {
	switch which {
	case GainKp:
		pid.cfg.Kp += delta
	case GainKi:
		pid.cfg.Ki += delta
	case GainKd:
		pid.cfg.Kd += delta
	}
}

// Config returns the current configuration including live-tuned gains.
func (pid *PIDController) Config() PIDConfig {
	return pid.cfg
}

// GetDiagnostics returns the terms of the most recent update for logging/debugging
func (pid *PIDController) GetDiagnostics() PIDDiagnostics {
	return pid.last
}

// PIDDiagnostics contains PID internal state for monitoring
type PIDDiagnostics struct {
	Error    float64
	Integral float64
	P        float64
	I        float64
	D        float64
	Output   float64
}

// GetError returns the most recent error
func (pid *PIDController) GetError() float64 {
	return pid.prevError
}

// GetIntegral returns the current integral term value
func (pid *PIDController) GetIntegral() float64 {
	return pid.integral
}
