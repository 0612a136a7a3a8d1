package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPID(t *testing.T, cfg PIDConfig) *PIDController {
	t.Helper()
	pid, err := NewPIDController(cfg)
	require.NoError(t, err)
	return pid
}

func TestPIDProportionalOnly(t *testing.T) {
	t.Parallel()

	const limit = 5.0
	for _, e := range []float64{-12, -5, -0.3, 0, 2.5, 5, 40} {
		pid := newPID(t, PIDConfig{Kp: 1, OutputLimit: limit})
		want := ClampFloat(e, -limit, limit)
		for _, dt := range []float64{0, 0.01, 0.1, 1, 3} {
			assert.Equal(t, want, pid.Update(e, dt), "e=%v dt=%v", e, dt)
		}
	}
}

func TestPIDIntegralAccumulates(t *testing.T) {
	t.Parallel()

	pid := newPID(t, PIDConfig{Ki: 0.5, OutputLimit: 1000})

	prevIntegral := pid.GetIntegral()
	prevOut := 0.0
	for i := 0; i < 50; i++ {
		out := pid.Update(2, 0.1)
		require.Greater(t, pid.GetIntegral(), prevIntegral)
		require.Greater(t, out, prevOut)
		prevIntegral = pid.GetIntegral()
		prevOut = out
	}
	assert.InDelta(t, 10.0, pid.GetIntegral(), 1e-9)

	pid.Reset()
	assert.Equal(t, 0.0, pid.GetIntegral())
	assert.Equal(t, 0.0, pid.GetError())
	assert.Equal(t, PIDDiagnostics{}, pid.GetDiagnostics())
}

func TestPIDIntegralWindsUpWithoutLimit(t *testing.T) {
	t.Parallel()

	pid := newPID(t, PIDConfig{Ki: 1, OutputLimit: 1})
	for i := 0; i < 100; i++ {
		assert.Equal(t, 1.0, pid.Update(1, 1))
	}
	// output saturated long ago, integral keeps growing
	assert.Equal(t, 100.0, pid.GetIntegral())
}

func TestPIDBoundedIntegral(t *testing.T) {
	t.Parallel()

	pid := newPID(t, PIDConfig{Ki: 1, OutputLimit: 10, IntegralLimit: 3})
	for i := 0; i < 100; i++ {
		pid.Update(1, 1)
	}
	assert.Equal(t, 3.0, pid.GetIntegral())
}

func TestPIDDerivative(t *testing.T) {
	t.Parallel()

	t.Run("uses error difference over dt", func(t *testing.T) {
		t.Parallel()
		pid := newPID(t, PIDConfig{Kd: 1, OutputLimit: 100})
		pid.Update(0, 0.5)
		assert.Equal(t, 4.0, pid.Update(2, 0.5))
		assert.Equal(t, 4.0, pid.GetDiagnostics().D)
	})

	t.Run("zero dt disables derivative but still records error", func(t *testing.T) {
		t.Parallel()
		pid := newPID(t, PIDConfig{Kd: 1, OutputLimit: 100})
		assert.Equal(t, 0.0, pid.Update(7, 0))
		assert.Equal(t, 7.0, pid.GetError())
		assert.Equal(t, 0.0, pid.Update(7, 1))
	})
}

func TestPIDSetGainKeepsState(t *testing.T) {
	t.Parallel()

	pid := newPID(t, PIDConfig{Kp: 1, Ki: 1, OutputLimit: 100})
	pid.Update(1, 1)
	integral := pid.GetIntegral()

	pid.SetGain(GainKp, 0.5)
	pid.SetGain(GainKi, -1)
	pid.SetGain(GainKd, 0.25)

	cfg := pid.Config()
	assert.Equal(t, 1.5, cfg.Kp)
	assert.Equal(t, 0.0, cfg.Ki)
	assert.Equal(t, 0.25, cfg.Kd)
	assert.Equal(t, integral, pid.GetIntegral())
	assert.Equal(t, 1.0, pid.GetError())
}

func TestPIDConfigValidation(t *testing.T) {
	t.Parallel()

	_, err := NewPIDController(PIDConfig{Kp: 1})
	assert.Error(t, err)
	_, err = NewPIDController(PIDConfig{Kp: 1, OutputLimit: 1, IntegralLimit: -1})
	assert.Error(t, err)
}
