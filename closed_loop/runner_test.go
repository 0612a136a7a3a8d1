package main

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.einride.tech/can"

	control "drone-nav-core/closed_loop/lateral_control"
	"drone-nav-core/gridmap"
	"drone-nav-core/sensors"
	"drone-nav-core/utils"
)

type fakeWriter struct {
	mu     sync.Mutex
	frames []can.Frame
	closed bool
}

func (w *fakeWriter) WriteFrame(_ context.Context, f can.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frames = append(w.frames, f)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) byID(id uint32) []can.Frame {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []can.Frame
	for _, f := range w.frames {
		if f.ID == id {
			out = append(out, f)
		}
	}
	return out
}

type fakeReader struct {
	frames chan can.Frame
}

func (r *fakeReader) ReadFrame(ctx context.Context) (can.Frame, error) {
	select {
	case <-ctx.Done():
		return can.Frame{}, ctx.Err()
	case f := <-r.frames:
		return f, nil
	}
}

func (r *fakeReader) Close() error { return nil }

func openGrid(t *testing.T, w, h int) *gridmap.Grid {
	t.Helper()
	g, err := gridmap.New(w, h)
	require.NoError(t, err)
	return g
}

func testScenario(start *sensors.Point) Scenario {
	scen := DefaultScenario()
	scen.MapPath = "inline"
	scen.Vehicle.Start = start
	scen.Timing.DurationS = 1
	return scen
}

func testRunner(t *testing.T, scen Scenario, grid *gridmap.Grid, log *utils.Logger) *Runner {
	t.Helper()
	if log == nil {
		log = utils.NewWriterLogger(io.Discard, utils.TRACE)
	}
	r, err := newRunner(scen, grid, log, nil, nil, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	return r
}

func testTelemetry(t *testing.T, w utils.CANWriter) *Telemetry {
	t.Helper()
	cmap, err := utils.LoadCANMap("../config/can/can_map.csv")
	require.NoError(t, err)
	tel, err := NewTelemetry(cmap, w, utils.NewWriterLogger(io.Discard, utils.INFO))
	require.NoError(t, err)
	return tel
}

func TestLegal(t *testing.T) {
	t.Parallel()

	g := openGrid(t, 50, 50)
	g.FillRect(25, 0, 26, 50, true)
	r := testRunner(t, testScenario(&sensors.Point{X: 10, Y: 10}), g, nil)

	assert.True(t, r.Legal(sensors.Point{X: 10, Y: 10}))
	assert.True(t, r.Legal(sensors.Point{X: 20.5, Y: 10}))
	assert.False(t, r.Legal(sensors.Point{X: 22, Y: 10}), "square touches the wall")
	assert.False(t, r.Legal(sensors.Point{X: 3.9, Y: 10}))
	assert.False(t, r.Legal(sensors.Point{X: 46, Y: 10}))
	assert.False(t, r.Legal(sensors.Point{X: 10, Y: 46}))
}

func TestStartPosition(t *testing.T) {
	t.Parallel()

	plan := strings.Repeat("\n", 20) + strings.Repeat(" ", 30) + "S\n" + strings.Repeat("\n", 20) + strings.Repeat(" ", 60) + "\n"
	g, err := gridmap.ParseASCII(strings.NewReader(plan))
	require.NoError(t, err)

	t.Run("scenario start wins", func(t *testing.T) {
		t.Parallel()
		want := sensors.Point{X: 12, Y: 12}
		r := testRunner(t, testScenario(&want), g, nil)
		assert.Equal(t, want, r.pos)
		assert.Equal(t, []sensors.Point{want}, r.core.TrailPoints())
	})

	t.Run("map marker", func(t *testing.T) {
		t.Parallel()
		r := testRunner(t, testScenario(nil), g, nil)
		assert.Equal(t, sensors.Point{X: 30.5, Y: 20.5}, r.pos)
	})

	t.Run("random when unmarked", func(t *testing.T) {
		t.Parallel()
		blank := openGrid(t, 60, 60)
		blank.FillRect(0, 0, 30, 60, true)
		r := testRunner(t, testScenario(nil), blank, nil)
		assert.True(t, r.Legal(r.pos))
		assert.GreaterOrEqual(t, r.pos.X, 34.0)
	})

	t.Run("illegal scenario start", func(t *testing.T) {
		t.Parallel()
		_, err := newRunner(testScenario(&sensors.Point{X: 1, Y: 1}), g,
			utils.NewWriterLogger(io.Discard, utils.INFO), nil, nil, rand.New(rand.NewSource(1)))
		assert.Error(t, err)
	})

	t.Run("no room anywhere", func(t *testing.T) {
		t.Parallel()
		_, err := newRunner(testScenario(nil), openGrid(t, 6, 6),
			utils.NewWriterLogger(io.Discard, utils.INFO), nil, nil, rand.New(rand.NewSource(1)))
		assert.Error(t, err)
	})
}

func TestStepCommitsLegalMove(t *testing.T) {
	t.Parallel()

	start := sensors.Point{X: 100, Y: 100}
	r := testRunner(t, testScenario(&start), openGrid(t, 200, 200), nil)

	require.NoError(t, r.Step(context.Background()))

	assert.InDelta(t, 2.0, start.Dist(r.pos), 1e-9)
	assert.Equal(t, []sensors.Point{start, r.pos}, r.core.TrailPoints())

	s := r.stats.Summary()
	assert.Equal(t, 1, s.Ticks)
	assert.Equal(t, 1, s.WallFollowTicks)
	assert.InDelta(t, 2.0, s.PathLength, 1e-9)
	assert.Zero(t, s.Respawns)
}

func TestStepRespawnsOnIllegalMove(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	start := sensors.Point{X: 35, Y: 20}
	r := testRunner(t, testScenario(&start), openGrid(t, 40, 40), utils.NewWriterLogger(&buf, utils.INFO))
	r.core.Drone().Speed.Accelerate()

	require.NoError(t, r.Step(context.Background()))

	assert.Equal(t, 1, r.episode)
	assert.True(t, r.Legal(r.pos))
	assert.NotEqual(t, start, r.pos)
	assert.Equal(t, []sensors.Point{r.pos}, r.core.TrailPoints())
	assert.Equal(t, 100.0, r.core.Drone().Energy.Percentage())
	assert.Equal(t, sensors.DefaultSpeedConfig().Base, r.core.Drone().Speed.Speed())
	assert.Equal(t, 1, r.stats.Summary().Respawns)
	assert.Contains(t, buf.String(), "respawning at")
}

func TestLowBatteryTransitionIsLogged(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	start := sensors.Point{X: 200, Y: 200}
	scen := testScenario(&start)
	scen.Energy = sensors.EnergyConfig{TickHz: 10, LifeSeconds: 1}
	r := testRunner(t, scen, openGrid(t, 400, 400), utils.NewWriterLogger(&buf, utils.INFO))

	for i := 0; i < 8; i++ {
		require.NoError(t, r.Step(context.Background()))
	}

	assert.Equal(t, control.ModeReturning, r.core.Mode())
	assert.Contains(t, buf.String(), "Mode WALL_FOLLOW -> RETURNING at tick 5")
	assert.Equal(t, 1, r.stats.Summary().Returns)
	// four ticks out, four ticks back
	assert.Equal(t, 1, r.core.TrailLen())
	assert.Equal(t, start, r.pos)
}

func TestRunFastMode(t *testing.T) {
	t.Parallel()

	start := sensors.Point{X: 100, Y: 100}
	scen := testScenario(&start)
	scen.Timing.DurationS = 2
	r := testRunner(t, scen, openGrid(t, 300, 300), nil)

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, 20, r.ticks)
	assert.Equal(t, 20, r.stats.Summary().Ticks)
}

func TestRunRealTimeStopsOnCancel(t *testing.T) {
	t.Parallel()

	start := sensors.Point{X: 100, Y: 100}
	scen := testScenario(&start)
	scen.Timing.RealTimeMode = true
	scen.Timing.DtS = 0.01
	scen.Timing.DurationS = 60
	r := testRunner(t, scen, openGrid(t, 300, 300), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := r.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, r.ticks, r.scen.Ticks())
}

func TestRunCanceledBeforeStart(t *testing.T) {
	t.Parallel()

	start := sensors.Point{X: 100, Y: 100}
	r := testRunner(t, testScenario(&start), openGrid(t, 300, 300), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Run(ctx), context.Canceled)
	assert.Zero(t, r.ticks)
}

func TestStepPublishesTelemetry(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	tel := testTelemetry(t, w)
	start := sensors.Point{X: 100, Y: 100}
	r, err := newRunner(testScenario(&start), openGrid(t, 200, 200),
		utils.NewWriterLogger(io.Discard, utils.TRACE), tel, nil, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	require.NoError(t, r.Step(context.Background()))
	assert.Equal(t, uint64(3), tel.Sent())

	poses := w.byID(0x402)
	require.Len(t, poses, 1)
	_, pose, err := tel.cmap.DecodeFrame(poses[0])
	require.NoError(t, err)
	assert.InDelta(t, r.pos.X, pose["pos_x"], 0.05)
	assert.InDelta(t, r.pos.Y, pose["pos_y"], 0.05)
	assert.Equal(t, 2.0, pose["trail_len"])

	states := w.byID(0x401)
	require.Len(t, states, 1)
	_, state, err := tel.cmap.DecodeFrame(states[0])
	require.NoError(t, err)
	assert.Equal(t, float64(control.ModeWallFollow), state["nav_mode"])
	assert.Equal(t, float64(control.SideRight), state["hug_side"])
	assert.InDelta(t, r.core.Drone().Energy.Percentage(), state["battery_pct"], 0.25)
	assert.InDelta(t, r.core.LastCorrection().Total, state["correction_deg"], 0.05)

	ranges := w.byID(0x400)
	require.Len(t, ranges, 1)
	_, rng, err := tel.cmap.DecodeFrame(ranges[0])
	require.NoError(t, err)
	assert.InDelta(t, r.core.Drone().Readings().Forward, rng["range_forward"], 0.005)
}

func TestApplyOperatorCommands(t *testing.T) {
	t.Parallel()

	start := sensors.Point{X: 100, Y: 100}
	r := testRunner(t, testScenario(&start), openGrid(t, 300, 300), nil)
	drone := r.core.Drone()

	r.Apply(OperatorCommand{SwitchWall: true})
	assert.Equal(t, control.SideLeft, r.core.Side())

	r.Apply(OperatorCommand{SpeedSteps: 2})
	assert.Equal(t, 3.0, drone.Speed.Speed())
	r.Apply(OperatorCommand{SpeedSteps: -10})
	assert.Equal(t, 1.0, drone.Speed.Speed())

	r.Apply(OperatorCommand{Tune: true, Loop: control.LoopNarrow, Gain: control.GainKp, GainDelta: 0.4})
	assert.InDelta(t, 0.5, r.core.PID(control.LoopNarrow).Config().Kp, 1e-12)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Step(context.Background()))
	}
	require.NotEqual(t, start, r.pos)
	r.Apply(OperatorCommand{Reset: true})
	assert.Equal(t, start, r.pos)
	assert.Equal(t, 1, r.episode)
	assert.Equal(t, 1, r.core.TrailLen())
	assert.Equal(t, control.SideRight, r.core.Side())
}

func TestReceiveLoopForwardsCommands(t *testing.T) {
	t.Parallel()

	tel := testTelemetry(t, &fakeWriter{})
	reader := &fakeReader{frames: make(chan can.Frame, 4)}
	start := sensors.Point{X: 100, Y: 100}
	r, err := newRunner(testScenario(&start), openGrid(t, 300, 300),
		utils.NewWriterLogger(io.Discard, utils.TRACE), tel, reader, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.receiveLoop(ctx)

	// frames that are not commands are ignored
	other, err := tel.cmap.EncodeEinrideFrame(FramePose, nil)
	require.NoError(t, err)
	reader.frames <- other

	cmdFrame, err := tel.cmap.EncodeEinrideFrame(FrameCommand, map[string]float64{"cmd_switch_wall": 1})
	require.NoError(t, err)
	reader.frames <- cmdFrame

	select {
	case cmd := <-r.cmds:
		assert.Equal(t, OperatorCommand{SwitchWall: true}, cmd)
	case <-time.After(2 * time.Second):
		t.Fatal("command not forwarded")
	}
}
