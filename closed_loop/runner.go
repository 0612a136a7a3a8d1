package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"time"

	control "drone-nav-core/closed_loop/lateral_control"
	"drone-nav-core/gridmap"
	"drone-nav-core/sensors"
	"drone-nav-core/utils"
)

// maxSpawnAttempts bounds the search for a random free position.
const maxSpawnAttempts = 100000

type RunnerConfig struct {
	Interface    string
	MapPath      string
	ScenarioPath string
	CANMapPath   string
	Seed         int64
}

// Runner owns the world side of the loop: the floor plan, the vehicle
// position, the legality check and the bus. The navigation core only sees
// the sensors.
type Runner struct {
	log  *utils.Logger
	scen Scenario
	grid *gridmap.Grid
	core *control.NavigationCore
	rng  *rand.Rand

	tel    *Telemetry
	writer utils.CANWriter
	reader utils.CANReader
	cmds   chan OperatorCommand

	home     sensors.Point
	pos      sensors.Point
	episode  int
	ticks    int
	lastMode control.Mode
	lastSide control.Side
	stats    EpisodeStats
}

func NewRunner(ctx context.Context, cfg RunnerConfig, log *utils.Logger) (*Runner, error) {
	scen, err := LoadScenario(cfg.ScenarioPath)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	if cfg.MapPath != "" {
		scen.MapPath = cfg.MapPath
	}

	grid, err := gridmap.Load(scen.MapPath)
	if err != nil {
		return nil, fmt.Errorf("load map: %w", err)
	}
	log.Info("Map %s loaded: %dx%d cells", scen.MapPath, grid.Width(), grid.Height())

	var (
		tel    *Telemetry
		writer utils.CANWriter
		reader utils.CANReader
	)
	if cfg.Interface != "" {
		cmap, err := utils.LoadCANMap(cfg.CANMapPath)
		if err != nil {
			return nil, fmt.Errorf("load can map: %w", err)
		}

		// Create CAN writer (TX)
		w, err := utils.NewSocketCANWriter(ctx, cfg.Interface)
		if err != nil {
			return nil, err
		}

		// Create CAN reader (RX) for operator commands
		rd, err := utils.NewSocketCANReader(ctx, cfg.Interface)
		if err != nil {
			_ = w.Close()
			return nil, err
		}

		tel, err = NewTelemetry(cmap, w, log)
		if err != nil {
			_ = w.Close()
			_ = rd.Close()
			return nil, err
		}
		writer, reader = w, rd
	} else {
		log.Info("No CAN interface given; telemetry disabled")
	}

	r, err := newRunner(scen, grid, log, tel, reader, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		if writer != nil {
			_ = writer.Close()
		}
		if reader != nil {
			_ = reader.Close()
		}
		return nil, err
	}
	r.writer = writer
	return r, nil
}

// newRunner wires a runner from already loaded parts. tel and reader may be nil.
func newRunner(scen Scenario, grid *gridmap.Grid, log *utils.Logger, tel *Telemetry, reader utils.CANReader, rng *rand.Rand) (*Runner, error) {
	drone, err := sensors.NewDrone(scen.DroneConfig())
	if err != nil {
		return nil, fmt.Errorf("drone: %w", err)
	}
	core, err := control.NewNavigationCore(scen.Navigation, drone)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		log:    log,
		scen:   scen,
		grid:   grid,
		core:   core,
		rng:    rng,
		tel:    tel,
		reader: reader,
		cmds:   make(chan OperatorCommand, 16),
	}

	home, err := r.startPosition()
	if err != nil {
		return nil, err
	}
	r.home = home
	r.pos = home
	core.SetStartingPosition(home)
	r.lastMode = core.Mode()
	r.lastSide = core.Side()
	return r, nil
}

func (r *Runner) startPosition() (sensors.Point, error) {
	if p := r.scen.Vehicle.Start; p != nil {
		if !r.Legal(*p) {
			return sensors.Point{}, fmt.Errorf("scenario start (%.1f, %.1f) is not a legal position", p.X, p.Y)
		}
		return *p, nil
	}
	if p, ok := r.grid.Start(); ok {
		if !r.Legal(p) {
			return sensors.Point{}, fmt.Errorf("map start (%.1f, %.1f) is not a legal position", p.X, p.Y)
		}
		return p, nil
	}
	return r.randomFreePosition()
}

// Legal reports whether the vehicle square centred at p stays inside the map
// and off every wall.
func (r *Runner) Legal(p sensors.Point) bool {
	rad := r.scen.Vehicle.Radius
	w, h := float64(r.grid.Width()), float64(r.grid.Height())
	if p.X < rad || p.X >= w-rad || p.Y < rad || p.Y >= h-rad {
		return false
	}
	return r.grid.SquareFree(p.X, p.Y, rad)
}

func (r *Runner) randomFreePosition() (sensors.Point, error) {
	rad := r.scen.Vehicle.Radius
	w, h := float64(r.grid.Width()), float64(r.grid.Height())
	if w <= 2*rad || h <= 2*rad {
		return sensors.Point{}, fmt.Errorf("map %.0fx%.0f too small for radius %.1f", w, h, rad)
	}
	for i := 0; i < maxSpawnAttempts; i++ {
		p := sensors.Point{
			X: rad + r.rng.Float64()*(w-2*rad),
			Y: rad + r.rng.Float64()*(h-2*rad),
		}
		if r.Legal(p) {
			return p, nil
		}
	}
	return sensors.Point{}, fmt.Errorf("no free position found after %d attempts", maxSpawnAttempts)
}

func (r *Runner) Close() {
	if r.reader != nil {
		_ = r.reader.Close()
	}
	if r.writer != nil {
		_ = r.writer.Close()
	}
}

// Step runs one tick: sense, decide, check, commit or respawn, publish.
func (r *Runner) Step(ctx context.Context) error {
	dt := r.scen.Timing.DtS
	drone := r.core.Drone()

	drone.UpdateSensors(r.grid, r.pos, r.scen.Vehicle.Radius)
	cand := r.core.UpdatePositionByAlgorithm(r.pos, dt)
	r.ticks++
	r.stats.RecordTick()

	if corr := r.core.LastCorrection(); corr.Active {
		lat := r.core.PID(control.LoopLateral).GetDiagnostics()
		r.stats.RecordWallFollow(lat.Error, corr.Total, corr.Saturated)
	}
	r.trackTransitions()

	if r.Legal(cand) {
		r.stats.RecordMove(r.pos.Dist(cand))
		r.core.UpdatePosition(cand)
		r.pos = cand
	} else {
		if err := r.respawn(cand); err != nil {
			return err
		}
	}

	if every := r.scen.Timing.LogEveryTicks; every > 0 && r.ticks%every == 0 {
		r.logDiagnostics()
	}
	r.log.Trace("tick=%d pos=(%.2f, %.2f) heading=%.2f mode=%v side=%v battery=%.1f",
		r.ticks, r.pos.X, r.pos.Y, drone.Heading.Degrees(), r.core.Mode(), r.core.Side(), drone.Energy.Percentage())

	if r.tel != nil {
		if err := r.tel.Publish(ctx, r.Snapshot()); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) respawn(rejected sensors.Point) error {
	p, err := r.randomFreePosition()
	if err != nil {
		return fmt.Errorf("respawn: %w", err)
	}
	r.log.Warn("Illegal move to (%.2f, %.2f) in mode %v; respawning at (%.2f, %.2f)",
		rejected.X, rejected.Y, r.core.Mode(), p.X, p.Y)
	r.restart(p)
	r.stats.RecordRespawn()
	return nil
}

// restart begins a new episode at p.
func (r *Runner) restart(p sensors.Point) {
	r.core.Reset(p)
	r.core.Drone().Heading.Set(r.scen.Vehicle.HeadingDeg)
	r.pos = p
	r.episode++
	r.lastMode = r.core.Mode()
	r.lastSide = r.core.Side()
}

func (r *Runner) trackTransitions() {
	mode, side := r.core.Mode(), r.core.Side()
	if mode != r.lastMode {
		r.log.Info("Mode %v -> %v at tick %d (battery %.1f%%, trail %d)",
			r.lastMode, mode, r.ticks, r.core.Drone().Energy.Percentage(), r.core.TrailLen())
		switch mode {
		case control.ModeRecovery:
			r.stats.RecordRecovery()
		case control.ModeReturning:
			r.stats.RecordReturn()
		}
		r.lastMode = mode
	}
	if side != r.lastSide {
		r.log.Info("Hugging side %v -> %v at tick %d", r.lastSide, side, r.ticks)
		r.lastSide = side
	}
}

func (r *Runner) logDiagnostics() {
	if !r.log.Enabled(utils.DEBUG) {
		return
	}
	for _, loop := range []control.Loop{control.LoopLateral, control.LoopFront, control.LoopNarrow} {
		diag := r.core.PID(loop).GetDiagnostics()
		r.log.Debug("PID %v: err=%.3f int=%.3f P=%.3f I=%.3f D=%.3f out=%.3f",
			loop, diag.Error, diag.Integral, diag.P, diag.I, diag.D, diag.Output)
	}
}

// Snapshot captures the state published on the bus.
func (r *Runner) Snapshot() Snapshot {
	drone := r.core.Drone()
	return Snapshot{
		Episode:    r.episode,
		Pos:        r.pos,
		Readings:   drone.Readings(),
		IMUDeg:     drone.Heading.IMUDegrees(),
		Mode:       r.core.Mode(),
		Side:       r.core.Side(),
		Correction: r.core.LastCorrection(),
		TrailLen:   r.core.TrailLen(),
		Cooldown:   r.core.Cooldown(),
	}
}

// Apply executes one operator command between ticks.
func (r *Runner) Apply(cmd OperatorCommand) {
	if cmd.Empty() {
		return
	}
	r.log.Info("Operator command: %+v", cmd)

	if cmd.Reset {
		r.restart(r.home)
	}
	if cmd.SwitchWall {
		r.core.SwitchWall()
	}
	speed := r.core.Drone().Speed
	for i := 0; i < cmd.SpeedSteps; i++ {
		speed.Accelerate()
	}
	for i := 0; i > cmd.SpeedSteps; i-- {
		speed.Decelerate()
	}
	if cmd.Tune {
		if err := r.core.AdjustGain(cmd.Loop, cmd.Gain, cmd.GainDelta); err != nil {
			r.log.Error("Gain adjust failed: %v", err)
			return
		}
		r.log.Info("PID %v gains now %+v", cmd.Loop, r.core.PID(cmd.Loop).Config())
	}
}

func (r *Runner) drainCommands() {
	for {
		select {
		case cmd := <-r.cmds:
			r.Apply(cmd)
		default:
			return
		}
	}
}

func (r *Runner) Run(ctx context.Context) error {
	timing := r.scen.Timing
	n := r.scen.Ticks()

	r.log.Info("Starting run: scenario=%s map=%s ticks=%d dt=%.3fs real_time=%v start=(%.2f, %.2f) side=%v",
		r.scen.Meta.Name, r.scen.MapPath, n, timing.DtS, timing.RealTimeMode, r.home.X, r.home.Y, r.core.Side())

	if hz := r.scen.Energy.TickHz; math.Abs(1/timing.DtS-hz) > 1e-6 {
		r.log.Warn("Tick rate %.2f Hz differs from battery model rate %.2f Hz; battery life is counted in ticks",
			1/timing.DtS, hz)
	}

	if r.reader != nil && r.tel != nil {
		go r.receiveLoop(ctx)
	}

	var ticker *time.Ticker
	if timing.RealTimeMode {
		ticker = time.NewTicker(time.Duration(timing.DtS * float64(time.Second)))
		defer ticker.Stop()
	}

	for r.ticks < n {
		if ticker != nil {
			select {
			case <-ctx.Done():
				r.log.Warn("Context canceled; stopping at tick %d", r.ticks)
				r.logSummary()
				return ctx.Err()
			case cmd := <-r.cmds:
				r.Apply(cmd)
				continue
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			r.log.Warn("Context canceled; stopping at tick %d", r.ticks)
			r.logSummary()
			return err
		}

		r.drainCommands()
		if err := r.Step(ctx); err != nil {
			r.log.Error("Tick %d failed: %v", r.ticks, err)
			return err
		}
	}

	r.logSummary()
	return nil
}

func (r *Runner) logSummary() {
	s := r.stats.Summary()
	r.log.Info("Run complete: ticks=%d episodes=%d mode=%v side=%v battery=%.1f%% trail=%d",
		s.Ticks, r.episode+1, r.core.Mode(), r.core.Side(), r.core.Drone().Energy.Percentage(), r.core.TrailLen())
	r.log.Info("Wall following: ticks=%d lateral_err mean=%.3f std=%.3f max|corr|=%.2f saturated=%.1f%%",
		s.WallFollowTicks, s.MeanLateralError, s.StdLateralError, s.MaxAbsCorrection, 100*s.SaturatedShare)
	r.log.Info("Path=%.1f cells recoveries=%d returns=%d respawns=%d",
		s.PathLength, s.Recoveries, s.Returns, s.Respawns)
	if r.tel != nil {
		r.log.Info("Telemetry frames sent=%d", r.tel.Sent())
	}
}

// receiveLoop continuously reads CAN frames and forwards operator commands
func (r *Runner) receiveLoop(ctx context.Context) {
	r.log.Debug("RX loop started")
	defer r.log.Debug("RX loop stopped")

	for {
		frame, err := r.reader.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			r.log.Error("RX error: %v", err)
			continue
		}
		r.log.Trace("RX id=0x%X len=%d data=% X", frame.ID, frame.Length, frame.Data[:frame.Length])

		cmd, ok, err := r.tel.DecodeCommand(frame)
		if err != nil {
			r.log.Warn("Bad command frame: %v", err)
			continue
		}
		if !ok {
			continue
		}

		select {
		case r.cmds <- cmd:
		case <-ctx.Done():
			return
		}
	}
}
