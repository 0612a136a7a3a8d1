package main

import (
	"context"
	"fmt"
	"math"

	"go.einride.tech/can"

	control "drone-nav-core/closed_loop/lateral_control"
	"drone-nav-core/sensors"
	"drone-nav-core/utils"
)

const (
	FrameRange   = "DRONE_RANGE_1"
	FrameState   = "DRONE_STATE_1"
	FramePose    = "DRONE_POSE_1"
	FrameCommand = "DRONE_CMD_1"
)

// Snapshot is the per-tick vehicle state published on the bus.
type Snapshot struct {
	Episode    int
	Pos        sensors.Point
	Readings   sensors.Readings
	IMUDeg     float64
	Mode       control.Mode
	Side       control.Side
	Correction control.Correction
	TrailLen   int
	Cooldown   float64
}

// OperatorCommand is one decoded DRONE_CMD_1 frame.
type OperatorCommand struct {
	SwitchWall bool
	// SpeedSteps > 0 accelerates, < 0 decelerates, one Delta per step.
	SpeedSteps int
	// Tune is false when no gain change was requested.
	Tune      bool
	Loop      control.Loop
	Gain      control.Gain
	GainDelta float64
	Reset     bool
}

// Empty reports whether the command asks for nothing.
func (c OperatorCommand) Empty() bool {
	return !c.SwitchWall && c.SpeedSteps == 0 && !c.Tune && !c.Reset
}

// Telemetry encodes snapshots into the TX frames of the CAN map.
type Telemetry struct {
	cmap   *utils.CANMap
	writer utils.CANWriter
	log    *utils.Logger
	sent   uint64
}

// NewTelemetry checks that cmap carries every frame the runner uses.
func NewTelemetry(cmap *utils.CANMap, writer utils.CANWriter, log *utils.Logger) (*Telemetry, error) {
	for _, name := range []string{FrameRange, FrameState, FramePose, FrameCommand} {
		if _, err := cmap.FrameByName(name); err != nil {
			return nil, fmt.Errorf("telemetry: %w", err)
		}
	}
	return &Telemetry{cmap: cmap, writer: writer, log: log}, nil
}

// Frames encodes snap into the three TX frames.
func (t *Telemetry) Frames(snap Snapshot) ([]can.Frame, error) {
	r := snap.Readings
	sets := []struct {
		name   string
		values map[string]float64
	}{
		{FrameRange, map[string]float64{
			"range_forward":  r.Forward,
			"range_right":    r.Right,
			"range_backward": r.Backward,
			"range_left":     r.Left,
		}},
		{FrameState, map[string]float64{
			"heading_deg":    r.HeadingDeg,
			"imu_deg":        snap.IMUDeg,
			"speed":          r.Speed,
			"battery_pct":    r.BatteryPct,
			"nav_mode":       float64(snap.Mode),
			"hug_side":       float64(snap.Side),
			"correction_deg": snap.Correction.Total,
			"saturated":      control.BoolToFloat(snap.Correction.Saturated),
		}},
		{FramePose, map[string]float64{
			"pos_x":      snap.Pos.X,
			"pos_y":      snap.Pos.Y,
			"trail_len":  float64(snap.TrailLen),
			"cooldown_s": snap.Cooldown,
			"episode":    float64(snap.Episode),
		}},
	}

	frames := make([]can.Frame, 0, len(sets))
	for _, s := range sets {
		f, err := t.cmap.EncodeEinrideFrame(s.name, s.values)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", s.name, err)
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// Publish encodes and transmits snap.
func (t *Telemetry) Publish(ctx context.Context, snap Snapshot) error {
	frames, err := t.Frames(snap)
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := t.writer.WriteFrame(ctx, f); err != nil {
			return fmt.Errorf("transmit 0x%X: %w", f.ID, err)
		}
		t.sent++
		t.log.Trace("TX id=0x%X len=%d data=% X", f.ID, f.Length, f.Data[:f.Length])
	}
	return nil
}

// Sent returns the number of frames transmitted so far.
func (t *Telemetry) Sent() uint64 { return t.sent }

// DecodeCommand decodes a DRONE_CMD_1 frame. ok is false for any other frame.
func (t *Telemetry) DecodeCommand(frame can.Frame) (cmd OperatorCommand, ok bool, err error) {
	fd, err := t.cmap.FrameByName(FrameCommand)
	if err != nil {
		return cmd, false, err
	}
	if frame.ID != fd.ID {
		return cmd, false, nil
	}
	_, v, err := t.cmap.DecodeFrame(frame)
	if err != nil {
		return cmd, false, err
	}

	cmd.SwitchWall = v["cmd_switch_wall"] != 0
	cmd.SpeedSteps = int(math.Round(v["cmd_speed"]))
	cmd.Reset = v["cmd_reset"] != 0
	if loop := int(math.Round(v["cmd_loop"])); loop > 0 {
		gain := control.Gain(int(math.Round(v["cmd_gain"])))
		if gain < control.GainKp || gain > control.GainKd {
			return cmd, true, fmt.Errorf("unknown gain index %d", gain)
		}
		cmd.Tune = true
		cmd.Loop = control.Loop(loop - 1)
		cmd.Gain = gain
		cmd.GainDelta = v["cmd_gain_delta"]
	}
	return cmd, true, nil
}
