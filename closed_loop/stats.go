package main

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// EpisodeStats accumulates per-tick measurements of the wall-following loop.
// It survives respawns; the runner counts them separately.
type EpisodeStats struct {
	lateralErr  []float64
	corrections []float64
	saturated   int

	ticks      int
	pathLength float64
	respawns   int
	recoveries int
	returns    int
}

// StatsSummary is the end-of-run digest logged by the runner.
type StatsSummary struct {
	Ticks            int
	WallFollowTicks  int
	MeanLateralError float64
	StdLateralError  float64
	MaxAbsCorrection float64
	SaturatedShare   float64
	PathLength       float64
	Respawns         int
	Recoveries       int
	Returns          int
}

// RecordTick counts one control tick.
func (s *EpisodeStats) RecordTick() { s.ticks++ }

// RecordWallFollow stores the lateral error and total correction of one
// wall-following tick.
func (s *EpisodeStats) RecordWallFollow(lateralErr, correction float64, saturated bool) {
	s.lateralErr = append(s.lateralErr, lateralErr)
	s.corrections = append(s.corrections, math.Abs(correction))
	if saturated {
		s.saturated++
	}
}

// RecordMove adds an accepted displacement to the path length.
func (s *EpisodeStats) RecordMove(dist float64) { s.pathLength += dist }

func (s *EpisodeStats) RecordRespawn() { s.respawns++ }
func (s *EpisodeStats) RecordRecovery() { s.recoveries++ }
func (s *EpisodeStats) RecordReturn() { s.returns++ }

// Summary computes the digest. Empty series report zeros.
func (s *EpisodeStats) Summary() StatsSummary {
	out := StatsSummary{
		Ticks:           s.ticks,
		WallFollowTicks: len(s.lateralErr),
		PathLength:      s.pathLength,
		Respawns:        s.respawns,
		Recoveries:      s.recoveries,
		Returns:         s.returns,
	}
	n := len(s.lateralErr)
	if n == 0 {
		return out
	}
	out.MeanLateralError = stat.Mean(s.lateralErr, nil)
	if n > 1 {
		out.StdLateralError = stat.StdDev(s.lateralErr, nil)
	}
	out.MaxAbsCorrection = floats.Max(s.corrections)
	out.SaturatedShare = float64(s.saturated) / float64(n)
	return out
}
