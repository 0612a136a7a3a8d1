package control

import (
	"encoding/json"
	"fmt"
	"strings"

	"drone-nav-core/sensors"
)

// Side is the wall the controller hugs.
type Side int

const (
	SideRight Side = iota
	SideLeft
)

func (s Side) String() string {
	switch s {
	case SideRight:
		return "RIGHT"
	case SideLeft:
		return "LEFT"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// Opposite returns the other wall.
func (s Side) Opposite() Side {
	if s == SideLeft {
		return SideRight
	}
	return SideLeft
}

// Sensor returns the range sensor facing this side.
func (s Side) Sensor() sensors.Direction {
	if s == SideLeft {
		return sensors.Left
	}
	return sensors.Right
}

// TurnSign is the sign of a heading change that turns away from this side.
func (s Side) TurnSign() float64 {
	if s == SideLeft {
		return 1
	}
	return -1
}

// ParseSide converts "left"/"right" into a Side.
func ParseSide(value string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "RIGHT", "R":
		return SideRight, nil
	case "LEFT", "L":
		return SideLeft, nil
	default:
		return SideRight, fmt.Errorf("unknown side %q", value)
	}
}

// UnmarshalJSON allows sides to be loaded from JSON strings.
func (s *Side) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseSide(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalJSON writes the side as its name.
func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.ToLower(s.String()))
}

// Mode is the active navigation state.
type Mode int

const (
	ModeWallFollow Mode = iota + 1
	ModeRecovery
	ModeReturning
	ModeDocked
)

func (m Mode) String() string {
	switch m {
	case ModeWallFollow:
		return "WALL_FOLLOW"
	case ModeRecovery:
		return "RECOVERY"
	case ModeReturning:
		return "RETURNING"
	case ModeDocked:
		return "DOCKED"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Loop names one of the three heading control loops.
type Loop int

const (
	LoopLateral Loop = iota
	LoopFront
	LoopNarrow
)

func (l Loop) String() string {
	switch l {
	case LoopLateral:
		return "lateral"
	case LoopFront:
		return "front"
	case LoopNarrow:
		return "narrow"
	default:
		return fmt.Sprintf("Loop(%d)", int(l))
	}
}
