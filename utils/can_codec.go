package utils

import (
	"fmt"
	"math"

	"github.com/samber/lo"
	"go.einride.tech/can"
)

// EncodeFrame packs physical signal values into the payload of frameName.
// Missing signals take their default; values are clamped to [min, max].
func (m *CANMap) EncodeFrame(frameName string, values map[string]float64) (can.Data, *FrameDef, error) {
	var data can.Data
	fd, err := m.FrameByName(frameName)
	if err != nil {
		return data, nil, err
	}
	if fd.DLC <= 0 || fd.DLC > 8 {
		return data, nil, fmt.Errorf("frame %s has invalid DLC %d", fd.Name, fd.DLC)
	}

	for _, s := range fd.Signals {
		v, ok := values[s.Name]
		if !ok {
			v = s.Default
		}
		v = lo.Clamp(v, s.Min, s.Max)

		raw := int64(math.Round((v - s.Offset) / s.Factor))
		raw = clampRaw(raw, s.BitLength, s.Signed)

		start, length := uint8(s.StartBit), uint8(s.BitLength)
		if s.Signed {
			data.SetSignedBitsLittleEndian(start, length, raw)
		} else {
			data.SetUnsignedBitsLittleEndian(start, length, uint64(raw))
		}
	}
	return data, fd, nil
}

// EncodeEinrideFrame produces a can.Frame ready to transmit.
func (m *CANMap) EncodeEinrideFrame(frameName string, values map[string]float64) (can.Frame, error) {
	data, fd, err := m.EncodeFrame(frameName, values)
	if err != nil {
		return can.Frame{}, err
	}
	return can.Frame{ID: fd.ID, Length: uint8(fd.DLC), Data: data}, nil
}

// DecodeFrame unpacks every signal of a known frame into physical values.
func (m *CANMap) DecodeFrame(frame can.Frame) (*FrameDef, map[string]float64, error) {
	fd, err := m.FrameByID(frame.ID)
	if err != nil {
		return nil, nil, err
	}
	if int(frame.Length) < fd.DLC {
		return nil, nil, fmt.Errorf("frame 0x%X expects DLC %d, got %d", frame.ID, fd.DLC, frame.Length)
	}

	data := frame.Data
	out := make(map[string]float64, len(fd.Signals))
	for _, s := range fd.Signals {
		start, length := uint8(s.StartBit), uint8(s.BitLength)
		var raw int64
		if s.Signed {
			raw = data.SignedBitsLittleEndian(start, length)
		} else {
			raw = int64(data.UnsignedBitsLittleEndian(start, length))
		}
		out[s.Name] = float64(raw)*s.Factor + s.Offset
	}
	return fd, out, nil
}
