package parser

import (
	"fmt"
	"strconv"
	"strings"

	"RoboCtl/internal/model"
)

const (
	payloadLen    = 6
	sensorChunk   = 4
	reservedChars = 2
)

var bracketStripper = strings.NewReplacer("[", "", "]", "")

// FrameParser implements Parser using the bracketed hex wire format.
type FrameParser struct{}

// NewFrameParser creates a new frame parser instance.
func NewFrameParser() *FrameParser { return &FrameParser{} }

// EncodeControl converts a ControlState into a frame string.
func (p *FrameParser) EncodeControl(c model.ControlState) (string, error) {
	return EncodeControl(c), nil
}

// DecodeControl parses a control frame into a ControlState.
func (p *FrameParser) DecodeControl(s string) (model.ControlState, error) {
	return DecodeControl(s)
}

// EncodeTelemetry converts a TelemetryFrame into a frame string.
func (p *FrameParser) EncodeTelemetry(t model.TelemetryFrame) (string, error) {
	return EncodeTelemetry(t), nil
}

// DecodeTelemetry parses a telemetry frame.
func (p *FrameParser) DecodeTelemetry(s string) (model.TelemetryFrame, error) {
	return DecodeTelemetry(s)
}

// EncodeControl packs the LED flags and motor values into "[L1L2LHRH]".
// Negative motor values wrap to their unsigned byte (x+256).
func EncodeControl(c model.ControlState) string {
	return fmt.Sprintf("[%s%s%02x%02x]", bit(c.LED1), bit(c.LED2), uint8(c.Left), uint8(c.Right))
}

// DecodeTelemetry unpacks a robot reply. Brackets are stripped anywhere in s.
// It returns ErrShortFrame when fewer than 6 characters remain, and
// ErrMalformedFrame when the battery or a sensor chunk is not hex.
// A trailing sensor chunk shorter than 4 characters is dropped.
func DecodeTelemetry(s string) (model.TelemetryFrame, error) {
	body := bracketStripper.Replace(s)
	if len(body) < payloadLen {
		return model.TelemetryFrame{}, ErrShortFrame
	}

	battery, err := parseHex16(body[reservedChars:payloadLen])
	if err != nil {
		return model.TelemetryFrame{}, fmt.Errorf("%w: battery %q", ErrMalformedFrame, body[reservedChars:payloadLen])
	}

	rest := body[payloadLen:]
	sensors := make([]uint16, 0, len(rest)/sensorChunk)
	for i := 0; i+sensorChunk <= len(rest); i += sensorChunk {
		chunk := rest[i : i+sensorChunk]
		v, err := parseHex16(chunk)
		if err != nil {
			return model.TelemetryFrame{}, fmt.Errorf("%w: sensor %d %q", ErrMalformedFrame, i/sensorChunk, chunk)
		}
		sensors = append(sensors, v)
	}

	return model.TelemetryFrame{BatteryMilliVolts: battery, Sensors: sensors}, nil
}

// EncodeTelemetry renders a telemetry frame as the robot does: reserved "00",
// then battery and each sensor as 4 lowercase hex digits.
func EncodeTelemetry(t model.TelemetryFrame) string {
	var b strings.Builder
	b.Grow(2 + payloadLen + sensorChunk*len(t.Sensors))
	b.WriteString("[00")
	fmt.Fprintf(&b, "%04x", t.BatteryMilliVolts)
	for _, s := range t.Sensors {
		fmt.Fprintf(&b, "%04x", s)
	}
	b.WriteByte(']')
	return b.String()
}

// DecodeControl parses a control frame on the robot side.
// The payload must be exactly 6 characters.
func DecodeControl(s string) (model.ControlState, error) {
	body := bracketStripper.Replace(strings.TrimSpace(s))
	if len(body) != payloadLen {
		return model.ControlState{}, fmt.Errorf("%w: expected %d characters, got %d", ErrMalformedFrame, payloadLen, len(body))
	}

	led1, ok1 := parseBit(body[0])
	led2, ok2 := parseBit(body[1])
	if !ok1 || !ok2 {
		return model.ControlState{}, fmt.Errorf("%w: invalid led flags %q", ErrMalformedFrame, body[:2])
	}
	left, err := strconv.ParseUint(body[2:4], 16, 8)
	if err != nil {
		return model.ControlState{}, fmt.Errorf("%w: invalid left motor %q", ErrMalformedFrame, body[2:4])
	}
	right, err := strconv.ParseUint(body[4:6], 16, 8)
	if err != nil {
		return model.ControlState{}, fmt.Errorf("%w: invalid right motor %q", ErrMalformedFrame, body[4:6])
	}

	return model.ControlState{
		LED1:  led1,
		LED2:  led2,
		Left:  int8(uint8(left)),
		Right: int8(uint8(right)),
	}, nil
}

// NormalizeFrame trims s and adds any missing enclosing bracket.
func NormalizeFrame(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") {
		s = "[" + s
	}
	if !strings.HasSuffix(s, "]") {
		s += "]"
	}
	return s
}

func parseHex16(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 16, 16)
	return uint16(v), err
}

func bit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseBit(c byte) (bool, bool) {
	switch c {
	case '0':
		return false, true
	case '1':
		return true, true
	}
	return false, false
}
