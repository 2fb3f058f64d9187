// Package parser converts the robot wire format to structured types and vice-versa.
//
// Control frame (controller -> robot):
//
//	[L1 L2 LH RH]   e.g. [10ce32]
//
// Telemetry frame (robot -> controller):
//
//	[RR BBBB SSSS SSSS ...]   RR reserved, BBBB battery, SSSS sensors
package parser

import (
	"errors"

	"RoboCtl/internal/model"
)

var (
	// ErrShortFrame reports a reply with fewer than 6 payload characters.
	// Callers keep their previous telemetry.
	ErrShortFrame = errors.New("short frame")

	// ErrMalformedFrame reports a frame whose payload is not valid hex.
	ErrMalformedFrame = errors.New("malformed frame")
)

// Parser encodes and decodes control and telemetry messages in one format.
type Parser interface {
	EncodeControl(c model.ControlState) (string, error)
	DecodeControl(s string) (model.ControlState, error)
	EncodeTelemetry(t model.TelemetryFrame) (string, error)
	DecodeTelemetry(s string) (model.TelemetryFrame, error)
}

// ByName returns the parser registered for a format name (frame/json).
func ByName(name string) (Parser, bool) {
	switch name {
	case "frame", "hex":
		return NewFrameParser(), true
	case "json":
		return NewJSONParser(), true
	}
	return nil, false
}
