// Package parser implements the JSONParser which encodes and decodes telemetry
// and control data in JSON format.
package parser

import (
	"encoding/json"

	"RoboCtl/internal/model"
)

// JSONParser implements Parser interface using JSON serialization.
type JSONParser struct{}

// NewJSONParser creates a new JSON parser.
func NewJSONParser() *JSONParser { return &JSONParser{} }

// EncodeTelemetry encodes a TelemetryFrame into JSON string.
func (p *JSONParser) EncodeTelemetry(t model.TelemetryFrame) (string, error) {
	if t.Sensors == nil {
		t.Sensors = []uint16{}
	}
	b, err := json.Marshal(t)
	return string(b), err
}

// DecodeTelemetry decodes JSON string into a TelemetryFrame.
func (p *JSONParser) DecodeTelemetry(s string) (model.TelemetryFrame, error) {
	var t model.TelemetryFrame
	err := json.Unmarshal([]byte(s), &t)
	return t, err
}

// EncodeControl encodes a ControlState into JSON string.
func (p *JSONParser) EncodeControl(c model.ControlState) (string, error) {
	b, err := json.Marshal(c)
	return string(b), err
}

// DecodeControl decodes JSON string into a ControlState.
func (p *JSONParser) DecodeControl(s string) (model.ControlState, error) {
	var c model.ControlState
	err := json.Unmarshal([]byte(s), &c)
	return c, err
}
