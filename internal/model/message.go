// Package model defines shared message structures for RoboCtl.
package model

import "time"

// ControlState is the operator-side control snapshot encoded into every frame.
// Motors are signed bytes, so the [-128,127] slider range holds by construction.
type ControlState struct {
	LED1  bool `json:"led1"`
	LED2  bool `json:"led2"`
	Left  int8 `json:"left_motor"`
	Right int8 `json:"right_motor"`
}

// DriveInput is the speed/steering slider pair of the differential-drive panel.
type DriveInput struct {
	Speed    int `json:"speed"`
	Steering int `json:"steering"`
}

// TelemetryFrame is the robot reply decoded from the response body.
type TelemetryFrame struct {
	BatteryMilliVolts uint16   `json:"battery_mv"`
	Sensors           []uint16 `json:"sensors"`
}

// ConnectionStatus tracks the outcome of the last connect attempt or request.
type ConnectionStatus int

const (
	Disconnected ConnectionStatus = iota
	Connected
	Error
)

func (s ConnectionStatus) String() string {
	switch s {
	case Connected:
		return "connected"
	case Error:
		return "error"
	default:
		return "disconnected"
	}
}

// EventKind classifies controller notifications.
type EventKind string

const (
	EventStatus    EventKind = "status"
	EventTelemetry EventKind = "telemetry"
	EventError     EventKind = "error"
	EventMalformed EventKind = "malformed"
)

// Event is a user-visible notification emitted by the controller.
type Event struct {
	Kind      EventKind        `json:"kind"`
	Status    ConnectionStatus `json:"status"`
	Message   string           `json:"message,omitempty"`
	Telemetry *TelemetryFrame  `json:"telemetry,omitempty"`
	At        time.Time        `json:"at"`
}

// TelemetryRecord is one relay history entry.
type TelemetryRecord struct {
	At        time.Time      `json:"at"`
	Frame     string         `json:"frame"`
	Telemetry TelemetryFrame `json:"telemetry"`
}
