// Package device defines a unified interface for the links a relay uses to reach the robot,
// such as a TCP socket or a serial port.
package device

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"RoboCtl/internal/model"
)

var (
	// ErrUnreachable wraps failures to open the link to the robot.
	ErrUnreachable = errors.New("robot unreachable")

	// ErrNoResponse reports that a frame was delivered but the robot closed without replying.
	ErrNoResponse = errors.New("no response from robot")
)

// Device defines an abstract robot link.
type Device interface {
	// Probe checks the robot can be reached without sending a frame.
	Probe(ctx context.Context) error

	// Exchange delivers one frame and returns the robot's reply.
	Exchange(ctx context.Context, frame string) (string, error)

	// Close closes the device and releases underlying resources.
	Close() error
}

// Open builds the device selected by cfg.Kind.
func Open(cfg model.LinkConfig, logger *zap.SugaredLogger) (Device, error) {
	switch cfg.Kind {
	case "tcp", "":
		return NewTCPDevice(cfg.Address, cfg.DialTimeout(), cfg.IOTimeout(), logger), nil
	case "serial":
		return NewSerialDevice(cfg.SerialDevice, cfg.Baud, cfg.IOTimeout(), logger), nil
	case "mock":
		return NewMockDevice(), nil
	}
	return nil, fmt.Errorf("unknown link kind %q", cfg.Kind)
}
