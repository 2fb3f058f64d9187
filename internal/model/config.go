// Package model defines shared configuration structures used to initialize RoboCtl.
// It includes controller settings, the relay and its robot link, and the simulator.
package model

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the root structure loaded from configs/config.yml.
type Config struct {
	Controller ControllerConfig `yaml:"controller"`
	Relay      RelayConfig      `yaml:"relay"`
	Simulator  SimulatorConfig  `yaml:"simulator"`
}

// ControllerConfig drives the operator-side dispatch policy.
type ControllerConfig struct {
	RobotAddr        string `yaml:"robot_addr"`         // robot or relay host:port
	ResendIntervalMs int    `yaml:"resend_interval_ms"` // periodic re-dispatch
	DebounceMs       int    `yaml:"debounce_ms"`        // programmatic slider debounce
	RequestTimeoutMs int    `yaml:"request_timeout_ms"`
	ContentType      string `yaml:"content_type"` // text/plain or application/octet-stream
}

// RelayConfig defines the HTTP relay sitting in front of the robot.
type RelayConfig struct {
	ListenAddr string     `yaml:"listen_addr"`
	HistoryDB  string     `yaml:"history_db"`  // empty disables history
	FeedFormat string     `yaml:"feed_format"` // json/frame
	Link       LinkConfig `yaml:"link"`
	Embedded   bool       `yaml:"embedded_simulator"`
}

// LinkConfig selects how the relay reaches the robot.
type LinkConfig struct {
	Kind          string `yaml:"kind"` // tcp/serial/mock
	Address       string `yaml:"address"`
	DialTimeoutMs int    `yaml:"dial_timeout_ms"`
	IOTimeoutMs   int    `yaml:"io_timeout_ms"`
	SerialDevice  string `yaml:"serial_device"`
	Baud          int    `yaml:"baud"`
}

// SimulatorConfig defines the software robot.
type SimulatorConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	Sensors    int    `yaml:"sensors"`
	BatteryMv  int    `yaml:"battery_mv"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	var c Config
	c.applyDefaults()
	return c
}

// LoadConfig reads and parses the YAML file at path, filling unset fields with defaults.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	c.applyDefaults()
	if err := c.Simulator.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	cc := &c.Controller
	if cc.RobotAddr == "" {
		cc.RobotAddr = "127.0.0.30:8000"
	}
	if cc.ResendIntervalMs <= 0 {
		cc.ResendIntervalMs = 2000
	}
	if cc.DebounceMs <= 0 {
		cc.DebounceMs = 300
	}
	if cc.RequestTimeoutMs <= 0 {
		cc.RequestTimeoutMs = 3000
	}
	if cc.ContentType == "" {
		cc.ContentType = "text/plain"
	}

	rc := &c.Relay
	if rc.ListenAddr == "" {
		rc.ListenAddr = ":3000"
	}
	if rc.FeedFormat == "" {
		rc.FeedFormat = "json"
	}
	if rc.Link.Kind == "" {
		rc.Link.Kind = "tcp"
	}
	if rc.Link.Address == "" {
		rc.Link.Address = "100.105.5.12:8000"
	}
	if rc.Link.DialTimeoutMs <= 0 {
		rc.Link.DialTimeoutMs = 3000
	}
	if rc.Link.IOTimeoutMs <= 0 {
		rc.Link.IOTimeoutMs = 5000
	}
	if rc.Link.Baud <= 0 {
		rc.Link.Baud = 115200
	}

	sc := &c.Simulator
	if sc.ListenAddr == "" {
		sc.ListenAddr = ":8000"
	}
	if sc.Sensors <= 0 {
		sc.Sensors = 5
	}
	if sc.BatteryMv <= 0 {
		sc.BatteryMv = 7400
	}
}

// Validate rejects simulator settings the telemetry frame cannot carry.
func (s SimulatorConfig) Validate() error {
	if s.Sensors < 0 {
		return fmt.Errorf("simulator sensors must not be negative, got %d", s.Sensors)
	}
	if s.BatteryMv <= 0 || s.BatteryMv > math.MaxUint16 {
		return fmt.Errorf("simulator battery_mv must be in 1..%d, got %d", math.MaxUint16, s.BatteryMv)
	}
	return nil
}

// ResendInterval returns the periodic dispatch cadence.
func (c ControllerConfig) ResendInterval() time.Duration {
	return time.Duration(c.ResendIntervalMs) * time.Millisecond
}

// Debounce returns the programmatic slider debounce window.
func (c ControllerConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// RequestTimeout returns the per-request HTTP timeout.
func (c ControllerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// DialTimeout returns the robot dial timeout.
func (l LinkConfig) DialTimeout() time.Duration {
	return time.Duration(l.DialTimeoutMs) * time.Millisecond
}

// IOTimeout returns the robot read/write deadline.
func (l LinkConfig) IOTimeout() time.Duration {
	return time.Duration(l.IOTimeoutMs) * time.Millisecond
}
