// Package core contains the main runtime logic and orchestration layer for RoboCtl.
// It defines the operator-side Controller and RobotClient, the software robot
// Simulator, and the System that manages the relay lifecycle.
package core

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"RoboCtl/internal/app"
	"RoboCtl/internal/device"
	"RoboCtl/internal/model"
	"RoboCtl/internal/util"
)

// System manages lifecycle of the relay and, optionally, an embedded simulator.
// It loads configuration from a YAML file and constructs objects accordingly.
type System struct {
	cfg       model.Config
	Relay     *app.App
	Simulator *Simulator

	log     *zap.SugaredLogger
	errCh   chan error
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewSystem reads the YAML configuration at cfgPath and creates a System instance.
func NewSystem(cfgPath string) (*System, error) {
	cfg, err := model.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	return NewSystemFromConfig(cfg)
}

// NewSystemFromConfig creates a System from an already loaded configuration.
func NewSystemFromConfig(cfg model.Config) (*System, error) {
	if _, err := linkKind(cfg.Relay.Link.Kind); err != nil {
		return nil, err
	}
	if cfg.Relay.Embedded {
		if err := cfg.Simulator.Validate(); err != nil {
			return nil, err
		}
	}
	s := &System{cfg: cfg, log: util.Named("system"), errCh: make(chan error, 1)}
	if cfg.Relay.Embedded {
		s.Simulator = NewSimulator(cfg.Simulator, nil, util.Named("simulator"))
	}
	return s, nil
}

func linkKind(kind string) (string, error) {
	switch kind {
	case "tcp", "serial", "mock":
		return kind, nil
	}
	return "", fmt.Errorf("unknown link kind %q", kind)
}

// Config returns the configuration the system was built from.
func (s *System) Config() model.Config { return s.cfg }

// Errors reports a relay server failure after StartAll.
func (s *System) Errors() <-chan error { return s.errCh }

// StartAll starts the embedded simulator (if any), opens the robot link and
// launches the relay server in the background.
func (s *System) StartAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	link := s.cfg.Relay.Link
	if s.Simulator != nil {
		if err := s.Simulator.Start(); err != nil {
			return err
		}
		link.Kind = "tcp"
		link.Address = loopback(s.Simulator.Addr())
		s.log.Infow("relay linked to embedded simulator", "addr", link.Address)
	}

	dev, err := device.Open(link, util.Named("link"))
	if err != nil {
		return multierr.Append(err, s.stopSimulator())
	}
	relay, err := app.NewApp(dev, app.Options{
		HistoryDB:  s.cfg.Relay.HistoryDB,
		FeedFormat: s.cfg.Relay.FeedFormat,
		Logger:     util.Named("relay"),
	})
	if err != nil {
		return multierr.Combine(err, dev.Close(), s.stopSimulator())
	}
	s.Relay = relay

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := relay.Start(s.cfg.Relay.ListenAddr); err != nil {
			s.log.Errorw("relay server failed", "error", err)
			s.errCh <- err
		}
	}()

	s.started = true
	return nil
}

// StopAll stops all running components gracefully.
func (s *System) StopAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	err := s.Relay.Stop()
	s.wg.Wait()
	err = multierr.Append(err, s.stopSimulator())
	s.started = false
	return err
}

func (s *System) stopSimulator() error {
	if s.Simulator == nil {
		return nil
	}
	return s.Simulator.Stop()
}

// loopback turns a wildcard listen address into one the relay can dial.
func loopback(addr string) string {
	switch {
	case strings.HasPrefix(addr, ":"):
		return "127.0.0.1" + addr
	case strings.HasPrefix(addr, "[::]:"):
		return "127.0.0.1:" + strings.TrimPrefix(addr, "[::]:")
	case strings.HasPrefix(addr, "0.0.0.0:"):
		return "127.0.0.1:" + strings.TrimPrefix(addr, "0.0.0.0:")
	}
	return addr
}
