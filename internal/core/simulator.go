package core

import (
	"errors"
	"fmt"
	"math"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"RoboCtl/internal/model"
	"RoboCtl/internal/parser"
)

const (
	drainPerSecondFull = 40.0 // mV/s with both motors at full power
	drainPerSecondLED  = 1.5  // mV/s per lit LED
	recoverPerSecond   = 5.0  // mV/s when idle
	maxStep            = 5 * time.Second
)

// Simulator is a software robot speaking the frame protocol over TCP.
// Every connection carries one control frame and gets one telemetry frame back.
type Simulator struct {
	addr    string
	sensors int
	fullMv  float64
	clock   clock.Clock
	log     *zap.SugaredLogger

	mu      sync.Mutex
	battery float64
	last    model.ControlState
	lastAt  time.Time

	ln   net.Listener
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewSimulator constructs a simulator from cfg. It does not listen until Start.
// A negative sensor count is treated as zero and the battery is capped at 16 bits.
func NewSimulator(cfg model.SimulatorConfig, clk clock.Clock, logger *zap.SugaredLogger) *Simulator {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	sensors := max(cfg.Sensors, 0)
	full := float64(min(max(cfg.BatteryMv, 0), math.MaxUint16))
	return &Simulator{
		addr:    cfg.ListenAddr,
		sensors: sensors,
		fullMv:  full,
		battery: full,
		clock:   clk,
		log:     logger,
		lastAt:  clk.Now(),
		stop:    make(chan struct{}),
	}
}

// Start begins accepting connections in a background goroutine.
func (s *Simulator) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("simulator listen %s: %w", s.addr, err)
	}
	s.ln = ln
	s.log.Infow("simulator listening", "addr", ln.Addr().String(), "sensors", s.sensors)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the bound listen address once started.
func (s *Simulator) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

func (s *Simulator) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warnw("accept failed", "error", err)
			continue
		}
		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Simulator) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() { _ = conn.Close() }()

	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil {
		// probes connect and hang up without sending
		return
	}

	reply, err := s.Respond(string(buf[:n]))
	if err != nil {
		s.log.Warnw("rejecting frame", "frame", string(buf[:n]), "error", err)
		return
	}
	if _, err := conn.Write([]byte(reply)); err != nil {
		s.log.Warnw("write reply failed", "error", err)
	}
}

// Respond applies a control frame to the simulated robot and returns its telemetry frame.
func (s *Simulator) Respond(frame string) (string, error) {
	state, err := parser.DecodeControl(frame)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.advanceLocked()
	s.last = state
	tf := model.TelemetryFrame{
		BatteryMilliVolts: uint16(math.Round(s.battery)),
		Sensors:           s.sensorsLocked(),
	}
	s.mu.Unlock()

	s.log.Debugw("frame applied", "led1", state.LED1, "led2", state.LED2,
		"left", state.Left, "right", state.Right, "battery_mv", tf.BatteryMilliVolts)
	return parser.EncodeTelemetry(tf), nil
}

// Battery returns the current simulated battery level in millivolts.
func (s *Simulator) Battery() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked()
	return uint16(math.Round(s.battery))
}

// advanceLocked drains or recovers the battery for the time the last state was held.
func (s *Simulator) advanceLocked() {
	now := s.clock.Now()
	dt := now.Sub(s.lastAt)
	s.lastAt = now
	if dt <= 0 {
		return
	}
	if dt > maxStep {
		dt = maxStep
	}
	secs := dt.Seconds()

	load := (math.Abs(float64(s.last.Left)) + math.Abs(float64(s.last.Right))) / 256.0
	drain := load * drainPerSecondFull
	if s.last.LED1 {
		drain += drainPerSecondLED
	}
	if s.last.LED2 {
		drain += drainPerSecondLED
	}
	if drain == 0 {
		s.battery = math.Min(s.fullMv, s.battery+recoverPerSecond*secs)
		return
	}
	s.battery = math.Max(0, s.battery-drain*secs)
}

// sensorsLocked produces range readings that shrink as the robot drives forward.
func (s *Simulator) sensorsLocked() []uint16 {
	out := make([]uint16, s.sensors)
	fwd := (int(s.last.Left) + int(s.last.Right)) / 2
	turn := int(s.last.Left) - int(s.last.Right)
	for i := range out {
		v := 2000 + 150*i - 4*fwd + turn*(i-s.sensors/2)
		out[i] = uint16(min(max(v, 0), math.MaxUint16))
	}
	return out
}

// Stop closes the listener and waits for open connections.
func (s *Simulator) Stop() error {
	select {
	case <-s.stop:
		return nil
	default:
		close(s.stop)
	}
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	s.wg.Wait()
	return err
}
