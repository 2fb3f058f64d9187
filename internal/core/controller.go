package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/bep/debounce"
	"go.uber.org/zap"

	"RoboCtl/internal/model"
	"RoboCtl/internal/parser"
)

// ErrStaleReply is returned by Dispatch when a newer request finished first
// and this reply was discarded.
var ErrStaleReply = errors.New("stale reply discarded")

// Transport is the robot-facing side of the Controller.
type Transport interface {
	Ping(ctx context.Context) error
	Send(ctx context.Context, frame string) (string, error)
}

// ControllerOptions tunes the dispatch policy. Zero values take defaults.
type ControllerOptions struct {
	ResendInterval time.Duration // default 2s
	Debounce       time.Duration // default 300ms
	EventBuffer    int           // default 64
	Clock          clock.Clock
	Logger         *zap.SugaredLogger
}

// Controller owns the operator's control state and decides when it is sent.
//
// Any state change dispatches immediately unless a slider drag is in progress.
// While connected, the current state is re-sent every ResendInterval. Any reply
// that reaches the robot counts as connected and keeps the resend loop running. Each
// dispatch carries a sequence number, and replies older than the last applied
// one are dropped, so a slow reply never overwrites a newer result.
type Controller struct {
	transport Transport
	clock     clock.Clock
	interval  time.Duration
	log       *zap.SugaredLogger
	debounced func(func())
	events    chan model.Event

	mu           sync.Mutex
	idle         *sync.Cond
	state        model.ControlState
	drive        model.DriveInput
	status       model.ConnectionStatus
	telemetry    model.TelemetryFrame
	hasTelemetry bool
	dragging     bool
	closed       bool
	seq          uint64
	applied      uint64
	inflight     int

	loopMu sync.Mutex
	stop   chan struct{}
	loopWG sync.WaitGroup
}

// NewController creates a disconnected controller sending through t.
func NewController(t Transport, opts ControllerOptions) *Controller {
	if opts.ResendInterval <= 0 {
		opts.ResendInterval = 2 * time.Second
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	c := &Controller{
		transport: t,
		clock:     opts.Clock,
		interval:  opts.ResendInterval,
		log:       opts.Logger,
		debounced: debounce.New(opts.Debounce),
		events:    make(chan model.Event, opts.EventBuffer),
	}
	c.idle = sync.NewCond(&c.mu)
	return c
}

// Events delivers status, telemetry and error notifications.
// Events are dropped when the buffer is full.
func (c *Controller) Events() <-chan model.Event { return c.events }

// State returns the current control state.
func (c *Controller) State() model.ControlState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Drive returns the last speed/steering input.
func (c *Controller) Drive() model.DriveInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drive
}

// Status returns the connection status.
func (c *Controller) Status() model.ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Telemetry returns the most recently applied telemetry, if any.
func (c *Controller) Telemetry() (model.TelemetryFrame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tf := c.telemetry
	tf.Sensors = append([]uint16(nil), tf.Sensors...)
	return tf, c.hasTelemetry
}

// Dragging reports whether a slider drag is in progress.
func (c *Controller) Dragging() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dragging
}

// SetLeftMotor sets the left motor, clamped to [-128,127].
func (c *Controller) SetLeftMotor(v int) {
	c.update(func(s *model.ControlState) { s.Left = parser.Clamp8(v) })
}

// SetRightMotor sets the right motor, clamped to [-128,127].
func (c *Controller) SetRightMotor(v int) {
	c.update(func(s *model.ControlState) { s.Right = parser.Clamp8(v) })
}

// SetLED1 sets the first LED.
func (c *Controller) SetLED1(on bool) { c.update(func(s *model.ControlState) { s.LED1 = on }) }

// SetLED2 sets the second LED.
func (c *Controller) SetLED2(on bool) { c.update(func(s *model.ControlState) { s.LED2 = on }) }

// ToggleLED1 flips the first LED.
func (c *Controller) ToggleLED1() { c.update(func(s *model.ControlState) { s.LED1 = !s.LED1 }) }

// ToggleLED2 flips the second LED.
func (c *Controller) ToggleLED2() { c.update(func(s *model.ControlState) { s.LED2 = !s.LED2 }) }

// SetDrive sets both motors from the speed/steering sliders.
func (c *Controller) SetDrive(in model.DriveInput) {
	c.mu.Lock()
	c.drive = in
	c.mu.Unlock()
	c.update(func(s *model.ControlState) { s.Left, s.Right = parser.Mix(in) })
}

// Stop zeroes both motors and the drive sliders.
func (c *Controller) Stop() {
	c.SetDrive(model.DriveInput{})
}

// SetDriveDebounced applies a programmatic slider change now and sends it
// once no further change arrives within the debounce window.
func (c *Controller) SetDriveDebounced(in model.DriveInput) {
	c.mu.Lock()
	c.drive = in
	c.state.Left, c.state.Right = parser.Mix(in)
	c.mu.Unlock()
	c.debounced(func() { c.trigger("debounce") })
}

// BeginDrag suppresses every dispatch trigger until EndDrag.
func (c *Controller) BeginDrag() {
	c.mu.Lock()
	c.dragging = true
	c.mu.Unlock()
}

// EndDrag clears drag suppression and always flushes the current state once.
func (c *Controller) EndDrag() {
	c.mu.Lock()
	c.dragging = false
	c.mu.Unlock()
	c.dispatchAsync("drag-end")
}

// Connect pings the robot. On success the controller is Connected and the
// periodic resend loop starts; on failure the status is Error.
// The ping result is applied even if a dispatch finished while it was pending.
func (c *Controller) Connect(ctx context.Context) error {
	if err := c.transport.Ping(ctx); err != nil {
		c.mu.Lock()
		c.setStatusLocked(model.Error)
		c.emitLocked(model.Event{Kind: model.EventError, Message: err.Error()})
		c.mu.Unlock()
		c.log.Warnw("connect failed", "error", err)
		return fmt.Errorf("connect: %w", err)
	}
	c.mu.Lock()
	c.setStatusLocked(model.Connected)
	c.mu.Unlock()
	c.log.Infow("connected")
	c.startLoop()
	return nil
}

// Disconnect stops the resend loop and marks the controller Disconnected.
// Replies to requests already in flight are discarded. A later change that
// reaches the robot reconnects and restarts the loop.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	c.applied = c.seq
	c.setStatusLocked(model.Disconnected)
	c.mu.Unlock()
	c.stopLoop()
}

// Close disconnects and waits for in-flight requests.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.Disconnect()
	c.Wait()
}

// Wait blocks until every in-flight dispatch has finished.
func (c *Controller) Wait() {
	c.mu.Lock()
	for c.inflight > 0 {
		c.idle.Wait()
	}
	c.mu.Unlock()
}

// Dispatch sends the current state once and applies the reply.
// A short reply returns parser.ErrShortFrame and keeps prior telemetry;
// a malformed one returns parser.ErrMalformedFrame.
func (c *Controller) Dispatch(ctx context.Context) (model.TelemetryFrame, error) {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	state := c.state
	c.mu.Unlock()

	frame := parser.EncodeControl(state)
	c.log.Debugw("dispatch", "seq", seq, "frame", frame)

	reply, err := c.transport.Send(ctx, frame)
	if err != nil {
		applied := c.finish(seq, func() {
			c.setStatusLocked(model.Error)
			c.emitLocked(model.Event{Kind: model.EventError, Message: err.Error()})
		})
		if !applied {
			c.log.Debugw("stale failure dropped", "seq", seq)
			return model.TelemetryFrame{}, ErrStaleReply
		}
		c.log.Warnw("dispatch failed", "seq", seq, "error", err)
		return model.TelemetryFrame{}, err
	}

	tf, derr := parser.DecodeTelemetry(reply)
	applied := c.finish(seq, func() {
		c.setStatusLocked(model.Connected)
		switch {
		case derr == nil:
			c.telemetry = tf
			c.hasTelemetry = true
			c.emitLocked(model.Event{Kind: model.EventTelemetry, Telemetry: &tf})
		case errors.Is(derr, parser.ErrMalformedFrame):
			c.emitLocked(model.Event{Kind: model.EventMalformed, Message: derr.Error()})
		}
	})
	if !applied {
		c.log.Debugw("stale reply dropped", "seq", seq)
		return model.TelemetryFrame{}, ErrStaleReply
	}
	// resends run whenever Connected
	c.startLoop()
	if derr != nil {
		if errors.Is(derr, parser.ErrMalformedFrame) {
			c.log.Warnw("malformed reply", "seq", seq, "reply", reply, "error", derr)
		}
		return model.TelemetryFrame{}, derr
	}
	return tf, nil
}

// finish applies fn for request seq unless a newer outcome was already applied.
func (c *Controller) finish(seq uint64, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq <= c.applied {
		return false
	}
	c.applied = seq
	fn()
	return true
}

// update mutates the state and dispatches if anything changed.
func (c *Controller) update(fn func(*model.ControlState)) {
	c.mu.Lock()
	before := c.state
	fn(&c.state)
	changed := before != c.state
	c.mu.Unlock()
	if changed {
		c.trigger("change")
	}
}

// trigger dispatches unless a drag is in progress.
func (c *Controller) trigger(reason string) {
	if c.Dragging() {
		c.log.Debugw("dispatch suppressed while dragging", "reason", reason)
		return
	}
	c.dispatchAsync(reason)
}

func (c *Controller) dispatchAsync(reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.inflight++
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			c.inflight--
			if c.inflight == 0 {
				c.idle.Broadcast()
			}
			c.mu.Unlock()
		}()
		c.log.Debugw("dispatch triggered", "reason", reason)
		_, _ = c.Dispatch(context.Background())
	}()
}

// startLoop starts the periodic resend while Connected, unless it is already running.
func (c *Controller) startLoop() {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	if c.stop != nil {
		return
	}
	c.mu.Lock()
	run := !c.closed && c.status == model.Connected
	c.mu.Unlock()
	if !run {
		return
	}
	stop := make(chan struct{})
	c.stop = stop
	ticker := c.clock.Ticker(c.interval)

	c.loopWG.Add(1)
	go func() {
		defer c.loopWG.Done()
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.trigger("tick")
			}
		}
	}()
}

func (c *Controller) stopLoop() {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	if c.stop == nil {
		return
	}
	close(c.stop)
	c.stop = nil
	c.loopWG.Wait()
}

// setStatusLocked must be called with mu held.
func (c *Controller) setStatusLocked(s model.ConnectionStatus) {
	if c.status == s {
		return
	}
	c.status = s
	c.emitLocked(model.Event{Kind: model.EventStatus, Message: s.String()})
}

// emitLocked must be called with mu held; it never blocks.
func (c *Controller) emitLocked(ev model.Event) {
	ev.Status = c.status
	ev.At = c.clock.Now()
	select {
	case c.events <- ev:
	default:
	}
}
