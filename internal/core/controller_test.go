package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"RoboCtl/internal/model"
	"RoboCtl/internal/parser"
)

const okReply = "[00012a0005000a]"

type fakeTransport struct {
	mu       sync.Mutex
	frames   []string
	pings    int
	pingErr  error
	pingGate chan struct{} // when set, Ping blocks until it is closed
	reply    func(frame string) (string, error)
}

func (f *fakeTransport) Ping(ctx context.Context) error {
	f.mu.Lock()
	f.pings++
	gate, err := f.pingGate, f.pingErr
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeTransport) Send(ctx context.Context, frame string) (string, error) {
	f.mu.Lock()
	f.frames = append(f.frames, frame)
	reply := f.reply
	f.mu.Unlock()
	if reply == nil {
		return okReply, nil
	}
	return reply(frame)
}

func (f *fakeTransport) Frames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.frames...)
}

func (f *fakeTransport) count() int { return len(f.Frames()) }

func newTestController(t *testing.T, ft *fakeTransport, mock *clock.Mock) *Controller {
	t.Helper()
	opts := ControllerOptions{
		Debounce: 50 * time.Millisecond,
		Logger:   zaptest.NewLogger(t).Sugar(),
	}
	if mock == nil {
		mock = clock.NewMock()
	}
	opts.Clock = mock
	c := NewController(ft, opts)
	t.Cleanup(c.Close)
	return c
}

func drainEvents(c *Controller) []model.Event {
	var out []model.Event
	for {
		select {
		case ev := <-c.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestControllerChangeDispatches(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestController(t, ft, nil)

	c.SetLeftMotor(-50)
	c.SetRightMotor(50)
	c.SetLED1(true)
	c.Wait()

	frames := ft.Frames()
	assert.Len(t, frames, 3)
	assert.Contains(t, frames, "[10ce32]")
	assert.Equal(t, model.ControlState{LED1: true, Left: -50, Right: 50}, c.State())

	tf, ok := c.Telemetry()
	require.True(t, ok)
	assert.Equal(t, uint16(298), tf.BatteryMilliVolts)
	assert.Equal(t, model.Connected, c.Status())
}

func TestControllerUnchangedValueDoesNotDispatch(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestController(t, ft, nil)

	c.SetLED1(false)
	c.SetLeftMotor(0)
	c.Wait()
	assert.Zero(t, ft.count())
}

func TestControllerClampsMotors(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestController(t, ft, nil)

	c.SetLeftMotor(-500)
	c.SetRightMotor(500)
	c.Wait()
	assert.Equal(t, model.ControlState{Left: -128, Right: 127}, c.State())
}

func TestControllerDragSuppression(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestController(t, ft, nil)

	c.BeginDrag()
	c.SetLeftMotor(10)
	c.SetLeftMotor(20)
	c.ToggleLED2()
	c.Wait()
	assert.Zero(t, ft.count(), "no dispatch while dragging")
	assert.True(t, c.Dragging())

	c.EndDrag()
	c.Wait()
	assert.Equal(t, []string{"[011400]"}, ft.Frames())
}

func TestControllerDragEndAlwaysFlushes(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestController(t, ft, nil)

	c.BeginDrag()
	c.EndDrag()
	c.Wait()
	assert.Equal(t, []string{"[000000]"}, ft.Frames())
}

func TestControllerSetDrive(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestController(t, ft, nil)

	c.SetDrive(model.DriveInput{Speed: 50, Steering: 20})
	c.Wait()
	assert.Equal(t, []string{"[00461e]"}, ft.Frames())
	assert.Equal(t, model.DriveInput{Speed: 50, Steering: 20}, c.Drive())

	c.Stop()
	c.Wait()
	assert.Equal(t, model.ControlState{}, c.State())
}

func TestControllerPeriodicResend(t *testing.T) {
	mock := clock.NewMock()
	ft := &fakeTransport{}
	c := newTestController(t, ft, mock)

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, model.Connected, c.Status())
	assert.Zero(t, ft.count())

	mock.Add(2 * time.Second)
	require.Eventually(t, func() bool { return ft.count() == 1 }, time.Second, 5*time.Millisecond)

	mock.Add(2 * time.Second)
	require.Eventually(t, func() bool { return ft.count() == 2 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"[000000]", "[000000]"}, ft.Frames(), "unchanged state is re-sent")
}

func TestControllerTickSuppressedWhileDragging(t *testing.T) {
	mock := clock.NewMock()
	ft := &fakeTransport{}
	c := newTestController(t, ft, mock)

	require.NoError(t, c.Connect(context.Background()))
	c.BeginDrag()
	for i := 0; i < 3; i++ {
		mock.Add(2 * time.Second)
	}
	assert.Never(t, func() bool { return ft.count() > 0 }, 100*time.Millisecond, 10*time.Millisecond)

	c.EndDrag()
	c.Wait()
	assert.Equal(t, 1, ft.count())
}

func TestControllerDisconnectStopsResend(t *testing.T) {
	mock := clock.NewMock()
	ft := &fakeTransport{}
	c := newTestController(t, ft, mock)

	require.NoError(t, c.Connect(context.Background()))
	c.Disconnect()
	assert.Equal(t, model.Disconnected, c.Status())

	mock.Add(4 * time.Second)
	assert.Never(t, func() bool { return ft.count() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestControllerConnectFailure(t *testing.T) {
	mock := clock.NewMock()
	ft := &fakeTransport{pingErr: errors.New("dial tcp: connection refused")}
	c := newTestController(t, ft, mock)

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.Error, c.Status())

	evs := drainEvents(c)
	require.NotEmpty(t, evs)
	var kinds []model.EventKind
	for _, ev := range evs {
		kinds = append(kinds, ev.Kind)
	}
	assert.Contains(t, kinds, model.EventError)

	mock.Add(2 * time.Second)
	assert.Never(t, func() bool { return ft.count() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestControllerNetworkFailureKeepsTelemetry(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestController(t, ft, nil)

	_, err := c.Dispatch(context.Background())
	require.NoError(t, err)

	ft.mu.Lock()
	ft.reply = func(string) (string, error) { return "", errors.New("timeout") }
	ft.mu.Unlock()

	_, err = c.Dispatch(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.Error, c.Status())

	tf, ok := c.Telemetry()
	require.True(t, ok)
	assert.Equal(t, uint16(298), tf.BatteryMilliVolts)
}

func TestControllerStatusErrorSurfacesBody(t *testing.T) {
	ft := &fakeTransport{reply: func(string) (string, error) {
		return "", &StatusError{Code: 503, Body: "Could not connect to robot"}
	}}
	c := newTestController(t, ft, nil)

	_, err := c.Dispatch(context.Background())
	require.Error(t, err)

	var msgs []string
	for _, ev := range drainEvents(c) {
		if ev.Kind == model.EventError {
			msgs = append(msgs, ev.Message)
		}
	}
	assert.Equal(t, []string{"Could not connect to robot"}, msgs)
}

func TestControllerShortReplyIgnored(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestController(t, ft, nil)

	_, err := c.Dispatch(context.Background())
	require.NoError(t, err)

	ft.mu.Lock()
	ft.reply = func(string) (string, error) { return "[0012]", nil }
	ft.mu.Unlock()

	_, err = c.Dispatch(context.Background())
	assert.ErrorIs(t, err, parser.ErrShortFrame)

	tf, _ := c.Telemetry()
	assert.Equal(t, []uint16{5, 10}, tf.Sensors)
	assert.Equal(t, model.Connected, c.Status())
}

func TestControllerMalformedReply(t *testing.T) {
	ft := &fakeTransport{reply: func(string) (string, error) { return "[00zzzz]", nil }}
	c := newTestController(t, ft, nil)

	_, err := c.Dispatch(context.Background())
	assert.ErrorIs(t, err, parser.ErrMalformedFrame)

	_, ok := c.Telemetry()
	assert.False(t, ok)

	var malformed int
	for _, ev := range drainEvents(c) {
		if ev.Kind == model.EventMalformed {
			malformed++
		}
	}
	assert.Equal(t, 1, malformed)
}

func TestControllerStaleReplyDropped(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	ft := &fakeTransport{}
	ft.reply = func(frame string) (string, error) {
		if frame == "[100000]" {
			close(started)
			<-release
			return "[000001]", nil // battery 1
		}
		return "[000002]", nil // battery 2
	}
	c := newTestController(t, ft, nil)

	c.mu.Lock()
	c.state.LED1 = true
	c.mu.Unlock()

	slow := make(chan error, 1)
	go func() {
		_, err := c.Dispatch(context.Background())
		slow <- err
	}()
	<-started

	c.mu.Lock()
	c.state.LED1 = false
	c.mu.Unlock()

	tf, err := c.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(2), tf.BatteryMilliVolts)

	close(release)
	assert.ErrorIs(t, <-slow, ErrStaleReply)

	got, _ := c.Telemetry()
	assert.Equal(t, uint16(2), got.BatteryMilliVolts, "late reply must not overwrite newer telemetry")
}

func TestControllerDebounce(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestController(t, ft, nil)

	for i := 1; i <= 5; i++ {
		c.SetDriveDebounced(model.DriveInput{Speed: i * 10})
	}
	assert.Equal(t, model.ControlState{Left: 50, Right: 50}, c.State(), "state updates immediately")

	require.Eventually(t, func() bool { return ft.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return ft.count() > 1 }, 150*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, []string{"[003232]"}, ft.Frames())
}

func TestControllerEventsStatusTransitions(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestController(t, ft, clock.NewMock())

	require.NoError(t, c.Connect(context.Background()))
	c.Disconnect()

	var statuses []string
	for _, ev := range drainEvents(c) {
		if ev.Kind == model.EventStatus {
			statuses = append(statuses, ev.Message)
		}
	}
	assert.Equal(t, []string{"connected", "disconnected"}, statuses)
}

func TestControllerChangeAfterFailedConnectStartsResend(t *testing.T) {
	mock := clock.NewMock()
	ft := &fakeTransport{pingErr: errors.New("connection refused")}
	c := newTestController(t, ft, mock)

	require.Error(t, c.Connect(context.Background()))
	assert.Equal(t, model.Error, c.Status())

	c.SetLeftMotor(10)
	c.Wait()
	assert.Equal(t, model.Connected, c.Status())
	require.Equal(t, 1, ft.count())

	mock.Add(2 * time.Second)
	require.Eventually(t, func() bool { return ft.count() == 2 }, time.Second, 5*time.Millisecond)
	mock.Add(2 * time.Second)
	require.Eventually(t, func() bool { return ft.count() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "[000a00]", ft.Frames()[2])
}

func TestControllerChangeAfterDisconnectReconnects(t *testing.T) {
	mock := clock.NewMock()
	ft := &fakeTransport{}
	c := newTestController(t, ft, mock)

	require.NoError(t, c.Connect(context.Background()))
	c.Disconnect()
	assert.Equal(t, model.Disconnected, c.Status())

	c.SetLED1(true)
	c.Wait()
	assert.Equal(t, model.Connected, c.Status())
	require.Equal(t, []string{"[100000]"}, ft.Frames())

	mock.Add(2 * time.Second)
	require.Eventually(t, func() bool { return ft.count() == 2 }, time.Second, 5*time.Millisecond)

	c.Disconnect()
	mock.Add(4 * time.Second)
	assert.Never(t, func() bool { return ft.count() > 2 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestControllerFailedDispatchKeepsResend(t *testing.T) {
	mock := clock.NewMock()
	var fail sync.Mutex
	failing := true
	ft := &fakeTransport{reply: func(string) (string, error) {
		fail.Lock()
		defer fail.Unlock()
		if failing {
			return "", errors.New("timeout")
		}
		return okReply, nil
	}}
	c := newTestController(t, ft, mock)

	require.NoError(t, c.Connect(context.Background()))
	c.SetLED2(true)
	c.Wait()
	assert.Equal(t, model.Error, c.Status())

	fail.Lock()
	failing = false
	fail.Unlock()

	mock.Add(2 * time.Second)
	require.Eventually(t, func() bool { return c.Status() == model.Connected }, time.Second, 5*time.Millisecond)
}

func TestControllerConnectAppliesAfterConcurrentDispatch(t *testing.T) {
	mock := clock.NewMock()
	gate := make(chan struct{})
	ft := &fakeTransport{
		pingGate: gate,
		reply:    func(string) (string, error) { return "", errors.New("timeout") },
	}
	c := newTestController(t, ft, mock)

	connected := make(chan error, 1)
	go func() { connected <- c.Connect(context.Background()) }()
	require.Eventually(t, func() bool {
		ft.mu.Lock()
		defer ft.mu.Unlock()
		return ft.pings == 1
	}, time.Second, 5*time.Millisecond)

	_, err := c.Dispatch(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.Error, c.Status())

	ft.mu.Lock()
	ft.reply = nil
	ft.mu.Unlock()
	close(gate)
	require.NoError(t, <-connected)
	assert.Equal(t, model.Connected, c.Status())

	mock.Add(2 * time.Second)
	require.Eventually(t, func() bool { return ft.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestControllerCloseStopsResend(t *testing.T) {
	mock := clock.NewMock()
	ft := &fakeTransport{}
	c := newTestController(t, ft, mock)

	require.NoError(t, c.Connect(context.Background()))
	c.Close()

	_, err := c.Dispatch(context.Background())
	require.NoError(t, err)
	mock.Add(4 * time.Second)
	assert.Never(t, func() bool { return ft.count() > 1 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestControllerStaleFailureLogged(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	ft := &fakeTransport{}
	ft.reply = func(frame string) (string, error) {
		if frame == "[100000]" {
			close(started)
			<-release
			return "", errors.New("timeout")
		}
		return okReply, nil
	}
	obs, logs := observer.New(zap.DebugLevel)
	c := NewController(ft, ControllerOptions{Clock: clock.NewMock(), Logger: zap.New(obs).Sugar()})
	t.Cleanup(c.Close)

	c.mu.Lock()
	c.state.LED1 = true
	c.mu.Unlock()

	slow := make(chan error, 1)
	go func() {
		_, err := c.Dispatch(context.Background())
		slow <- err
	}()
	<-started

	c.mu.Lock()
	c.state.LED1 = false
	c.mu.Unlock()
	_, err := c.Dispatch(context.Background())
	require.NoError(t, err)

	close(release)
	assert.ErrorIs(t, <-slow, ErrStaleReply)
	assert.Equal(t, model.Connected, c.Status(), "late failure must not overwrite the newer outcome")
	assert.Equal(t, 1, logs.FilterMessage("stale failure dropped").Len())
}
