package device

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"RoboCtl/internal/model"
)

// serveOnce accepts connections and hands each to fn.
func serveOnce(t *testing.T, fn func(net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				fn(conn)
			}()
		}
	}()
	return ln.Addr().String()
}

func TestTCPExchange(t *testing.T) {
	got := make(chan string, 1)
	addr := serveOnce(t, func(c net.Conn) {
		buf := make([]byte, 64)
		n, _ := c.Read(buf)
		got <- string(buf[:n])
		_, _ = c.Write([]byte("[00012a0005000a]"))
	})

	d := NewTCPDevice(addr, time.Second, time.Second, zaptest.NewLogger(t).Sugar())
	reply, err := d.Exchange(context.Background(), "[10ce32]")
	require.NoError(t, err)
	assert.Equal(t, "[00012a0005000a]", reply)
	assert.Equal(t, "[10ce32]", <-got)
}

func TestTCPExchangeNoResponse(t *testing.T) {
	addr := serveOnce(t, func(c net.Conn) {
		buf := make([]byte, 64)
		_, _ = c.Read(buf)
	})

	d := NewTCPDevice(addr, time.Second, time.Second, nil)
	_, err := d.Exchange(context.Background(), "[000000]")
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestTCPUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	d := NewTCPDevice(addr, 200*time.Millisecond, time.Second, nil)
	assert.ErrorIs(t, d.Probe(context.Background()), ErrUnreachable)
	_, err = d.Exchange(context.Background(), "[000000]")
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestTCPProbe(t *testing.T) {
	addr := serveOnce(t, func(net.Conn) {})
	d := NewTCPDevice(addr, time.Second, time.Second, nil)
	assert.NoError(t, d.Probe(context.Background()))
}

func TestMockDevice(t *testing.T) {
	m := NewMockDevice()
	require.NoError(t, m.Probe(context.Background()))
	reply, err := m.Exchange(context.Background(), "[10ce32]")
	require.NoError(t, err)
	assert.Equal(t, MockReply, reply)
	assert.Equal(t, []string{"[10ce32]"}, m.Frames())
}

func TestOpen(t *testing.T) {
	d, err := Open(model.LinkConfig{Kind: "mock"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MockDevice{}, d)

	d, err = Open(model.LinkConfig{Kind: "tcp", Address: "127.0.0.1:1"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &TCPDevice{}, d)

	d, err = Open(model.LinkConfig{Kind: "serial", SerialDevice: "/dev/null-robot"}, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, d.Probe(context.Background()), ErrUnreachable)

	_, err = Open(model.LinkConfig{Kind: "lora"}, nil)
	assert.Error(t, err)
}
