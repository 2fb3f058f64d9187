package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"go.uber.org/zap"
)

const readBufferSize = 1024

// TCPDevice reaches the robot over a fresh TCP connection per exchange.
type TCPDevice struct {
	addr        string
	dialTimeout time.Duration
	ioTimeout   time.Duration
	log         *zap.SugaredLogger
}

// NewTCPDevice creates a TCP link to addr.
func NewTCPDevice(addr string, dialTimeout, ioTimeout time.Duration, logger *zap.SugaredLogger) *TCPDevice {
	if dialTimeout <= 0 {
		dialTimeout = 3 * time.Second
	}
	if ioTimeout <= 0 {
		ioTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &TCPDevice{addr: addr, dialTimeout: dialTimeout, ioTimeout: ioTimeout, log: logger}
}

func (d *TCPDevice) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	return conn, nil
}

// Probe dials the robot and closes the connection immediately.
func (d *TCPDevice) Probe(ctx context.Context) error {
	conn, err := d.dial(ctx)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Exchange writes frame and performs a single read of the reply.
func (d *TCPDevice) Exchange(ctx context.Context, frame string) (string, error) {
	conn, err := d.dial(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			d.log.Debugw("close robot connection", "error", cerr)
		}
	}()

	deadline := time.Now().Add(d.ioTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return "", fmt.Errorf("set deadline: %w", err)
	}

	d.log.Debugw("sending frame", "addr", d.addr, "frame", frame)
	if _, err := conn.Write([]byte(frame)); err != nil {
		return "", fmt.Errorf("write frame: %w", err)
	}

	buf := make([]byte, readBufferSize)
	n, err := conn.Read(buf)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", ErrNoResponse
		}
		return "", fmt.Errorf("read reply: %w", err)
	}
	reply := string(buf[:n])
	d.log.Debugw("received reply", "addr", d.addr, "reply", reply)
	return reply, nil
}

// Close is a no-op; connections are per exchange.
func (d *TCPDevice) Close() error { return nil }
