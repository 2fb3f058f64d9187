package device

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	serial "go.bug.st/serial"
)

// SerialDevice implements Device using go.bug.st/serial package.
// Frames go out newline-terminated and the reply is one line.
type SerialDevice struct {
	dev       string
	baud      int
	ioTimeout time.Duration
	log       *zap.SugaredLogger

	mu   sync.Mutex
	port serial.Port
	r    *bufio.Reader
}

// NewSerialDevice creates a serial link; the port opens on first use.
func NewSerialDevice(dev string, baud int, ioTimeout time.Duration, logger *zap.SugaredLogger) *SerialDevice {
	if ioTimeout <= 0 {
		ioTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SerialDevice{dev: dev, baud: baud, ioTimeout: ioTimeout, log: logger}
}

// open must be called with mu held.
func (s *SerialDevice) open() error {
	if s.port != nil {
		return nil
	}
	p, err := serial.Open(s.dev, &serial.Mode{BaudRate: s.baud})
	if err != nil {
		return fmt.Errorf("%w: open serial %s: %w", ErrUnreachable, s.dev, err)
	}
	s.port = p
	s.r = bufio.NewReader(p)
	s.log.Infow("serial link open", "device", s.dev, "baud", s.baud)
	return nil
}

// Probe opens the port if needed.
func (s *SerialDevice) Probe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open()
}

// Exchange writes frame followed by '\n' and reads one reply line.
// Exchanges are serialized; the port carries one conversation at a time.
func (s *SerialDevice) Exchange(ctx context.Context, frame string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return "", err
	}

	if _, err := s.port.Write(append([]byte(frame), '\n')); err != nil {
		s.reset()
		return "", fmt.Errorf("write frame: %w", err)
	}

	line, err := s.readLine(ctx)
	if err != nil {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", ErrNoResponse
	}
	return line, nil
}

// readLine reads a single line, returning after ioTimeout or ctx end.
func (s *SerialDevice) readLine(ctx context.Context) (string, error) {
	ch := make(chan struct {
		line string
		err  error
	}, 1)

	r := s.r
	go func() {
		line, err := r.ReadString('\n')
		ch <- struct {
			line string
			err  error
		}{line, err}
	}()

	timer := time.NewTimer(s.ioTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			s.reset()
			return "", fmt.Errorf("read reply: %w", res.err)
		}
		return res.line, nil
	case <-timer.C:
		// the pending reader owns the old bufio.Reader; start over on next use
		s.reset()
		return "", errors.New("read timeout")
	case <-ctx.Done():
		s.reset()
		return "", ctx.Err()
	}
}

// reset must be called with mu held.
func (s *SerialDevice) reset() {
	if s.port == nil {
		return
	}
	if err := s.port.Close(); err != nil {
		s.log.Warnw("close serial port", "device", s.dev, "error", err)
	}
	s.port = nil
	s.r = nil
}

// Close closes the underlying serial port.
func (s *SerialDevice) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	s.r = nil
	return err
}
