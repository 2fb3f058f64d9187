package device

import (
	"context"
	"sync"
)

// MockReply is the canned telemetry frame returned in mock mode.
const MockReply = "[01c01200300230005001840203]"

// MockDevice answers every exchange with MockReply and records the frames it saw.
type MockDevice struct {
	mu     sync.Mutex
	frames []string
}

// NewMockDevice creates a mock robot link.
func NewMockDevice() *MockDevice { return &MockDevice{} }

// Probe always succeeds.
func (m *MockDevice) Probe(ctx context.Context) error { return nil }

// Exchange records frame and returns MockReply.
func (m *MockDevice) Exchange(ctx context.Context, frame string) (string, error) {
	m.mu.Lock()
	m.frames = append(m.frames, frame)
	m.mu.Unlock()
	return MockReply, nil
}

// Frames returns a copy of every frame received so far.
func (m *MockDevice) Frames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.frames...)
}

// Close is a no-op.
func (m *MockDevice) Close() error { return nil }
