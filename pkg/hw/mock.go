package hw

import (
	"context"
	"sync"
)

// MockQueue is an in-process Channel for tests. Every command is completed
// by Respond (nil means success) instead of being sent to a dataplane.
type MockQueue struct {
	mu       sync.Mutex
	pending  []Cmd
	disabled bool

	// Issued holds every command that would have reached the dataplane, in
	// flush order.
	Issued  []Cmd
	Retired []Cmd
	Writes  int
	Respond func(cmd Cmd) error
}

var (
	_ Channel = (*MockQueue)(nil)
	_ Switch  = (*MockQueue)(nil)
)

func NewMockQueue() *MockQueue {
	return &MockQueue{}
}

func (m *MockQueue) Enqueue(cmd Cmd) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, cmd)
}

func (m *MockQueue) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disabled = false
}

func (m *MockQueue) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disabled = true
}

func (m *MockQueue) Write(ctx context.Context) error {
	m.mu.Lock()
	batch := m.pending
	m.pending = nil
	disabled := m.disabled
	respond := m.Respond
	m.Writes++
	m.mu.Unlock()

	for _, cmd := range batch {
		if disabled && !isDump(cmd) {
			cmd.Complete(nil)
			m.mu.Lock()
			m.Retired = append(m.Retired, cmd)
			m.mu.Unlock()
			continue
		}

		var err error
		if respond != nil {
			err = respond(cmd)
		}
		cmd.Complete(err)

		m.mu.Lock()
		m.Issued = append(m.Issued, cmd)
		m.mu.Unlock()
	}
	return nil
}

// Pending returns the number of commands enqueued but not yet written.
func (m *MockQueue) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// IssuedOf returns the issued commands of type T.
func IssuedOf[T Cmd](m *MockQueue) []T {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []T
	for _, cmd := range m.Issued {
		if c, ok := cmd.(T); ok {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets everything recorded so far.
func (m *MockQueue) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	m.Issued = nil
	m.Retired = nil
	m.Writes = 0
}
