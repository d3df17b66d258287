// Package adaptertest provides printer adapters and a fake network printer
// for tests.
package adaptertest

import (
	"errors"
	"sync"
)

// ErrMockWrite is returned by MockAdapter.Write when FailWrites is set.
var ErrMockWrite = errors.New("mock write failure")

// MockAdapter is an in-memory implementation of adapter.Adapter that records
// every call.
type MockAdapter struct {
	mu sync.Mutex

	open      bool
	writeData []byte
	opens     int
	closes    int
	writes    int

	// OpenErr, when set, is returned from Open.
	OpenErr error
	// FailWrites makes Write fail with ErrMockWrite.
	FailWrites bool
}

func (m *MockAdapter) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OpenErr != nil {
		return m.OpenErr
	}
	if m.open {
		return errors.New("device already open")
	}
	m.open = true
	m.opens++
	return nil
}

func (m *MockAdapter) Write(data []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return 0, errors.New("device not open")
	}
	if m.FailWrites {
		return 0, ErrMockWrite
	}
	m.writes++
	m.writeData = append(m.writeData, data...)
	return len(data), nil
}

func (m *MockAdapter) Read(buf []byte) (int, error) {
	return 0, nil
}

func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open {
		m.closes++
	}
	m.open = false
	return nil
}

func (m *MockAdapter) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Data returns a copy of everything written so far.
func (m *MockAdapter) Data() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.writeData...)
}

// Opens returns the number of successful Open calls.
func (m *MockAdapter) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

// Closes returns the number of Close calls made while open.
func (m *MockAdapter) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

// Writes returns the number of successful Write calls.
func (m *MockAdapter) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
