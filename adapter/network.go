package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// NetworkAdapter speaks to a printer over a raw TCP byte stream
// (JetDirect-style, usually port 9100).
type NetworkAdapter struct {
	address string
	timeout time.Duration
	conn    net.Conn
	mu      sync.Mutex
	logger  zerolog.Logger
}

// NewNetworkAdapter creates an adapter for the printer at address
// (host:port). A zero timeout leaves dialing bounded only by the context.
func NewNetworkAdapter(address string, timeout time.Duration, logger zerolog.Logger) *NetworkAdapter {
	return &NetworkAdapter{
		address: address,
		timeout: timeout,
		logger:  logger.With().Str("adapter", "network").Str("address", address).Logger(),
	}
}

// Address returns the printer address
func (a *NetworkAdapter) Address() string {
	return a.address
}

// Open dials the printer
func (a *NetworkAdapter) Open() error {
	return a.OpenContext(context.Background())
}

// OpenContext dials the printer, giving up when ctx is done.
func (a *NetworkAdapter) OpenContext(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn != nil {
		return errors.New("connection already open")
	}

	dialer := net.Dialer{Timeout: a.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", a.address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", a.address, err)
	}

	a.conn = conn
	a.logger.Debug().Str("local", conn.LocalAddr().String()).Msg("socket opened")
	return nil
}

// Write sends data onto the socket
func (a *NetworkAdapter) Write(data []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == nil {
		return 0, ErrNotOpen
	}

	n, err := a.conn.Write(data)
	if err != nil {
		return n, fmt.Errorf("write failed: %w", err)
	}
	return n, nil
}

// Read reads status bytes sent back by the printer
func (a *NetworkAdapter) Read(buf []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == nil {
		return 0, ErrNotOpen
	}

	n, err := a.conn.Read(buf)
	if err != nil {
		return n, fmt.Errorf("read failed: %w", err)
	}
	return n, nil
}

// Close closes the socket
func (a *NetworkAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == nil {
		return nil
	}

	err := a.conn.Close()
	a.conn = nil
	a.logger.Debug().Msg("socket closed")
	return err
}

// IsOpen returns whether the socket is open
func (a *NetworkAdapter) IsOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn != nil
}
