// Package printer owns the connection to the physical printer and the
// per-transport rules for flushing print jobs to it.
package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nixxel-company-limited/escpos-feed-printer/adapter"
	"github.com/nixxel-company-limited/escpos-feed-printer/escpos"
)

var (
	// ErrTransportUnreachable is returned by Acquire when the printer
	// cannot be opened.
	ErrTransportUnreachable = errors.New("printer unreachable")
	// ErrTransport wraps write and close failures during Commit.
	ErrTransport = errors.New("printer transport error")
	// ErrHandleDone is returned when a committed or released handle is used.
	ErrHandleDone = errors.New("print handle already finished")
)

// State is the connection state.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Connection is the process's single link to the printer. Jobs are
// serialized: a handle obtained from Acquire owns the connection until it
// is committed or released.
type Connection struct {
	adapter    adapter.Adapter
	persistent bool
	logger     zerolog.Logger

	// sem holds one token while a handle is outstanding.
	sem chan struct{}

	mu    sync.Mutex
	state State
	jobs  uint64
}

// New creates a connection for transport t. Nothing is opened until the
// first Acquire.
func New(t Transport, policy Policy, logger zerolog.Logger) (*Connection, error) {
	a, err := t.Adapter(logger)
	if err != nil {
		return nil, err
	}
	c := NewConnection(a, t.Persistent(policy), logger)
	c.logger = c.logger.With().Str("transport", t.String()).Logger()
	return c, nil
}

// NewConnection wraps an adapter. With persistent set the adapter stays
// open between jobs; otherwise it is opened on Acquire and closed on Commit.
func NewConnection(a adapter.Adapter, persistent bool, logger zerolog.Logger) *Connection {
	return &Connection{
		adapter:    a,
		persistent: persistent,
		logger:     logger.With().Str("component", "printer").Logger(),
		sem:        make(chan struct{}, 1),
	}
}

// Persistent reports whether the transport outlives a single job.
func (c *Connection) Persistent() bool {
	return c.persistent
}

// State returns the current connection state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Acquire waits for exclusive use of the printer and opens the transport
// if it is not already open.
func (c *Connection) Acquire(ctx context.Context) (*Handle, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := c.open(ctx); err != nil {
		<-c.sem
		return nil, err
	}

	c.mu.Lock()
	c.jobs++
	job := c.jobs
	c.mu.Unlock()

	return &Handle{conn: c, job: job}, nil
}

func (c *Connection) open(ctx context.Context) error {
	if c.adapter.IsOpen() {
		c.setState(StateOpen)
		return nil
	}

	c.setState(StateOpening)
	if err := adapter.OpenContext(ctx, c.adapter); err != nil {
		c.setState(StateClosed)
		return fmt.Errorf("%w: %w", ErrTransportUnreachable, err)
	}
	c.setState(StateOpen)
	c.logger.Info().Bool("persistent", c.persistent).Msg("printer opened")
	return nil
}

func (c *Connection) closeAdapter() error {
	err := c.adapter.Close()
	c.setState(StateClosed)
	return err
}

func (c *Connection) release() {
	<-c.sem
}

// Print runs job as a single acquire, write and commit.
func (c *Connection) Print(ctx context.Context, job *escpos.Job) error {
	h, err := c.Acquire(ctx)
	if err != nil {
		return err
	}
	defer h.Release()

	if err := h.Write(job); err != nil {
		return err
	}
	return h.Commit()
}

// Close closes the transport, waiting for any outstanding handle first.
func (c *Connection) Close() error {
	c.sem <- struct{}{}
	defer c.release()

	err := c.closeAdapter()
	if r, ok := c.adapter.(adapter.Releaser); ok {
		if rerr := r.Release(); err == nil {
			err = rerr
		}
	}
	return err
}

// Handle is exclusive access to the printer for one job.
type Handle struct {
	conn *Connection
	job  uint64
	buf  []byte
	done bool
}

// Write appends job's commands to the handle's buffer. Directives keep
// their order; nothing reaches the printer before Commit.
func (h *Handle) Write(job *escpos.Job) error {
	if h.done {
		return ErrHandleDone
	}
	data, err := job.Encode()
	if err != nil {
		return err
	}
	h.buf = append(h.buf, data...)
	return nil
}

// WriteRaw appends pre-encoded ESC/POS bytes to the handle's buffer.
func (h *Handle) WriteRaw(data []byte) error {
	if h.done {
		return ErrHandleDone
	}
	h.buf = append(h.buf, data...)
	return nil
}

// Commit flushes the buffer to the printer and gives up the connection.
// Per-job transports are closed afterwards; persistent ones stay open for
// the next job unless the write failed.
func (h *Handle) Commit() error {
	if h.done {
		return ErrHandleDone
	}
	h.done = true
	c := h.conn
	defer c.release()

	err := writeAll(c.adapter, h.buf)
	size := len(h.buf)
	h.buf = nil

	if err != nil {
		// A socket that failed mid-write is unusable; the next Acquire redials.
		c.closeAdapter()
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	if !c.persistent {
		if err := c.closeAdapter(); err != nil {
			return fmt.Errorf("%w: close: %w", ErrTransport, err)
		}
	}

	c.logger.Debug().Uint64("job", h.job).Int("bytes", size).Msg("job committed")
	return nil
}

// Release abandons the job if it has not been committed. It is safe to
// call after Commit.
func (h *Handle) Release() {
	if h.done {
		return
	}
	h.done = true
	h.buf = nil
	c := h.conn
	if !c.persistent {
		c.closeAdapter()
	}
	c.logger.Debug().Uint64("job", h.job).Msg("job abandoned")
	c.release()
}

func writeAll(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := w.Write(data)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		data = data[n:]
	}
	return nil
}
