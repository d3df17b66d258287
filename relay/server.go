// Package relay exposes the printer connection as a raw TCP print port, so
// other hosts can print through this one.
package relay

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nixxel-company-limited/escpos-feed-printer/printer"
)

// Server represents a TCP server that forwards data to the printer. Each
// client session becomes one print job: the bytes are buffered while the
// client is connected and committed when it closes its side.
type Server struct {
	conn     *printer.Connection
	listener net.Listener
	address  string
	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	clients  map[net.Conn]struct{}
	wg       sync.WaitGroup
	logger   zerolog.Logger
}

// New creates a new server instance
func New(conn *printer.Connection, address string, logger zerolog.Logger) *Server {
	return &Server{
		conn:    conn,
		address: address,
		logger:  logger.With().Str("component", "relay").Logger(),
	}
}

func (s *Server) listen() (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to start server")
		return nil, fmt.Errorf("failed to start server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.listener = listener
	s.cancel = cancel
	s.clients = make(map[net.Conn]struct{})
	s.running = true
	s.logger.Info().Str("address", listener.Addr().String()).Msg("server listening")
	return ctx, nil
}

// Start starts the TCP server and blocks until Stop is called
func (s *Server) Start() error {
	ctx, err := s.listen()
	if err != nil {
		return err
	}
	s.wg.Add(1)
	s.acceptConnections(ctx)
	return nil
}

// StartAsync starts the TCP server in a goroutine (non-blocking)
func (s *Server) StartAsync() error {
	ctx, err := s.listen()
	if err != nil {
		return err
	}
	s.wg.Add(1)
	go s.acceptConnections(ctx)
	return nil
}

// Serve runs the server until ctx is done, then stops it. A ctx that is
// already done stops the server as soon as it is listening.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.StartAsync(); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

// acceptConnections handles incoming client connections
func (s *Server) acceptConnections(ctx context.Context) {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.IsRunning() {
				return
			}
			s.logger.Warn().Err(err).Msg("error accepting connection")
			continue
		}

		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.clients[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(ctx, conn)
	}
}

// handleConnection prints everything one client sends as a single job
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	client := conn.RemoteAddr().String()
	log := s.logger.With().Str("client", client).Logger()
	log.Debug().Msg("client connected")

	// The handle is held for the whole session so relayed bytes never
	// interleave with other jobs.
	h, err := s.conn.Acquire(ctx)
	if err != nil {
		log.Error().Err(err).Msg("printer unavailable, dropping client")
		return
	}
	defer h.Release()

	buf := make([]byte, 4096)
	total := 0
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			h.WriteRaw(buf[:n])
			total += n
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn().Err(err).Msg("error reading from client, job abandoned")
			return
		}
	}

	if total == 0 {
		return
	}
	if err := h.Commit(); err != nil {
		log.Error().Err(err).Msg("relay job failed")
		return
	}
	log.Info().Int("bytes", total).Msg("relay job printed")
}

// Stop stops accepting clients, drops unfinished sessions and waits for
// their handlers to return. The printer connection is left open for its
// owner to close.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	listener := s.listener
	cancel := s.cancel
	for c := range s.clients {
		c.Close()
	}
	s.mu.Unlock()

	cancel()
	listener.Close()
	s.wg.Wait()
	s.logger.Info().Msg("server stopped")
	return nil
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Address returns the address the server listens on; after start this is
// the bound address.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.address
}
