package adaptertest

import (
	"net"
	"sync"
	"testing"
)

// Sink is a fake raw-TCP printer. It accepts any number of connections and
// records the bytes received on each of them.
type Sink struct {
	listener net.Listener
	mu       sync.Mutex
	running  bool
	sessions [][]byte
}

// NewSink starts a sink on a random loopback port and stops it when the test
// ends.
func NewSink(t testing.TB) *Sink {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start sink: %v", err)
	}

	s := &Sink{listener: listener, running: true}
	go s.acceptConnections()
	t.Cleanup(s.Stop)
	return s
}

// Addr returns the host:port the sink listens on.
func (s *Sink) Addr() string {
	return s.listener.Addr().String()
}

func (s *Sink) acceptConnections() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()
			if !running {
				return
			}
			continue
		}

		s.mu.Lock()
		idx := len(s.sessions)
		s.sessions = append(s.sessions, nil)
		s.mu.Unlock()

		go s.handleConnection(conn, idx)
	}
}

func (s *Sink) handleConnection(conn net.Conn, idx int) {
	defer conn.Close()

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			s.mu.Lock()
			s.sessions[idx] = append(s.sessions[idx], buf[:n]...)
			s.mu.Unlock()
		}
		if err != nil {
			// io.EOF is the normal end of a session.
			return
		}
	}
}

// Connections returns how many clients have connected so far.
func (s *Sink) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Received returns the bytes received on the idx-th connection.
func (s *Sink) Received(idx int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx >= len(s.sessions) {
		return nil
	}
	return append([]byte(nil), s.sessions[idx]...)
}

// Total returns the number of bytes received across all connections.
func (s *Sink) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, b := range s.sessions {
		total += len(b)
	}
	return total
}

// Stop closes the listener. Connections still open are left to the client.
func (s *Sink) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()
	s.listener.Close()
}
