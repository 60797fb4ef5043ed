// Package irctest provides a scripted in-memory IRC server for testing
// clients without a network.
package irctest

import (
	"bufio"
	"log"
	"net"
	"strings"
	"sync"

	irc "github.com/jamierocks/KittehIRCClientLib"
)

// NewServer creates a new mock irc server. The returned server's Dial method
// hands out the client half of an in-memory pipe. Don't forget to close.
func NewServer() *Server {
	s := &Server{}
	s.clientConn, s.serverConn = net.Pipe()
	go s.read()
	return s
}

// Server is a mock IRC server backed by a net.Pipe. Incoming client messages
// are parsed and passed to OnMessage; WriteString speaks as the server.
type Server struct {
	// OnMessage is called for every message the client sends, in order,
	// from the server's single handler goroutine. Set it before the client
	// connects.
	OnMessage func(s *Server, m *irc.Message)

	clientConn net.Conn
	serverConn net.Conn

	mu   sync.Mutex
	sent []string // lines received from the client, in order

	closeOnce sync.Once
}

// Dial returns the client half of the pipe, for use as a client DialFn.
func (s *Server) Dial() (net.Conn, error) {
	return s.clientConn, nil
}

func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		_ = s.serverConn.Close()
		_ = s.clientConn.Close()
	})
	return nil
}

// WriteString sends a raw line from the server to the client.
func (s *Server) WriteString(str string) {
	if !strings.HasSuffix(str, "\r\n") {
		str = str + "\r\n"
	}
	if _, err := s.serverConn.Write([]byte(str)); err != nil {
		log.Println("mock server write error:", err)
	}
}

// Received returns a copy of every line the client has sent so far, without
// terminators.
func (s *Server) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func (s *Server) read() {
	// Lines are handled on a separate goroutine so that a reply blocked on
	// the synchronous pipe never stops the server from draining the lines
	// the client is still writing.
	lines := make(chan string, 64)
	defer close(lines)
	go func() {
		for line := range lines {
			if s.OnMessage == nil {
				continue
			}
			m := new(irc.Message)
			m.IncludePrefix()
			if err := m.UnmarshalText([]byte(line)); err != nil {
				log.Println("unmarshaling error:", err)
				continue
			}
			s.OnMessage(s, m)
		}
	}()

	scanner := bufio.NewScanner(s.serverConn)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		s.mu.Lock()
		s.sent = append(s.sent, line)
		s.mu.Unlock()
		lines <- line
	}
}
