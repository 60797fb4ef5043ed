package irc

import (
	"errors"
	"fmt"
)

// errReaderIdle is the reason a connection is torn down when the server has
// not sent a single byte within the reader-idle window.
var errReaderIdle = errors.New("read timeout: no data received from server")

// A ConnectionError indicates that establishing the connection failed, either
// at the TCP or the TLS layer. Fatal errors (bad local TLS material) disable
// reconnection; non-fatal ones are retried by the supervisor.
type ConnectionError struct {
	Op    string // "dial", "tls handshake", "tls material"
	Fatal bool
	Err   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// A WriteError indicates a failed socket write. The connection is treated as
// abruptly closed and the supervisor schedules a reconnect.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write: %v", e.Err) }

func (e *WriteError) Unwrap() error { return e.Err }
