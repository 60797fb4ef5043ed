/*
Package ircdebug contains helper functions that are useful while developing
an IRC client, such as mirroring a connection's traffic to a writer.
*/
package ircdebug

import (
	"io"
	"net"
)

// WriteTo returns a net.Conn that copies all reads/writes on conn to w.
// Reads and writes are prefixed with inPrefix and outPrefix respectively.
// This is mainly useful while developing a bot, e.g. for mirroring the
// protocol conversation to os.Stdout or a file.
func WriteTo(w io.Writer, conn net.Conn, outPrefix, inPrefix string) net.Conn {
	return &debugConn{
		Conn: conn,
		r:    io.TeeReader(conn, &writePrefixer{w: w, prefix: inPrefix}),
		w:    io.MultiWriter(conn, &writePrefixer{w: w, prefix: outPrefix}),
	}
}

type debugConn struct {
	net.Conn
	r io.Reader
	w io.Writer
}

func (dc *debugConn) Read(p []byte) (int, error) {
	return dc.r.Read(p)
}

func (dc *debugConn) Write(p []byte) (int, error) {
	return dc.w.Write(p)
}

type writePrefixer struct {
	w      io.Writer
	prefix string
}

func (wp *writePrefixer) Write(p []byte) (n int, err error) {
	n, err = wp.w.Write(append([]byte(wp.prefix), p...))

	// report the original byte count so MultiWriter doesn't flag a short write
	return n - len(wp.prefix), err
}
