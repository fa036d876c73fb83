// Package transport provides the channels a library vendor executable is
// reached over.
//
// A Channel is an ordered byte stream to one peer whose public key is known
// once the channel exists. Production channels are TLS sessions where both
// sides present certificates; the tool's key is what the LVE authorizes.
// TLS can run over a TCP connection (persistent service) or over the
// process's stdin/stdout (single-shot mode). An in-memory record pipe built
// on pion's test bridge serves tests and in-process use.
package transport

import (
	"crypto"
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// MaxRecordSize is the largest chunk a record-oriented channel delivers in
// one read. It equals the TLS plaintext record limit.
const MaxRecordSize = 16 * 1024

// Channel is an ordered, confidential byte stream to one identified peer.
type Channel interface {
	io.ReadWriteCloser

	// PeerKey returns the public key the peer authenticated with,
	// or nil when the channel carries no peer identity.
	PeerKey() crypto.PublicKey

	// Type reports how the channel is carried.
	Type() ChannelType
}

type connChannel struct {
	net.Conn
	peer crypto.PublicKey
	typ  ChannelType
}

func (c *connChannel) PeerKey() crypto.PublicKey { return c.peer }
func (c *connChannel) Type() ChannelType         { return c.typ }

// NewConnChannel wraps an established connection as a plain channel.
// peer may be nil when the identity is unknown.
func NewConnChannel(conn net.Conn, peer crypto.PublicKey) Channel {
	return &connChannel{Conn: conn, peer: peer, typ: ChannelTypePlain}
}

// StdioAddr implements net.Addr for the standard streams.
type StdioAddr struct{}

// Network returns "stdio".
func (StdioAddr) Network() string { return "stdio" }

// String returns "stdio".
func (StdioAddr) String() string { return "stdio" }

// StdioConn adapts a reader/writer pair, normally os.Stdin and os.Stdout,
// to net.Conn so a TLS session can run over it. Deadlines are honoured only
// when the underlying streams are *os.File values that support them.
type StdioConn struct {
	in  io.ReadCloser
	out io.WriteCloser
}

// NewStdioConn creates a StdioConn over in and out.
func NewStdioConn(in io.ReadCloser, out io.WriteCloser) *StdioConn {
	return &StdioConn{in: in, out: out}
}

// Read reads from the input stream.
func (s *StdioConn) Read(b []byte) (int, error) { return s.in.Read(b) }

// Write writes to the output stream.
func (s *StdioConn) Write(b []byte) (int, error) { return s.out.Write(b) }

// Close closes both streams.
func (s *StdioConn) Close() error {
	errIn := s.in.Close()
	if err := s.out.Close(); err != nil {
		return err
	}
	return errIn
}

// LocalAddr returns StdioAddr.
func (s *StdioConn) LocalAddr() net.Addr { return StdioAddr{} }

// RemoteAddr returns StdioAddr.
func (s *StdioConn) RemoteAddr() net.Addr { return StdioAddr{} }

// SetDeadline sets both deadlines where supported.
func (s *StdioConn) SetDeadline(t time.Time) error {
	if err := s.SetReadDeadline(t); err != nil {
		return err
	}
	return s.SetWriteDeadline(t)
}

// SetReadDeadline sets the input deadline when the input is an *os.File.
func (s *StdioConn) SetReadDeadline(t time.Time) error {
	if f, ok := s.in.(*os.File); ok {
		if err := f.SetReadDeadline(t); err != nil && !errors.Is(err, os.ErrNoDeadline) {
			return err
		}
	}
	return nil
}

// SetWriteDeadline sets the output deadline when the output is an *os.File.
func (s *StdioConn) SetWriteDeadline(t time.Time) error {
	if f, ok := s.out.(*os.File); ok {
		if err := f.SetWriteDeadline(t); err != nil && !errors.Is(err, os.ErrNoDeadline) {
			return err
		}
	}
	return nil
}

var _ net.Conn = (*StdioConn)(nil)
