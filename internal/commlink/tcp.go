package commlink

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// TCPCommunicator speaks to a target reachable over a plain TCP stream —
// a co-process on the same machine, or a board whose command loop is
// exposed through a network bridge.
type TCPCommunicator struct {
	conn net.Conn
}

// DialTCP connects to addr and runs the echo("hello") handshake. The
// connection is closed and ErrHandshakeFailed is returned if the reply does
// not match.
func DialTCP(addr string, timeout time.Duration) (*TCPCommunicator, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("commlink: dial %s: %w", addr, err)
	}

	c := &TCPCommunicator{conn: conn}
	if err := verifyEcho(c.Write, c.Read); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// Read blocks until exactly n bytes have arrived.
func (c *TCPCommunicator) Read(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		return nil, translateNetErr(err)
	}
	return buf, nil
}

// Write hands b to the socket in full.
func (c *TCPCommunicator) Write(b []byte) error {
	_, err := c.conn.Write(b)
	if err != nil {
		return translateNetErr(err)
	}
	return nil
}

// Close closes the underlying connection. Idempotent.
func (c *TCPCommunicator) Close() error {
	return c.conn.Close()
}

func translateNetErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return err
}
