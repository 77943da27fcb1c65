package commlink

import (
	"io"
	"net"
)

// LoopbackCommunicator wraps an in-memory net.Conn (from net.Pipe), used by
// tests and by any in-process target stub that wants to sit on the other end
// of the same Communicator interface a real TCP or serial link implements.
type LoopbackCommunicator struct {
	conn net.Conn
}

// NewLoopbackPair returns two connected Communicators with no handshake
// requirement — callers that want the handshake exercised should send it
// explicitly, since an in-memory pipe has no "hello" auto-responder.
func NewLoopbackPair() (*LoopbackCommunicator, *LoopbackCommunicator) {
	a, b := net.Pipe()
	return &LoopbackCommunicator{conn: a}, &LoopbackCommunicator{conn: b}
}

// Read blocks until exactly n bytes have arrived.
func (c *LoopbackCommunicator) Read(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		return nil, translateNetErr(err)
	}
	return buf, nil
}

// Write hands b to the pipe in full.
func (c *LoopbackCommunicator) Write(b []byte) error {
	_, err := c.conn.Write(b)
	return translateNetErr(err)
}

// Close closes this end of the pipe.
func (c *LoopbackCommunicator) Close() error {
	return c.conn.Close()
}
