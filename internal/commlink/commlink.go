// Package commlink implements the byte-port abstraction (component A) that
// every other layer of rlg talks through: a Communicator that can read an
// exact number of bytes or fail, and write a buffer.
//
// Communicator is intentionally narrow — framing, opcodes and retries live
// one layer up in internal/protocol. A Communicator only knows how to move
// bytes across a link and how to perform its own connection handshake.
package commlink

import (
	"errors"
	"fmt"
	"io"
)

// Sentinel errors. Any of these is fatal for the current link: callers must
// reconstruct a fresh Communicator rather than retry in place.
var (
	// ErrTimeout is returned when Read cannot collect n bytes before the
	// port's timeout (serial handshake) or the underlying conn deadline
	// (socket) elapses.
	ErrTimeout = errors.New("commlink: timeout")

	// ErrClosed is returned by Read/Write once the Communicator has been
	// closed, or when the peer closes the connection mid-read.
	ErrClosed = errors.New("commlink: closed")

	// ErrHandshakeFailed is returned by constructors when the initial
	// echo("hello") round trip does not return a matching reply.
	ErrHandshakeFailed = errors.New("commlink: handshake failed")
)

// Communicator is a blocking byte port: Read blocks until exactly n bytes
// have arrived (or the link fails), Write blocks until the buffer has been
// handed to the transport. It is single-user — no internal locking — a
// Communicator is exclusively owned by one protocol.Client at a time.
type Communicator interface {
	io.Closer
	Read(n int) ([]byte, error)
	Write(b []byte) error
}

// handshakePayload is the fixed probe used by both concrete variants to
// confirm the peer is alive and echoing correctly before any real traffic
// flows.
const handshakePayload = "hello"

// verifyEcho performs one raw echo round trip through write and read (the
// payload is sent unframed: write n bytes, read n bytes back) and confirms
// the reply matches handshakePayload exactly.
func verifyEcho(write func([]byte) error, read func(int) ([]byte, error)) error {
	if err := write([]byte(handshakePayload)); err != nil {
		return fmt.Errorf("commlink: handshake write: %w", err)
	}
	reply, err := read(len(handshakePayload))
	if err != nil {
		return fmt.Errorf("commlink: handshake read: %w", err)
	}
	if string(reply) != handshakePayload {
		return ErrHandshakeFailed
	}
	return nil
}
