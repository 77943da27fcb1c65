// Package protocol implements the command-frame protocol: four opcodes —
// echo, mem_read, mem_write, call — framed big-endian over a
// commlink.Communicator, acknowledged with the literal "ACK", strictly
// sequential with no pipelining: a fixed-width header followed by a
// payload, one request in flight at a time, no framing recovery on error.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"

	"github.com/remlink/rlg/internal/commlink"
)

// Opcodes identifying the four request kinds a frame header can carry.
const (
	OpEcho      uint16 = 0
	OpMemRead   uint16 = 1
	OpMemWrite  uint16 = 2
	OpCall      uint16 = 3
)

// ack is the literal 3-byte reply prefix separating request from reply
// payload. Any other 3-byte prefix is a protocol error.
var ack = [3]byte{'A', 'C', 'K'}

// headerSize is the size of the u16 opcode ‖ u16 length request header.
const headerSize = 4

var (
	// ErrLinkDesync is returned when a reply's 3-byte prefix is not "ACK".
	ErrLinkDesync = errors.New("protocol: link desync (bad ACK)")

	// ErrShortReply is returned when a reply payload doesn't match the
	// length implied by the request (e.g. a truncated mem_read response).
	ErrShortReply = errors.New("protocol: short reply")
)

// encodeWord encodes v as a big-endian unsigned integer occupying word
// bytes (the target pointer width).
func encodeWord(v uint64, word int) []byte {
	buf := make([]byte, word)
	switch word {
	case 2:
		binary.BigEndian.PutUint16(buf, uint16(v))
	case 4:
		binary.BigEndian.PutUint32(buf, uint32(v))
	case 8:
		binary.BigEndian.PutUint64(buf, v)
	default:
		// Unusual pointer width: fall back to a manual big-endian encode of
		// the low `word` bytes so WORD values like 3 still round-trip.
		full := make([]byte, 8)
		binary.BigEndian.PutUint64(full, v)
		copy(buf, full[8-word:])
	}
	return buf
}

// decodeWord decodes a big-endian unsigned integer occupying word bytes.
func decodeWord(b []byte, word int) uint64 {
	switch word {
	case 2:
		return uint64(binary.BigEndian.Uint16(b))
	case 4:
		return uint64(binary.BigEndian.Uint32(b))
	case 8:
		return binary.BigEndian.Uint64(b)
	default:
		full := make([]byte, 8)
		copy(full[8-word:], b[:word])
		return binary.BigEndian.Uint64(full)
	}
}

// writeFrame sends one request frame: header ‖ payload.
func writeFrame(c commlink.Communicator, opcode uint16, payload []byte) error {
	if len(payload) > 0xFFFF {
		return fmt.Errorf("protocol: payload too large (%d bytes)", len(payload))
	}
	hdr := make([]byte, headerSize)
	binary.BigEndian.PutUint16(hdr[0:2], opcode)
	binary.BigEndian.PutUint16(hdr[2:4], uint16(len(payload)))
	if err := c.Write(hdr); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	return c.Write(payload)
}

// readReply reads the mandatory ACK followed by exactly replyLen payload
// bytes.
func readReply(c commlink.Communicator, replyLen int) ([]byte, error) {
	prefix, err := c.Read(3)
	if err != nil {
		return nil, err
	}
	if prefix[0] != ack[0] || prefix[1] != ack[1] || prefix[2] != ack[2] {
		return nil, ErrLinkDesync
	}
	if replyLen == 0 {
		return nil, nil
	}
	payload, err := c.Read(replyLen)
	if err != nil {
		return nil, err
	}
	if len(payload) != replyLen {
		return nil, ErrShortReply
	}
	return payload, nil
}

// startSpan opens an opentracing span for one round trip, tagged with a
// fresh correlation ID so a single request is traceable end to end across
// the frame write, the target's reply, and any log line either side emits
// about it. With no global tracer configured the span itself is the
// opentracing no-op implementation, so the cost of instrumenting every
// request is negligible until a caller wires a real tracer.
func startSpan(opName string, opcode uint16, extra ...opentracing.Tag) (opentracing.Span, func()) {
	span := opentracing.StartSpan(opName)
	span.SetTag("rlg.opcode", opcode)
	span.SetTag("rlg.request_id", uuid.NewString())
	for _, t := range extra {
		span.SetTag(t.Key, t.Value)
	}
	return span, span.Finish
}

// readExact is a small helper for callers (e.g. a target-stub test harness)
// that want to drain a known-length payload from an io.Reader using the same
// semantics as commlink.Communicator.Read.
func readExact(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
