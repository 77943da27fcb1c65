package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/remlink/rlg/internal/commlink"
)

// MaxFrameLength bounds a single request payload. Large mem_write calls are
// split into chunks that respect this ceiling.
const MaxFrameLength = 4096

// Client issues command frames over a single Communicator. It is the only
// thing permitted to touch the Communicator once constructed: strictly
// sequential, synchronous request/reply, no pipelining, no internal locking
// — a caller needing concurrent access wraps a Client in its own mutex.
type Client struct {
	comm commlink.Communicator
	word int // WORD: target pointer size in bytes, from DWARF
}

// NewClient wraps comm with the command-frame protocol. word is the target
// pointer size (sizeof_voidp) resolved from the DWARF type graph.
func NewClient(comm commlink.Communicator, word int) *Client {
	return &Client{comm: comm, word: word}
}

// Word returns the target pointer size this client was constructed with.
func (c *Client) Word() int { return c.word }

// Close closes the underlying Communicator.
func (c *Client) Close() error { return c.comm.Close() }

// Echo sends b and returns the target's reply, which must equal b exactly
// for a healthy link.
func (c *Client) Echo(b []byte) ([]byte, error) {
	span, finish := startSpan("rlg.echo", OpEcho)
	defer finish()
	span.SetTag("rlg.bytes", len(b))

	if err := writeFrame(c.comm, OpEcho, b); err != nil {
		return nil, err
	}
	return readReply(c.comm, len(b))
}

// MemRead reads size bytes from addr on the target in a single frame.
// Callers that need more than MaxFrameLength chunk themselves; reads are not
// auto-chunked because, unlike writes, a single reply frame has no upstream
// data to split across requests.
func (c *Client) MemRead(addr uint64, size int) ([]byte, error) {
	span, finish := startSpan("rlg.mem_read", OpMemRead)
	defer finish()
	span.SetTag("rlg.addr", addr)
	span.SetTag("rlg.size", size)

	payload := append(encodeWord(addr, c.word), encodeWord(uint64(size), c.word)...)
	if err := writeFrame(c.comm, OpMemRead, payload); err != nil {
		return nil, err
	}
	return readReply(c.comm, size)
}

// MemWrite writes data to addr on the target, splitting into chunks no
// larger than MaxFrameLength-WORD-headerSize bytes. The caller-visible
// effect is a single logical write; each chunk advances the destination
// address by the chunk's length.
func (c *Client) MemWrite(addr uint64, data []byte) error {
	span, finish := startSpan("rlg.mem_write", OpMemWrite)
	defer finish()
	span.SetTag("rlg.addr", addr)
	span.SetTag("rlg.size", len(data))

	chunkSize := MaxFrameLength - c.word - headerSize
	if chunkSize <= 0 {
		return fmt.Errorf("protocol: MaxFrameLength too small for WORD=%d", c.word)
	}

	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]
		payload := append(encodeWord(addr+uint64(off), c.word), chunk...)
		if err := writeFrame(c.comm, OpMemWrite, payload); err != nil {
			return err
		}
		if _, err := readReply(c.comm, 0); err != nil {
			return err
		}
	}
	return nil
}

// Call invokes the function at addr with args (each a WORD-sized value
// already marshalled by the caller — the proxy layer is responsible for
// converting integers/proxies/buffers into these raw words) and returns up
// to WORD bytes of the reply, truncated to retsize. retsize == 0 means the
// target sends no reply payload at all.
func (c *Client) Call(addr uint64, retsize int, args []uint64) ([]byte, error) {
	span, finish := startSpan("rlg.call", OpCall)
	defer finish()
	span.SetTag("rlg.addr", addr)
	span.SetTag("rlg.argc", len(args))

	if retsize > c.word {
		retsize = c.word
	}

	payload := make([]byte, 0, c.word+2+2+len(args)*c.word)
	payload = append(payload, encodeWord(addr, c.word)...)
	retsizeBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(retsizeBuf, uint16(retsize))
	payload = append(payload, retsizeBuf...)
	argcBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(argcBuf, uint16(len(args)))
	payload = append(payload, argcBuf...)
	for _, a := range args {
		payload = append(payload, encodeWord(a, c.word)...)
	}

	if err := writeFrame(c.comm, OpCall, payload); err != nil {
		return nil, err
	}
	if retsize == 0 {
		_, err := readReply(c.comm, 0)
		return nil, err
	}
	return readReply(c.comm, retsize)
}
