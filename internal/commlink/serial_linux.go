//go:build linux

package commlink

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// SerialCommunicator speaks to a board over a raw UART. Construction drains
// stale boot chatter, sets a bounded read timeout for the handshake retry
// loop (embedded targets often emit bootloader noise before the command
// loop is live), then clears the timeout for normal unbounded operation.
type SerialCommunicator struct {
	f *os.File
}

// handshakeTimeout is the per-read deadline while retrying the boot-chatter
// handshake.
const handshakeTimeout = 500 * time.Millisecond

// maxHandshakeAttempts bounds the echo-retry loop so a truly dead link fails
// fast instead of spinning forever.
const maxHandshakeAttempts = 20

// OpenSerial opens device at the given baud rate, drains any buffered input,
// and retries the echo("hello") handshake under a 500ms per-attempt timeout
// until a matching reply arrives.
func OpenSerial(device string, baud int) (*SerialCommunicator, error) {
	f, err := os.OpenFile(device, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("commlink: open %s: %w", device, err)
	}

	if err := configureTermios(f, baud); err != nil {
		f.Close()
		return nil, fmt.Errorf("commlink: configure %s: %w", device, err)
	}

	c := &SerialCommunicator{f: f}
	c.drain()

	var handshakeErr error
	for attempt := 0; attempt < maxHandshakeAttempts; attempt++ {
		c.setReadTimeout(handshakeTimeout)
		handshakeErr = verifyEcho(c.Write, c.Read)
		if handshakeErr == nil {
			break
		}
	}
	c.clearReadTimeout()

	if handshakeErr != nil {
		f.Close()
		return nil, ErrHandshakeFailed
	}
	return c, nil
}

// drain discards any bytes already buffered on the line (boot chatter) by
// flushing the kernel's input queue.
func (c *SerialCommunicator) drain() {
	unix.IoctlSetInt(int(c.f.Fd()), unix.TCFLSH, unix.TCIFLUSH)
}

// configureTermios puts the line into raw 8N1 mode at the requested baud via
// direct TCGETS/TCSETS ioctls, bypassing any line discipline that would
// otherwise mangle binary frame bytes.
func configureTermios(f *os.File, baud int) error {
	t, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	if err != nil {
		return err
	}

	rate, ok := baudConstants[baud]
	if !ok {
		return fmt.Errorf("unsupported baud rate %d", baud)
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL
	t.Ispeed = rate
	t.Ospeed = rate
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	return unix.IoctlSetTermios(int(f.Fd()), unix.TCSETS, t)
}

// baudConstants maps common baud rates to their termios constant. Only the
// rates an embedded target is realistically configured for are listed;
// OpenSerial rejects anything else rather than guess a divisor.
var baudConstants = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
	460800: unix.B460800,
	921600: unix.B921600,
}

func (c *SerialCommunicator) setReadTimeout(d time.Duration) {
	c.f.SetReadDeadline(time.Now().Add(d))
}

func (c *SerialCommunicator) clearReadTimeout() {
	c.f.SetReadDeadline(time.Time{})
}

// Read blocks until exactly n bytes have arrived or the configured deadline
// (if any) elapses.
func (c *SerialCommunicator) Read(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.f, buf); err != nil {
		return nil, translateFileErr(err)
	}
	return buf, nil
}

// Write hands b to the UART in full.
func (c *SerialCommunicator) Write(b []byte) error {
	_, err := c.f.Write(b)
	if err != nil {
		return translateFileErr(err)
	}
	return nil
}

// Close closes the underlying device file. Idempotent.
func (c *SerialCommunicator) Close() error {
	return c.f.Close()
}

func translateFileErr(err error) error {
	if err == nil {
		return nil
	}
	if err == io.EOF || os.IsTimeout(err) {
		if os.IsTimeout(err) {
			return ErrTimeout
		}
		return ErrClosed
	}
	return err
}
