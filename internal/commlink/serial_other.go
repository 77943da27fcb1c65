//go:build !linux

package commlink

import "fmt"

// SerialCommunicator is unavailable on this platform; raw termios ioctls are
// Linux-specific. Build with GOOS=linux for serial-attached targets.
type SerialCommunicator struct{}

// OpenSerial always fails on non-Linux platforms.
func OpenSerial(device string, baud int) (*SerialCommunicator, error) {
	return nil, fmt.Errorf("commlink: serial transport requires linux (got %s)", device)
}

func (c *SerialCommunicator) Read(n int) ([]byte, error) { return nil, ErrClosed }
func (c *SerialCommunicator) Write(b []byte) error        { return ErrClosed }
func (c *SerialCommunicator) Close() error                { return nil }
