package commlink

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// VsockCommunicator speaks to a target running inside a co-located microVM,
// reached over a Firecracker-style AF_VSOCK device: the host never opens
// the vsock address space directly, it dials the hypervisor's own Unix
// domain socket and asks it to proxy a specific guest port.
type VsockCommunicator struct {
	conn net.Conn
}

// DialVsock connects to udsPath (the Unix socket Firecracker exposes for its
// vsock device), asks it to proxy port, then runs the echo("hello")
// handshake over the resulting stream.
func DialVsock(udsPath string, port uint32, timeout time.Duration) (*VsockCommunicator, error) {
	conn, err := net.DialTimeout("unix", udsPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("commlink: dial vsock uds %s: %w", udsPath, err)
	}

	if err := vsockConnect(conn, port); err != nil {
		conn.Close()
		return nil, err
	}

	c := &VsockCommunicator{conn: conn}
	if err := verifyEcho(c.Write, c.Read); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// vsockConnect performs Firecracker's vsock handshake: send "CONNECT
// <port>\n" over the UDS, then require a reply beginning "OK ". Any other
// reply (including a read failure) means the guest side isn't listening on
// that port yet.
func vsockConnect(conn net.Conn, port uint32) error {
	if _, err := fmt.Fprintf(conn, "CONNECT %d\n", port); err != nil {
		return fmt.Errorf("commlink: vsock CONNECT: %w", err)
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return fmt.Errorf("commlink: vsock handshake read: %w", err)
	}
	if !strings.HasPrefix(line, "OK ") {
		return fmt.Errorf("%w: vsock CONNECT rejected: %s", ErrHandshakeFailed, strings.TrimSpace(line))
	}
	return nil
}

// WaitForVsock polls udsPath/port until a CONNECT handshake succeeds or
// timeout elapses, for callers that start the guest and the host's dial
// attempt in a race (the guest's command loop isn't listening the instant
// the VM boots).
func WaitForVsock(udsPath string, port uint32, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("commlink: timed out waiting for vsock port %d", port)
		}
		c, err := DialVsock(udsPath, port, 2*time.Second)
		if err == nil {
			c.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// Read blocks until exactly n bytes have arrived.
func (c *VsockCommunicator) Read(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		return nil, translateNetErr(err)
	}
	return buf, nil
}

// Write hands b to the vsock stream in full.
func (c *VsockCommunicator) Write(b []byte) error {
	if _, err := c.conn.Write(b); err != nil {
		return translateNetErr(err)
	}
	return nil
}

// Close closes the underlying connection. Idempotent.
func (c *VsockCommunicator) Close() error {
	return c.conn.Close()
}
