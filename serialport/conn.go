// Package serialport adapts an RS-232 port to the net.Conn contract the
// link engine runs on, so the same session logic serves TCP and serial
// bridges. Ports are opened through go.bug.st/serial; read deadlines map
// onto the port's read timeout.
package serialport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Conn is a serial port satisfying net.Conn.
//
// Read honors SetReadDeadline by arming the port's read timeout before
// each read. Writes complete into the driver's output buffer and are not
// deadline-bounded.
type Conn struct {
	port serial.Port
	name string

	mu           sync.Mutex
	readDeadline time.Time

	closed bool
}

var _ net.Conn = (*Conn)(nil)

// Open opens the named serial port and wraps it. A nil mode opens the
// port at 9600 8N1.
func Open(name string, mode *serial.Mode) (*Conn, error) {
	if mode == nil {
		mode = defaultMode()
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s: %w", name, err)
	}

	return Wrap(port, name), nil
}

// Wrap adapts an already-open port. Callers that need modem-line setup
// (DTR/RTS) configure the port first and hand it over.
func Wrap(port serial.Port, name string) *Conn {
	return &Conn{port: port, name: name}
}

// Read reads at least one byte, blocking until data arrives, the read
// deadline passes, or the port closes. An expired deadline returns
// os.ErrDeadlineExceeded, which reports Timeout() true as net.Error.
func (c *Conn) Read(b []byte) (int, error) {
	if c.isClosed() {
		return 0, net.ErrClosed
	}

	c.mu.Lock()
	deadline := c.readDeadline
	c.mu.Unlock()

	timeout := serial.NoTimeout
	if !deadline.IsZero() {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return 0, os.ErrDeadlineExceeded
		}
	}

	if err := c.port.SetReadTimeout(timeout); err != nil {
		return 0, c.mapErr(err)
	}

	n, err := c.port.Read(b)
	if err != nil {
		return n, c.mapErr(err)
	}
	if n == 0 {
		// The port signals an expired read timeout with an empty read; an
		// empty read without a timeout armed means the line hung up.
		if !deadline.IsZero() {
			return 0, os.ErrDeadlineExceeded
		}

		return 0, io.EOF
	}

	return n, nil
}

// Write writes b to the port.
func (c *Conn) Write(b []byte) (int, error) {
	if c.isClosed() {
		return 0, net.ErrClosed
	}

	n, err := c.port.Write(b)
	if err != nil {
		return n, c.mapErr(err)
	}

	return n, nil
}

// Close closes the underlying port. Pending reads are interrupted.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	return c.port.Close()
}

// LocalAddr returns the port name as a serial address.
func (c *Conn) LocalAddr() net.Addr { return Addr{name: c.name} }

// RemoteAddr returns the port name as a serial address. A serial line has
// no peer address, so both ends report the port.
func (c *Conn) RemoteAddr() net.Addr { return Addr{name: c.name} }

// SetDeadline sets the read deadline. Writes are not deadline-bounded on
// a serial port, so the write half is a no-op.
func (c *Conn) SetDeadline(t time.Time) error {
	return c.SetReadDeadline(t)
}

// SetReadDeadline sets the absolute deadline for future Read calls. The
// zero time means reads block until data arrives.
func (c *Conn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.readDeadline = t
	c.mu.Unlock()

	return nil
}

// SetWriteDeadline is a no-op; the driver buffers writes.
func (c *Conn) SetWriteDeadline(_ time.Time) error { return nil }

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

// mapErr rewrites the library's closed-port error to net.ErrClosed so the
// session's shutdown classification sees the usual sentinel.
func (c *Conn) mapErr(err error) error {
	var perr *serial.PortError
	if errors.As(err, &perr) && perr.Code() == serial.PortClosed {
		return net.ErrClosed
	}

	return err
}

// Addr identifies a serial port in net.Addr form.
type Addr struct {
	name string
}

// Network returns "serial".
func (a Addr) Network() string { return "serial" }

// String returns the port name.
func (a Addr) String() string { return a.name }
