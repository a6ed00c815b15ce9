package lis1

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/openlis/astmsim/internal/pool"
	"github.com/openlis/astmsim/logger"
)

// drainTimeout is the silence window used when discarding stray bytes after
// a protocol violation at idle.
const drainTimeout = 50 * time.Millisecond

// frameTransport handles byte-level I/O for a LIS1-A session: deadline-bound
// reads, frame reassembly up to the CR LF trailer, and paced writes.
//
// This type is NOT goroutine-safe. The owning session must ensure only one
// operation is active at a time, consistent with the half-duplex nature of
// the link.
type frameTransport struct {
	conn   net.Conn
	reader *bufio.Reader
	cfg    *SessionConfig
	logger logger.Logger
}

func newFrameTransport(conn net.Conn, cfg *SessionConfig) *frameTransport {
	return &frameTransport{
		conn:   conn,
		reader: bufio.NewReader(conn),
		cfg:    cfg,
		logger: cfg.logger,
	}
}

// readByte reads a single byte from the connection with the given timeout.
// Returns os.ErrDeadlineExceeded (or a net.Error with Timeout()=true) on
// timeout.
func (ft *frameTransport) readByte(timeout time.Duration) (byte, error) {
	if err := ft.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}

	return ft.reader.ReadByte()
}

// readFrame reads the remainder of a frame after its STX has been consumed:
// everything through the trailing CR LF. The timeout applies per byte, so it
// acts as an inter-character deadline that restarts with each received byte.
//
// The returned buffer includes the leading STX and can be handed straight to
// DecodeFrame. Reading fails with ErrMalformedFrame once MaxFrameSize bytes
// arrive without a trailer.
func (ft *frameTransport) readFrame(timeout time.Duration) ([]byte, error) {
	buf := make([]byte, 1, 128)
	buf[0] = STX

	for len(buf)-1 < MaxFrameSize {
		b, err := ft.readByte(timeout)
		if err != nil {
			return buf, err
		}

		buf = append(buf, b)
		if b == LF && len(buf) >= 3 && buf[len(buf)-2] == CR {
			return buf, nil
		}
	}

	return buf, fmt.Errorf("%w: no CR LF trailer within %d bytes", ErrMalformedFrame, MaxFrameSize)
}

// writeControl writes a single control byte (ENQ, ACK, NAK, or EOT), paced
// by the configured response delay.
func (ft *frameTransport) writeControl(ctx context.Context, b byte) error {
	if err := ft.pace(ctx); err != nil {
		return err
	}

	_, err := ft.conn.Write([]byte{b})

	return err
}

// writeFrame writes a packed wire frame, paced by the configured response
// delay.
func (ft *frameTransport) writeFrame(ctx context.Context, wire []byte) error {
	if err := ft.pace(ctx); err != nil {
		return err
	}

	return ft.writeAll(wire)
}

// writeAll writes all bytes in data to the connection.
func (ft *frameTransport) writeAll(data []byte) error {
	for written := 0; written < len(data); {
		n, err := ft.conn.Write(data[written:])
		written += n

		if err != nil {
			return err
		}
	}

	return nil
}

// pace waits for the configured response delay before a write, simulating
// instrument latency. A zero delay is a no-op.
func (ft *frameTransport) pace(ctx context.Context) error {
	if ft.cfg.responseDelay <= 0 {
		return nil
	}

	timer := pool.GetTimer(ft.cfg.responseDelay)
	defer pool.PutTimer(timer)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// drainUntilSilence reads and discards bytes until the line is quiet for
// drainTimeout. Used to re-align the stream after frame data arrives outside
// an established exchange.
func (ft *frameTransport) drainUntilSilence() {
	buf := make([]byte, 256)

	for {
		_ = ft.conn.SetReadDeadline(time.Now().Add(drainTimeout))

		_, err := ft.reader.Read(buf)
		if err != nil {
			return // line is silent
		}
	}
}

func (ft *frameTransport) close() error {
	return ft.conn.Close()
}

// --- Error classification helpers ---

func isTimeoutError(err error) bool {
	var nerr net.Error

	return errors.As(err, &nerr) && nerr.Timeout()
}

func isClosedError(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}

func isPeerClosedError(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}

	return strings.Contains(err.Error(), "connection reset by peer")
}
