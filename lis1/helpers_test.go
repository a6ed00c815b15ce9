package lis1

import (
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/openlis/astmsim/logger"
)

func TestMain(m *testing.M) {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	var level logger.LogLevel

	switch logLevel {
	case "debug":
		level = logger.DebugLevel
	case "info":
		level = logger.InfoLevel
	case "warn":
		level = logger.WarnLevel
	case "error":
		level = logger.ErrorLevel
	default:
		level = logger.InfoLevel
	}

	logger.SetLevel(level)

	os.Exit(m.Run())
}

// newTestConfig creates a SessionConfig with short deadlines and no pacing,
// suitable for tests.
func newTestConfig(t *testing.T, opts ...SessionOption) *SessionConfig {
	t.Helper()

	defaults := []SessionOption{
		WithEstablishTimeout(200 * time.Millisecond),
		WithFrameAckTimeout(200 * time.Millisecond),
		WithReceiverTimeout(300 * time.Millisecond),
		WithLinkIdleTimeout(500 * time.Millisecond),
		WithResponseDelay(0),
	}

	cfg, err := NewSessionConfig(append(defaults, opts...)...)
	if err != nil {
		t.Fatalf("newTestConfig: %v", err)
	}

	return cfg
}

// newTestSession creates a Session backed by the local end of net.Pipe().
// Returns the session and the remote end for peer scripting.
func newTestSession(t *testing.T, cfg *SessionConfig) (*Session, net.Conn) {
	t.Helper()

	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = local.Close()
		_ = remote.Close()
	})

	return NewSession(local, cfg), remote
}

// frameWire packs a frame, failing the test on encode errors.
func frameWire(t *testing.T, number int, text string) []byte {
	t.Helper()

	wire, err := EncodeFrame(number, []byte(text))
	if err != nil {
		t.Fatalf("frameWire: %v", err)
	}

	return wire
}

// corruptChecksum returns a copy of wire with its first checksum digit
// flipped so the frame fails verification.
func corruptChecksum(t *testing.T, wire []byte) []byte {
	t.Helper()

	bad := make([]byte, len(wire))
	copy(bad, wire)

	pos := len(bad) - 4
	if bad[pos] == '0' {
		bad[pos] = '1'
	} else {
		bad[pos] = '0'
	}

	return bad
}

// readExactly reads exactly n bytes from r, failing the test on error.
func readExactly(t *testing.T, r io.Reader, n int) []byte {
	t.Helper()

	buf := make([]byte, n)
	_, err := io.ReadFull(r, buf)
	if err != nil {
		t.Fatalf("readExactly: %v", err)
	}

	return buf
}

// readOneByte reads exactly 1 byte from r, failing the test on error.
func readOneByte(t *testing.T, r io.Reader) byte {
	t.Helper()

	return readExactly(t, r, 1)[0]
}

// readFrameWire reads one complete frame (STX through the LF trailer) from
// r. The restricted-character rules keep LF out of frame text, so the first
// LF ends the frame.
func readFrameWire(t *testing.T, r io.Reader) []byte {
	t.Helper()

	var buf []byte

	for {
		b := readOneByte(t, r)
		buf = append(buf, b)

		if b == LF && len(buf) >= 2 && buf[len(buf)-2] == CR {
			return buf
		}
	}
}

// mustWrite writes data to w, failing the test on error.
func mustWrite(t *testing.T, w io.Writer, data []byte) {
	t.Helper()

	_, err := w.Write(data)
	if err != nil {
		t.Fatalf("mustWrite: %v", err)
	}
}

// expectSilence asserts that no byte arrives on r within d.
func expectSilence(t *testing.T, r net.Conn, d time.Duration) {
	t.Helper()

	_ = r.SetReadDeadline(time.Now().Add(d))
	defer func() {
		_ = r.SetReadDeadline(time.Time{})
	}()

	buf := make([]byte, 1)

	n, err := r.Read(buf)
	if err == nil {
		t.Fatalf("expectSilence: unexpected byte 0x%02X", buf[0])
	}

	if n != 0 {
		t.Fatalf("expectSilence: read %d bytes", n)
	}
}
