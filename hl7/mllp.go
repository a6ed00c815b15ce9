package hl7

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/openlis/astmsim/logger"
)

// MLLP envelope bytes.
const (
	startBlock byte = 0x0B // VT
	endBlock   byte = 0x1C // FS
)

// Default Client timeouts.
const (
	DefaultDialTimeout = 5 * time.Second
	DefaultAckTimeout  = 5 * time.Second
)

// Frame wraps an HL7 message in its MLLP envelope.
func Frame(payload []byte) []byte {
	framed := make([]byte, 0, len(payload)+3)
	framed = append(framed, startBlock)
	framed = append(framed, payload...)
	framed = append(framed, endBlock, '\r')

	return framed
}

// Client delivers HL7 messages to an MLLP listener, one connection per send.
type Client struct {
	addr        string
	dialTimeout time.Duration
	ackTimeout  time.Duration
	logger      logger.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithDialTimeout sets the TCP dial timeout.
func WithDialTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.dialTimeout = d }
}

// WithAckTimeout sets how long Send waits for the receiver's
// acknowledgement. A zero or negative value makes Send fire-and-forget.
func WithAckTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.ackTimeout = d }
}

// NewClient creates an MLLP client for the given address.
func NewClient(addr string, opts ...ClientOption) *Client {
	c := &Client{
		addr:        addr,
		dialTimeout: DefaultDialTimeout,
		ackTimeout:  DefaultAckTimeout,
		logger:      logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Send frames and delivers one HL7 message. When acknowledgement reading is
// enabled it returns the receiver's acknowledgement payload with the
// envelope stripped.
func (c *Client) Send(ctx context.Context, payload []byte) ([]byte, error) {
	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("hl7: dial %s: %w", c.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(Frame(payload)); err != nil {
		return nil, fmt.Errorf("hl7: write message: %w", err)
	}
	c.logger.Debug("sent mllp message", "addr", c.addr, "bytes", len(payload))

	if c.ackTimeout <= 0 {
		return nil, nil
	}

	if err := conn.SetReadDeadline(time.Now().Add(c.ackTimeout)); err != nil {
		return nil, fmt.Errorf("hl7: set read deadline: %w", err)
	}

	// The FS byte already delimits the acknowledgement, so the trailing CR
	// is not waited for.
	ack, err := bufio.NewReader(conn).ReadBytes(endBlock)
	if err != nil {
		return nil, fmt.Errorf("hl7: read ack: %w", err)
	}

	if ack[0] == startBlock {
		ack = ack[1:]
	}

	return ack[:len(ack)-1], nil
}
