package lis1

import (
	"errors"
	"fmt"
	"time"

	"github.com/openlis/astmsim/astm"
	"github.com/openlis/astmsim/logger"
)

// RetransmitLimit is the budget of consecutive rejected transfers for one
// frame. Per CLSI LIS1-A the session aborts after a frame is rejected six
// times without success. The limit is a protocol constant, not a tunable.
const RetransmitLimit = 6

// Default deadlines and policy values. The deadlines follow the instrument
// profile of CLSI LIS1-A: a sender allows 15 seconds for an establishment
// response and for each frame acknowledgment, a receiver allows 30 seconds
// between frames, and a link with no traffic at all is dropped after one
// minute.
const (
	DefaultEstablishTimeout = 15 * time.Second
	DefaultFrameAckTimeout  = 15 * time.Second
	DefaultReceiverTimeout  = 30 * time.Second
	DefaultLinkIdleTimeout  = 60 * time.Second

	// DefaultContentionWait is how long the instrument holds off before
	// re-sending ENQ after simultaneous-ENQ contention. CLSI LIS1-A gives
	// the instrument priority and requires it to wait at least one second.
	DefaultContentionWait = 1 * time.Second

	// DefaultContentionRetries bounds how many times an establishment
	// attempt is repeated after contention before giving up.
	DefaultContentionRetries = 3

	// DefaultResponseDelay paces every write, simulating the latency of a
	// real instrument's serial interface.
	DefaultResponseDelay = 100 * time.Millisecond
)

// Configuration bounds. The minimum deadlines stay far below the defaults so
// tests can exercise timeout paths quickly.
const (
	MinEstablishTimeout = 50 * time.Millisecond
	MaxEstablishTimeout = 5 * time.Minute

	MinFrameAckTimeout = 50 * time.Millisecond
	MaxFrameAckTimeout = 5 * time.Minute

	MinReceiverTimeout = 50 * time.Millisecond
	MaxReceiverTimeout = 5 * time.Minute

	MinLinkIdleTimeout = 100 * time.Millisecond
	MaxLinkIdleTimeout = 1 * time.Hour

	MinContentionWait = 1 * time.Second
	MaxContentionWait = 10 * time.Second

	MinContentionRetries = 1
	MaxContentionRetries = 10

	MaxResponseDelay = 5 * time.Second
)

// MessageHandler consumes a finalized inbound message.
//
// Handlers run synchronously on the session goroutine; a handler shared by
// several sessions must be safe for concurrent use.
type MessageHandler func(msg *astm.Message)

// QueryResponder supplies the message that answers a field query. Returning
// nil declines to answer.
type QueryResponder func() *astm.Message

// SessionConfig holds all configuration for LIS1-A sessions.
type SessionConfig struct {
	establishTimeout time.Duration
	frameAckTimeout  time.Duration
	receiverTimeout  time.Duration
	linkIdleTimeout  time.Duration

	contentionWait    time.Duration
	contentionRetries int

	responseDelay time.Duration

	handler   MessageHandler
	responder QueryResponder

	metrics *SessionMetrics
	logger  logger.Logger
}

// NewSessionConfig creates a session configuration with the CLSI LIS1-A
// default deadlines, applying opts in order; see the With* functions.
func NewSessionConfig(opts ...SessionOption) (*SessionConfig, error) {
	cfg := &SessionConfig{
		establishTimeout:  DefaultEstablishTimeout,
		frameAckTimeout:   DefaultFrameAckTimeout,
		receiverTimeout:   DefaultReceiverTimeout,
		linkIdleTimeout:   DefaultLinkIdleTimeout,
		contentionWait:    DefaultContentionWait,
		contentionRetries: DefaultContentionRetries,
		responseDelay:     DefaultResponseDelay,
		metrics:           &SessionMetrics{},
		logger:            logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// --- Getters ---

// EstablishTimeout returns the establishment response deadline.
func (cfg *SessionConfig) EstablishTimeout() time.Duration { return cfg.establishTimeout }

// FrameAckTimeout returns the per-frame acknowledgment deadline.
func (cfg *SessionConfig) FrameAckTimeout() time.Duration { return cfg.frameAckTimeout }

// ReceiverTimeout returns the receiver's wait deadline for the next frame or EOT.
func (cfg *SessionConfig) ReceiverTimeout() time.Duration { return cfg.receiverTimeout }

// LinkIdleTimeout returns the overall idle deadline after which a silent
// link is closed.
func (cfg *SessionConfig) LinkIdleTimeout() time.Duration { return cfg.linkIdleTimeout }

// ContentionWait returns the holdoff before re-sending ENQ after contention.
func (cfg *SessionConfig) ContentionWait() time.Duration { return cfg.contentionWait }

// ContentionRetries returns the bound on establishment retries after contention.
func (cfg *SessionConfig) ContentionRetries() int { return cfg.contentionRetries }

// ResponseDelay returns the pacing delay applied before every write.
func (cfg *SessionConfig) ResponseDelay() time.Duration { return cfg.responseDelay }

// Handler returns the inbound message handler, or nil.
func (cfg *SessionConfig) Handler() MessageHandler { return cfg.handler }

// Responder returns the field query responder, or nil.
func (cfg *SessionConfig) Responder() QueryResponder { return cfg.responder }

// Metrics returns the metrics instance sessions record into.
func (cfg *SessionConfig) Metrics() *SessionMetrics { return cfg.metrics }

// GetLogger returns the configured logger.
func (cfg *SessionConfig) GetLogger() logger.Logger { return cfg.logger }

// --- SessionOption ---

// SessionOption is a functional option for configuring a SessionConfig.
type SessionOption interface {
	apply(*SessionConfig) error
}

type sessionOptFunc func(*SessionConfig) error

func (f sessionOptFunc) apply(cfg *SessionConfig) error { return f(cfg) }

// WithEstablishTimeout sets the deadline for the peer's ACK/NAK after this
// session sends ENQ.
func WithEstablishTimeout(d time.Duration) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if d < MinEstablishTimeout || d > MaxEstablishTimeout {
			return fmt.Errorf("lis1: establish timeout %v out of range [%v, %v]",
				d, MinEstablishTimeout, MaxEstablishTimeout)
		}
		cfg.establishTimeout = d

		return nil
	})
}

// WithFrameAckTimeout sets the deadline for the peer's ACK/NAK after this
// session transmits a frame.
func WithFrameAckTimeout(d time.Duration) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if d < MinFrameAckTimeout || d > MaxFrameAckTimeout {
			return fmt.Errorf("lis1: frame ack timeout %v out of range [%v, %v]",
				d, MinFrameAckTimeout, MaxFrameAckTimeout)
		}
		cfg.frameAckTimeout = d

		return nil
	})
}

// WithReceiverTimeout sets the receiver's deadline for the next frame or EOT
// during an established exchange.
func WithReceiverTimeout(d time.Duration) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if d < MinReceiverTimeout || d > MaxReceiverTimeout {
			return fmt.Errorf("lis1: receiver timeout %v out of range [%v, %v]",
				d, MinReceiverTimeout, MaxReceiverTimeout)
		}
		cfg.receiverTimeout = d

		return nil
	})
}

// WithLinkIdleTimeout sets the overall idle deadline; the session closes a
// link that stays silent this long between exchanges.
func WithLinkIdleTimeout(d time.Duration) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if d < MinLinkIdleTimeout || d > MaxLinkIdleTimeout {
			return fmt.Errorf("lis1: link idle timeout %v out of range [%v, %v]",
				d, MinLinkIdleTimeout, MaxLinkIdleTimeout)
		}
		cfg.linkIdleTimeout = d

		return nil
	})
}

// WithContentionWait sets the holdoff before re-sending ENQ after
// simultaneous-ENQ contention. CLSI LIS1-A requires at least one second.
func WithContentionWait(d time.Duration) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if d < MinContentionWait || d > MaxContentionWait {
			return fmt.Errorf("lis1: contention wait %v out of range [%v, %v]",
				d, MinContentionWait, MaxContentionWait)
		}
		cfg.contentionWait = d

		return nil
	})
}

// WithContentionRetries bounds how many establishment attempts are made
// after contention before the transmission is abandoned.
func WithContentionRetries(n int) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if n < MinContentionRetries || n > MaxContentionRetries {
			return fmt.Errorf("lis1: contention retries %d out of range [%d, %d]",
				n, MinContentionRetries, MaxContentionRetries)
		}
		cfg.contentionRetries = n

		return nil
	})
}

// WithResponseDelay sets the pacing delay applied before every control byte
// and frame the session writes. Zero disables pacing.
func WithResponseDelay(d time.Duration) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if d < 0 || d > MaxResponseDelay {
			return fmt.Errorf("lis1: response delay %v out of range [0, %v]", d, MaxResponseDelay)
		}
		cfg.responseDelay = d

		return nil
	})
}

// WithMessageHandler sets the handler invoked with each finalized inbound
// message.
func WithMessageHandler(h MessageHandler) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if h == nil {
			return errors.New("lis1: message handler must not be nil")
		}
		cfg.handler = h

		return nil
	})
}

// WithQueryResponder sets the responder that supplies the message answering
// a field query.
func WithQueryResponder(r QueryResponder) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if r == nil {
			return errors.New("lis1: query responder must not be nil")
		}
		cfg.responder = r

		return nil
	})
}

// WithMetrics sets a shared metrics instance. A server passes one instance
// to every session so the counters aggregate across connections.
func WithMetrics(m *SessionMetrics) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if m == nil {
			return errors.New("lis1: metrics must not be nil")
		}
		cfg.metrics = m

		return nil
	})
}

// WithLogger sets the logger for sessions using this configuration.
func WithLogger(l logger.Logger) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if l == nil {
			return errors.New("lis1: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
