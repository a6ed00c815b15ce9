package lis1

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/openlis/astmsim/astm"
	"github.com/openlis/astmsim/internal/pool"
	"github.com/openlis/astmsim/logger"
)

// Session implements the per-connection LIS1-A state machine.
//
// A Session is the exclusive owner of its transport connection and is driven
// by a single goroutine: Serve runs the receiver side and switches to the
// initiator role on the same connection to answer field queries; Send runs
// one outbound transmission for push flows. Only Close and State are safe to
// call concurrently with the owning goroutine.
type Session struct {
	cfg     *SessionConfig
	logger  logger.Logger
	ft      *frameTransport
	metrics *SessionMetrics

	state atomic.Uint32

	// Receiver state, valid during one inbound exchange.
	lastAccepted int             // last accepted frame number, 0 = unset
	retryCount   int             // consecutive rejections of the outstanding frame
	assembly     strings.Builder // accumulated frame text of the in-progress message
}

// NewSession creates a Session owning conn. Serve closes conn when it
// returns; outbound-only callers close via Close.
func NewSession(conn net.Conn, cfg *SessionConfig) *Session {
	s := &Session{
		cfg:     cfg,
		logger:  cfg.logger,
		ft:      newFrameTransport(conn, cfg),
		metrics: cfg.metrics,
	}
	s.state.Store(uint32(StateIdle))

	return s
}

// State returns the session's current state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) setState(next SessionState) {
	prev := SessionState(s.state.Swap(uint32(next)))
	if prev != next {
		s.logger.Debug("lis1: state transition", "from", prev.String(), "to", next.String())
	}
}

// Close closes the underlying transport, cancelling any wait in progress.
func (s *Session) Close() error {
	return s.ft.close()
}

// RemoteAddr returns the remote address of the session's transport.
func (s *Session) RemoteAddr() string {
	if addr := s.ft.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}

	return ""
}

// --- Receiver role ---

// Serve runs the receiver loop: it waits at idle for a peer ENQ, receives
// the transmission, finalizes the message, and answers field queries as the
// initiator on the same connection.
//
// Serve returns nil when the peer disconnects or the link stays silent past
// the link-idle deadline. It returns ErrRetransmissionLimit when the session
// aborts and ErrSessionClosed when the transport is closed under it. The
// transport is closed in every case.
func (s *Session) Serve(ctx context.Context) error {
	defer func() {
		_ = s.ft.close()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		b, err := s.ft.readByte(s.cfg.linkIdleTimeout)
		if err != nil {
			switch {
			case isTimeoutError(err):
				s.logger.Info("lis1: link idle, closing", "timeout", s.cfg.linkIdleTimeout)
				return nil
			case isPeerClosedError(err):
				s.logger.Debug("lis1: peer disconnected")
				return nil
			case isClosedError(err):
				return ErrSessionClosed
			default:
				return fmt.Errorf("lis1: idle read: %w", err)
			}
		}

		switch b {
		case ENQ:
			if err := s.receiveTransmission(ctx); err != nil {
				return err
			}
		case EOT:
			// Stray termination outside an exchange carries no state.
			s.logger.Debug("lis1: EOT at idle ignored")
		case STX:
			// Frame data without establishment. Discard until the line goes
			// quiet to stay aligned with the stream.
			s.logger.Warn("lis1: frame data at idle, draining")
			s.ft.drainUntilSilence()
		default:
			s.logger.Warn("lis1: unexpected byte at idle", "byte", fmt.Sprintf("0x%02X", b))
		}
	}
}

// receiveTransmission handles one inbound exchange after a peer ENQ: it
// grants establishment and receives frames until EOT, a receiver timeout,
// or abort. The returned error is non-nil only for session-fatal outcomes.
func (s *Session) receiveTransmission(ctx context.Context) error {
	if err := s.ft.writeControl(ctx, ACK); err != nil {
		return s.writeFailure("establishment ACK", err)
	}

	s.setState(StateEstablishedReceiver)
	s.beginExchange()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		b, err := s.ft.readByte(s.cfg.receiverTimeout)
		if err != nil {
			switch {
			case isTimeoutError(err):
				s.metrics.incTimeoutCount()
				s.logger.Warn("lis1: discarding partial message",
					"error", ErrReceiverTimeout, "timeout", s.cfg.receiverTimeout)
				s.beginExchange()
				s.setState(StateIdle)

				return nil
			case isPeerClosedError(err):
				s.logger.Debug("lis1: peer disconnected mid-transfer")
				return nil
			case isClosedError(err):
				return ErrSessionClosed
			default:
				return fmt.Errorf("lis1: receive: %w", err)
			}
		}

		switch b {
		case STX:
			if err := s.handleFrame(ctx); err != nil {
				return err
			}
		case EOT:
			return s.finalize(ctx)
		case ENQ:
			// The peer restarted establishment mid-exchange; treat it as a
			// fresh transmission.
			s.logger.Debug("lis1: re-establishment during transfer")
			if err := s.ft.writeControl(ctx, ACK); err != nil {
				return s.writeFailure("establishment ACK", err)
			}
			s.beginExchange()
		default:
			s.logger.Warn("lis1: unexpected byte during transfer", "byte", fmt.Sprintf("0x%02X", b))
		}
	}
}

// beginExchange resets the per-exchange receiver state.
func (s *Session) beginExchange() {
	s.lastAccepted = 0
	s.retryCount = 0
	s.assembly.Reset()
}

// handleFrame reads and validates one frame, acknowledging or rejecting it.
// The returned error is non-nil only for session-fatal outcomes.
func (s *Session) handleFrame(ctx context.Context) error {
	raw, err := s.ft.readFrame(s.cfg.receiverTimeout)

	switch {
	case err == nil:
	case errors.Is(err, ErrMalformedFrame):
		// Oversized frame without a trailer.
		return s.rejectFrame(ctx, err)
	case isTimeoutError(err):
		return s.rejectFrame(ctx, fmt.Errorf("%w: truncated frame", ErrMalformedFrame))
	case isClosedError(err):
		return ErrSessionClosed
	case isPeerClosedError(err):
		s.logger.Debug("lis1: peer disconnected mid-frame")
		return nil
	default:
		return fmt.Errorf("lis1: frame read: %w", err)
	}

	frame, err := DecodeFrame(raw)
	if err != nil {
		return s.rejectFrame(ctx, err)
	}

	duplicate, err := s.checkSequence(frame.Number)
	if err != nil {
		return s.rejectFrame(ctx, err)
	}

	if duplicate {
		// Retransmission of the frame just accepted: acknowledge it again
		// without appending its text a second time.
		s.metrics.incDuplicateFrameCount()
		s.retryCount = 0
		s.logger.Debug("lis1: duplicate frame acknowledged", "number", frame.Number)

		if err := s.ft.writeControl(ctx, ACK); err != nil {
			return s.writeFailure("frame ACK", err)
		}

		return nil
	}

	s.retryCount = 0
	s.lastAccepted = frame.Number
	s.assembly.Write(frame.Text)

	// An ETX-terminated frame ends the record it carries; peers do not
	// reliably include the record's trailing CR, so supply it. An ETB frame
	// continues its record in the next frame and gets no separator.
	if !frame.Intermediate {
		if n := len(frame.Text); n == 0 || frame.Text[n-1] != CR {
			s.assembly.WriteByte(CR)
		}
	}

	s.metrics.incFrameRecvCount()

	s.logger.Debug("lis1: frame accepted", "number", frame.Number, "size", len(frame.Text))

	if err := s.ft.writeControl(ctx, ACK); err != nil {
		return s.writeFailure("frame ACK", err)
	}

	return nil
}

// checkSequence validates a frame number against the last accepted number.
// The first frame of an exchange may carry any number 1..7; afterwards only
// the same number (a retransmission duplicate) or its successor in the cycle
// is valid.
func (s *Session) checkSequence(number int) (duplicate bool, err error) {
	if s.lastAccepted == 0 {
		return false, nil
	}

	switch number {
	case s.lastAccepted:
		return true, nil
	case NextFrameNumber(s.lastAccepted):
		return false, nil
	default:
		return false, fmt.Errorf("%w: got %d, last accepted %d", ErrFrameSequence, number, s.lastAccepted)
	}
}

// rejectFrame answers a failed frame with NAK and accounts the failure
// against the shared retransmission budget. The NAK for the final failure
// goes out before the abort EOT.
func (s *Session) rejectFrame(ctx context.Context, cause error) error {
	s.logger.Warn("lis1: frame rejected",
		"error", cause, "failures", s.retryCount+1, "limit", RetransmitLimit)

	if err := s.ft.writeControl(ctx, NAK); err != nil {
		return s.writeFailure("frame NAK", err)
	}
	s.metrics.incNakSentCount()

	s.retryCount++
	if s.retryCount >= RetransmitLimit {
		return s.abort(ctx, cause)
	}

	return nil
}

// abort ends the session after the retransmission budget is exhausted,
// sending EOT while the transport still accepts writes.
func (s *Session) abort(ctx context.Context, cause error) error {
	s.logger.Error("lis1: aborting session, retransmission limit reached",
		"limit", RetransmitLimit, "error", cause)

	if err := s.ft.writeControl(ctx, EOT); err != nil {
		s.logger.Debug("lis1: abort EOT not delivered", "error", err)
	}

	s.setState(StateAborted)
	s.metrics.incAbortCount()

	return fmt.Errorf("%w: %w", ErrRetransmissionLimit, cause)
}

// finalize completes an inbound exchange at EOT: it hands the assembled
// message to the handler and answers a field query as the initiator on the
// same connection.
func (s *Session) finalize(ctx context.Context) error {
	s.setState(StateIdle)

	text := s.assembly.String()
	s.beginExchange()

	if text == "" {
		s.logger.Debug("lis1: EOT with no frames accepted")
		return nil
	}

	msg := astm.ParseMessage(text)
	if msg.Len() == 0 {
		s.logger.Debug("lis1: transmission carried no records")
		return nil
	}

	s.metrics.incMsgRecvCount()
	s.logger.Info("lis1: message received", "records", msg.Len())

	if s.cfg.handler != nil {
		s.cfg.handler(msg)
	}

	if !msg.IsQuery() {
		return nil
	}

	s.metrics.incQueryRecvCount()

	if s.cfg.responder == nil {
		s.logger.Warn("lis1: field query received but no responder configured")
		return nil
	}

	reply := s.cfg.responder()
	if reply == nil {
		s.logger.Warn("lis1: field query declined by responder")
		return nil
	}

	s.logger.Info("lis1: answering field query", "records", reply.Len())

	if err := s.Send(ctx, reply); err != nil {
		if errors.Is(err, ErrSessionClosed) || errors.Is(err, ErrRetransmissionLimit) {
			return err
		}
		// The answer is best-effort; the link returns to idle either way.
		s.logger.Warn("lis1: field query response failed", "error", err)
	}

	return nil
}

// --- Initiator role ---

// Send transmits msg as the initiator: establishment (ENQ), one frame per
// record numbered 1..7 cycling, then EOT. Contention is resolved with
// instrument priority; rejected frames are retransmitted against the shared
// budget. On a receiver interrupt the remainder of the message is discarded
// and ErrReceiverInterrupt returned.
func (s *Session) Send(ctx context.Context, msg *astm.Message) error {
	if msg == nil || msg.Len() == 0 {
		return errors.New("lis1: empty message")
	}

	// Pack every record before touching the wire so a malformed record
	// cannot abandon a transmission midway.
	wires := make([][]byte, 0, msg.Len())
	number := 0
	for i, rec := range msg.Records() {
		number = NextFrameNumber(number)

		wire, err := EncodeFrame(number, []byte(rec.Text()))
		if err != nil {
			return fmt.Errorf("lis1: pack record %d: %w", i+1, err)
		}
		wires = append(wires, wire)
	}

	if err := s.establish(ctx); err != nil {
		return err
	}

	s.setState(StateEstablishedSender)

	number = 0
	for _, wire := range wires {
		number = NextFrameNumber(number)

		if err := s.sendFrame(ctx, number, wire); err != nil {
			return err
		}
	}

	if err := s.ft.writeControl(ctx, EOT); err != nil {
		return s.writeFailure("EOT", err)
	}

	s.metrics.incMsgSendCount()
	s.setState(StateIdle)
	s.logger.Info("lis1: message sent", "records", msg.Len())

	return nil
}

// establish performs the establishment phase as initiator: send ENQ and
// await the peer's grant. On simultaneous ENQ the instrument holds priority:
// it waits out the contention holdoff and re-sends ENQ rather than yielding,
// bounded by the configured contention retries.
func (s *Session) establish(ctx context.Context) error {
	for attempt := 0; ; {
		s.setState(StateAwaitEstablish)

		if err := s.ft.writeControl(ctx, ENQ); err != nil {
			return s.writeFailure("ENQ", err)
		}

		b, err := s.awaitEstablishResponse(ctx)
		if err != nil {
			return err
		}

		switch b {
		case ACK:
			return nil

		case NAK:
			s.setState(StateIdle)
			return ErrEstablishmentDenied

		case ENQ:
			s.setState(StateContention)
			s.metrics.incContentionCount()

			attempt++
			if attempt > s.cfg.contentionRetries {
				s.setState(StateIdle)
				return ErrContentionUnresolved
			}

			s.logger.Debug("lis1: contention, holding instrument priority",
				"wait", s.cfg.contentionWait, "attempt", attempt)

			if err := s.waitContention(ctx); err != nil {
				return err
			}
		}
	}
}

// awaitEstablishResponse reads until ACK, NAK, or ENQ arrives or the
// establishment deadline passes, ignoring any other bytes.
func (s *Session) awaitEstablishResponse(ctx context.Context) (byte, error) {
	deadline := time.Now().Add(s.cfg.establishTimeout)

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			s.metrics.incTimeoutCount()
			s.setState(StateIdle)

			return 0, ErrEstablishmentTimeout
		}

		b, err := s.ft.readByte(remaining)
		if err != nil {
			switch {
			case isTimeoutError(err):
				s.metrics.incTimeoutCount()
				s.setState(StateIdle)

				return 0, ErrEstablishmentTimeout
			case isClosedError(err) || isPeerClosedError(err):
				return 0, ErrSessionClosed
			default:
				return 0, fmt.Errorf("lis1: establishment read: %w", err)
			}
		}

		switch b {
		case ACK, NAK, ENQ:
			return b, nil
		default:
			s.logger.Debug("lis1: ignoring byte during establishment",
				"byte", fmt.Sprintf("0x%02X", b))
		}
	}
}

// waitContention holds off for the contention wait before re-sending ENQ.
func (s *Session) waitContention(ctx context.Context) error {
	timer := pool.GetTimer(s.cfg.contentionWait)
	defer pool.PutTimer(timer)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// sendFrame transmits one packed frame and waits for its acknowledgment,
// retransmitting on rejection against the shared budget.
func (s *Session) sendFrame(ctx context.Context, number int, wire []byte) error {
	retries := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := s.ft.writeFrame(ctx, wire); err != nil {
			return s.writeFailure("frame", err)
		}
		s.metrics.incFrameSendCount()

		b, err := s.ft.readByte(s.cfg.frameAckTimeout)
		if err != nil {
			switch {
			case isTimeoutError(err):
				s.metrics.incTimeoutCount()
				s.setState(StateIdle)

				return ErrFrameAckTimeout
			case isClosedError(err) || isPeerClosedError(err):
				return ErrSessionClosed
			default:
				return fmt.Errorf("lis1: frame ack read: %w", err)
			}
		}

		switch b {
		case ACK:
			return nil

		case EOT:
			// Receiver interrupt per CLSI LIS1-A 8.3.5: stop transmitting
			// and discard the remainder of the message.
			s.metrics.incInterruptCount()
			s.logger.Info("lis1: receiver interrupt, stopping transmission")
			s.setState(StateTerminating)
			s.setState(StateIdle)

			return ErrReceiverInterrupt

		default:
			// NAK and anything else rejects the frame.
			retries++
			s.metrics.incNakRecvCount()
			s.logger.Warn("lis1: frame rejected by peer",
				"number", number, "response", fmt.Sprintf("0x%02X", b),
				"failures", retries, "limit", RetransmitLimit)

			if retries >= RetransmitLimit {
				return s.abort(ctx, fmt.Errorf("frame %d rejected %d times", number, retries))
			}
		}
	}
}

// writeFailure classifies a failed write into a session outcome.
func (s *Session) writeFailure(what string, err error) error {
	if isClosedError(err) || isPeerClosedError(err) {
		s.logger.Debug("lis1: connection closed writing "+what, "error", err)
		return ErrSessionClosed
	}

	return fmt.Errorf("lis1: write %s: %w", what, err)
}
