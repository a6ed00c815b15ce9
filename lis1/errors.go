package lis1

import "errors"

var (
	// ErrChecksumMismatch indicates that the recomputed frame checksum
	// disagrees with the received checksum characters. Recoverable: the
	// receiver answers NAK and the sender retransmits.
	ErrChecksumMismatch = errors.New("lis1: frame checksum mismatch")

	// ErrFrameSequence indicates a frame number that is neither the last
	// accepted number nor its successor in the 1..7 cycle. Recoverable via
	// NAK and retransmission.
	ErrFrameSequence = errors.New("lis1: frame number out of sequence")

	// ErrMalformedFrame indicates a structural failure: missing or misplaced
	// framing bytes, an invalid frame number character, or a restricted
	// character in the frame text. Recoverable via NAK and retransmission,
	// counted against the same budget as the other frame-level errors.
	ErrMalformedFrame = errors.New("lis1: malformed frame")
)

var (
	// ErrRetransmissionLimit indicates six consecutive rejected transfers of
	// one frame. Fatal to the session: it aborts, sending EOT when the
	// transport still accepts writes, and closes.
	ErrRetransmissionLimit = errors.New("lis1: retransmission limit exceeded")

	// ErrEstablishmentTimeout indicates no establishment response arrived
	// within the establishment deadline after sending ENQ.
	ErrEstablishmentTimeout = errors.New("lis1: establishment response timeout")

	// ErrEstablishmentDenied indicates the peer answered ENQ with NAK.
	ErrEstablishmentDenied = errors.New("lis1: establishment denied by peer")

	// ErrFrameAckTimeout indicates no acknowledgment arrived within the
	// frame-acknowledgment deadline after transmitting a frame.
	ErrFrameAckTimeout = errors.New("lis1: frame acknowledgment timeout")

	// ErrReceiverTimeout indicates the receiver saw neither a frame nor EOT
	// within the receiver deadline. The exchange is abandoned and any
	// partial message is discarded.
	ErrReceiverTimeout = errors.New("lis1: receiver timeout waiting for frame or EOT")

	// ErrContentionUnresolved indicates repeated simultaneous-ENQ contention
	// beyond the configured retry limit. The transmission attempt is
	// abandoned and reported to the caller.
	ErrContentionUnresolved = errors.New("lis1: contention unresolved, retries exhausted")

	// ErrReceiverInterrupt indicates the peer requested a receiver interrupt
	// (EOT while this session was awaiting a frame acknowledgment). The
	// remainder of the transmission is discarded.
	ErrReceiverInterrupt = errors.New("lis1: transmission interrupted by receiver")
)

// ErrSessionClosed indicates the session's transport is closed.
var ErrSessionClosed = errors.New("lis1: session closed")
