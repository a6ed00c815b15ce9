package lis1

// SessionState represents the phase of a LIS1-A session's state machine.
type SessionState uint32

// Session states covering the establishment, transfer, and termination
// phases of CLSI LIS1-A.
const (
	// StateIdle indicates no exchange is in progress; the session waits for
	// a peer ENQ or an outbound transmission request.
	StateIdle SessionState = iota

	// StateAwaitEstablish indicates this session sent ENQ and awaits the
	// peer's ACK, NAK, or a contending ENQ.
	StateAwaitEstablish

	// StateEstablishedReceiver indicates a peer ENQ was acknowledged; the
	// session receives frames.
	StateEstablishedReceiver

	// StateEstablishedSender indicates this session's ENQ was acknowledged;
	// the session transmits frames.
	StateEstablishedSender

	// StateContention indicates both peers sent ENQ concurrently; the
	// session holds instrument priority and will re-send ENQ.
	StateContention

	// StateTerminating indicates the current transfer is winding down after
	// a receiver interrupt.
	StateTerminating

	// StateAborted indicates the session aborted after exhausting the
	// retransmission budget; the transport is closed.
	StateAborted
)

// IsIdle returns whether the state is StateIdle.
func (s SessionState) IsIdle() bool { return s == StateIdle }

// IsEstablished returns whether the state is one of the established
// transfer states.
func (s SessionState) IsEstablished() bool {
	return s == StateEstablishedReceiver || s == StateEstablishedSender
}

// IsAborted returns whether the state is StateAborted.
func (s SessionState) IsAborted() bool { return s == StateAborted }

// String returns a string representation of the state.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitEstablish:
		return "await-establish"
	case StateEstablishedReceiver:
		return "established-receiver"
	case StateEstablishedSender:
		return "established-sender"
	case StateContention:
		return "contention"
	case StateTerminating:
		return "terminating"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}
