// Package lis1 implements the CLSI LIS1-A (ASTM E1381) low-level link
// protocol used between clinical laboratory instruments and information
// systems.
//
// The package provides the frame codec and the per-connection session state
// machine: establishment (ENQ/ACK/NAK), transfer (numbered frames with
// checksums, ACK/NAK retransmission), termination (EOT), contention
// resolution with instrument priority, and receiver interrupt.
//
// A Session owns exactly one transport connection and is driven by a single
// goroutine. It acts as the receiver for inbound transmissions and switches
// to the initiator role on the same connection to answer field queries or to
// push outbound messages. Message content is opaque to the session; the astm
// package models the records a transmission carries.
//
// Protocol behavior follows CLSI LIS1-A: frame numbers cycle 1..7, a frame
// checksum is the modulo-256 sum of the bytes from the frame number through
// the terminator, six consecutive rejected transfers abort the session, and
// every wait is bounded by a deadline.
package lis1
