package lis1

import (
	"fmt"

	"github.com/openlis/astmsim/internal/util"
)

// MaxFrameSize is the maximum number of frame bytes following STX, including
// the terminator, checksum, and trailing CR LF. Longer input is treated as a
// malformed frame.
const MaxFrameSize = 4096

// checksumSize is the size of the checksum in wire characters.
const checksumSize = 2

// minFrameSize is the size of a complete frame with empty text:
// STX, frame number, terminator, two checksum characters, CR, LF.
const minFrameSize = 7

// Link control characters per CLSI LIS1-A. These single-byte codes
// coordinate the establishment, transfer, and termination phases of an
// exchange.
const (
	// ENQ (enquiry) requests establishment of a transmission phase.
	ENQ byte = 0x05

	// ACK (acknowledge) grants establishment or accepts a frame.
	ACK byte = 0x06

	// NAK (negative acknowledge) refuses establishment or rejects a frame.
	NAK byte = 0x15

	// EOT (end of transmission) terminates a transmission phase. Sent by a
	// receiver while a transfer is in progress it requests an interrupt.
	EOT byte = 0x04

	// STX (start of text) opens a frame.
	STX byte = 0x02

	// ETX (end of text) closes an end frame.
	ETX byte = 0x03

	// ETB (end of transmission block) closes an intermediate frame.
	ETB byte = 0x17

	// CR terminates a record and precedes the checksum trailer's LF.
	CR byte = 0x0D

	// LF is the final byte of a frame.
	LF byte = 0x0A
)

// Frame number bounds per CLSI LIS1-A. Numbers are transmitted as the ASCII
// digits '1' through '7' and cycle 7 back to 1.
const (
	MinFrameNumber = 1
	MaxFrameNumber = 7
)

// NextFrameNumber returns the frame number that follows n in the 1..7 cycle.
// NextFrameNumber(0) is 1, which seeds a fresh transmission.
func NextFrameNumber(n int) int {
	return n%MaxFrameNumber + 1
}

// Frame is a single LIS1-A frame: one numbered chunk of message text.
//
// On the wire an end frame is
//
//	<STX> FN text <ETX> C1 C2 <CR> <LF>
//
// where FN is the ASCII frame number digit and C1 C2 are the checksum as two
// hex characters. An intermediate frame carries <ETB> in place of <ETX>.
// The simulator transmits end frames only but accepts both forms.
type Frame struct {
	// Number is the frame number, 1..7.
	Number int

	// Text is the frame text. It must not contain restricted characters; a
	// single trailing LF is permitted (CLSI LIS1-A §8.6).
	Text []byte

	// Intermediate marks a frame terminated by ETB instead of ETX.
	Intermediate bool
}

// terminator returns the frame's terminator byte.
func (f *Frame) terminator() byte {
	if f.Intermediate {
		return ETB
	}

	return ETX
}

// Checksum computes the frame checksum per CLSI LIS1-A: the modulo-256 sum
// of every byte from the frame number through the terminator, inclusive.
// STX and the checksum characters themselves are excluded.
func (f *Frame) Checksum() byte {
	sum := uint32('0' + byte(f.Number)) //nolint:gosec // Number is 1..7 on any validated frame

	for _, v := range f.Text {
		sum += uint32(v)
	}
	sum += uint32(f.terminator())

	return byte(sum % 256)
}

// Pack serializes the frame to its wire format, rendering the checksum as
// two uppercase hex characters. It fails when the frame number is out of
// range or the text contains a restricted character.
func (f *Frame) Pack() ([]byte, error) {
	if f.Number < MinFrameNumber || f.Number > MaxFrameNumber {
		return nil, fmt.Errorf("%w: frame number %d out of range [%d, %d]",
			ErrMalformedFrame, f.Number, MinFrameNumber, MaxFrameNumber)
	}

	if err := validateText(f.Text); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, len(f.Text)+minFrameSize)
	buf = append(buf, STX, '0'+byte(f.Number))
	buf = append(buf, f.Text...)
	buf = append(buf, f.terminator())

	cs := f.Checksum()
	buf = append(buf, hexDigits[cs>>4], hexDigits[cs&0x0F])
	buf = append(buf, CR, LF)

	return buf, nil
}

// EncodeFrame wraps text as an end frame with the given frame number and
// returns its wire bytes.
func EncodeFrame(number int, text []byte) ([]byte, error) {
	f := Frame{Number: number, Text: text}

	return f.Pack()
}

// DecodeFrame parses a complete wire frame, STX through the trailing LF.
//
// Validation runs in order: structure (framing bytes, frame number digit,
// terminator position), restricted characters in the text, and finally the
// checksum. A checksum disagreement is reported as ErrChecksumMismatch,
// distinct from the ErrMalformedFrame structural failures. Lowercase
// checksum characters from the peer are accepted.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < minFrameSize {
		return nil, fmt.Errorf("%w: frame too short (%d bytes)", ErrMalformedFrame, len(data))
	}
	if len(data)-1 > MaxFrameSize {
		return nil, fmt.Errorf("%w: frame exceeds %d bytes", ErrMalformedFrame, MaxFrameSize)
	}

	if data[0] != STX {
		return nil, fmt.Errorf("%w: missing STX", ErrMalformedFrame)
	}
	if data[len(data)-2] != CR || data[len(data)-1] != LF {
		return nil, fmt.Errorf("%w: missing CR LF trailer", ErrMalformedFrame)
	}

	num := data[1]
	if num < '1' || num > '7' {
		return nil, fmt.Errorf("%w: invalid frame number character 0x%02X", ErrMalformedFrame, num)
	}

	termIdx := len(data) - checksumSize - 3 // terminator, checksum, CR, LF
	term := data[termIdx]
	if term != ETX && term != ETB {
		return nil, fmt.Errorf("%w: missing ETX/ETB terminator", ErrMalformedFrame)
	}

	text := data[2:termIdx]
	if err := validateText(text); err != nil {
		return nil, err
	}

	frame := &Frame{
		Number:       int(num - '0'),
		Text:         util.CloneSlice(text, 0),
		Intermediate: term == ETB,
	}

	computed := frame.Checksum()
	if !checksumEqual(data[termIdx+1:termIdx+3], computed) {
		return nil, fmt.Errorf("%w: computed %02X, received %q",
			ErrChecksumMismatch, computed, data[termIdx+1:termIdx+3])
	}

	return frame, nil
}

// validateText rejects restricted characters inside frame text per CLSI
// LIS1-A §8.6: 0x01..0x06 (SOH..ACK) and 0x10..0x17 (DLE..ETB), plus LF
// anywhere but as the single final byte of the text.
func validateText(text []byte) error {
	end := len(text)
	if end > 0 && text[end-1] == LF {
		end--
	}

	for i := 0; i < end; i++ {
		b := text[i]
		if (b >= 0x01 && b <= 0x06) || (b >= 0x10 && b <= 0x17) || b == LF {
			return fmt.Errorf("%w: restricted character 0x%02X at offset %d", ErrMalformedFrame, b, i)
		}
	}

	return nil
}

const hexDigits = "0123456789ABCDEF"

// checksumEqual compares two received checksum characters against the
// computed value, accepting lowercase hex from the peer.
func checksumEqual(recv []byte, want byte) bool {
	hi, ok1 := hexValue(recv[0])
	lo, ok2 := hexValue(recv[1])
	if !ok1 || !ok2 {
		return false
	}

	return hi<<4|lo == want
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}
