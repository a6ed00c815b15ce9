// Package astm provides the ASTM E1394/LIS2-A2 message model used by the
// simulator: typed records, message assembly from frame payloads, and the
// field-query classification that drives the instrument's query response.
//
// The package deals with record structure only. Framing, checksums, and the
// link-level handshake belong to the lis1 package.
package astm

import "strings"

// RecordType identifies the category of a LIS2-A2 record, taken from the
// record's leading field.
type RecordType byte

const (
	// RecordUnknown marks a record whose leading field is not a known record type.
	RecordUnknown RecordType = 0

	// RecordHeader is the message header record (H).
	RecordHeader RecordType = 'H'

	// RecordPatient is the patient information record (P).
	RecordPatient RecordType = 'P'

	// RecordOrder is the test order record (O).
	RecordOrder RecordType = 'O'

	// RecordResult is the result record (R).
	RecordResult RecordType = 'R'

	// RecordComment is the comment record (C).
	RecordComment RecordType = 'C'

	// RecordQuery is the request information record (Q), also used for QC messages.
	RecordQuery RecordType = 'Q'

	// RecordManufacturer is the manufacturer information record (M).
	RecordManufacturer RecordType = 'M'

	// RecordScientific is the scientific record (S).
	RecordScientific RecordType = 'S'

	// RecordTerminator is the message terminator record (L).
	RecordTerminator RecordType = 'L'
)

// String returns a human-readable name of the record type.
func (t RecordType) String() string {
	switch t {
	case RecordHeader:
		return "header"
	case RecordPatient:
		return "patient"
	case RecordOrder:
		return "order"
	case RecordResult:
		return "result"
	case RecordComment:
		return "comment"
	case RecordQuery:
		return "query"
	case RecordManufacturer:
		return "manufacturer"
	case RecordScientific:
		return "scientific"
	case RecordTerminator:
		return "terminator"
	default:
		return "unknown"
	}
}

// Record is a single LIS2-A2 record line, stored without its trailing CR.
type Record struct {
	text string
}

// NewRecord creates a Record from one delimited record line.
// A single trailing CR is stripped; the rest of the text is kept verbatim.
func NewRecord(text string) Record {
	return Record{text: strings.TrimSuffix(text, "\r")}
}

// Type returns the record category parsed from the leading field.
//
// The leading field must be a single known type letter, e.g. the "H" in
// "H|\^&|||...". Anything else yields RecordUnknown.
func (r Record) Type() RecordType {
	first := r.text
	if idx := strings.IndexByte(r.text, '|'); idx >= 0 {
		first = r.text[:idx]
	}

	if len(first) != 1 {
		return RecordUnknown
	}

	switch t := RecordType(first[0]); t {
	case RecordHeader, RecordPatient, RecordOrder, RecordResult,
		RecordComment, RecordQuery, RecordManufacturer, RecordScientific, RecordTerminator:
		return t
	default:
		return RecordUnknown
	}
}

// Text returns the raw delimited record text.
func (r Record) Text() string {
	return r.text
}

// Fields splits the record text on the field delimiter.
func (r Record) Fields() []string {
	return strings.Split(r.text, "|")
}

// Field returns the idx-th field of the record, counting from zero.
// It returns an empty string when the record has fewer fields.
func (r Record) Field(idx int) string {
	fields := r.Fields()
	if idx < 0 || idx >= len(fields) {
		return ""
	}

	return fields[idx]
}
