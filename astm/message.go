package astm

import (
	"strings"

	"github.com/openlis/astmsim/internal/util"
)

// Message is an ordered sequence of records carried by one transmission phase.
//
// A receiving session assembles a Message incrementally from accepted frame
// payloads; the generator supplies complete messages for transmission.
// Message is not safe for concurrent use.
type Message struct {
	records []Record
}

// NewMessage creates a Message from the given records.
func NewMessage(records ...Record) *Message {
	return &Message{records: records}
}

// ParseMessage splits raw message text on CR record terminators and builds a
// Message from the non-empty lines. Lines terminated by LF are accepted as
// well, so both wire text and file text parse.
func ParseMessage(text string) *Message {
	msg := &Message{}
	msg.AppendText(text)

	return msg
}

// Append adds a record to the end of the message.
func (m *Message) Append(r Record) {
	m.records = append(m.records, r)
}

// AppendText splits text on record terminators and appends each non-empty
// line as a record. It accepts a bare record line as well as a multi-record
// chunk, which is how frame payloads arrive from the link layer.
func (m *Message) AppendText(text string) {
	text = strings.TrimSuffix(text, "\n")
	for _, line := range strings.Split(text, "\r") {
		line = strings.TrimSuffix(line, "\n")
		if line == "" {
			continue
		}
		m.records = append(m.records, NewRecord(line))
	}
}

// Records returns a copy of the message's records in order.
func (m *Message) Records() []Record {
	return util.CloneSlice(m.records, 0)
}

// Len returns the number of records in the message.
func (m *Message) Len() int {
	return len(m.records)
}

// Reset removes all records, keeping the allocated capacity.
func (m *Message) Reset() {
	m.records = m.records[:0]
}

// Contains reports whether the message holds at least one record of type t.
func (m *Message) Contains(t RecordType) bool {
	for _, r := range m.records {
		if r.Type() == t {
			return true
		}
	}

	return false
}

// First returns the first record of type t and whether one exists.
func (m *Message) First(t RecordType) (Record, bool) {
	for _, r := range m.records {
		if r.Type() == t {
			return r, true
		}
	}

	return Record{}, false
}

// IsQuery reports whether the message is a field query: a complete message
// carrying a header and a terminator record but no patient or order records.
// Analyzer bridges send such a message to discover the instrument's test menu.
func (m *Message) IsQuery() bool {
	return m.Contains(RecordHeader) &&
		m.Contains(RecordTerminator) &&
		!m.Contains(RecordPatient) &&
		!m.Contains(RecordOrder)
}

// Text renders the message as wire text with records joined by CR.
func (m *Message) Text() string {
	return strings.Join(m.Lines(), "\r")
}

// Lines returns each record's text in order.
func (m *Message) Lines() []string {
	lines := make([]string, len(m.records))
	for i, r := range m.records {
		lines[i] = r.text
	}

	return lines
}
