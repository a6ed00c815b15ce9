package astm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_AppendText(t *testing.T) {
	require := require.New(t)

	msg := &Message{}

	// one record per payload, the common case on the wire
	msg.AppendText(`H|\^&|||Sysmex^XN-1000^V1.0|||||||LIS2-A2|20240101120000`)
	require.Equal(1, msg.Len())

	// a payload may carry several CR-terminated records
	msg.AppendText("P|1||PAT-20240101-123|Smith^John||M|19700101\rO|1|SAMPLE-20240101-1234^LAB|CBC^CBC Panel||20240101120000\r")
	require.Equal(3, msg.Len())

	// a trailing LF is permitted as the last byte of a frame payload
	msg.AppendText("L|1|N\r\n")
	require.Equal(4, msg.Len())

	records := msg.Records()
	require.Len(records, 4)
	require.Equal(RecordHeader, records[0].Type())
	require.Equal(RecordPatient, records[1].Type())
	require.Equal(RecordOrder, records[2].Type())
	require.Equal(RecordTerminator, records[3].Type())

	// Records returns a copy, the message is not aliased
	records[0] = NewRecord("X|corrupted")
	require.Equal(RecordHeader, msg.Records()[0].Type())
}

func TestMessage_ParseMessageAndText(t *testing.T) {
	require := require.New(t)

	wire := "H|\\^&|||MockAnalyzer^ASTM-Mock^1.0|||||||LIS2-A2\rR|1|^^^WBC||10^3/uL|||NUMERIC\rL|1|N"
	msg := ParseMessage(wire)
	require.Equal(3, msg.Len())
	require.Equal(wire, msg.Text())
	require.Equal([]string{
		"H|\\^&|||MockAnalyzer^ASTM-Mock^1.0|||||||LIS2-A2",
		"R|1|^^^WBC||10^3/uL|||NUMERIC",
		"L|1|N",
	}, msg.Lines())

	hdr, ok := msg.First(RecordHeader)
	require.True(ok)
	require.Equal("LIS2-A2", hdr.Field(12))

	_, ok = msg.First(RecordPatient)
	require.False(ok)

	msg.Reset()
	require.Equal(0, msg.Len())
	require.Equal("", msg.Text())
}

func TestMessage_IsQuery(t *testing.T) {
	header := NewRecord(`H|\^&|||OpenELIS^Bridge^1.0|||||||LIS2-A2`)
	patient := NewRecord("P|1||PAT-1|Doe^Jane||F|19800101")
	order := NewRecord("O|1|S-1^LAB|CBC^CBC Panel")
	result := NewRecord("R|1|^^^WBC|6.1|10^3/uL")
	term := NewRecord("L|1|N")

	tests := []struct {
		description string
		records     []Record
		isQuery     bool
	}{
		{"header and terminator only", []Record{header, term}, true},
		{"header, patient, order, terminator", []Record{header, patient, order, term}, false},
		{"header, order, terminator", []Record{header, order, term}, false},
		{"header, patient, terminator", []Record{header, patient, term}, false},
		{"header, result, terminator", []Record{header, result, term}, true},
		{"terminator only", []Record{term}, false},
		{"header only", []Record{header}, false},
		{"empty message", nil, false},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			assert.Equal(t, test.isQuery, NewMessage(test.records...).IsQuery())
		})
	}
}
