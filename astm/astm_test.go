package astm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecord_Type(t *testing.T) {
	tests := []struct {
		description string
		text        string
		expected    RecordType
	}{
		{"header record", `H|\^&|||Sysmex^XN-1000^V1.0|||||||LIS2-A2|20240101120000`, RecordHeader},
		{"patient record", "P|1||PAT-20240101-123|Smith^John||M|19700101", RecordPatient},
		{"order record", "O|1|SAMPLE-20240101-1234^LAB|CBC^CBC Panel||20240101120000", RecordOrder},
		{"result record", "R|1|^^^WBC^White Blood Cell Count|6.24|10^3/uL|4.0-11.0|N||F|20240101120000", RecordResult},
		{"comment record", "C|1|I|collected after transfusion|G", RecordComment},
		{"query record", "Q|1|ALL||||||||||O", RecordQuery},
		{"manufacturer record", "M|1|detail", RecordManufacturer},
		{"scientific record", "S|1", RecordScientific},
		{"terminator record", "L|1|N", RecordTerminator},
		{"terminator with trailing CR", "L|1|N\r", RecordTerminator},
		{"bare type letter", "L", RecordTerminator},
		{"lowercase letter", "h|\\^&", RecordUnknown},
		{"unknown letter", "X|1|2", RecordUnknown},
		{"multi-char leading field", "HH|1", RecordUnknown},
		{"empty record", "", RecordUnknown},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			require.Equal(t, test.expected, NewRecord(test.text).Type())
		})
	}
}

func TestRecord_Fields(t *testing.T) {
	require := require.New(t)

	r := NewRecord("R|2|^^^RBC|4.51|10^6/uL|4.2-5.9|N||F")
	require.Equal("R", r.Field(0))
	require.Equal("2", r.Field(1))
	require.Equal("^^^RBC", r.Field(2))
	require.Equal("4.51", r.Field(3))
	require.Equal("", r.Field(6))
	require.Equal("", r.Field(100))
	require.Equal("", r.Field(-1))
	require.Len(r.Fields(), 9)

	// trailing CR is stripped at construction
	r = NewRecord("L|1|N\r")
	require.Equal("L|1|N", r.Text())
}
