package generator

import (
	"fmt"
	"time"

	"github.com/openlis/astmsim/astm"
	"github.com/openlis/astmsim/template"
)

// Observation pairs a template field with one generated result value.
type Observation struct {
	Field template.Field
	Value string
}

func (o Observation) record(seq int, ts string) string {
	f := o.Field
	testField := f.Ref() + "^" + f.Display()

	if f.Type == template.FieldNumeric {
		return fmt.Sprintf("R|%d|%s|%s|%s|%s|N||F|%s", seq, testField, o.Value, f.Unit, f.NormalRange, ts)
	}

	return fmt.Sprintf("R|%d|%s|%s|||N||F|%s", seq, testField, o.Value, ts)
}

// Report is one generated result set with the resolved identities every
// protocol rendering shares. The HL7 and file renderers consume a Report so
// all renderings of one generation carry the same values.
type Report struct {
	Template     *template.Template
	Timestamp    time.Time
	Patient      template.Patient
	Sample       template.Sample // Type holds the resolved panel in code^label form
	Observations []Observation
}

// Message renders the report as a complete LIS2-A2 message: header, patient,
// order, one result record per observation, and the terminator.
func (r *Report) Message() *astm.Message {
	ts := r.Timestamp.Format(TimestampLayout)

	msg := astm.NewMessage()
	msg.Append(astm.NewRecord(fmt.Sprintf(`H|\^&|||%s|||||||LIS2-A2|%s`, r.Template.ASTMIdentity(), ts)))
	msg.Append(astm.NewRecord(fmt.Sprintf("P|1||%s|%s||%s|%s", r.Patient.ID, r.Patient.Name, r.Patient.Sex, r.Patient.DOB)))
	msg.Append(astm.NewRecord(fmt.Sprintf("O|1|%s^LAB|%s||%s", r.Sample.ID, r.Sample.Type, ts)))

	for i, obs := range r.Observations {
		msg.Append(astm.NewRecord(obs.record(i+1, ts)))
	}
	msg.Append(astm.NewRecord("L|1|N"))

	return msg
}

// QueryResponse builds the field listing sent in answer to a bridge's test
// menu query: a header, one unvalued result record per template field
// carrying its unit and type, and the terminator. It draws no random values,
// so it is safe to share across sessions on an immutable template.
func QueryResponse(tpl *template.Template) *astm.Message {
	msg := astm.NewMessage()
	msg.Append(astm.NewRecord(fmt.Sprintf(`H|\^&|||%s|||||||LIS2-A2`, tpl.ASTMIdentity())))

	for i, f := range tpl.Fields {
		testID := f.Ref()
		if f.DisplayName != "" && f.DisplayName != f.Name {
			testID += "^" + f.DisplayName
		}
		msg.Append(astm.NewRecord(fmt.Sprintf("R|%d|%s||%s|||%s", i+1, testID, f.Unit, f.Type)))
	}

	msg.Append(astm.NewRecord("L|1|N"))

	return msg
}
