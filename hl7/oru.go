// Package hl7 renders generated reports as HL7 v2.5.1 ORU^R01 messages and
// delivers them over MLLP, for bridges that ingest observation results
// through an HL7 listener instead of the ASTM link.
package hl7

import (
	"strconv"
	"strings"

	"github.com/openlis/astmsim/generator"
	"github.com/openlis/astmsim/template"
)

// fillerOrderID is the canned filler order number carried in ORC and OBR.
const fillerOrderID = "FILLER012"

// Render renders the report as an ORU^R01 observation message: MSH, PID,
// ORC, OBR, and one OBX per observation, joined and terminated with CR.
func Render(rep *generator.Report) string {
	ts := rep.Timestamp.Format(generator.TimestampLayout)
	controlID := "SIM" + ts
	placer := rep.Sample.ID

	panelCode, panelLabel, found := strings.Cut(rep.Sample.Type, "^")
	if !found {
		panelLabel = panelCode
	}

	msh := pad([]string{
		"MSH", `^~\&`, rep.Template.HL7SendingApp(), rep.Template.HL7SendingFacility(),
		"OpenELIS", "LAB", ts, "", "ORU^R01", controlID, "P", "2.5.1",
	}, 7)

	pid := pad([]string{
		"PID", "1", "", rep.Patient.ID + "^^^HOSPITAL", "", rep.Patient.Name, "",
		rep.Patient.DOB, rep.Patient.Sex,
	}, 12)

	orc := pad([]string{"ORC", "RE", placer, fillerOrderID}, 19)

	obr := pad([]string{
		"OBR", "1", placer, fillerOrderID, "1", "^^^" + panelCode + "^" + panelLabel, "", "", ts,
	}, 11)
	obr = append(obr, "F")
	obr = pad(obr, 7)

	segments := []string{
		strings.Join(msh, "|"),
		strings.Join(pid, "|"),
		strings.Join(orc, "|"),
		strings.Join(obr, "|"),
	}
	for i, obs := range rep.Observations {
		segments = append(segments, obxSegment(i+1, obs))
	}

	return strings.Join(segments, "\r") + "\r"
}

// obxSegment builds one OBX: value type NM for numeric observations, ST
// otherwise, with the ^^^CODE^NAME observation identifier.
func obxSegment(seq int, obs generator.Observation) string {
	valueType := "ST"
	if obs.Field.Type == template.FieldNumeric {
		valueType = "NM"
	}

	fields := pad([]string{
		"OBX", strconv.Itoa(seq), valueType,
		"^^^" + obs.Field.Code + "^" + obs.Field.Name, "", obs.Value, "", "", "N", "", "", "F",
	}, 5)

	return strings.Join(fields, "|")
}

// pad appends n empty fields to a segment under construction.
func pad(fields []string, n int) []string {
	for i := 0; i < n; i++ {
		fields = append(fields, "")
	}

	return fields
}
