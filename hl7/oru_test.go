package hl7

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlis/astmsim/generator"
	"github.com/openlis/astmsim/template"
)

func fixedNow() time.Time {
	return time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
}

func deterministicReport(t *testing.T, analyzerType string) *generator.Report {
	t.Helper()

	tpl := template.Builtins().Get(analyzerType)
	gen := generator.New(tpl,
		generator.WithDeterministic(),
		generator.WithNow(fixedNow),
		generator.WithSampleID("SAMPLE-001"),
	)

	return gen.Report()
}

func segments(t *testing.T, msg string) []string {
	t.Helper()

	require.True(t, strings.HasSuffix(msg, "\r"), "message must end with CR")

	return strings.Split(strings.TrimSuffix(msg, "\r"), "\r")
}

func TestRender_SegmentStructure(t *testing.T) {
	rep := deterministicReport(t, template.TypeHematology)
	segs := segments(t, Render(rep))
	require.Len(t, segs, 9, "MSH PID ORC OBR + 5 OBX")

	msh := strings.Split(segs[0], "|")
	require.Len(t, msh, 19)
	assert.Equal(t, "MSH", msh[0])
	assert.Equal(t, `^~\&`, msh[1])
	assert.Equal(t, "SYSMEX", msh[2])
	assert.Equal(t, "HEMATOLOGY", msh[3])
	assert.Equal(t, "OpenELIS", msh[4])
	assert.Equal(t, "LAB", msh[5])
	assert.Equal(t, "20250314092653", msh[6])
	assert.Equal(t, "ORU^R01", msh[8])
	assert.Equal(t, "SIM20250314092653", msh[9])
	assert.Equal(t, "P", msh[10])
	assert.Equal(t, "2.5.1", msh[11])

	pid := strings.Split(segs[1], "|")
	require.Len(t, pid, 21)
	assert.Equal(t, "PID", pid[0])
	assert.Equal(t, "1", pid[1])
	assert.Equal(t, "PAT-TEST-001^^^HOSPITAL", pid[3])
	assert.Equal(t, "TEST^PATIENT", pid[5])
	assert.Equal(t, "19900101", pid[7])
	assert.Equal(t, "M", pid[8])

	orc := strings.Split(segs[2], "|")
	require.Len(t, orc, 23)
	assert.Equal(t, []string{"ORC", "RE", "SAMPLE-001", "FILLER012"}, orc[:4])

	obr := strings.Split(segs[3], "|")
	require.Len(t, obr, 28)
	assert.Equal(t, "OBR", obr[0])
	assert.Equal(t, "1", obr[1])
	assert.Equal(t, "SAMPLE-001", obr[2])
	assert.Equal(t, "FILLER012", obr[3])
	assert.Equal(t, "^^^CBC^CBC Panel", obr[5])
	assert.Equal(t, "20250314092653", obr[8])
	assert.Equal(t, "F", obr[20])
}

func TestRender_Observations(t *testing.T) {
	rep := deterministicReport(t, template.TypeHematology)
	segs := segments(t, Render(rep))
	require.Len(t, segs, 9)

	wantValues := []string{"6.80", "4.80", "14.20", "42.10", "250"}
	wantCodes := []string{"WBC", "RBC", "HGB", "HCT", "PLT"}
	for i, seg := range segs[4:] {
		obx := strings.Split(seg, "|")
		require.Len(t, obx, 17)
		assert.Equal(t, "OBX", obx[0])
		assert.Equal(t, "NM", obx[2])
		assert.Equal(t, "^^^"+wantCodes[i]+"^"+wantCodes[i], obx[3])
		assert.Equal(t, wantValues[i], obx[5])
		assert.Equal(t, "N", obx[8])
		assert.Equal(t, "F", obx[11])
	}
}

func TestRender_ValueTypes(t *testing.T) {
	rep := deterministicReport(t, template.TypeImmunology)
	segs := segments(t, Render(rep))
	require.Len(t, segs, 9)

	tsh := strings.Split(segs[4], "|")
	assert.Equal(t, "NM", tsh[2])
	assert.Equal(t, "^^^TSH^TSH", tsh[3])
	assert.Equal(t, "2.10", tsh[5])

	hbsag := strings.Split(segs[7], "|")
	assert.Equal(t, "ST", hbsag[2])
	assert.Equal(t, "^^^HBSAG^HBSAG", hbsag[3])
	assert.Equal(t, "NEGATIVE", hbsag[5])
}

func TestRender_DefaultIdentity(t *testing.T) {
	tpl := &template.Template{
		Analyzer: template.Analyzer{Name: "Bare Analyzer"},
		Fields: []template.Field{
			{Name: "ORG", Code: "ORG", Type: template.FieldText, SeedValue: template.TextSeed("KLEBSIELLA")},
		},
	}
	gen := generator.New(tpl,
		generator.WithDeterministic(),
		generator.WithNow(fixedNow),
		generator.WithPatientID("P-1"),
		generator.WithSampleID("S-1"),
	)

	segs := segments(t, Render(gen.Report()))
	require.Len(t, segs, 5)

	msh := strings.Split(segs[0], "|")
	assert.Equal(t, "SIMULATOR", msh[2])
	assert.Equal(t, "LAB", msh[3])

	obx := strings.Split(segs[4], "|")
	assert.Equal(t, "ST", obx[2])
	assert.Equal(t, "KLEBSIELLA", obx[5])
}

func TestRender_PanelWithoutLabel(t *testing.T) {
	rep := &generator.Report{
		Template:  template.Builtins().Get(template.TypeChemistry),
		Timestamp: fixedNow(),
		Patient:   template.Patient{ID: "P1", Name: "DOE^JANE", Sex: "F", DOB: "19700101"},
		Sample:    template.Sample{ID: "S1", Type: "LYTES"},
	}

	segs := segments(t, Render(rep))
	require.Len(t, segs, 4)

	obr := strings.Split(segs[3], "|")
	assert.Equal(t, "^^^LYTES^LYTES", obr[5])
}
