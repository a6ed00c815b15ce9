// Package template provides the analyzer template catalog: builtin analyzer
// definitions plus optional JSON template files describing an instrument's
// identity, its protocol, and the test fields it reports.
//
// Templates are data only. Rendering messages from a template belongs to the
// generator package. A catalog is read-only after construction and safe for
// concurrent readers.
package template

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTemplate indicates a template that fails structural validation.
var ErrInvalidTemplate = errors.New("template: invalid template")

// FieldType classifies how a field's result values are produced and rendered.
type FieldType string

const (
	// FieldNumeric is a numeric result, generated within the field's normal range.
	FieldNumeric FieldType = "NUMERIC"

	// FieldQualitative is a categorical result drawn from the field's possible values.
	FieldQualitative FieldType = "QUALITATIVE"

	// FieldText is a free-text result.
	FieldText FieldType = "TEXT"
)

// Analyzer identifies the instrument a template simulates.
type Analyzer struct {
	// Type is the analyzer category key the catalog indexes on, e.g. HEMATOLOGY.
	// A template file may omit it; the file name then supplies the key.
	Type         string `json:"type,omitempty"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
}

// Protocol names the transport protocol a template targets.
type Protocol struct {
	Type    string `json:"type,omitempty"`
	Version string `json:"version,omitempty"`
}

// Identification carries the identity strings embedded in generated messages.
type Identification struct {
	// ASTMHeader overrides the sender name component of generated header records.
	ASTMHeader string `json:"astm_header,omitempty"`

	// HL7SendingApp and HL7SendingFacility populate MSH-3 and MSH-4 of
	// generated ORU^R01 messages.
	HL7SendingApp      string `json:"hl7_sending_app,omitempty"`
	HL7SendingFacility string `json:"hl7_sending_facility,omitempty"`
}

// Patient is the canned test patient a template generates results for.
type Patient struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"` // Last^First form
	Sex  string `json:"sex,omitempty"`
	DOB  string `json:"dob,omitempty"` // YYYYMMDD
}

// Sample is the canned test sample referenced by generated order records.
type Sample struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type,omitempty"` // panel code^label form
}

// ColumnMapping names the output columns of file-based result rendering.
type ColumnMapping struct {
	SampleID string `json:"sample_id,omitempty"`
	TestCode string `json:"test_code,omitempty"`
	Result   string `json:"result,omitempty"`
}

// FileConfig controls CSV/TSV rendering of generated results.
type FileConfig struct {
	// Format selects CSV or TSV output; TSV forces a tab delimiter.
	Format    string        `json:"format,omitempty"`
	Delimiter string        `json:"delimiter,omitempty"`
	HasHeader *bool         `json:"has_header,omitempty"`
	Columns   ColumnMapping `json:"column_mapping,omitempty"`
}

// HeaderRow reports whether file output starts with a header row.
// Templates that do not say include one.
func (c FileConfig) HeaderRow() bool {
	return c.HasHeader == nil || *c.HasHeader
}

// SeedValue is a field's deterministic result value. Template files store
// numeric seeds as JSON numbers and qualitative or text seeds as strings;
// both decode into the same type.
type SeedValue struct {
	text     string
	number   float64
	isNumber bool
	set      bool
}

// NumberSeed creates a numeric seed value.
func NumberSeed(v float64) SeedValue {
	return SeedValue{number: v, isNumber: true, set: true}
}

// TextSeed creates a textual seed value.
func TextSeed(s string) SeedValue {
	return SeedValue{text: s, set: true}
}

// IsSet reports whether the template configured a seed for the field.
func (v SeedValue) IsSet() bool { return v.set }

// Number returns the numeric seed and whether the seed is numeric.
func (v SeedValue) Number() (float64, bool) { return v.number, v.isNumber }

// Text returns the textual seed, or the empty string for numeric and unset seeds.
func (v SeedValue) Text() string { return v.text }

var jsonNull = []byte("null")

// UnmarshalJSON accepts a JSON number, a JSON string, or null.
func (v *SeedValue) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, jsonNull) {
		*v = SeedValue{}
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*v = NumberSeed(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("template: seedValue must be a number or a string: %w", err)
	}
	*v = TextSeed(s)

	return nil
}

// MarshalJSON renders the seed the way template files store it.
func (v SeedValue) MarshalJSON() ([]byte, error) {
	switch {
	case !v.set:
		return jsonNull, nil
	case v.isNumber:
		return json.Marshal(v.number)
	default:
		return json.Marshal(v.text)
	}
}

// Field describes one test an analyzer reports.
type Field struct {
	Name           string    `json:"name"`
	DisplayName    string    `json:"displayName,omitempty"`
	Code           string    `json:"code"`
	Type           FieldType `json:"type"`
	Unit           string    `json:"unit,omitempty"`
	NormalRange    string    `json:"normalRange,omitempty"`
	PossibleValues []string  `json:"possibleValues,omitempty"`
	SeedValue      SeedValue `json:"seedValue,omitempty"`
	ASTMRef        string    `json:"astmRef,omitempty"`
}

// Display returns the field's display name, falling back to its name.
func (f Field) Display() string {
	if f.DisplayName != "" {
		return f.DisplayName
	}

	return f.Name
}

// Ref returns the field's base ASTM test identifier: the configured astmRef,
// or the universal test ID form "^^^CODE" when the template does not set one.
func (f Field) Ref() string {
	if f.ASTMRef != "" {
		return f.ASTMRef
	}

	return "^^^" + f.Code
}

// Range returns the field's parsed normal range.
func (f Field) Range() (Range, error) {
	return ParseRange(f.NormalRange)
}

func (f Field) validate() error {
	if f.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTemplate)
	}
	if f.Code == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidTemplate)
	}

	switch f.Type {
	case FieldNumeric, FieldQualitative, FieldText:
	case "":
		return fmt.Errorf("%w: type is required", ErrInvalidTemplate)
	default:
		return fmt.Errorf("%w: unknown field type %q", ErrInvalidTemplate, f.Type)
	}

	if _, err := ParseRange(f.NormalRange); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}

	return nil
}

// Template describes one simulated analyzer: identity, protocol, the test
// fields it reports, and canned patient/sample data for generated messages.
// A template is immutable once loaded into a catalog.
type Template struct {
	Analyzer       Analyzer       `json:"analyzer"`
	Protocol       Protocol       `json:"protocol,omitempty"`
	Identification Identification `json:"identification,omitempty"`
	Fields         []Field        `json:"fields"`
	TestPatient    Patient        `json:"testPatient,omitempty"`
	TestSample     Sample         `json:"testSample,omitempty"`
	FileOutput     FileConfig     `json:"file_config,omitempty"`
}

// Type returns the analyzer type key, uppercased.
func (t *Template) Type() string {
	return strings.ToUpper(t.Analyzer.Type)
}

// ASTMIdentity returns the sender name placed in generated header records:
// the identification override when set, otherwise Manufacturer^Model^V1.0.
func (t *Template) ASTMIdentity() string {
	if t.Identification.ASTMHeader != "" {
		return t.Identification.ASTMHeader
	}

	manufacturer := t.Analyzer.Manufacturer
	if manufacturer == "" {
		manufacturer = "Mock"
	}
	model := t.Analyzer.Model
	if model == "" {
		model = "Analyzer"
	}

	return manufacturer + "^" + model + "^V1.0"
}

// HL7SendingApp returns the MSH-3 value for generated HL7 messages.
func (t *Template) HL7SendingApp() string {
	if t.Identification.HL7SendingApp != "" {
		return t.Identification.HL7SendingApp
	}

	return "SIMULATOR"
}

// HL7SendingFacility returns the MSH-4 value for generated HL7 messages.
func (t *Template) HL7SendingFacility() string {
	if t.Identification.HL7SendingFacility != "" {
		return t.Identification.HL7SendingFacility
	}

	return "LAB"
}

// Validate checks the template's structure: analyzer identity, at least one
// field, and per-field name, code, type, and normal range.
func (t *Template) Validate() error {
	if t.Analyzer.Name == "" {
		return fmt.Errorf("%w: analyzer name is required", ErrInvalidTemplate)
	}
	if len(t.Fields) == 0 {
		return fmt.Errorf("%w: at least one field is required", ErrInvalidTemplate)
	}

	for i, f := range t.Fields {
		if err := f.validate(); err != nil {
			return fmt.Errorf("field %d (%s): %w", i, f.Name, err)
		}
	}

	return nil
}
