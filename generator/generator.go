// Package generator draws result content from analyzer templates: complete
// LIS2-A2 result messages for pushes, the field-listing response answering a
// bridge's test menu query, and the protocol-neutral Report consumed by the
// HL7 and file renderers.
package generator

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/openlis/astmsim/astm"
	"github.com/openlis/astmsim/template"
)

// Timestamp layouts used across generated records.
const (
	TimestampLayout = "20060102150405"
	dateLayout      = "20060102"
)

// Name pools for synthesized patient identities.
var (
	firstNames = []string{"John", "Mary", "James", "Sarah", "Robert", "Emily"}
	lastNames  = []string{"Smith", "Johnson", "Williams", "Brown", "Jones"}
	sexes      = []string{"M", "F"}
)

var defaultPossibleValues = []string{"POSITIVE", "NEGATIVE"}

// Generator produces result content for one analyzer template.
//
// A Generator owns its random source and is not safe for concurrent use;
// create one per goroutine. QueryResponse draws no random values and is a
// package function for that reason.
type Generator struct {
	tpl           *template.Template
	rng           *rand.Rand
	now           func() time.Time
	patientID     string
	sampleID      string
	deterministic bool
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed fixes the generator's random source so repeated runs draw the
// same value sequence.
func WithSeed(seed int64) Option {
	return func(g *Generator) { g.rng = rand.New(rand.NewSource(seed)) }
}

// WithNow injects the clock used for record timestamps and synthesized IDs.
func WithNow(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithDeterministic makes the generator prefer the template's seed values
// over random ones. Fields without a seed still draw from the random source.
func WithDeterministic() Option {
	return func(g *Generator) { g.deterministic = true }
}

// WithPatientID overrides the patient ID of generated reports.
func WithPatientID(id string) Option {
	return func(g *Generator) { g.patientID = id }
}

// WithSampleID overrides the sample ID of generated reports.
func WithSampleID(id string) Option {
	return func(g *Generator) { g.sampleID = id }
}

// New creates a Generator for the given template.
func New(tpl *template.Template, opts ...Option) *Generator {
	g := &Generator{
		tpl: tpl,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Generate renders one complete LIS2-A2 result message.
func (g *Generator) Generate() *astm.Message {
	return g.Report().Message()
}

// Report draws one result set: resolved patient and sample identities plus
// one observation per template field.
func (g *Generator) Report() *Report {
	now := g.now()

	rep := &Report{
		Template:  g.tpl,
		Timestamp: now,
		Patient:   g.patient(now),
		Sample:    g.sample(now),
	}

	rep.Observations = make([]Observation, 0, len(g.tpl.Fields))
	for _, f := range g.tpl.Fields {
		rep.Observations = append(rep.Observations, Observation{Field: f, Value: g.fieldValue(f)})
	}

	return rep
}

// patient resolves the report's patient identity: option override, then the
// template's test patient, then synthesized values.
func (g *Generator) patient(now time.Time) template.Patient {
	p := g.tpl.TestPatient

	if g.patientID != "" {
		p.ID = g.patientID
	}
	if p.ID == "" {
		p.ID = fmt.Sprintf("PAT-%s-%03d", now.Format(dateLayout), 100+g.rng.Intn(900))
	}
	if p.Name == "" {
		p.Name = lastNames[g.rng.Intn(len(lastNames))] + "^" + firstNames[g.rng.Intn(len(firstNames))]
	}
	if p.Sex == "" {
		p.Sex = sexes[g.rng.Intn(len(sexes))]
	}
	if p.DOB == "" {
		p.DOB = fmt.Sprintf("%04d%02d%02d", 1950+g.rng.Intn(51), 1+g.rng.Intn(12), 1+g.rng.Intn(28))
	}

	return p
}

// sample resolves the report's sample: option override, then the template's
// test sample, then a synthesized ID with the panel derived from the
// analyzer type.
func (g *Generator) sample(now time.Time) template.Sample {
	s := g.tpl.TestSample

	if g.sampleID != "" {
		s.ID = g.sampleID
	}
	if s.ID == "" {
		s.ID = fmt.Sprintf("SAMPLE-%s-%04d", now.Format(dateLayout), 1000+g.rng.Intn(9000))
	}
	if s.Type == "" {
		s.Type = panelField(g.tpl.Type())
	}

	return s
}

// panelField derives the order's test selection from the analyzer type.
func panelField(analyzerType string) string {
	code := analyzerType
	switch analyzerType {
	case template.TypeHematology:
		code = "CBC"
	case template.TypeChemistry:
		code = "CHEM"
	case "":
		code = "PANEL"
	}

	return code + "^" + code + " Panel"
}

func (g *Generator) fieldValue(f template.Field) string {
	if g.deterministic && f.SeedValue.IsSet() {
		if num, ok := f.SeedValue.Number(); ok {
			return formatValue(num)
		}

		return f.SeedValue.Text()
	}

	switch f.Type {
	case template.FieldQualitative:
		values := f.PossibleValues
		if len(values) == 0 {
			values = defaultPossibleValues
		}

		return values[g.rng.Intn(len(values))]
	case template.FieldText:
		return g.randomText(8)
	default:
		return formatValue(g.randomNumeric(f))
	}
}

func (g *Generator) randomText(n int) string {
	const chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	buf := make([]byte, n)
	for i := range buf {
		buf[i] = chars[g.rng.Intn(len(chars))]
	}

	return string(buf)
}

// randomNumeric draws a value inside the field's normal range: uniform over
// an interval, below 90% of an upper bound, between 1.1x and 2x a lower
// bound, and over 1..100 when the field carries no range.
func (g *Generator) randomNumeric(f template.Field) float64 {
	rng, err := f.Range()
	if err != nil {
		// A malformed range only reaches here through an unvalidated
		// template; fall back to the generic span.
		return g.uniform(1, 100)
	}

	switch rng.Kind {
	case template.RangeInterval:
		return g.uniform(rng.Low, rng.High)
	case template.RangeBelow:
		return g.uniform(0, rng.High*0.9)
	case template.RangeAbove:
		return g.uniform(rng.Low*1.1, rng.Low*2)
	default:
		return g.uniform(1, 100)
	}
}

func (g *Generator) uniform(low, high float64) float64 {
	return low + g.rng.Float64()*(high-low)
}

// formatValue renders a numeric result: integral values as integer text,
// everything else with two decimals.
func formatValue(v float64) string {
	v = math.Round(v*100) / 100
	if v == math.Trunc(v) {
		return strconv.FormatInt(int64(v), 10)
	}

	return strconv.FormatFloat(v, 'f', 2, 64)
}
