// Package fileout renders generated reports as delimited result files for
// bridges that import analyzer output from a watched directory.
package fileout

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/openlis/astmsim/generator"
	"github.com/openlis/astmsim/template"
)

const (
	defaultSampleColumn = "Sample Name"
	defaultTestColumn   = "Target"
	defaultResultColumn = "Result"
	timestampColumn     = "Timestamp"
)

// Render renders the reports as one delimited document per the first
// report's file configuration: an optional header row, then one row per
// observation carrying sample ID, test code, result value, and the
// report timestamp.
func Render(reps ...*generator.Report) (string, error) {
	if len(reps) == 0 {
		return "", fmt.Errorf("fileout: no reports to render")
	}

	cfg := reps[0].Template.FileOutput

	var buf strings.Builder
	w := csv.NewWriter(&buf)
	w.Comma = delimiter(cfg)

	if cfg.HeaderRow() {
		if err := w.Write(headerColumns(cfg)); err != nil {
			return "", fmt.Errorf("fileout: write header: %w", err)
		}
	}

	for _, rep := range reps {
		ts := rep.Timestamp.Format(generator.TimestampLayout)
		for _, obs := range rep.Observations {
			if err := w.Write([]string{rep.Sample.ID, obs.Field.Code, obs.Value, ts}); err != nil {
				return "", fmt.Errorf("fileout: write row: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("fileout: render: %w", err)
	}

	return buf.String(), nil
}

// Extension returns the output file extension for the configured format.
func Extension(cfg template.FileConfig) string {
	if strings.EqualFold(cfg.Format, "TSV") {
		return ".tsv"
	}

	return ".csv"
}

// Write renders the reports into dir under an "ANALYZERTYPE_timestamp"
// name and returns the path written.
func Write(dir string, reps ...*generator.Report) (string, error) {
	if len(reps) == 0 {
		return "", fmt.Errorf("fileout: no reports to write")
	}

	name := fmt.Sprintf("%s_%s%s",
		reps[0].Template.Type(),
		reps[0].Timestamp.Format(generator.TimestampLayout),
		Extension(reps[0].Template.FileOutput))

	path := filepath.Join(dir, name)
	if err := WriteFile(path, reps...); err != nil {
		return "", err
	}

	return path, nil
}

// WriteFile renders the reports to path, creating parent directories as
// needed. The file appears atomically: content lands in a temp file and
// is renamed into place, so a bridge watching the directory never
// imports a partially written file.
func WriteFile(path string, reps ...*generator.Report) error {
	content, err := Render(reps...)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fileout: create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("fileout: create temp file: %w", err)
	}

	_, werr := tmp.WriteString(content)
	cerr := tmp.Close()
	if werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Chmod(tmp.Name(), 0o644)
	}
	if werr == nil {
		werr = os.Rename(tmp.Name(), path)
	}
	if werr != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("fileout: write %s: %w", path, werr)
	}

	return nil
}

// delimiter resolves the column separator. TSV always separates with
// tabs; anything but a single-rune delimiter falls back to a comma.
func delimiter(cfg template.FileConfig) rune {
	if strings.EqualFold(cfg.Format, "TSV") {
		return '\t'
	}
	if utf8.RuneCountInString(cfg.Delimiter) == 1 {
		r, _ := utf8.DecodeRuneInString(cfg.Delimiter)
		return r
	}

	return ','
}

func headerColumns(cfg template.FileConfig) []string {
	sample := cfg.Columns.SampleID
	if sample == "" {
		sample = defaultSampleColumn
	}
	test := cfg.Columns.TestCode
	if test == "" {
		test = defaultTestColumn
	}
	result := cfg.Columns.Result
	if result == "" {
		result = defaultResultColumn
	}

	return []string{sample, test, result, timestampColumn}
}
