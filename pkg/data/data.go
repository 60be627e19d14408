// Package data loads test records from tabular (CSV, XLSX) and hierarchical
// (JSON, YAML) files. Validation happens before any record is returned: a
// file with one bad row is rejected as a whole.
package data

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// Source loads every record of one file.
type Source interface {
	Load(path string) ([]core.TestRecord, error)
}

// Default field names
const (
	DefaultCaseIDField   = "test_case"
	DefaultExpectedField = "expected_result"
	DefaultExpected      = "success"
	IDField              = "id"
)

// DefaultRequired lists the columns a tabular file must carry.
var DefaultRequired = []string{"username", "password", DefaultExpectedField, DefaultCaseIDField}

// DefaultDescriptionFields are accepted as the description of hierarchical
// objects, first match wins.
var DefaultDescriptionFields = []string{"description", "descripcion", "name", "nombre"}

// Options tunes loading. The zero value uses the defaults above.
type Options struct {
	// Required columns for tabular files.
	Required []string
	// CaseIDField and ExpectedField name the tabular columns holding the
	// case ID and the expected outcome.
	CaseIDField   string
	ExpectedField string
	// Sheet selects an XLSX sheet. Empty means the first one.
	Sheet string

	// Buckets restricts hierarchical loading to the named buckets.
	Buckets []string
	// DescriptionFields overrides DefaultDescriptionFields.
	DescriptionFields []string
	// DefaultExpected is used when an object has no expected_result.
	DefaultExpected string
	// Schema is a JSON Schema file validated against hierarchical files
	// before normalization.
	Schema string
}

func (o Options) withDefaults() Options {
	if len(o.Required) == 0 {
		o.Required = DefaultRequired
	}
	if o.CaseIDField == "" {
		o.CaseIDField = DefaultCaseIDField
	}
	if o.ExpectedField == "" {
		o.ExpectedField = DefaultExpectedField
	}
	if len(o.DescriptionFields) == 0 {
		o.DescriptionFields = DefaultDescriptionFields
	}
	if o.DefaultExpected == "" {
		o.DefaultExpected = DefaultExpected
	}
	return o
}

// Load picks a Source from the file extension and loads path.
func Load(path string, opts Options) ([]core.TestRecord, error) {
	src, err := SourceFor(path, opts)
	if err != nil {
		return nil, err
	}
	return src.Load(path)
}

// SourceFor returns the Source handling path's extension.
func SourceFor(path string, opts Options) (Source, error) {
	opts = opts.withDefaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return &CSV{opts: opts}, nil
	case ".xlsx":
		return &XLSX{opts: opts}, nil
	case ".json":
		return &JSON{opts: opts}, nil
	case ".yaml", ".yml":
		return &YAML{opts: opts}, nil
	}
	return nil, &core.DataFormatError{Path: path, Reason: fmt.Sprintf("unsupported data format %q", filepath.Ext(path))}
}

// FilterByExpected keeps the records whose expected outcome equals expected.
func FilterByExpected(records []core.TestRecord, expected string) []core.TestRecord {
	var out []core.TestRecord
	for _, r := range records {
		if r.Expected() == expected {
			out = append(out, r)
		}
	}
	return out
}

// CaseIDs returns the case IDs of records, in order.
func CaseIDs(records []core.TestRecord) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.CaseID()
	}
	return ids
}

// readFile reads path, mapping a missing file to DataNotFoundError.
func readFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, notFound(path, err)
	}
	return b, nil
}

func notFound(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return &core.DataNotFoundError{Path: path, Cause: err}
	}
	return fmt.Errorf("read %s: %w", path, err)
}

// dedupe rejects repeated case IDs.
func dedupe(path string, records []core.TestRecord, lines []int) error {
	seen := make(map[string]int, len(records))
	for i, r := range records {
		if prev, ok := seen[r.CaseID()]; ok {
			return &core.DataFormatError{
				Path:   path,
				Line:   lines[i],
				Reason: fmt.Sprintf("duplicate case id %q (first seen at line %d)", r.CaseID(), lines[prev]),
			}
		}
		seen[r.CaseID()] = i
	}
	return nil
}
