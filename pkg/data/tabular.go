package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// CSV loads comma separated files with a header row.
type CSV struct {
	opts Options
}

// NewCSV creates a CSV source.
func NewCSV(opts Options) *CSV { return &CSV{opts: opts.withDefaults()} }

func (s *CSV) Load(path string) ([]core.TestRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, notFound(path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 0 // every row must match the header width

	var rows []row
	for {
		cells, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &core.DataFormatError{Path: path, Line: pe.Line, Reason: pe.Err.Error()}
			}
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		line, _ := r.FieldPos(0)
		rows = append(rows, row{line: line, cells: cells})
	}
	return fromRows(path, rows, s.opts, false)
}

// XLSX loads the first (or the named) sheet of a workbook.
type XLSX struct {
	opts Options
}

// NewXLSX creates an XLSX source.
func NewXLSX(opts Options) *XLSX { return &XLSX{opts: opts.withDefaults()} }

func (s *XLSX) Load(path string) ([]core.TestRecord, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, notFound(path, err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &core.DataFormatError{Path: path, Reason: "open workbook: " + err.Error()}
	}
	defer f.Close()

	sheet := s.opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, &core.DataFormatError{Path: path, Reason: "workbook has no sheets"}
		}
		sheet = sheets[0]
	}
	cells, err := f.GetRows(sheet)
	if err != nil {
		return nil, &core.DataFormatError{Path: path, Reason: fmt.Sprintf("sheet %q: %v", sheet, err)}
	}
	rows := make([]row, len(cells))
	for i, c := range cells {
		rows[i] = row{line: i + 1, cells: c}
	}
	// Sheets drop trailing empty cells, so short rows are padded.
	return fromRows(path, rows, s.opts, true)
}

type row struct {
	line  int
	cells []string
}

func (r row) empty() bool {
	for _, c := range r.cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// fromRows validates the header and every row, then builds the records.
func fromRows(path string, rows []row, opts Options, pad bool) ([]core.TestRecord, error) {
	for len(rows) > 0 && rows[0].empty() {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, &core.DataFormatError{Path: path, Reason: "no header row", Missing: opts.Required}
	}

	header := make([]string, len(rows[0].cells))
	index := make(map[string]int, len(header))
	for i, h := range rows[0].cells {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			return nil, &core.DataFormatError{Path: path, Line: rows[0].line, Reason: fmt.Sprintf("empty column name at position %d", i+1)}
		}
		if _, dup := index[h]; dup {
			return nil, &core.DataFormatError{Path: path, Line: rows[0].line, Reason: fmt.Sprintf("duplicate column %q", h)}
		}
		header[i] = h
		index[h] = i
	}

	var missing []string
	for _, req := range requiredColumns(opts) {
		if _, ok := index[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return nil, &core.DataFormatError{Path: path, Line: rows[0].line, Reason: "missing required columns", Missing: missing}
	}

	var (
		records []core.TestRecord
		lines   []int
	)
	for _, r := range rows[1:] {
		if r.empty() {
			continue
		}
		cells := r.cells
		if pad && len(cells) < len(header) {
			cells = append(cells, make([]string, len(header)-len(cells))...)
		}
		if len(cells) != len(header) {
			return nil, &core.DataFormatError{Path: path, Line: r.line, Reason: fmt.Sprintf("row has %d fields, header has %d", len(cells), len(header))}
		}
		fields := make(map[string]interface{}, len(header))
		for i, h := range header {
			fields[h] = cells[i]
		}
		rec, err := core.NewTestRecord(core.RecordSpec{
			CaseID:   strings.TrimSpace(cells[index[opts.CaseIDField]]),
			Expected: strings.TrimSpace(cells[index[opts.ExpectedField]]),
			Source:   path,
			Index:    len(records),
			Fields:   fields,
		})
		if err != nil {
			return nil, &core.DataFormatError{Path: path, Line: r.line, Reason: err.Error()}
		}
		records = append(records, rec)
		lines = append(lines, r.line)
	}
	if err := dedupe(path, records, lines); err != nil {
		return nil, err
	}
	return records, nil
}

// requiredColumns always includes the case ID and expected columns.
func requiredColumns(opts Options) []string {
	out := append([]string(nil), opts.Required...)
	for _, c := range []string{opts.CaseIDField, opts.ExpectedField} {
		found := false
		for _, r := range out {
			if r == c {
				found = true
				break
			}
		}
		if !found {
			out = append(out, c)
		}
	}
	return out
}
