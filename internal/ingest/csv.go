package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"valeads-engine/internal/domain"
)

// Table is a parsed CSV upload. Lines holds the starting line number of each row.
type Table struct {
	Dataset string
	Header  []string
	Rows    []domain.RawRow
	Lines   []int
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCSV reads a whole CSV document with a header row. Empty cells and
// cells absent from short rows become domain.Missing.
func ParseCSV(dataset string, r io.Reader) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &domain.ParseError{Dataset: dataset, Err: err}
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &domain.ParseError{Dataset: dataset, Err: errors.New("no columns to parse from file")}
	}
	if err != nil {
		return nil, csvErr(dataset, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	t := &Table{Dataset: dataset, Header: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvErr(dataset, err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) > len(header) {
			return nil, &domain.ParseError{
				Dataset: dataset,
				Line:    line,
				Err:     fmt.Errorf("expected %d fields, saw %d", len(header), len(rec)),
			}
		}
		if isBlank(rec) {
			continue
		}
		row := make(domain.RawRow, len(header))
		for i, col := range header {
			v := domain.Missing
			if i < len(rec) && rec[i] != "" {
				v = rec[i]
			}
			row[col] = v
		}
		t.Rows = append(t.Rows, row)
		t.Lines = append(t.Lines, line)
	}
	return t, nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func csvErr(dataset string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &domain.ParseError{Dataset: dataset, Line: pe.Line, Err: pe.Err}
	}
	return &domain.ParseError{Dataset: dataset, Err: err}
}

// CheckColumns reports the first required column missing from header.
func CheckColumns(dataset string, header, required []string) error {
	have := make(map[string]struct{}, len(header))
	for _, h := range header {
		have[h] = struct{}{}
	}
	for _, col := range required {
		if _, ok := have[col]; !ok {
			return &domain.SchemaError{Dataset: dataset, Column: col}
		}
	}
	return nil
}
