package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"valeads-engine/internal/config"
	"valeads-engine/internal/domain"
)

// Sheet is a rendered export: one header row and data rows sorted by address key.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]string
}

var (
	uspsHeader        = []string{"Address", "City", "State", "Zip Code", "County"}
	uspsMailingHeader = []string{"Address", "Type"}
)

// FormatStreetLine composes "{number} {name} {suffix}" from Details, dropping
// a missing suffix, and appends the unit token found after '#' in the full address.
func FormatStreetLine(d domain.Details) string {
	parts := []string{d.StreetNumber, d.StreetName}
	if d.StreetSuffix != domain.Missing {
		parts = append(parts, d.StreetSuffix)
	}
	line := strings.TrimSpace(strings.Join(parts, " "))
	if _, unit, ok := strings.Cut(d.FullAddress, "#"); ok {
		if u := strings.TrimSpace(unit); u != "" {
			line += " Unit#" + u
		}
	}
	return line
}

// County drops everything from the first comma on: "Fairfax, VA" -> "Fairfax".
func County(v string) string {
	before, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(before)
}

// MailingAddress is the single-line USPS form of d.
func MailingAddress(d domain.Details) string {
	return fmt.Sprintf("%s, %s, %s %s, UNITED STATES",
		FormatStreetLine(d), d.City, d.StateOrProvince, d.ZipCode)
}

// Build renders the stored source dataset in the shape named by ex.Format.
func Build(name string, ex config.Export, source map[string]json.RawMessage) (*Sheet, error) {
	if len(source) == 0 {
		return nil, &domain.NoDataError{Dataset: ex.Source}
	}

	keys := make([]string, 0, len(source))
	for k := range source {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s := &Sheet{Name: name}
	switch ex.Format {
	case config.FormatFiltered:
		s.Header = ex.Columns
		if len(s.Header) == 0 {
			s.Header = domain.ListingColumns
		}
		for _, k := range keys {
			l, err := domain.DecodeListing(ex.Source, k, source[k])
			if err != nil {
				return nil, err
			}
			s.Rows = append(s.Rows, project(l, s.Header))
		}

	case config.FormatUSPS, config.FormatUSPSMailing:
		s.Header = uspsHeader
		if ex.Format == config.FormatUSPSMailing {
			s.Header = uspsMailingHeader
		}
		for _, k := range keys {
			rec, err := domain.DecodeRecord(ex.Source, k, source[k])
			if err != nil {
				return nil, err
			}
			d := rec.Details
			if ex.Format == config.FormatUSPS {
				s.Rows = append(s.Rows, fill([]string{
					FormatStreetLine(d), d.City, d.StateOrProvince, d.ZipCode, County(d.County),
				}))
			} else {
				s.Rows = append(s.Rows, fill([]string{MailingAddress(d), string(d.Type)}))
			}
		}

	default:
		return nil, domain.Validation("unknown export format %q", ex.Format)
	}
	return s, nil
}

func project(l domain.Listing, cols []string) []string {
	row := make([]string, len(cols))
	for i, c := range cols {
		v, ok := l[c]
		if !ok || v == "" {
			v = domain.Missing
		}
		row[i] = v
	}
	return row
}

func fill(row []string) []string {
	for i, v := range row {
		if v == "" {
			row[i] = domain.Missing
		}
	}
	return row
}

// Filename is "<name>_MM-DD-YYYY.csv" for the given day.
func Filename(name string, now time.Time) string {
	return fmt.Sprintf("%s_%s.csv", name, now.Format("01-02-2006"))
}

// WriteCSV writes the header and rows of s to w.
func WriteCSV(w io.Writer, s *Sheet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(s.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(s.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// Values returns header and rows as one grid, the shape spreadsheet APIs take.
func (s *Sheet) Values() [][]any {
	out := make([][]any, 0, len(s.Rows)+1)
	out = append(out, toAny(s.Header))
	for _, r := range s.Rows {
		out = append(out, toAny(r))
	}
	return out
}

func toAny(xs []string) []any {
	row := make([]any, len(xs))
	for i, x := range xs {
		row[i] = x
	}
	return row
}
