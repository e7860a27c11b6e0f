package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"valeads-engine/internal/config"
	"valeads-engine/internal/domain"
)

func TestFormatStreetLine(t *testing.T) {
	tests := []struct {
		name string
		in   domain.Details
		want string
	}{
		{
			name: "missing suffix dropped",
			in:   domain.Details{StreetNumber: "123", StreetName: "Main", StreetSuffix: "N/A", FullAddress: "123 Main"},
			want: "123 Main",
		},
		{
			name: "unit appended",
			in:   domain.Details{StreetNumber: "123", StreetName: "Main", StreetSuffix: "N/A", FullAddress: "123 Main St #4"},
			want: "123 Main Unit#4",
		},
		{
			name: "suffix kept",
			in:   domain.Details{StreetNumber: "9", StreetName: "Elm", StreetSuffix: "St", FullAddress: "9 Elm St"},
			want: "9 Elm St",
		},
		{
			name: "unit token trimmed",
			in:   domain.Details{StreetNumber: "9", StreetName: "Elm", StreetSuffix: "St", FullAddress: "9 Elm St #  12B "},
			want: "9 Elm St Unit#12B",
		},
		{
			name: "empty unit token dropped",
			in:   domain.Details{StreetNumber: "123", StreetName: "Main", StreetSuffix: "St", FullAddress: "123 Main St # "},
			want: "123 Main St",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.in
			if got := FormatStreetLine(tt.in); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
			if before != tt.in {
				t.Fatal("details mutated")
			}
		})
	}
}

func TestCounty(t *testing.T) {
	for in, want := range map[string]string{
		"Fairfax, VA": "Fairfax",
		"Fairfax":     "Fairfax",
		"N/A":         "N/A",
	} {
		if got := County(in); got != want {
			t.Errorf("County(%q) = %q, want %q", in, got, want)
		}
	}
}

func storedRecords(t *testing.T) map[string]json.RawMessage {
	t.Helper()
	recs := map[string]domain.AddressRecord{
		"9 Elm St": {Details: domain.Details{
			Type: domain.House, FullAddress: "9 Elm St", County: "Fairfax, VA", City: "Vienna",
			StreetName: "Elm", StateOrProvince: "VA", StreetNumber: "9", StreetSuffix: "St", ZipCode: "22180",
		}, CloseDates: []string{"2023-05-01"}},
		"1 Oak Ln 2": {Details: domain.Details{
			Type: domain.Apartment, FullAddress: "1 Oak Ln #2", County: "Arlington", City: "Arlington",
			StreetName: "Oak", StateOrProvince: "VA", StreetNumber: "1", StreetSuffix: "Ln", ZipCode: "22201",
		}, CloseDates: []string{"2023-05-01"}},
	}
	out := map[string]json.RawMessage{}
	for k, v := range recs {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		out[k] = b
	}
	return out
}

func TestBuildUSPS(t *testing.T) {
	s, err := Build("usps", config.Export{Source: "CurrentVA", Format: config.FormatUSPS}, storedRecords(t))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(s.Header, []string{"Address", "City", "State", "Zip Code", "County"}) {
		t.Fatalf("header = %v", s.Header)
	}
	want := [][]string{
		{"1 Oak Ln Unit#2", "Arlington", "VA", "22201", "Arlington"},
		{"9 Elm St", "Vienna", "VA", "22180", "Fairfax"},
	}
	if !reflect.DeepEqual(s.Rows, want) {
		t.Fatalf("rows = %v", s.Rows)
	}
}

func TestBuildUSPSMailing(t *testing.T) {
	s, err := Build("usps_mailing", config.Export{Source: "CurrentVA", Format: config.FormatUSPSMailing}, storedRecords(t))
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		{"1 Oak Ln Unit#2, Arlington, VA 22201, UNITED STATES", "Apartment"},
		{"9 Elm St, Vienna, VA 22180, UNITED STATES", "House"},
	}
	if !reflect.DeepEqual(s.Rows, want) {
		t.Fatalf("rows = %v", s.Rows)
	}
}

func TestBuildFiltered(t *testing.T) {
	src := map[string]json.RawMessage{
		"1 A St": json.RawMessage(`{"Address":"1 A St","City":"Vienna","BuyerFinancing":"VA","Extra":"x"}`),
	}
	s, err := Build("filtered", config.Export{Source: "FilteredVA", Format: config.FormatFiltered}, src)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"1 A St", "Vienna", "N/A", "N/A", "N/A", "N/A", "VA"}
	if !reflect.DeepEqual(s.Rows[0], want) {
		t.Fatalf("row = %v", s.Rows[0])
	}
}

func TestBuildEmptyIsNoData(t *testing.T) {
	_, err := Build("usps", config.Export{Source: "CurrentVA", Format: config.FormatUSPS}, nil)
	if !errors.Is(err, domain.ErrNoData) {
		t.Fatalf("err = %v", err)
	}
}

func TestBuildRejectsMappingDates(t *testing.T) {
	src := map[string]json.RawMessage{"k": json.RawMessage(`{"Details":{},"CloseDates":{"a":"b"}}`)}
	_, err := Build("usps", config.Export{Source: "CurrentVA", Format: config.FormatUSPS}, src)
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("err = %v", err)
	}
}

func TestFilenameAndWriteCSV(t *testing.T) {
	day := time.Date(2024, time.March, 7, 15, 0, 0, 0, time.UTC)
	if got := Filename("usps", day); got != "usps_03-07-2024.csv" {
		t.Fatalf("filename = %s", got)
	}

	var buf bytes.Buffer
	s := &Sheet{Header: []string{"Address", "Type"}, Rows: [][]string{{"9 Elm St, Vienna, VA 22180, UNITED STATES", "House"}}}
	if err := WriteCSV(&buf, s); err != nil {
		t.Fatal(err)
	}
	want := "Address,Type\n\"9 Elm St, Vienna, VA 22180, UNITED STATES\",House\n"
	if buf.String() != want {
		t.Fatalf("csv = %q", buf.String())
	}
	if v := s.Values(); len(v) != 2 || v[0][0] != "Address" {
		t.Fatalf("values = %v", v)
	}
}
