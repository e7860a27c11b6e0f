package ingest

import (
	"encoding/json"

	"valeads-engine/internal/closedate"
	"valeads-engine/internal/domain"
)

// Batch is the normalized form of one transactions upload.
type Batch struct {
	Dataset string
	Records map[string]domain.AddressRecord
	Rows    int // rows read, including skipped ones
	Skipped int // rows without a usable address
}

// Normalize groups rows by sanitized address. The first row of a key fixes
// its Details; every row contributes its close date.
func Normalize(t *Table, required []string, order closedate.Order) (*Batch, error) {
	if err := CheckColumns(t.Dataset, t.Header, required); err != nil {
		return nil, err
	}

	b := &Batch{
		Dataset: t.Dataset,
		Records: make(map[string]domain.AddressRecord),
		Rows:    len(t.Rows),
	}
	for i, row := range t.Rows {
		full := row.Get(domain.ColFullAddress)
		key := domain.SanitizeKey(full)
		if full == domain.Missing || key == "" {
			b.Skipped++
			continue
		}

		date, ok, err := order.Canonical(row.Get(domain.ColCloseDate))
		if err != nil {
			return nil, &domain.ParseError{Dataset: t.Dataset, Line: t.Lines[i], Err: err}
		}

		rec, seen := b.Records[key]
		if !seen {
			rec = domain.AddressRecord{Details: domain.DetailsFromRow(row), CloseDates: []string{}}
		}
		if ok {
			rec.CloseDates = order.Insert(rec.CloseDates, date)
		}
		b.Records[key] = rec
	}
	return b, nil
}

// MergeExisting folds stored records into the batch: stored Details win and
// close dates are unioned. Stored keys absent from the batch are ignored.
func MergeExisting(b *Batch, existing map[string]json.RawMessage, order closedate.Order) error {
	for key, rec := range b.Records {
		raw, ok := existing[key]
		if !ok {
			continue
		}
		old, err := domain.DecodeRecord(b.Dataset, key, raw)
		if err != nil {
			return err
		}
		dates, err := order.CanonicalAll(old.CloseDates)
		if err != nil {
			return &domain.StorageError{Op: "decode", Path: b.Dataset + "/" + key, Err: err}
		}
		b.Records[key] = domain.AddressRecord{
			Details:    old.Details,
			CloseDates: order.Union(dates, rec.CloseDates),
		}
	}
	return nil
}
