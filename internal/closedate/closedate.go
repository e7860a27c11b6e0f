// Package closedate orders and canonicalizes close-date strings.
//
// In string mode values are kept verbatim and compared lexicographically.
// In calendar mode values are parsed with the configured layouts and stored
// as ISO dates so that lexicographic order equals chronological order.
package closedate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"valeads-engine/internal/domain"
)

type Mode string

const (
	ModeString   Mode = "string"
	ModeCalendar Mode = "calendar"
)

const isoLayout = "2006-01-02"

var DefaultLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

type Order struct {
	Mode    Mode
	Layouts []string
}

func NewOrder(mode string, layouts []string) (Order, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(mode)))
	switch m {
	case "":
		m = ModeCalendar
	case ModeString, ModeCalendar:
	default:
		return Order{}, fmt.Errorf("unknown date mode %q", mode)
	}
	if len(layouts) == 0 {
		layouts = DefaultLayouts
	}
	return Order{Mode: m, Layouts: layouts}, nil
}

// Canonical returns the stored form of v. ok is false when v should not be
// stored at all (the missing sentinel in calendar mode).
func (o Order) Canonical(v string) (out string, ok bool, err error) {
	v = strings.TrimSpace(v)
	if o.Mode != ModeCalendar {
		return v, true, nil
	}
	if v == "" || v == domain.Missing {
		return "", false, nil
	}
	for _, layout := range o.Layouts {
		if t, perr := time.Parse(layout, v); perr == nil {
			return t.Format(isoLayout), true, nil
		}
	}
	return "", false, fmt.Errorf("unrecognized close date %q", v)
}

// Less compares two stored values. Stored values are canonical, so both
// modes reduce to a string comparison.
func (o Order) Less(a, b string) bool { return a < b }

// Max returns the greatest value of dates, or false when dates is empty.
func (o Order) Max(dates []string) (string, bool) {
	if len(dates) == 0 {
		return "", false
	}
	m := dates[0]
	for _, d := range dates[1:] {
		if o.Less(m, d) {
			m = d
		}
	}
	return m, true
}

// Insert adds v to a sorted unique slice, keeping it sorted and unique.
func (o Order) Insert(dates []string, v string) []string {
	i := sort.Search(len(dates), func(i int) bool { return !o.Less(dates[i], v) })
	if i < len(dates) && dates[i] == v {
		return dates
	}
	dates = append(dates, "")
	copy(dates[i+1:], dates[i:])
	dates[i] = v
	return dates
}

// Union merges b into a. Neither input is modified.
func (o Order) Union(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	for _, d := range a {
		out = o.Insert(out, d)
	}
	for _, d := range b {
		out = o.Insert(out, d)
	}
	return out
}

// CanonicalAll canonicalizes stored dates, which may have been written under
// another mode. The result is sorted and unique. String mode returns dates
// unchanged.
func (o Order) CanonicalAll(dates []string) ([]string, error) {
	if o.Mode != ModeCalendar {
		return dates, nil
	}
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		c, ok, err := o.Canonical(d)
		if err != nil {
			return nil, err
		}
		if ok {
			out = o.Insert(out, c)
		}
	}
	return out, nil
}

// CanonicalRecords applies CanonicalAll to every record of a decoded dataset
// in place. An unparseable stored date is a StorageError.
func (o Order) CanonicalRecords(dataset string, recs map[string]domain.AddressRecord) error {
	for k, rec := range recs {
		dates, err := o.CanonicalAll(rec.CloseDates)
		if err != nil {
			return &domain.StorageError{Op: "decode", Path: dataset + "/" + k, Err: err}
		}
		rec.CloseDates = dates
		recs[k] = rec
	}
	return nil
}
