package ingest

import (
	"strings"
	"unicode"

	"valeads-engine/internal/config"
	"valeads-engine/internal/domain"
)

// ListingBatch is one listings upload, keyed by sanitized address. A later
// row for the same address replaces an earlier one.
type ListingBatch struct {
	Dataset  string
	Listings map[string]domain.Listing
	Rows     int
	Skipped  int
}

func NormalizeListings(t *Table, ds config.Dataset) (*ListingBatch, error) {
	if err := CheckColumns(t.Dataset, t.Header, ds.Required); err != nil {
		return nil, err
	}
	addrCol := ds.AddressColumn
	if addrCol == "" {
		addrCol = domain.ColAddress
	}

	b := &ListingBatch{
		Dataset:  t.Dataset,
		Listings: make(map[string]domain.Listing, len(t.Rows)),
		Rows:     len(t.Rows),
	}
	for _, row := range t.Rows {
		addr := row.Get(addrCol)
		key := domain.SanitizeKey(addr)
		if addr == domain.Missing || key == "" {
			b.Skipped++
			continue
		}
		b.Listings[key] = domain.Listing(row)
	}
	return b, nil
}

// ShouldKeepListing reports whether a listing passes the financing filter.
// reason is set when it does not.
func ShouldKeepListing(f Filter, l domain.Listing) (keep bool, reason string) {
	v, ok := l[f.Column]
	if !ok || v == domain.Missing {
		return false, "no_" + strings.ToLower(f.Column)
	}
	tokens := words(v)
	for _, term := range f.Any {
		if containsWords(tokens, words(term)) {
			return true, ""
		}
	}
	return false, "no_financing_match"
}

// words splits s into letter and digit runs.
func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsWords reports whether term appears in tokens as a contiguous run,
// compared case-insensitively.
func containsWords(tokens, term []string) bool {
	if len(term) == 0 {
		return false
	}
	for i := 0; i+len(term) <= len(tokens); i++ {
		match := true
		for j, w := range term {
			if !strings.EqualFold(tokens[i+j], w) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

type Filter struct {
	Column string
	Any    []string
}

// FilterFromConfig extracts the financing filter settings.
func FilterFromConfig(cfg config.Config) Filter {
	return Filter{Column: cfg.Filter.Column, Any: cfg.Filter.Any}
}

// FilterListings returns the subset of b that passes f and a count of
// rejections per reason.
func FilterListings(f Filter, b *ListingBatch) (map[string]domain.Listing, map[string]int) {
	kept := make(map[string]domain.Listing)
	dropped := map[string]int{}
	for k, l := range b.Listings {
		if ok, reason := ShouldKeepListing(f, l); ok {
			kept[k] = l
		} else {
			dropped[reason]++
		}
	}
	return kept, dropped
}
