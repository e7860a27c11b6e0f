package config

import (
	"fmt"
	"maps"
	"sort"
	"strings"
	"time"

	"valeads-engine/internal/closedate"
	"valeads-engine/internal/domain"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate fills defaults and returns the normalized copy along
// with everything wrong with it.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	out.Datasets = maps.Clone(cfg.Datasets)
	out.Exports = maps.Clone(cfg.Exports)

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	// ---- app ----
	if strings.TrimSpace(out.App.Addr) == "" {
		out.App.Addr = "127.0.0.1:8080"
	}
	if strings.TrimSpace(out.App.DataDir) == "" {
		out.App.DataDir = "."
	}

	// ---- storage ----
	out.Storage.Backend = strings.ToLower(strings.TrimSpace(out.Storage.Backend))
	switch out.Storage.Backend {
	case "":
		out.Storage.Backend = "sqlite"
	case "sqlite", "memory":
	case "postgres":
		if strings.TrimSpace(out.Storage.DSN) == "" {
			res.addErr("storage.dsn is required when storage.backend=postgres")
		}
	default:
		res.addErr("storage.backend must be sqlite, postgres or memory (got %q)", out.Storage.Backend)
	}
	if out.Storage.Backend == "memory" {
		res.addWarn("storage.backend=memory keeps nothing across restarts.")
	}
	if out.Storage.BatchSize <= 0 {
		out.Storage.BatchSize = 500
	}
	if out.Storage.WriteConcurrency <= 0 {
		out.Storage.WriteConcurrency = 1
	}
	if out.Storage.WriteConcurrency > 1 && out.Storage.Backend == "sqlite" {
		res.addWarn("storage.write_concurrency=%d has no effect on sqlite (single writer).", out.Storage.WriteConcurrency)
	}
	if out.Storage.WritesPerSecond < 0 {
		res.addErr("storage.writes_per_second must be >= 0")
	}

	// ---- dates ----
	out.Dates.Layouts = trimList(out.Dates.Layouts)
	if _, err := closedate.NewOrder(out.Dates.Mode, out.Dates.Layouts); err != nil {
		res.addErr("dates.mode: %v", err)
	}
	if strings.TrimSpace(out.Dates.Mode) == "" {
		out.Dates.Mode = string(closedate.ModeCalendar)
	}

	// ---- datasets ----
	if len(out.Datasets) == 0 {
		res.addErr("datasets must define at least one dataset")
	}
	names := make([]string, 0, len(out.Datasets))
	for name := range out.Datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ds := out.Datasets[name]
		if strings.ContainsAny(name, "/.$#[]") || strings.TrimSpace(name) == "" {
			res.addErr("datasets: %q is not a valid dataset name", name)
		}
		ds.Kind = strings.ToLower(strings.TrimSpace(ds.Kind))
		ds.Required = trimList(ds.Required)
		switch ds.Kind {
		case KindTransactions:
			if len(ds.Required) == 0 {
				ds.Required = append([]string(nil), domain.TransactionColumns...)
			}
			for _, col := range []string{domain.ColFullAddress, domain.ColCloseDate} {
				if !contains(ds.Required, col) {
					res.addErr("datasets.%s.required must include %q", name, col)
				}
			}
		case KindListings:
			if ds.AddressColumn == "" {
				ds.AddressColumn = domain.ColAddress
			}
			if len(ds.Required) == 0 {
				ds.Required = append([]string(nil), domain.ListingColumns...)
			}
			if !contains(ds.Required, ds.AddressColumn) {
				res.addWarn("datasets.%s.address_column %q is not required; rows without it will be skipped.", name, ds.AddressColumn)
			}
		default:
			res.addErr("datasets.%s.kind must be %q or %q", name, KindTransactions, KindListings)
		}
		out.Datasets[name] = ds
	}

	kindOf := func(name string) string { return out.Datasets[name].Kind }

	// ---- upload ----
	if out.Upload.General == "" {
		out.Upload.General = domain.DatasetAll
	}
	if out.Upload.Filtered == "" {
		out.Upload.Filtered = domain.DatasetVA
	}
	if kindOf(out.Upload.General) != KindTransactions {
		res.addErr("upload.general: %q is not a transactions dataset", out.Upload.General)
	}
	if kindOf(out.Upload.Filtered) != KindTransactions {
		res.addErr("upload.filtered: %q is not a transactions dataset", out.Upload.Filtered)
	}

	// ---- reconcile ----
	if out.Reconcile.General == "" {
		out.Reconcile.General = out.Upload.General
	}
	if out.Reconcile.Filtered == "" {
		out.Reconcile.Filtered = out.Upload.Filtered
	}
	if out.Reconcile.Output == "" {
		out.Reconcile.Output = domain.DatasetCurrentVA
	}
	if kindOf(out.Reconcile.General) != KindTransactions {
		res.addErr("reconcile.general: %q is not a transactions dataset", out.Reconcile.General)
	}
	if kindOf(out.Reconcile.Filtered) != KindTransactions {
		res.addErr("reconcile.filtered: %q is not a transactions dataset", out.Reconcile.Filtered)
	}
	if _, ok := out.Datasets[out.Reconcile.Output]; ok {
		res.addErr("reconcile.output %q would overwrite an uploaded dataset", out.Reconcile.Output)
	}
	if out.Reconcile.Every != "" {
		d, err := time.ParseDuration(out.Reconcile.Every)
		switch {
		case err != nil:
			res.addErr("reconcile.every: %v", err)
		case d < time.Minute:
			res.addWarn("reconcile.every is very low (%s).", d)
		}
	}

	// ---- filter ----
	out.Filter.Any = trimList(out.Filter.Any)
	if out.Filter.Source != "" {
		if kindOf(out.Filter.Source) != KindListings {
			res.addErr("filter.source: %q is not a listings dataset", out.Filter.Source)
		}
		if out.Filter.Target == "" {
			out.Filter.Target = domain.DatasetFilteredVA
		}
		if out.Filter.Column == "" {
			out.Filter.Column = domain.ColBuyerFinancing
		}
		if _, ok := out.Datasets[out.Filter.Target]; ok {
			res.addErr("filter.target %q would overwrite an uploaded dataset", out.Filter.Target)
		}
		if len(out.Filter.Any) == 0 {
			res.addWarn("filter.any is empty; no listing will be copied to %s.", out.Filter.Target)
		}
	}

	// ---- exports ----
	sheetTargets := 0
	for name, ex := range out.Exports {
		ex.Format = strings.ToLower(strings.TrimSpace(ex.Format))
		ex.Columns = trimList(ex.Columns)
		switch ex.Format {
		case FormatFiltered:
			if len(ex.Columns) == 0 {
				ex.Columns = append([]string(nil), domain.ListingColumns...)
			}
		case FormatUSPS, FormatUSPSMailing:
		default:
			res.addErr("exports.%s.format must be filtered, usps or usps_mailing (got %q)", name, ex.Format)
		}
		if strings.TrimSpace(ex.Source) == "" {
			res.addErr("exports.%s.source is required", name)
		}
		if ex.SheetRange != "" {
			sheetTargets++
		}
		out.Exports[name] = ex
	}

	// ---- sheets ----
	if out.Sheets.Enabled {
		if strings.TrimSpace(out.Sheets.CredentialsFile) == "" {
			res.addErr("sheets.credentials_file is required when sheets.enabled=true")
		}
		if strings.TrimSpace(out.Sheets.SpreadsheetID) == "" {
			res.addErr("sheets.spreadsheet_id is required when sheets.enabled=true")
		}
		if sheetTargets == 0 {
			res.addWarn("sheets.enabled is true but no export sets sheet_range.")
		}
	}
	if out.Sheets.MaxRetries < 0 {
		res.addErr("sheets.max_retries must be >= 0")
	}

	return out, res
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
