package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Parse(DefaultYAML)
	if err != nil {
		t.Fatal(err)
	}
	out, res := NormalizeAndValidate(cfg)
	if !res.OK() {
		t.Fatalf("default config invalid: %v", res.Errors)
	}
	if out.Storage.BatchSize != 500 || out.Storage.WriteConcurrency != 1 {
		t.Fatalf("storage defaults = %+v", out.Storage)
	}
	if got := out.Datasets["ALL"].Required; len(got) != 9 {
		t.Fatalf("ALL required = %v", got)
	}
	if !out.Reconcile.AfterUpload {
		t.Fatal("after_upload should default to true")
	}
}

func TestNormalizeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "postgres needs dsn",
			mutate:  func(c *Config) { c.Storage.Backend = "postgres"; c.Storage.DSN = "" },
			wantErr: "storage.dsn",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Storage.Backend = "firebase" },
			wantErr: "storage.backend",
		},
		{
			name:    "bad date mode",
			mutate:  func(c *Config) { c.Dates.Mode = "lunar" },
			wantErr: "dates.mode",
		},
		{
			name:    "output overwrites input",
			mutate:  func(c *Config) { c.Reconcile.Output = "ALL" },
			wantErr: "reconcile.output",
		},
		{
			name:    "bad interval",
			mutate:  func(c *Config) { c.Reconcile.Every = "soon" },
			wantErr: "reconcile.every",
		},
		{
			name:    "filter source must be listings",
			mutate:  func(c *Config) { c.Filter.Source = "VA" },
			wantErr: "filter.source",
		},
		{
			name: "bad export format",
			mutate: func(c *Config) {
				c.Exports["odd"] = Export{Source: "CurrentVA", Format: "xlsx"}
			},
			wantErr: "exports.odd.format",
		},
		{
			name:    "sheets need credentials",
			mutate:  func(c *Config) { c.Sheets.Enabled = true; c.Sheets.SpreadsheetID = "abc" },
			wantErr: "sheets.credentials_file",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, _ := Parse(DefaultYAML)
			tt.mutate(&cfg)
			_, res := NormalizeAndValidate(cfg)
			if res.OK() {
				t.Fatal("expected validation errors")
			}
			joined := strings.Join(res.Errors, "\n")
			if !strings.Contains(joined, tt.wantErr) {
				t.Fatalf("errors %q do not mention %q", joined, tt.wantErr)
			}
		})
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	cfg, _ := Parse(DefaultYAML)
	cfg.Exports["filtered"] = Export{Source: "FilteredVA", Format: " Filtered "}
	_, _ = NormalizeAndValidate(cfg)
	if cfg.Exports["filtered"].Format != " Filtered " {
		t.Fatal("input config was modified")
	}
}

func TestEnsureUserConfigAndSaveAtomic(t *testing.T) {
	dir := t.TempDir()
	path, err := EnsureUserConfig(dir, DefaultYAML)
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "config.yml") {
		t.Fatalf("path = %s", path)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Storage.BatchSize = 42
	if err := SaveAtomic(path, cfg); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Fatalf("no backup written: %v", err)
	}
	again, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if again.Storage.BatchSize != 42 {
		t.Fatalf("batch_size = %d", again.Storage.BatchSize)
	}

	// an existing file is never overwritten
	if _, err := EnsureUserConfig(dir, []byte("garbage")); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("existing config clobbered: %v", err)
	}
}

func TestSaveAtomicRejectsInvalid(t *testing.T) {
	cfg, _ := Parse(DefaultYAML)
	cfg.Storage.Backend = "nope"
	if err := SaveAtomic(filepath.Join(t.TempDir(), "config.yml"), cfg); err == nil {
		t.Fatal("expected error")
	}
}

func TestOverlayEnv(t *testing.T) {
	t.Setenv(EnvAddr, "0.0.0.0:9000")
	t.Setenv(EnvStorageDSN, "host=db dbname=valeads")
	t.Setenv(EnvDataDir, "")

	cfg := Default()
	OverlayEnv(&cfg)
	if cfg.App.Addr != "0.0.0.0:9000" {
		t.Fatalf("addr = %s", cfg.App.Addr)
	}
	if cfg.Storage.Backend != "postgres" || cfg.Storage.DSN != "host=db dbname=valeads" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.App.DataDir != "." {
		t.Fatalf("data dir = %s", cfg.App.DataDir)
	}
}
