package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Dataset kinds.
const (
	KindTransactions = "transactions"
	KindListings     = "listings"
)

// Export formats.
const (
	FormatFiltered    = "filtered"
	FormatUSPS        = "usps"
	FormatUSPSMailing = "usps_mailing"
)

type Dataset struct {
	Kind          string   `yaml:"kind" json:"kind"`
	Required      []string `yaml:"required" json:"required"`
	AddressColumn string   `yaml:"address_column,omitempty" json:"address_column,omitempty"`
}

type Export struct {
	Source     string   `yaml:"source" json:"source"`
	Format     string   `yaml:"format" json:"format"`
	Columns    []string `yaml:"columns,omitempty" json:"columns,omitempty"`
	SheetRange string   `yaml:"sheet_range,omitempty" json:"sheet_range,omitempty"`
}

type Config struct {
	App struct {
		Addr    string `yaml:"addr" json:"addr"`
		DataDir string `yaml:"data_dir" json:"data_dir"`
	} `yaml:"app" json:"app"`

	Storage struct {
		Backend          string  `yaml:"backend" json:"backend"`
		Path             string  `yaml:"path" json:"path"`
		DSN              string  `yaml:"dsn" json:"dsn"`
		KeyringAccount   string  `yaml:"keyring_account" json:"keyring_account"`
		BatchSize        int     `yaml:"batch_size" json:"batch_size"`
		WriteConcurrency int     `yaml:"write_concurrency" json:"write_concurrency"`
		WritesPerSecond  float64 `yaml:"writes_per_second" json:"writes_per_second"`
	} `yaml:"storage" json:"storage"`

	Dates struct {
		Mode    string   `yaml:"mode" json:"mode"`
		Layouts []string `yaml:"layouts" json:"layouts"`
	} `yaml:"dates" json:"dates"`

	Datasets map[string]Dataset `yaml:"datasets" json:"datasets"`

	// Upload maps the two form fields of /upload_csvs to datasets.
	Upload struct {
		General  string `yaml:"general" json:"general"`
		Filtered string `yaml:"filtered" json:"filtered"`
	} `yaml:"upload" json:"upload"`

	Reconcile struct {
		General     string `yaml:"general" json:"general"`
		Filtered    string `yaml:"filtered" json:"filtered"`
		Output      string `yaml:"output" json:"output"`
		AfterUpload bool   `yaml:"after_upload" json:"after_upload"`
		Every       string `yaml:"every" json:"every"`
	} `yaml:"reconcile" json:"reconcile"`

	Filter struct {
		Source string   `yaml:"source" json:"source"`
		Target string   `yaml:"target" json:"target"`
		Column string   `yaml:"column" json:"column"`
		Any    []string `yaml:"any" json:"any"`
	} `yaml:"filter" json:"filter"`

	Exports map[string]Export `yaml:"exports" json:"exports"`

	Sheets struct {
		Enabled         bool   `yaml:"enabled" json:"enabled"`
		CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
		SpreadsheetID   string `yaml:"spreadsheet_id" json:"spreadsheet_id"`
		MaxRetries      int    `yaml:"max_retries" json:"max_retries"`
	} `yaml:"sheets" json:"sheets"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

// Parse decodes a YAML document without touching the filesystem.
func Parse(b []byte) (Config, error) {
	var cfg Config
	err := yaml.Unmarshal(b, &cfg)
	return cfg, err
}
