package config

import (
	"os"
	"strings"
)

// Environment overrides, applied after the file is loaded.
const (
	EnvDataDir    = "VALEADS_DATA_DIR"
	EnvAddr       = "VALEADS_ADDR"
	EnvStorageDSN = "VALEADS_STORAGE_DSN"
)

// OverlayEnv applies the VALEADS_* environment variables to cfg. A DSN
// override switches the backend to postgres.
func OverlayEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvDataDir)); v != "" {
		cfg.App.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAddr)); v != "" {
		cfg.App.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageDSN)); v != "" {
		cfg.Storage.DSN = v
		cfg.Storage.Backend = "postgres"
	}
}
