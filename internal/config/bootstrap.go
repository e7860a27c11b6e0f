package config

import (
	_ "embed"
	"errors"
	"os"
	"path/filepath"
)

//go:embed default.yml
var DefaultYAML []byte

// Default returns the embedded configuration, normalized.
func Default() Config {
	cfg, err := Parse(DefaultYAML)
	if err != nil {
		panic("config: embedded default.yml: " + err.Error())
	}
	out, _ := NormalizeAndValidate(cfg)
	return out
}

// EnsureUserConfig returns the path of config.yml in dataDir, writing
// defaults there first when it does not exist yet.
func EnsureUserConfig(dataDir string, defaults []byte) (string, error) {
	userPath := filepath.Join(dataDir, "config.yml")

	_, err := os.Stat(userPath)
	if err == nil {
		return userPath, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(userPath, defaults, 0o644); err != nil {
		return "", err
	}
	return userPath, nil
}
