package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"valeads-engine/internal/config"
)

const (
	// KeyringService groups the engine's secrets in the OS keychain.
	KeyringService = "valeads"
)

var ErrNotFound = errors.New("storage password not found in keychain")

func GetStoragePassword(keyringAccount string) (string, error) {
	if strings.TrimSpace(keyringAccount) == "" {
		return "", ErrNotFound
	}
	pw, err := keyring.Get(KeyringService, keyringAccount)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keychain: %w", err)
	}
	if strings.TrimSpace(pw) == "" {
		return "", ErrNotFound
	}
	return pw, nil
}

func SetStoragePassword(keyringAccount string, password string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, keyringAccount, password)
}

func DeleteStoragePassword(keyringAccount string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, keyringAccount)
}

// StorageKeyringAccount is the configured account, or one derived from the DSN.
func StorageKeyringAccount(cfg config.Config) string {
	if a := strings.TrimSpace(cfg.Storage.KeyringAccount); a != "" {
		return a
	}
	return fmt.Sprintf("valeads:%s:%s", cfg.Storage.Backend, dsnField(cfg.Storage.DSN, "user"))
}

// dsnField pulls key=value out of a keyword/value connection string.
func dsnField(dsn, key string) string {
	for _, f := range strings.Fields(dsn) {
		k, v, ok := strings.Cut(f, "=")
		if ok && k == key {
			return strings.Trim(v, "'")
		}
	}
	return ""
}
