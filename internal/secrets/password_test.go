package secrets

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"

	"valeads-engine/internal/config"
)

func TestStoragePasswordRoundTrip(t *testing.T) {
	keyring.MockInit()

	if _, err := GetStoragePassword("acct"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := SetStoragePassword("acct", "s3cret"); err != nil {
		t.Fatal(err)
	}
	pw, err := GetStoragePassword("acct")
	if err != nil || pw != "s3cret" {
		t.Fatalf("got (%q, %v)", pw, err)
	}
	if err := DeleteStoragePassword("acct"); err != nil {
		t.Fatal(err)
	}
	if _, err := GetStoragePassword("acct"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after delete err = %v", err)
	}
}

func TestSetStoragePasswordValidates(t *testing.T) {
	keyring.MockInit()
	if err := SetStoragePassword("", "x"); err == nil {
		t.Fatal("empty account accepted")
	}
	if err := SetStoragePassword("acct", "  "); err == nil {
		t.Fatal("blank password accepted")
	}
}

func TestStorageKeyringAccount(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "postgres"
	cfg.Storage.DSN = "host=db user=leads dbname=valeads sslmode=disable"
	if got := StorageKeyringAccount(cfg); got != "valeads:postgres:leads" {
		t.Fatalf("account = %q", got)
	}
	cfg.Storage.KeyringAccount = "custom"
	if got := StorageKeyringAccount(cfg); got != "custom" {
		t.Fatalf("account = %q", got)
	}
}
