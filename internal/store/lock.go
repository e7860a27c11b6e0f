package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const LockFile = "valeads.lock"

// AcquireDirLock takes an exclusive lock on dataDir so that two engine
// processes never share one local store. Call Unlock on shutdown.
func AcquireDirLock(dataDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	fl := flock.New(filepath.Join(dataDir, LockFile))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("data dir %s is in use by another engine", dataDir)
	}
	return fl, nil
}
