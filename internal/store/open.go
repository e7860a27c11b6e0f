package store

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Options selects a Tree backend.
type Options struct {
	Backend  string // sqlite | postgres | memory
	DataDir  string
	Path     string // sqlite file, relative to DataDir
	DSN      string // postgres
	Password string // postgres, from the keyring
}

// OpenTree opens the configured backend and migrates it. The returned closer
// releases the underlying pool.
func OpenTree(o Options) (Tree, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(o.Backend)) {
	case "", "sqlite":
		p := o.Path
		if p == "" {
			p = "valeads.db"
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(o.DataDir, p)
		}
		db, err := Open(p)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", p, err)
		}
		if err := Migrate(db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return NewSQLTree(db), db, nil

	case "postgres":
		db, err := OpenPostgres(o.DSN, o.Password)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := Migrate(db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return NewSQLTree(db), db, nil

	case "memory":
		return NewMemory(), nopCloser{}, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", o.Backend)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
