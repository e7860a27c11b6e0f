package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"valeads-engine/internal/domain"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

type DB struct {
	Pool    *sql.DB
	Dialect Dialect
}

// Open opens the sqlite file at path.
func Open(path string) (*DB, error) {
	// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)

	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	pool.SetMaxOpenConns(1) // sqlite typically wants 1 writer
	pool.SetConnMaxLifetime(5 * time.Minute)

	if err := ping(pool); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return &DB{Pool: pool, Dialect: DialectSQLite}, nil
}

// OpenPostgres opens a lib/pq connection pool. dsn is a keyword/value
// connection string; password, when non-empty, is appended to it.
func OpenPostgres(dsn, password string) (*DB, error) {
	if password != "" {
		esc := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(password)
		dsn = fmt.Sprintf("%s password='%s'", dsn, esc)
	}
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	pool.SetMaxOpenConns(8)
	pool.SetMaxIdleConns(4)
	pool.SetConnMaxLifetime(5 * time.Minute)

	if err := ping(pool); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return &DB{Pool: pool, Dialect: DialectPostgres}, nil
}

func ping(pool *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return pool.PingContext(ctx)
}

func (d *DB) Close() error {
	if d == nil || d.Pool == nil {
		return nil
	}
	return d.Pool.Close()
}

// Checkpoint folds the WAL into the database file. It is a no-op on postgres.
func (d *DB) Checkpoint(ctx context.Context) error {
	if d.Dialect != DialectSQLite {
		return nil
	}
	if _, err := d.Pool.ExecContext(ctx, `PRAGMA wal_checkpoint(FULL);`); err != nil {
		return &domain.StorageError{Op: "checkpoint", Path: "", Err: err}
	}
	return nil
}
