package store

import (
	"database/sql"
	"fmt"
)

const schemaVersion = 1

const createNodes = `
CREATE TABLE IF NOT EXISTS nodes (
  parent TEXT NOT NULL,
  key TEXT NOT NULL,
  value TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  PRIMARY KEY (parent, key)
);
`

// Migrate brings the schema up to date. sqlite tracks the version in
// PRAGMA user_version; postgres relies on IF NOT EXISTS.
func Migrate(d *DB) error {
	if d.Dialect == DialectPostgres {
		if _, err := d.Pool.Exec(createNodes); err != nil {
			return fmt.Errorf("create nodes: %w", err)
		}
		return nil
	}

	tx, err := d.Pool.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= schemaVersion {
		return tx.Commit()
	}

	if _, err := tx.Exec(createNodes); err != nil {
		return fmt.Errorf("create nodes: %w", err)
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_nodes_updated ON nodes(updated_at);`); err != nil {
		return err
	}
	if !columnExists(tx, "nodes", "updated_at") {
		if _, err := tx.Exec(`ALTER TABLE nodes ADD COLUMN updated_at TEXT NOT NULL DEFAULT '';`); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d;`, schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

func columnExists(q interface {
	QueryRow(query string, args ...any) *sql.Row
}, table, col string) bool {
	query := fmt.Sprintf(`
SELECT 1
FROM pragma_table_info('%s')
WHERE name = ?
LIMIT 1;
`, table)

	var one int
	err := q.QueryRow(query, col).Scan(&one)
	return err == nil
}
