package store

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// SQLTree stores every dataset child as one row of the nodes table.
type SQLTree struct {
	db *DB
}

var _ Tree = (*SQLTree)(nil)

func NewSQLTree(db *DB) *SQLTree { return &SQLTree{db: db} }

// rebind rewrites ? placeholders to $n for postgres.
func (t *SQLTree) rebind(q string) string {
	if t.db.Dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (t *SQLTree) Get(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	parent, err := datasetPath(path)
	if err != nil {
		return nil, storageErr("get", path, err)
	}
	rows, err := t.db.Pool.QueryContext(ctx,
		t.rebind(`SELECT key, value FROM nodes WHERE parent = ? ORDER BY key;`), parent)
	if err != nil {
		return nil, storageErr("get", path, err)
	}
	defer rows.Close()

	out := map[string]json.RawMessage{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, storageErr("get", path, err)
		}
		out[k] = json.RawMessage(v)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("get", path, err)
	}
	return out, nil
}

func (t *SQLTree) Update(ctx context.Context, path string, children map[string]any) error {
	return storageErr("update", path, t.write(ctx, path, children, false))
}

func (t *SQLTree) Set(ctx context.Context, path string, children map[string]any) error {
	return storageErr("set", path, t.write(ctx, path, children, true))
}

func (t *SQLTree) write(ctx context.Context, path string, children map[string]any, replace bool) error {
	parent, err := datasetPath(path)
	if err != nil {
		return err
	}
	enc, err := encodeChildren(children)
	if err != nil {
		return err
	}

	tx, err := t.db.Pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if replace {
		if _, err := tx.ExecContext(ctx, t.rebind(`DELETE FROM nodes WHERE parent = ?;`), parent); err != nil {
			return err
		}
	}

	stmt, err := tx.PrepareContext(ctx, t.rebind(`
INSERT INTO nodes(parent, key, value, updated_at)
VALUES(?,?,?,?)
ON CONFLICT(parent, key) DO UPDATE SET
  value = excluded.value,
  updated_at = excluded.updated_at;
`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for k, v := range enc {
		if _, err := stmt.ExecContext(ctx, parent, k, v, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (t *SQLTree) Delete(ctx context.Context, path string) error {
	parent, key, err := splitPath(path)
	if err != nil {
		return storageErr("delete", path, err)
	}
	if key == "" {
		_, err = t.db.Pool.ExecContext(ctx, t.rebind(`DELETE FROM nodes WHERE parent = ?;`), parent)
	} else {
		_, err = t.db.Pool.ExecContext(ctx, t.rebind(`DELETE FROM nodes WHERE parent = ? AND key = ?;`), parent, key)
	}
	return storageErr("delete", path, err)
}

func (t *SQLTree) DeleteAll(ctx context.Context) error {
	_, err := t.db.Pool.ExecContext(ctx, `DELETE FROM nodes;`)
	return storageErr("delete", "/", err)
}

func (t *SQLTree) Datasets(ctx context.Context) (map[string]int, error) {
	rows, err := t.db.Pool.QueryContext(ctx, `SELECT parent, COUNT(*) FROM nodes GROUP BY parent;`)
	if err != nil {
		return nil, storageErr("list", "/", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var p string
		var n int
		if err := rows.Scan(&p, &n); err != nil {
			return nil, storageErr("list", "/", err)
		}
		out[p] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list", "/", err)
	}
	return out, nil
}
