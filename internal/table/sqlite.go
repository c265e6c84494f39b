package table

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const pathIndexSchema = `
DROP TABLE IF EXISTS path_index;

CREATE TABLE path_index (
        path TEXT PRIMARY KEY,
        parent TEXT NOT NULL,
        name TEXT NOT NULL,
        stem TEXT,
        size INTEGER,
        extension TEXT,
        created INTEGER,
        modified INTEGER,
        is_folder INTEGER NOT NULL,
        hash TEXT
);

CREATE INDEX idx_path_index_parent ON path_index(parent);
CREATE INDEX idx_path_index_extension ON path_index(extension);
`

// ExportSQLite writes t into the path_index table of the SQLite database at
// dbPath, replacing any previous export. Absent values become NULL.
func ExportSQLite(ctx context.Context, t *Table, dbPath string) error {
	if strings.TrimSpace(dbPath) == "" {
		return errors.New("database path cannot be empty")
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid table: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite database: %w", err)
	}
	defer db.Close()

	for _, pragma := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA synchronous=NORMAL;"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, pathIndexSchema); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO path_index(path, parent, name, stem, size, extension, created, modified, is_folder, hash)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < t.Len(); i++ {
		_, err := stmt.ExecContext(ctx,
			t.Path[i], t.Parent[i], t.Name[i],
			nullable(t.Stem, i), nullable(t.Size, i), nullable(t.Extension, i),
			nullable(t.Created, i), nullable(t.Modified, i),
			t.IsFolder[i], nullable(t.Hash, i),
		)
		if err != nil {
			return fmt.Errorf("insert %s: %w", t.Path[i], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit export: %w", err)
	}
	return nil
}

// nullable returns slot i as a driver value, nil when absent.
func nullable[T any](c Column[T], i int) any {
	v, ok := c.At(i)
	if !ok {
		return nil
	}
	return v
}
