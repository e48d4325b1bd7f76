package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT    NOT NULL,
	id         INTEGER NOT NULL,
	data       TEXT    NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (collection, id)
);
CREATE TABLE IF NOT EXISTS sequences (
	collection TEXT    PRIMARY KEY,
	last       INTEGER NOT NULL
);`

// SQLite is a Backend stored in a single SQLite file.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex // serialises writers; SQLite allows one at a time
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE collection = ? ORDER BY id`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		var data string
		if err := rows.Scan(&d.ID, &data); err != nil {
			return nil, err
		}
		d.Data = []byte(data)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLite) Get(ctx context.Context, collection string, id int64) (Document, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Data: []byte(data)}, nil
}

func (s *SQLite) Insert(ctx context.Context, collection string, data []byte) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if id, err = sqliteNextID(ctx, tx, collection, 0); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)`, collection, id, string(data))
		return err
	})
	return id, err
}

func (s *SQLite) Update(ctx context.Context, collection string, id int64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET data = ? WHERE collection = ? AND id = ?`, string(data), collection, id)
	return affected(res, err)
}

func (s *SQLite) Delete(ctx context.Context, collection string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	return affected(res, err)
}

func (s *SQLite) Replace(ctx context.Context, collection string, docs []Document) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ?`, collection); err != nil {
			return err
		}
		var floor int64
		for _, d := range docs {
			floor = max(floor, d.ID)
		}
		for _, d := range docs {
			id := d.ID
			if id <= 0 {
				var err error
				if id, err = sqliteNextID(ctx, tx, collection, floor); err != nil {
					return err
				}
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)`, collection, id, string(d.Data)); err != nil {
				return err
			}
		}
		if floor > 0 {
			_, err := tx.ExecContext(ctx, `INSERT INTO sequences (collection, last) VALUES (?, ?)
				ON CONFLICT(collection) DO UPDATE SET last = MAX(last, excluded.last)`, collection, floor)
			return err
		}
		return nil
	})
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// sqliteNextID bumps and returns the collection sequence, never going below floor.
func sqliteNextID(ctx context.Context, tx *sql.Tx, collection string, floor int64) (int64, error) {
	var last int64
	err := tx.QueryRowContext(ctx, `SELECT last FROM sequences WHERE collection = ?`, collection).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	next := max(last, floor) + 1
	_, err = tx.ExecContext(ctx, `INSERT INTO sequences (collection, last) VALUES (?, ?)
		ON CONFLICT(collection) DO UPDATE SET last = excluded.last`, collection, next)
	return next, err
}

func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
