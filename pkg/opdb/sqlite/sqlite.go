package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/veesix-networks/vppom/pkg/opdb"
)

const schema = `
CREATE TABLE IF NOT EXISTS bindings (
	flavour    TEXT NOT NULL,
	key        TEXT NOT NULL,
	binding    TEXT NOT NULL,
	state      TEXT NOT NULL,
	updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
	PRIMARY KEY (flavour, key)
)`

// Store is the sqlite binding journal.
type Store struct {
	db *sql.DB
}

var _ opdb.Store = (*Store)(nil)

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// One connection serializes writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create bindings table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Put(ctx context.Context, r opdb.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bindings (flavour, key, binding, state, updated_at)
		VALUES (?, ?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(flavour, key) DO UPDATE SET
			binding = excluded.binding,
			state = excluded.state,
			updated_at = excluded.updated_at
	`, r.Flavour, r.Key, r.Binding, r.State)
	if err != nil {
		return fmt.Errorf("journal %s %s: %w", r.Flavour, r.Key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, flavour, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bindings WHERE flavour = ? AND key = ?`, flavour, key); err != nil {
		return fmt.Errorf("remove %s %s from journal: %w", flavour, key, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, flavour string) ([]opdb.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT flavour, key, binding, state FROM bindings
		WHERE ? = '' OR flavour = ?
		ORDER BY flavour, key
	`, flavour, flavour)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer rows.Close()

	var out []opdb.Record
	for rows.Next() {
		var r opdb.Record
		if err := rows.Scan(&r.Flavour, &r.Key, &r.Binding, &r.State); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Flavours(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT flavour FROM bindings ORDER BY flavour`)
	if err != nil {
		return nil, fmt.Errorf("list journal flavours: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) Clear(ctx context.Context, flavour string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bindings WHERE flavour = ?`, flavour); err != nil {
		return fmt.Errorf("clear %s journal: %w", flavour, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
