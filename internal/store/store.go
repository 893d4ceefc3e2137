package store

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

// Store handles all database operations.
// Every table is addressed by name and header the way a spreadsheet is:
// rows carry a stable row index and one text cell per header.
type Store struct {
	db *sql.DB
}

// querier is satisfied by *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// New creates a new Store with SQLite backend and ensures every table exists
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer; serializing connections keeps
	// transactions from failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.EnsureTables(context.Background(), Schema); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// NewWithDB wraps an existing connection without touching the schema
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureTables creates missing tables and appends missing header columns.
// Existing columns and rows are never dropped.
func (s *Store) EnsureTables(ctx context.Context, tables []Table) error {
	for _, t := range tables {
		existing, err := headers(ctx, s.db, t.Name)
		if errors.Is(err, ErrTableNotFound) {
			if err := createTable(ctx, s.db, t); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}

		have := make(map[string]bool, len(existing))
		for _, h := range existing {
			have[h] = true
		}
		for _, h := range t.Headers {
			if have[h] {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT NOT NULL DEFAULT ''", quoteIdent(t.Name), quoteIdent(h))
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to add column %s to %s: %w", h, t.Name, err)
			}
		}
	}
	return nil
}

func createTable(ctx context.Context, q querier, t Table) error {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (%s INTEGER PRIMARY KEY AUTOINCREMENT", quoteIdent(t.Name), rowIndexColumn)
	for _, h := range t.Headers {
		fmt.Fprintf(&b, ", %s TEXT NOT NULL DEFAULT ''", quoteIdent(h))
	}
	b.WriteString(")")

	if _, err := q.ExecContext(ctx, b.String()); err != nil {
		return fmt.Errorf("failed to create table %s: %w", t.Name, err)
	}
	if t.AccountScoped {
		idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)",
			quoteIdent("idx_"+t.Name+"_account"), quoteIdent(t.Name), quoteIdent(ColAccountID))
		if _, err := q.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("failed to index table %s: %w", t.Name, err)
		}
	}
	return nil
}

// withTx runs fn inside a transaction, rolling back on error
func (s *Store) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
