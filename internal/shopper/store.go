package shopper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"storefront/internal/cart"

	_ "github.com/mattn/go-sqlite3"
)

const sessionSchema = `CREATE TABLE IF NOT EXISTS session (
	name  TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// Store est l'état local du client : panier et cookie de session.
type Store struct {
	db    *sql.DB
	carts *cart.SQLiteStore
}

// Open crée ou ouvre la base SQLite du client.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("shopper: create %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("shopper: open database: %w", err)
	}
	// SQLite : un seul écrivain
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, sessionSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("shopper: create session table: %w", err)
	}
	carts, err := cart.NewSQLiteStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, carts: carts}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("shopper: %q: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Carts() cart.Store { return s.carts }

// SessionCookie retourne le cookie de session enregistré, ou "".
func (s *Store) SessionCookie(ctx context.Context) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM session WHERE name = 'cookie'`).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetSessionCookie enregistre value ; "" oublie la session.
func (s *Store) SetSessionCookie(ctx context.Context, value string) error {
	if value == "" {
		_, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE name = 'cookie'`)
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session (name, value) VALUES ('cookie', ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`, value)
	return err
}
