package cart

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS carts (
	key        TEXT PRIMARY KEY,
	lines      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore garde les paniers d'un client local (une ligne JSON par panier).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore crée la table si besoin. db est configuré par l'appelant
// (WAL, une seule connexion).
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("cart: create table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *SQLiteStore) Load(ctx context.Context, key string) ([]models.CartLine, error) {
	return load(ctx, s.db, key)
}

func load(ctx context.Context, q queryer, key string) ([]models.CartLine, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT lines FROM carts WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var lines []models.CartLine
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		return nil, ErrNotFound
	}
	return lines, nil
}

// Update lit et écrit dans la même transaction.
func (s *SQLiteStore) Update(ctx context.Context, key string, fn Mutation) ([]models.CartLine, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	lines, err := load(ctx, tx, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	next, changed := fn(lines)
	if !changed {
		return lines, nil
	}

	if len(next) == 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM carts WHERE key = ?`, key)
	} else {
		var data []byte
		if data, err = json.Marshal(next); err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO carts (key, lines, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET lines = excluded.lines, updated_at = excluded.updated_at`,
			key, string(data), time.Now().Unix())
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM carts WHERE key = ?`, key)
	return err
}
