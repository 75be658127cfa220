package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sessionSchema = `
CREATE TABLE IF NOT EXISTS sessions (
  identity   TEXT PRIMARY KEY,
  blob       BLOB NOT NULL,
  updated_at INTEGER NOT NULL
);`

// SQLiteRepository keeps every identity's blob as a row in one database.
// Suitable for installs that hold many accounts.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and ensures the schema.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	repo, err := NewSQLiteRepository(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// NewSQLiteRepository wraps an open database and ensures the schema.
func NewSQLiteRepository(ctx context.Context, db *sql.DB) (*SQLiteRepository, error) {
	if _, err := db.ExecContext(ctx, sessionSchema); err != nil {
		return nil, fmt.Errorf("create sessions table: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Load(ctx context.Context, hash string) ([]byte, error) {
	var blob []byte
	err := r.db.QueryRowContext(ctx, `SELECT blob FROM sessions WHERE identity = ?`, hash).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session[%s]: %w", hash, err)
	}
	return blob, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, hash string, blob []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (identity, blob, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at
	`, hash, blob, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save session[%s]: %w", hash, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, hash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE identity = ?`, hash)
	if err != nil {
		return fmt.Errorf("failed to delete session[%s]: %w", hash, err)
	}
	return nil
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
