package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLite keeps the token in the settings table of a local database.
type SQLite struct {
	db  *sql.DB
	key string
}

var _ Store = (*SQLite)(nil)

// NewSQLite returns a token store backed by db. The schema must already exist.
func NewSQLite(db *sql.DB, key string) *SQLite {
	if key == "" {
		key = DefaultKey
	}
	return &SQLite{db: db, key: key}
}

// Token returns the stored token, or "" if none is stored.
func (s *SQLite) Token(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, s.key,
	).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying token: %w", err)
	}
	return token, nil
}

// SetToken stores token, replacing any previous one.
func (s *SQLite) SetToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.key, token,
	)
	if err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	return nil
}

// DeleteToken removes the stored token. Deleting a missing token is not an error.
func (s *SQLite) DeleteToken(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, s.key); err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}
