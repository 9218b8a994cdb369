package db

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Preferences is a key-value view over user_preferences.
type Preferences struct {
	db *DB
}

// Preferences returns the preference store backed by this database.
func (db *DB) Preferences() *Preferences {
	return &Preferences{db: db}
}

// Get returns the stored value and whether the key exists.
func (p *Preferences) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.db.QueryRowContext(ctx, `SELECT value FROM user_preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set creates or replaces a value.
func (p *Preferences) Set(ctx context.Context, key, value string) error {
	_, err := p.db.ExecContext(ctx, `
        INSERT INTO user_preferences (key, value, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET
            value = excluded.value,
            updated_at = excluded.updated_at`,
		key, value, time.Now())
	return err
}
