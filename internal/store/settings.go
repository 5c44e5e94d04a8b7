package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("setting not found")
	ErrQuery    = errors.New("settings query failed")
)

// Setting is one persisted key/value pair.
type Setting struct {
	Key       string
	Value     string
	UpdatedOn time.Time
}

// Settings is a key/value store kept in the settings table.
type Settings struct {
	db *sql.DB
}

func NewSettings(db *sql.DB) *Settings {
	return &Settings{db: db}
}

// Get returns the stored value for key, or ErrNotFound if it was never set.
func (s *Settings) Get(ctx context.Context, key string) (string, error) {
	var value string
	if err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}

		return "", errors.Join(err, ErrQuery)
	}

	return value, nil
}

// Set inserts or replaces the value for key.
func (s *Settings) Set(ctx context.Context, key string, value string) error {
	const query = `INSERT INTO settings (key, value, updated_on) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_on = excluded.updated_on`

	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UnixMilli()); err != nil {
		return errors.Join(err, ErrQuery)
	}

	return nil
}

// All returns every stored setting ordered by key.
func (s *Settings) All(ctx context.Context) ([]Setting, error) {
	rows, errRows := s.db.QueryContext(ctx, `SELECT key, value, updated_on FROM settings ORDER BY key`)
	if errRows != nil {
		return nil, errors.Join(errRows, ErrQuery)
	}

	defer func() {
		_ = rows.Close()
	}()

	var settings []Setting
	for rows.Next() {
		var (
			setting   Setting
			updatedOn int64
		)

		if err := rows.Scan(&setting.Key, &setting.Value, &updatedOn); err != nil {
			return nil, errors.Join(err, ErrQuery)
		}

		setting.UpdatedOn = time.UnixMilli(updatedOn)
		settings = append(settings, setting)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Join(err, ErrQuery)
	}

	return settings, nil
}
