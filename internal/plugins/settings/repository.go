package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/scribeworks/scribe/internal/apperror"
)

// SettingsRepository defines the data access contract for the key-value
// settings store.
type SettingsRepository interface {
	// Get retrieves a single setting value by key. Returns NotFound if the
	// key does not exist.
	Get(ctx context.Context, key string) (string, error)

	// Set upserts a setting value, creating the key if needed.
	Set(ctx context.Context, key, value string) error

	// GetAll returns every setting as a key-value map.
	GetAll(ctx context.Context) (map[string]string, error)

	// Delete removes a setting, reverting it to the configured default.
	// Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error
}

// settingsRepository implements SettingsRepository using MariaDB.
type settingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository creates a settings repository backed by the given
// DB pool.
func NewSettingsRepository(db *sql.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT setting_value FROM scribe_settings WHERE setting_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperror.NewNotFound(fmt.Sprintf("setting %q not found", key))
	}
	if err != nil {
		return "", apperror.NewInternal(fmt.Errorf("querying setting %q: %w", key, err))
	}
	return value, nil
}

func (r *settingsRepository) Set(ctx context.Context, key, value string) error {
	query := `INSERT INTO scribe_settings (setting_key, setting_value)
	          VALUES (?, ?)
	          ON DUPLICATE KEY UPDATE setting_value = VALUES(setting_value)`
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return apperror.NewInternal(fmt.Errorf("upserting setting %q: %w", key, err))
	}
	return nil
}

func (r *settingsRepository) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT setting_key, setting_value FROM scribe_settings`)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("querying settings: %w", err))
	}
	defer rows.Close()

	all := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("scanning setting row: %w", err))
		}
		all[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("iterating setting rows: %w", err))
	}
	return all, nil
}

func (r *settingsRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM scribe_settings WHERE setting_key = ?`, key); err != nil {
		return apperror.NewInternal(fmt.Errorf("deleting setting %q: %w", key, err))
	}
	return nil
}
