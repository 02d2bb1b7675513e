package objects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"

	"github.com/scribeworks/scribe/internal/objectref"
)

// UserAdapter resolves "user" references against the host users table.
type UserAdapter struct {
	db *sql.DB
}

// NewUserAdapter creates a user adapter backed by the given DB pool.
func NewUserAdapter(db *sql.DB) *UserAdapter {
	return &UserAdapter{db: db}
}

func (a *UserAdapter) load(ctx context.Context, key any) (*User, error) {
	id, err := keyInt64(key)
	if err != nil {
		return nil, err
	}

	var u User
	err = a.db.QueryRowContext(ctx,
		`SELECT id, display_name, email, role FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.DisplayName, &u.Email, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, objectref.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading user %d: %w", id, err)
	}
	return &u, nil
}

// Exists implements objectref.Adapter.
func (a *UserAdapter) Exists(ctx context.Context, key any) (bool, error) {
	_, err := a.load(ctx, key)
	if errors.Is(err, objectref.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Load implements objectref.Adapter.
func (a *UserAdapter) Load(ctx context.Context, key any) (any, error) {
	return a.load(ctx, key)
}

// Name implements objectref.Adapter.
func (a *UserAdapter) Name(ctx context.Context, key any) (string, error) {
	u, err := a.load(ctx, key)
	if err != nil {
		return "", err
	}
	return u.DisplayName, nil
}

// CoreProperties implements objectref.Adapter: the user attributes
// snapshotted into a new event's property set.
func (a *UserAdapter) CoreProperties(ctx context.Context, key any) ([]objectref.CoreProperty, error) {
	u, err := a.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return []objectref.CoreProperty{
		{Key: "display_name", SourceTable: "users", Value: u.DisplayName},
		{Key: "email", SourceTable: "users", Value: u.Email},
		{Key: "role", SourceTable: "users", Value: u.Role},
	}, nil
}

// Tag implements objectref.Adapter.
func (a *UserAdapter) Tag(ctx context.Context, key any, fallback string) string {
	name := fallback
	if u, err := a.load(ctx, key); err == nil {
		name = u.DisplayName
	}
	id, err := keyInt64(key)
	if err != nil {
		return html.EscapeString(name)
	}
	return fmt.Sprintf(`<a href="/users/%d">%s</a>`, id, html.EscapeString(name))
}
