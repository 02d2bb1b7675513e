package objects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"
	"strconv"

	"github.com/scribeworks/scribe/internal/objectref"
)

// ContentAdapter resolves "content" references against the host contents
// table (posts, pages, and menu entries share it).
type ContentAdapter struct {
	db *sql.DB
}

// NewContentAdapter creates a content adapter backed by the given DB pool.
func NewContentAdapter(db *sql.DB) *ContentAdapter {
	return &ContentAdapter{db: db}
}

func (a *ContentAdapter) load(ctx context.Context, key any) (*Content, error) {
	id, err := keyInt64(key)
	if err != nil {
		return nil, err
	}

	var c Content
	err = a.db.QueryRowContext(ctx,
		`SELECT id, title, slug, status, content_type, author_id FROM contents WHERE id = ?`, id).
		Scan(&c.ID, &c.Title, &c.Slug, &c.Status, &c.ContentType, &c.AuthorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, objectref.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading content %d: %w", id, err)
	}
	return &c, nil
}

// Exists implements objectref.Adapter.
func (a *ContentAdapter) Exists(ctx context.Context, key any) (bool, error) {
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
func (a *ContentAdapter) Load(ctx context.Context, key any) (any, error) {
	return a.load(ctx, key)
}

// Name implements objectref.Adapter.
func (a *ContentAdapter) Name(ctx context.Context, key any) (string, error) {
	c, err := a.load(ctx, key)
	if err != nil {
		return "", err
	}
	return c.Title, nil
}

// CoreProperties implements objectref.Adapter: the content attributes
// snapshotted into a new event's property set. post_type is included so
// display code can special-case menu entries after the row is deleted.
func (a *ContentAdapter) CoreProperties(ctx context.Context, key any) ([]objectref.CoreProperty, error) {
	c, err := a.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return []objectref.CoreProperty{
		{Key: "title", SourceTable: "contents", Value: c.Title},
		{Key: "slug", SourceTable: "contents", Value: c.Slug},
		{Key: "status", SourceTable: "contents", Value: c.Status},
		{Key: "post_type", SourceTable: "contents", Value: c.ContentType},
	}, nil
}

// Tag implements objectref.Adapter.
func (a *ContentAdapter) Tag(ctx context.Context, key any, fallback string) string {
	c, err := a.load(ctx, key)
	if err != nil {
		return html.EscapeString(fallback)
	}
	title := c.Title
	if title == "" {
		title = fallback
	}
	return fmt.Sprintf(`<a href="/contents/%s">%s</a>`, c.Slug, html.EscapeString(title))
}

// keyInt64 converts an object key (int64, int, or numeric string) to the
// surrogate key the host tables use.
func keyInt64(key any) (int64, error) {
	switch k := key.(type) {
	case int64:
		return k, nil
	case int:
		return int64(k), nil
	case string:
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("object key %q is not numeric", k)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("unsupported object key type %T", key)
	}
}
