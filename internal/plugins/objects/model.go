// Package objects provides the built-in adapters between the activity log
// and the host platform's entity tables. Each adapter implements
// objectref.Adapter for one type tag and is registered at startup; the host
// can register further adapters for its own types. The package also supplies
// the actor source that resolves the acting user from the forwarded identity
// header.
package objects

// User mirrors the host users table rows the adapters work with.
type User struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
}

// ObjectType implements objectref.Entity.
func (u *User) ObjectType() string { return TypeUser }

// ObjectKey implements objectref.Entity.
func (u *User) ObjectKey() any { return u.ID }

// ObjectName implements objectref.Entity.
func (u *User) ObjectName() string { return u.DisplayName }

// Content mirrors the host contents table: posts, pages, and menu entries.
type Content struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Status      string `json:"status"`
	ContentType string `json:"content_type"`
	AuthorID    int64  `json:"author_id"`
}

// ObjectType implements objectref.Entity.
func (c *Content) ObjectType() string { return TypeContent }

// ObjectKey implements objectref.Entity.
func (c *Content) ObjectKey() any { return c.ID }

// ObjectName implements objectref.Entity.
func (c *Content) ObjectName() string { return c.Title }

// ObjectSubtype exposes the content subtype for display special-casing
// (menu entries are stored as content rows).
func (c *Content) ObjectSubtype() string { return c.ContentType }

// Type tags for the built-in adapters.
const (
	TypeUser    = "user"
	TypeContent = "content"
)
