package activity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/scribeworks/scribe/internal/apperror"
	"github.com/scribeworks/scribe/internal/codec"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx, so the row-level helpers
// can run standalone or inside the event save transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PropertyRepository maps Property rows in activity_properties. Property
// rows are owned by their event; the event repository reconciles them as
// part of the event save, but the standalone contract exists for tooling
// and direct lookups.
type PropertyRepository interface {
	// Load returns the property row by id, or NotFound.
	Load(ctx context.Context, id int64) (*Property, error)

	// ListByEvent returns all properties of an event in row-id order.
	ListByEvent(ctx context.Context, eventID int64) ([]*Property, error)

	// Save inserts the property (populating its ID on success) when it has
	// no id, otherwise updates the existing row. The entity's ID field is
	// never touched on failure.
	Save(ctx context.Context, eventID int64, p *Property) error

	// Delete removes a property row by id.
	Delete(ctx context.Context, id int64) error

	// Truncate clears the table.
	Truncate(ctx context.Context) error
}

// EventmetaRepository maps Eventmeta rows in activity_metas, mirroring the
// PropertyRepository contract.
type EventmetaRepository interface {
	Load(ctx context.Context, id int64) (*Eventmeta, error)
	ListByEvent(ctx context.Context, eventID int64) ([]*Eventmeta, error)
	Save(ctx context.Context, eventID int64, m *Eventmeta) error
	Delete(ctx context.Context, id int64) error
	Truncate(ctx context.Context) error
}

// propertyRepository implements PropertyRepository with MariaDB queries.
type propertyRepository struct {
	db    *sql.DB
	local *time.Location
}

// NewPropertyRepository creates a property repository backed by the given
// DB pool. local is the site timezone used when coercing legacy values.
func NewPropertyRepository(db *sql.DB, local *time.Location) PropertyRepository {
	return &propertyRepository{db: db, local: local}
}

func (r *propertyRepository) Load(ctx context.Context, id int64) (*Property, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, prop_key, source_table, old_value, new_value
		 FROM activity_properties WHERE id = ?`, id)

	p, err := scanProperty(row, r.local)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound(fmt.Sprintf("property %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("loading property %d: %w", id, err)
	}
	return p, nil
}

func (r *propertyRepository) ListByEvent(ctx context.Context, eventID int64) ([]*Property, error) {
	return queryListProperties(ctx, r.db, eventID, r.local)
}

func (r *propertyRepository) Save(ctx context.Context, eventID int64, p *Property) error {
	if p == nil {
		return apperror.NewValidation("property is required")
	}
	if p.Key == "" {
		return apperror.NewValidation("property key is required")
	}
	if p.ID == 0 {
		id, err := queryInsertProperty(ctx, r.db, eventID, p)
		if err != nil {
			return err
		}
		p.ID = id
		return nil
	}
	return queryUpdateProperty(ctx, r.db, p.ID, p)
}

func (r *propertyRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM activity_properties WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting property %d: %w", id, err)
	}
	return nil
}

func (r *propertyRepository) Truncate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `TRUNCATE TABLE activity_properties`); err != nil {
		return fmt.Errorf("truncating activity_properties: %w", err)
	}
	return nil
}

// eventmetaRepository implements EventmetaRepository with MariaDB queries.
type eventmetaRepository struct {
	db    *sql.DB
	local *time.Location
}

// NewEventmetaRepository creates an eventmeta repository backed by the given
// DB pool.
func NewEventmetaRepository(db *sql.DB, local *time.Location) EventmetaRepository {
	return &eventmetaRepository{db: db, local: local}
}

func (r *eventmetaRepository) Load(ctx context.Context, id int64) (*Eventmeta, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, meta_key, meta_value FROM activity_metas WHERE id = ?`, id)

	m, err := scanEventmeta(row, r.local)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound(fmt.Sprintf("eventmeta %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("loading eventmeta %d: %w", id, err)
	}
	return m, nil
}

func (r *eventmetaRepository) ListByEvent(ctx context.Context, eventID int64) ([]*Eventmeta, error) {
	return queryListEventmetas(ctx, r.db, eventID, r.local)
}

func (r *eventmetaRepository) Save(ctx context.Context, eventID int64, m *Eventmeta) error {
	if m == nil {
		return apperror.NewValidation("eventmeta is required")
	}
	if m.Key == "" {
		return apperror.NewValidation("eventmeta key is required")
	}
	if m.ID == 0 {
		id, err := queryInsertEventmeta(ctx, r.db, eventID, m)
		if err != nil {
			return err
		}
		m.ID = id
		return nil
	}
	return queryUpdateEventmeta(ctx, r.db, m.ID, m)
}

func (r *eventmetaRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM activity_metas WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting eventmeta %d: %w", id, err)
	}
	return nil
}

func (r *eventmetaRepository) Truncate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `TRUNCATE TABLE activity_metas`); err != nil {
		return fmt.Errorf("truncating activity_metas: %w", err)
	}
	return nil
}

// --- Row-level helpers shared with the event save transaction ---

func queryListProperties(ctx context.Context, q dbtx, eventID int64, local *time.Location) ([]*Property, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, prop_key, source_table, old_value, new_value
		 FROM activity_properties WHERE event_id = ? ORDER BY id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing properties for event %d: %w", eventID, err)
	}
	defer rows.Close()

	var props []*Property
	for rows.Next() {
		p, err := scanProperty(rows, local)
		if err != nil {
			return nil, fmt.Errorf("scanning property row: %w", err)
		}
		props = append(props, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating property rows: %w", err)
	}
	return props, nil
}

func queryInsertProperty(ctx context.Context, q dbtx, eventID int64, p *Property) (int64, error) {
	oldVal, newVal, err := encodePropertyValues(p)
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO activity_properties (event_id, prop_key, source_table, old_value, new_value)
		 VALUES (?, ?, ?, ?, ?)`,
		eventID, p.Key, p.SourceTable, oldVal, newVal)
	if err != nil {
		return 0, fmt.Errorf("inserting property %q: %w", p.Key, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting property id: %w", err)
	}
	return id, nil
}

func queryUpdateProperty(ctx context.Context, q dbtx, id int64, p *Property) error {
	oldVal, newVal, err := encodePropertyValues(p)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx,
		`UPDATE activity_properties SET source_table = ?, old_value = ?, new_value = ? WHERE id = ?`,
		p.SourceTable, oldVal, newVal, id); err != nil {
		return fmt.Errorf("updating property %q: %w", p.Key, err)
	}
	return nil
}

func queryListEventmetas(ctx context.Context, q dbtx, eventID int64, local *time.Location) ([]*Eventmeta, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, meta_key, meta_value FROM activity_metas WHERE event_id = ? ORDER BY id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing eventmetas for event %d: %w", eventID, err)
	}
	defer rows.Close()

	var metas []*Eventmeta
	for rows.Next() {
		m, err := scanEventmeta(rows, local)
		if err != nil {
			return nil, fmt.Errorf("scanning eventmeta row: %w", err)
		}
		metas = append(metas, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating eventmeta rows: %w", err)
	}
	return metas, nil
}

func queryInsertEventmeta(ctx context.Context, q dbtx, eventID int64, m *Eventmeta) (int64, error) {
	val, err := codec.EncodeNullable(m.Value)
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO activity_metas (event_id, meta_key, meta_value) VALUES (?, ?, ?)`,
		eventID, m.Key, val)
	if err != nil {
		return 0, fmt.Errorf("inserting eventmeta %q: %w", m.Key, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting eventmeta id: %w", err)
	}
	return id, nil
}

func queryUpdateEventmeta(ctx context.Context, q dbtx, id int64, m *Eventmeta) error {
	val, err := codec.EncodeNullable(m.Value)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx,
		`UPDATE activity_metas SET meta_value = ? WHERE id = ?`, val, id); err != nil {
		return fmt.Errorf("updating eventmeta %q: %w", m.Key, err)
	}
	return nil
}

// encodePropertyValues renders the old/new value columns. Old value: nil
// becomes a database NULL. New value: "unchanged" becomes NULL while
// "changed to null" becomes the codec null envelope, keeping the tri-state
// unambiguous in storage.
func encodePropertyValues(p *Property) (oldVal, newVal sql.NullString, err error) {
	oldVal, err = codec.EncodeNullable(p.Value)
	if err != nil {
		return oldVal, newVal, fmt.Errorf("encoding property %q value: %w", p.Key, err)
	}
	if p.NewValueSet {
		s, err := codec.Encode(p.NewValue)
		if err != nil {
			return oldVal, newVal, fmt.Errorf("encoding property %q new value: %w", p.Key, err)
		}
		newVal = sql.NullString{String: s, Valid: true}
	}
	return oldVal, newVal, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row rowScanner, local *time.Location) (*Property, error) {
	var (
		p              Property
		source         sql.NullString
		oldVal, newVal sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Key, &source, &oldVal, &newVal); err != nil {
		return nil, err
	}
	p.SourceTable = source.String
	p.Value = decodeStoredValue(p.Key, oldVal, local)
	if newVal.Valid {
		p.NewValueSet = true
		p.NewValue = decodeStoredValue(p.Key, newVal, local)
	}
	return &p, nil
}

func scanEventmeta(row rowScanner, local *time.Location) (*Eventmeta, error) {
	var (
		m   Eventmeta
		val sql.NullString
	)
	if err := row.Scan(&m.ID, &m.Key, &val); err != nil {
		return nil, err
	}
	m.Value = decodeStoredValue(m.Key, val, local)
	return &m, nil
}

// decodeStoredValue turns a value column back into a typed value: NULL stays
// nil, codec output is decoded, legacy plain text is shape-coerced. A
// corrupt encoded value is kept as its raw string and logged -- read paths
// degrade, they do not fail.
func decodeStoredValue(key string, ns sql.NullString, local *time.Location) any {
	if !ns.Valid {
		return nil
	}
	v, err := codec.Coerce(key, ns.String, local)
	if err != nil {
		slog.Warn("corrupt stored value",
			slog.String("key", key),
			slog.Any("error", err),
		)
	}
	return v
}
