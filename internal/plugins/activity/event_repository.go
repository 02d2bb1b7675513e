package activity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/scribeworks/scribe/internal/apperror"
)

// EventRepository maps Event aggregates to the three activity tables. Save
// is transactional: the event row and both child-row reconciliations either
// all land or none do.
type EventRepository interface {
	// Load returns the fully reconstituted event (including its property
	// and eventmeta sets) by id, or NotFound.
	Load(ctx context.Context, id int64) (*Event, error)

	// Save persists the aggregate. A zero-id event is inserted and gets its
	// id populated on success; a saved event is updated in place. Child
	// rows are diff-reconciled against the in-memory sets: rows whose key
	// is gone are deleted, present keys are updated by their stored row id
	// or inserted. Re-running Save on an unchanged aggregate converges to
	// the same row set. On failure the whole transaction rolls back and the
	// aggregate (ids included) is left untouched.
	Save(ctx context.Context, ev *Event) error

	// Delete removes the event and its child rows in one transaction.
	Delete(ctx context.Context, id int64) error

	// List returns a page of events matching the filter (event rows only,
	// child sets are not hydrated) plus the total match count.
	List(ctx context.Context, f Filter) ([]*Event, int, error)

	// FindRecent returns the newest fully hydrated event of a type by a
	// user since the given time, or nil when there is none. Used to extend
	// a still-running session event instead of logging a new one.
	FindRecent(ctx context.Context, userID int64, eventType string, since time.Time) (*Event, error)

	// PurgeBefore deletes all events (and their child rows) that happened
	// before the cutoff, returning the number of events removed.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Truncate clears all three tables.
	Truncate(ctx context.Context) error
}

// eventRepository implements EventRepository with MariaDB queries.
type eventRepository struct {
	db    *sql.DB
	local *time.Location
}

// NewEventRepository creates an event repository backed by the given DB
// pool. local is the site timezone used when coercing legacy values.
func NewEventRepository(db *sql.DB, local *time.Location) EventRepository {
	return &eventRepository{db: db, local: local}
}

const eventColumns = `id, happened_at, user_id, user_name, user_roles,
	ip, geo, user_agent, event_type, object_type, object_key, object_name`

func (r *eventRepository) Load(ctx context.Context, id int64) (*Event, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM activity_events WHERE id = ?`, id)

	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound(fmt.Sprintf("event %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("loading event %d: %w", id, err)
	}

	if err := r.hydrate(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// hydrate batch-loads the child rows of an event and attaches them as the
// two owned sets.
func (r *eventRepository) hydrate(ctx context.Context, ev *Event) error {
	props, err := queryListProperties(ctx, r.db, ev.ID, r.local)
	if err != nil {
		return err
	}
	ev.Properties = NewPropertySet()
	for _, p := range props {
		attached := ev.Properties.put(p.Key, p.SourceTable, p.Value, p.NewValue, p.NewValueSet)
		attached.ID = p.ID
	}

	metas, err := queryListEventmetas(ctx, r.db, ev.ID, r.local)
	if err != nil {
		return err
	}
	ev.Metas = NewEventmetaSet()
	for _, m := range metas {
		ev.Metas.Set(m.Key, m.Value).ID = m.ID
	}
	return nil
}

func (r *eventRepository) Save(ctx context.Context, ev *Event) error {
	if ev == nil {
		return apperror.NewValidation("event is required")
	}
	if ev.Type == "" {
		return apperror.NewValidation("event type is required")
	}
	if ev.Actor.Name == "" && ev.Actor.ID == 0 {
		return apperror.NewValidation("event actor is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning event save: %w", err)
	}

	eventID, propIDs, metaIDs, err := r.saveInTx(ctx, tx, ev)
	if err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing event save: %w", err)
	}

	// Ids are written back only after the commit so a failed save leaves
	// the aggregate exactly as it was.
	ev.ID = eventID
	for key, id := range propIDs {
		if p, ok := ev.Properties.Get(key); ok {
			p.ID = id
		}
	}
	for key, id := range metaIDs {
		if m, ok := ev.Metas.Get(key); ok {
			m.ID = id
		}
	}
	return nil
}

func (r *eventRepository) saveInTx(ctx context.Context, tx *sql.Tx, ev *Event) (int64, map[string]int64, map[string]int64, error) {
	eventID := ev.ID
	objectKey := encodeObjectKey(ev.Subject.Key)
	roles := strings.Join(ev.Actor.Roles, ",")

	if eventID == 0 {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO activity_events
			 (happened_at, user_id, user_name, user_roles, ip, geo, user_agent,
			  event_type, object_type, object_key, object_name)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.HappenedAt, ev.Actor.ID, ev.Actor.Name, roles,
			ev.Network.IP, ev.Network.Geo, ev.Network.UserAgent,
			ev.Type, ev.Subject.Type, objectKey, ev.Subject.Name)
		if err != nil {
			return 0, nil, nil, fmt.Errorf("inserting event: %w", err)
		}
		eventID, err = res.LastInsertId()
		if err != nil {
			return 0, nil, nil, fmt.Errorf("getting event id: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			`UPDATE activity_events SET happened_at = ?, user_id = ?, user_name = ?,
			 user_roles = ?, ip = ?, geo = ?, user_agent = ?, event_type = ?,
			 object_type = ?, object_key = ?, object_name = ? WHERE id = ?`,
			ev.HappenedAt, ev.Actor.ID, ev.Actor.Name, roles,
			ev.Network.IP, ev.Network.Geo, ev.Network.UserAgent,
			ev.Type, ev.Subject.Type, objectKey, ev.Subject.Name, eventID); err != nil {
			return 0, nil, nil, fmt.Errorf("updating event %d: %w", eventID, err)
		}
	}

	propIDs, err := reconcileProperties(ctx, tx, eventID, ev.Properties)
	if err != nil {
		return 0, nil, nil, err
	}
	metaIDs, err := reconcileEventmetas(ctx, tx, eventID, ev.Metas)
	if err != nil {
		return 0, nil, nil, err
	}
	return eventID, propIDs, metaIDs, nil
}

// reconcileProperties makes the stored property rows of an event match the
// in-memory set: stored keys no longer present are deleted, present keys are
// updated by the row id found in storage (not the id the in-memory object
// remembers -- another process may have created the row) and new keys are
// inserted. Returns the row id per key for write-back after commit.
func reconcileProperties(ctx context.Context, tx dbtx, eventID int64, set *PropertySet) (map[string]int64, error) {
	existing, err := storedKeys(ctx, tx,
		`SELECT id, prop_key FROM activity_properties WHERE event_id = ?`, eventID)
	if err != nil {
		return nil, fmt.Errorf("reading stored property keys: %w", err)
	}

	for key, id := range existing {
		if set.Has(key) {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM activity_properties WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("deleting stale property %q: %w", key, err)
		}
	}

	ids := make(map[string]int64, set.Len())
	for _, p := range set.All() {
		if id, ok := existing[p.Key]; ok {
			if err := queryUpdateProperty(ctx, tx, id, p); err != nil {
				return nil, err
			}
			ids[p.Key] = id
			continue
		}
		id, err := queryInsertProperty(ctx, tx, eventID, p)
		if err != nil {
			return nil, err
		}
		ids[p.Key] = id
	}
	return ids, nil
}

// reconcileEventmetas applies the same diff-based algorithm to the
// eventmeta rows.
func reconcileEventmetas(ctx context.Context, tx dbtx, eventID int64, set *EventmetaSet) (map[string]int64, error) {
	existing, err := storedKeys(ctx, tx,
		`SELECT id, meta_key FROM activity_metas WHERE event_id = ?`, eventID)
	if err != nil {
		return nil, fmt.Errorf("reading stored meta keys: %w", err)
	}

	for key, id := range existing {
		if set.Has(key) {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM activity_metas WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("deleting stale eventmeta %q: %w", key, err)
		}
	}

	ids := make(map[string]int64, set.Len())
	for _, m := range set.All() {
		if id, ok := existing[m.Key]; ok {
			if err := queryUpdateEventmeta(ctx, tx, id, m); err != nil {
				return nil, err
			}
			ids[m.Key] = id
			continue
		}
		id, err := queryInsertEventmeta(ctx, tx, eventID, m)
		if err != nil {
			return nil, err
		}
		ids[m.Key] = id
	}
	return ids, nil
}

// storedKeys reads the (row id, key) pairs currently persisted for an event.
func storedKeys(ctx context.Context, q dbtx, query string, eventID int64) (map[string]int64, error) {
	rows, err := q.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[string]int64)
	for rows.Next() {
		var (
			id  int64
			key string
		)
		if err := rows.Scan(&id, &key); err != nil {
			return nil, err
		}
		keys[key] = id
	}
	return keys, rows.Err()
}

func (r *eventRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning event delete: %w", err)
	}
	steps := []string{
		`DELETE FROM activity_properties WHERE event_id = ?`,
		`DELETE FROM activity_metas WHERE event_id = ?`,
		`DELETE FROM activity_events WHERE id = ?`,
	}
	for _, q := range steps {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			tx.Rollback()
			return fmt.Errorf("deleting event %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing event delete: %w", err)
	}
	return nil
}

func (r *eventRepository) List(ctx context.Context, f Filter) ([]*Event, int, error) {
	where, args := f.whereClause()

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activity_events WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting events: %w", err)
	}

	query := `SELECT ` + eventColumns + ` FROM activity_events WHERE ` + where +
		` ORDER BY ` + parseSortClause(f.Sort) + ` LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, f.limit(), f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning event row: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating event rows: %w", err)
	}
	return events, total, nil
}

func (r *eventRepository) FindRecent(ctx context.Context, userID int64, eventType string, since time.Time) (*Event, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM activity_events
		 WHERE user_id = ? AND event_type = ? AND happened_at >= ?
		 ORDER BY happened_at DESC LIMIT 1`,
		userID, eventType, since)

	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding recent %q event for user %d: %w", eventType, userID, err)
	}

	// Hydrated so a mutate-and-save round trip reconciles against the full
	// child sets instead of wiping them.
	if err := r.hydrate(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (r *eventRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning purge: %w", err)
	}

	childSteps := []string{
		`DELETE FROM activity_properties WHERE event_id IN
		 (SELECT id FROM activity_events WHERE happened_at < ?)`,
		`DELETE FROM activity_metas WHERE event_id IN
		 (SELECT id FROM activity_events WHERE happened_at < ?)`,
	}
	for _, q := range childSteps {
		if _, err := tx.ExecContext(ctx, q, cutoff); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("purging child rows: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM activity_events WHERE happened_at < ?`, cutoff)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("purging events: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("counting purged events: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing purge: %w", err)
	}
	return deleted, nil
}

func (r *eventRepository) Truncate(ctx context.Context) error {
	for _, table := range []string{"activity_properties", "activity_metas", "activity_events"} {
		if _, err := r.db.ExecContext(ctx, `TRUNCATE TABLE `+table); err != nil {
			return fmt.Errorf("truncating %s: %w", table, err)
		}
	}
	return nil
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		ev                       Event
		roles                    string
		ip, geo, userAgent       sql.NullString
		objType, objKey, objName sql.NullString
	)
	if err := row.Scan(&ev.ID, &ev.HappenedAt, &ev.Actor.ID, &ev.Actor.Name, &roles,
		&ip, &geo, &userAgent, &ev.Type, &objType, &objKey, &objName); err != nil {
		return nil, err
	}
	if roles != "" {
		ev.Actor.Roles = strings.Split(roles, ",")
	}
	ev.Network = Network{IP: ip.String, Geo: geo.String, UserAgent: userAgent.String}
	ev.Subject = Subject{Type: objType.String, Name: objName.String}
	if objKey.Valid {
		ev.Subject.Key = decodeObjectKey(objKey.String)
	}
	ev.Properties = NewPropertySet()
	ev.Metas = NewEventmetaSet()
	return &ev, nil
}

// encodeObjectKey stores the int|string|nil subject key in a single varchar
// column. A nil key becomes the empty string: the subject columns are NOT
// NULL with an empty default, so subject-less events insert cleanly under
// strict mode. decodeObjectKey maps "" back to nil.
func encodeObjectKey(key any) string {
	switch k := key.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(k, 10)
	case int:
		return strconv.Itoa(k)
	case string:
		return k
	default:
		return fmt.Sprintf("%v", k)
	}
}

// decodeObjectKey restores the typed subject key: digit-only keys come back
// as int64, everything else stays a string.
func decodeObjectKey(s string) any {
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	return s
}
