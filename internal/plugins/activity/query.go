package activity

import (
	"strings"
	"time"
)

// defaultPerPage bounds list queries that don't specify a limit.
const defaultPerPage = 50

// maxPerPage caps the page size a caller can request.
const maxPerPage = 200

// Filter describes the event list query used by the admin surface: a date
// range, an object-type set, free-text search over the denormalized display
// columns, pagination, and a sortable column.
type Filter struct {
	// From/To bound happened_at inclusively. Zero values mean unbounded.
	From time.Time
	To   time.Time

	// ObjectTypes restricts to subjects of the given types.
	ObjectTypes []string

	// Search matches as a substring against user_name, event_type, and
	// object_name.
	Search string

	// Offset/Limit paginate the result. Limit is clamped to maxPerPage.
	Offset int
	Limit  int

	// Sort names the order column, optionally prefixed with "-" for
	// descending (e.g. "-happened_at"). Unknown columns fall back to the
	// default ordering.
	Sort string
}

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return defaultPerPage
	}
	if f.Limit > maxPerPage {
		return maxPerPage
	}
	return f.Limit
}

// whereClause builds the shared WHERE body for the count and page queries.
func (f Filter) whereClause() (string, []any) {
	conds := []string{"1=1"}
	var args []any

	if !f.From.IsZero() {
		conds = append(conds, "happened_at >= ?")
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		conds = append(conds, "happened_at <= ?")
		args = append(args, f.To)
	}
	if len(f.ObjectTypes) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.ObjectTypes)), ",")
		conds = append(conds, "object_type IN ("+placeholders+")")
		for _, t := range f.ObjectTypes {
			args = append(args, t)
		}
	}
	if f.Search != "" {
		conds = append(conds, "(user_name LIKE ? OR event_type LIKE ? OR object_name LIKE ?)")
		needle := "%" + f.Search + "%"
		args = append(args, needle, needle, needle)
	}

	return strings.Join(conds, " AND "), args
}

// sortColumns whitelists the ORDER BY columns so user input never reaches
// the query text.
var sortColumns = map[string]bool{
	"happened_at": true,
	"event_type":  true,
	"user_name":   true,
	"object_type": true,
}

// parseSortClause converts a "column" / "-column" sort spec into an ORDER BY
// body, defaulting to newest-first for empty or unknown specs.
func parseSortClause(sort string) string {
	desc := strings.HasPrefix(sort, "-")
	col := strings.TrimPrefix(sort, "-")
	if !sortColumns[col] {
		return "happened_at DESC"
	}
	if desc {
		return col + " DESC"
	}
	return col + " ASC"
}
