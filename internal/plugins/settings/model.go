// Package settings manages the runtime configuration of the activity log:
// which roles are tracked and how long events are retained. Values live in
// the scribe_settings key-value table so administrators can change them
// without a redeploy; environment config supplies the defaults.
package settings

import "time"

// Setting represents a single row in the scribe_settings key-value table.
// Values are stored as strings and parsed by the service layer.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Setting keys. The service layer owns parsing and defaults.
const (
	// KeyTrackedRoles holds the comma-separated role list whose actions
	// are logged.
	KeyTrackedRoles = "tracked_roles"

	// KeyRetentionMaxAge holds the retention window as a Go duration
	// string (e.g. "2160h" for 90 days). Empty or missing means the
	// configured default.
	KeyRetentionMaxAge = "retention_max_age"
)

// Overview is the JSON shape of the settings surface.
type Overview struct {
	TrackedRoles    []string `json:"tracked_roles"`
	RetentionMaxAge string   `json:"retention_max_age"`
}
