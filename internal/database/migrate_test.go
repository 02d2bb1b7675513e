// Package database provides connection setup for MariaDB and Redis.
// This file validates migration SQL files to catch schema mismatches early.
package database

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"testing"
)

// queriedTables lists every table the repositories issue SQL against. If a
// repository gains a new table, add it here and to a migration; the test
// below keeps the two in sync.
var queriedTables = []string{
	"activity_events",
	"activity_properties",
	"activity_metas",
	"scribe_settings",
	"users",
	"contents",
}

// migrationsDir returns the absolute path to db/migrations/ from the project root.
func migrationsDir(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine test file path")
	}
	// thisFile is internal/database/migrate_test.go, project root is two dirs up.
	projectRoot := filepath.Join(filepath.Dir(thisFile), "..", "..")
	dir := filepath.Join(projectRoot, "db", "migrations")
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("migrations directory not found at %s: %v", dir, err)
	}
	return dir
}

// readAllMigrations concatenates the content of all .up.sql files.
func readAllMigrations(t *testing.T, dir string) string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		t.Fatalf("globbing migration files: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no migration files found")
	}

	var sb strings.Builder
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("reading %s: %v", f, err)
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// TestMigrations_TablesCreated ensures every table the repositories query
// is created by some migration. Catches the "Table 'x' doesn't exist"
// crash before it happens at runtime.
func TestMigrations_TablesCreated(t *testing.T) {
	content := readAllMigrations(t, migrationsDir(t))

	for _, table := range queriedTables {
		pattern := regexp.MustCompile(`(?i)CREATE\s+TABLE\s+(IF\s+NOT\s+EXISTS\s+)?` + table + `\b`)
		if !pattern.MatchString(content) {
			t.Errorf("no migration creates table %q", table)
		}
	}
}

// TestMigrations_ValueColumnsNullable ensures old_value and new_value on
// activity_properties allow NULL. The repository stores SQL NULL for
// properties whose new value is unchanged, so a NOT NULL column here would
// break every snapshot-only event.
func TestMigrations_ValueColumnsNullable(t *testing.T) {
	content := readAllMigrations(t, migrationsDir(t))

	for _, col := range []string{"old_value", "new_value"} {
		pattern := regexp.MustCompile(`(?i)` + col + `\s+TEXT\s+NOT\s+NULL`)
		if pattern.MatchString(content) {
			t.Errorf("column %q must be nullable", col)
		}
	}
}

// TestMigrations_SubjectColumnsEmptyDefault ensures the subject columns on
// activity_events are NOT NULL with an empty-string default. The repository
// writes "" (never NULL) for subject-less events, so a NOT NULL column
// without the default, or a nullable column, would break that convention.
func TestMigrations_SubjectColumnsEmptyDefault(t *testing.T) {
	content := readAllMigrations(t, migrationsDir(t))

	for _, col := range []string{"object_type", "object_key", "object_name"} {
		pattern := regexp.MustCompile(`(?i)` + col + `\s+VARCHAR\(\d+\)\s+NOT\s+NULL\s+DEFAULT\s+''`)
		if !pattern.MatchString(content) {
			t.Errorf("column %q must be declared NOT NULL DEFAULT ''", col)
		}
	}
}

// TestMigrations_UpDownPairs ensures every .up.sql has a matching .down.sql.
func TestMigrations_UpDownPairs(t *testing.T) {
	dir := migrationsDir(t)
	upFiles, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		t.Fatalf("globbing up files: %v", err)
	}

	for _, up := range upFiles {
		down := strings.Replace(up, ".up.sql", ".down.sql", 1)
		if _, err := os.Stat(down); err != nil {
			t.Errorf("missing down migration for %s", filepath.Base(up))
		}
	}
}

// TestMigrations_SequentialVersions ensures migration version numbers start
// at 1 and have no gaps. golang-migrate tolerates gaps but they usually
// mean a mis-numbered file.
func TestMigrations_SequentialVersions(t *testing.T) {
	dir := migrationsDir(t)
	upFiles, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		t.Fatalf("globbing up files: %v", err)
	}

	seen := map[int]bool{}
	max := 0
	for _, f := range upFiles {
		base := filepath.Base(f)
		idx := strings.Index(base, "_")
		if idx < 1 {
			t.Errorf("migration %s has no numeric version prefix", base)
			continue
		}
		version, err := strconv.Atoi(base[:idx])
		if err != nil {
			t.Errorf("migration %s has non-numeric version prefix", base)
			continue
		}
		if seen[version] {
			t.Errorf("duplicate migration version %d", version)
		}
		seen[version] = true
		if version > max {
			max = version
		}
	}

	for v := 1; v <= max; v++ {
		if !seen[v] {
			t.Errorf("missing migration version %d", v)
		}
	}
}
