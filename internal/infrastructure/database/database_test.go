package database

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error: %v", err)
		}
	})
	return db
}

func TestOpenAndHealthCheck(t *testing.T) {
	db := openTestDB(t)

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error: %v", err)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	db, err := Open(Config{Path: path, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("Open() should create missing directories: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
}

func TestMigrateWithoutEmbeddedFS(t *testing.T) {
	db := openTestDB(t)

	// No migrations registered in this test binary's package init;
	// Migrate should still create the bookkeeping table and succeed.
	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("Migrate() error: %v", err)
	}

	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if err != nil {
		t.Fatalf("schema_migrations table missing: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 applied migrations, got %d", count)
	}
}

func TestSplitMigrationName(t *testing.T) {
	tests := []struct {
		base        string
		wantVersion string
		wantName    string
		wantOK      bool
	}{
		{"20260301_120000_initial_schema", "20260301_120000", "initial_schema", true},
		{"20260301_120000_add_index", "20260301_120000", "add_index", true},
		{"badname", "", "", false},
		{"2026_only", "", "", false},
	}

	for _, tt := range tests {
		version, name, ok := splitMigrationName(tt.base)
		if ok != tt.wantOK || version != tt.wantVersion || name != tt.wantName {
			t.Errorf("splitMigrationName(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.base, version, name, ok, tt.wantVersion, tt.wantName, tt.wantOK)
		}
	}
}
