package database

import (
	"context"
	"io/fs"
	"testing"
	"testing/fstest"
)

func useMigrations(t *testing.T, fsys fs.FS) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = origFS, origDir
	})
	MigrationsFS = fsys
	MigrationsDir = "."
}

var testMigrations = fstest.MapFS{
	"20260301_120000_widgets.up.sql":   {Data: []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY);")},
	"20260301_120000_widgets.down.sql": {Data: []byte("DROP TABLE widgets;")},
	"20260302_090000_gadgets.up.sql":   {Data: []byte("CREATE TABLE gadgets (id INTEGER PRIMARY KEY);")},
	"README.md":                        {Data: []byte("not a migration")},
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&n)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return n == 1
}

func TestMigrate(t *testing.T) {
	useMigrations(t, testMigrations)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "widgets") || !tableExists(t, db, "gadgets") {
		t.Fatal("migrations did not create tables")
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied=%d pending=%d, want 2/0", len(applied), len(pending))
	}
	if applied[0].Version != "20260301_120000" {
		t.Errorf("first applied = %q", applied[0].Version)
	}

	// Re-running is a no-op.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	fsys := fstest.MapFS{
		"20260301_120000_widgets.up.sql":   testMigrations["20260301_120000_widgets.up.sql"],
		"20260301_120000_widgets.down.sql": testMigrations["20260301_120000_widgets.down.sql"],
	}
	useMigrations(t, fsys)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "widgets") {
		t.Error("widgets still exists after MigrateDown")
	}

	_, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending = %d, want 1", len(pending))
	}

	// Nothing left to roll back.
	if err := db.MigrateDown(ctx); err != nil {
		t.Errorf("MigrateDown() on empty history error = %v", err)
	}
}

func TestMigrateDown_NoDownSQL(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20260302_090000_gadgets.up.sql": testMigrations["20260302_090000_gadgets.up.sql"],
	})
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err == nil {
		t.Error("MigrateDown() without down SQL succeeded")
	}
}

func TestMigrate_FailureStopsAtBrokenMigration(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20260301_120000_ok.up.sql":     {Data: []byte("CREATE TABLE ok (id INTEGER);")},
		"20260301_130000_broken.up.sql": {Data: []byte("CREATE TABLE;")},
		"20260301_140000_later.up.sql":  {Data: []byte("CREATE TABLE later (id INTEGER);")},
	})
	db := openTestDB(t)

	if err := db.Migrate(context.Background()); err == nil {
		t.Fatal("Migrate() with broken SQL succeeded")
	}
	if !tableExists(t, db, "ok") {
		t.Error("migration before the broken one should stay committed")
	}
	if tableExists(t, db, "later") {
		t.Error("migration after the broken one should not run")
	}
}

func TestMigrate_NoMigrations(t *testing.T) {
	useMigrations(t, nil)
	db := openTestDB(t)

	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("Migrate() with nil FS error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{"20260301_120000_launches.up.sql", "20260301_120000", true, true},
		{"20260301_120000_launches.down.sql", "20260301_120000", false, true},
		{"20260301_120000.up.sql", "20260301_120000", true, true},
		{"20260301_120000_launches.sql", "", false, false},
		{"README.md", "", false, false},
		{"nounderscore.up.sql", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.name)
			if ok != tt.wantOK || version != tt.wantVersion || isUp != tt.wantUp {
				t.Errorf("parseMigrationFilename(%q) = %q, %v, %v; want %q, %v, %v",
					tt.name, version, isUp, ok, tt.wantVersion, tt.wantUp, tt.wantOK)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	tests := map[string]string{
		"20260301_120000_launches.up.sql":     "launches",
		"20260301_120000_launch_index.up.sql": "launch_index",
		"20260301_120000.down.sql":            "20260301_120000",
	}
	for in, want := range tests {
		if got := extractMigrationName(in); got != want {
			t.Errorf("extractMigrationName(%q) = %q, want %q", in, got, want)
		}
	}
}
