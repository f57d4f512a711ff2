package store

import (
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenMemory(t *testing.T) {
	db := testDB(t)

	if db.Path != ":memory:" {
		t.Errorf("Path = %q, want :memory:", db.Path)
	}
}

func TestSchemaVersion(t *testing.T) {
	db := testDB(t)

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 4 {
		t.Errorf("SchemaVersion = %d, want 4", v)
	}
}

func TestTablesExist(t *testing.T) {
	db := testDB(t)

	tables := []string{"schema_versions", "trust_scores", "events", "daily_summaries", "consolidation_epochs"}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestEventCategoryConstraint(t *testing.T) {
	db := testDB(t)

	// Valid insert
	_, err := db.Exec(`
		INSERT INTO events (id, user_id, category, content, created_at)
		VALUES ('ev-1', 'dev1', 'STUDY', 'reading docs', 1000)
	`)
	if err != nil {
		t.Fatalf("valid insert failed: %v", err)
	}

	// Invalid category
	_, err = db.Exec(`
		INSERT INTO events (id, user_id, category, content, created_at)
		VALUES ('ev-2', 'dev1', 'NAPPING', 'zzz', 1000)
	`)
	if err == nil {
		t.Error("expected error for invalid category, got nil")
	}
}

func TestTrustScoreConstraint(t *testing.T) {
	db := testDB(t)

	_, err := db.Exec(`
		INSERT INTO trust_scores (user_id, score, updated_at)
		VALUES ('dev1', 101, 1000)
	`)
	if err == nil {
		t.Error("expected error for score > 100, got nil")
	}

	_, err = db.Exec(`
		INSERT INTO trust_scores (user_id, score, updated_at)
		VALUES ('dev1', -1, 1000)
	`)
	if err == nil {
		t.Error("expected error for score < 0, got nil")
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	db := testDB(t)

	// Running migrate again should be a no-op
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 4 {
		t.Errorf("SchemaVersion after re-migrate = %d, want 4", v)
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	db := testDB(t)

	var fk int
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	if err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}
