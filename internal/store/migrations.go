package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "trust_scores: bounded per-user trust counter",
		SQL: `
CREATE TABLE trust_scores (
    user_id    TEXT PRIMARY KEY,
    score      INTEGER NOT NULL DEFAULT 50 CHECK (score >= 0 AND score <= 100),
    updated_at INTEGER NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "events: short-term behavioral event records",
		SQL: `
CREATE TABLE events (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    category   TEXT NOT NULL CHECK (category IN ('STUDY', 'PLAY', 'VIOLATION', 'ACHIEVEMENT', 'QUIZ', 'SYSTEM')),
    content    TEXT NOT NULL,
    embedding  BLOB,
    model      TEXT,
    metadata   TEXT,
    created_at INTEGER NOT NULL
);

CREATE INDEX idx_events_user_time ON events(user_id, created_at);
CREATE INDEX idx_events_category  ON events(category);
`,
	},
	{
		Version:     3,
		Description: "daily_summaries: permanent consolidated history",
		SQL: `
CREATE TABLE daily_summaries (
    id             INTEGER PRIMARY KEY,
    user_id        TEXT NOT NULL,
    date           TEXT NOT NULL,
    summary        TEXT NOT NULL,
    trust_snapshot INTEGER NOT NULL,
    embedding      BLOB,
    model          TEXT,
    created_at     INTEGER NOT NULL
);

CREATE INDEX idx_summaries_user ON daily_summaries(user_id, created_at DESC);
`,
	},
	{
		Version:     4,
		Description: "consolidation_epochs: logical reset markers per user",
		SQL: `
CREATE TABLE consolidation_epochs (
    user_id    TEXT PRIMARY KEY,
    epoch_ms   INTEGER NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
