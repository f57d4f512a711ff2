package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Event categories. The CHECK constraint on the events table mirrors this set.
const (
	CategoryStudy       = "STUDY"
	CategoryPlay        = "PLAY"
	CategoryViolation   = "VIOLATION"
	CategoryAchievement = "ACHIEVEMENT"
	CategoryQuiz        = "QUIZ"
	CategorySystem      = "SYSTEM"
)

// Event is a single behavioral event record.
type Event struct {
	ID        string
	UserID    string
	Category  string
	Content   string
	Embedding []float64
	Model     string
	Metadata  map[string]string
	CreatedAt int64
}

// encodeEmbedding converts a []float64 to a binary BLOB (8 bytes per float64).
func encodeEmbedding(vec []float64) []byte {
	buf := make([]byte, len(vec)*8)
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeEmbedding converts a binary BLOB back to []float64.
func decodeEmbedding(buf []byte) []float64 {
	n := len(buf) / 8
	vec := make([]float64, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vec
}

func (e *Event) normalize() {
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}
}

// InsertEvent stores a single event row. The embedding may be nil when the
// embedder was unavailable; such records stay reachable through the time index.
func (db *DB) InsertEvent(ev *Event) error {
	ev.normalize()

	var meta []byte
	if len(ev.Metadata) > 0 {
		var err error
		meta, err = json.Marshal(ev.Metadata)
		if err != nil {
			return fmt.Errorf("marshal event metadata: %w", err)
		}
	}

	var blob []byte
	if len(ev.Embedding) > 0 {
		blob = encodeEmbedding(ev.Embedding)
	}

	_, err := db.Exec(`
		INSERT INTO events (id, user_id, category, content, embedding, model, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.UserID, ev.Category, ev.Content, blob, ev.Model, nullable(meta), ev.CreatedAt)
	if err != nil {
		return storeErr("insert event", err)
	}
	return nil
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// EventsSince returns all events for a user with created_at strictly after
// sinceMs, oldest first. This is the time-range index used by consolidation
// and by date-scoped retrieval; similarity search never stands in for it.
func (db *DB) EventsSince(userID string, sinceMs int64) ([]Event, error) {
	rows, err := db.Query(`
		SELECT id, user_id, category, content, embedding, model, metadata, created_at
		FROM events WHERE user_id = ? AND created_at > ?
		ORDER BY created_at
	`, userID, sinceMs)
	if err != nil {
		return nil, storeErr("events since", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EventsInRange returns events for a user in (fromMs, toMs], oldest first.
func (db *DB) EventsInRange(userID string, fromMs, toMs int64) ([]Event, error) {
	rows, err := db.Query(`
		SELECT id, user_id, category, content, embedding, model, metadata, created_at
		FROM events WHERE user_id = ? AND created_at > ? AND created_at <= ?
		ORDER BY created_at
	`, userID, fromMs, toMs)
	if err != nil {
		return nil, storeErr("events in range", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var ev Event
		var blob []byte
		var model sql.NullString
		var meta sql.NullString
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.Category, &ev.Content, &blob, &model, &meta, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if len(blob) > 0 {
			ev.Embedding = decodeEmbedding(blob)
		}
		ev.Model = model.String
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &ev.Metadata); err != nil {
				return nil, fmt.Errorf("decode event metadata: %w", err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountEventsSince returns the number of a user's events after sinceMs.
func (db *DB) CountEventsSince(userID string, sinceMs int64) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM events WHERE user_id = ? AND created_at > ?
	`, userID, sinceMs).Scan(&count)
	if err != nil {
		return 0, storeErr("count events", err)
	}
	return count, nil
}

// DeleteEventsThrough removes a user's events with created_at <= throughMs
// and returns the number of rows removed.
func (db *DB) DeleteEventsThrough(userID string, throughMs int64) (int, error) {
	res, err := db.Exec(`
		DELETE FROM events WHERE user_id = ? AND created_at <= ?
	`, userID, throughMs)
	if err != nil {
		return 0, storeErr("delete events", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete events rows affected: %w", err)
	}
	return int(n), nil
}

// EventContents returns up to limit recent event contents across all users,
// used to seed the fallback embedding vocabulary.
func (db *DB) EventContents(limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := db.Query(`
		SELECT content FROM events ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, storeErr("event contents", err)
	}
	defer rows.Close()

	var contents []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("event contents scan: %w", err)
		}
		contents = append(contents, c)
	}
	return contents, rows.Err()
}

// UsersWithEvents lists the distinct users that have stored events.
func (db *DB) UsersWithEvents() ([]string, error) {
	rows, err := db.Query(`SELECT DISTINCT user_id FROM events ORDER BY user_id`)
	if err != nil {
		return nil, storeErr("list users", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list users scan: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// ConsolidationEpoch returns the logical reset marker for a user, in unix
// milliseconds. Events at or before the epoch are excluded from short-term
// retrieval. Zero means the user has never been consolidated.
func (db *DB) ConsolidationEpoch(userID string) (int64, error) {
	var epoch int64
	err := db.QueryRow(
		"SELECT epoch_ms FROM consolidation_epochs WHERE user_id = ?", userID,
	).Scan(&epoch)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, storeErr("get consolidation epoch", err)
	}
	return epoch, nil
}

// SetConsolidationEpoch advances the logical reset marker for a user.
func (db *DB) SetConsolidationEpoch(userID string, epochMs int64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO consolidation_epochs (user_id, epoch_ms, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET epoch_ms = ?, updated_at = ?
	`, userID, epochMs, now, epochMs, now)
	if err != nil {
		return storeErr("set consolidation epoch", err)
	}
	return nil
}
