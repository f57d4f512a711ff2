package store

import (
	"database/sql"
	"fmt"
	"time"
)

// DailySummary is one consolidated record of a user's day. Rows are
// append-only: nothing in vigil updates or deletes them.
type DailySummary struct {
	ID            int64
	UserID        string
	Date          string // YYYY-MM-DD
	Summary       string
	TrustSnapshot int
	Embedding     []float64
	Model         string
	CreatedAt     int64
}

// AppendSummary persists a consolidated daily summary.
func (db *DB) AppendSummary(s *DailySummary) error {
	if s.CreatedAt == 0 {
		s.CreatedAt = time.Now().UnixMilli()
	}

	var blob []byte
	if len(s.Embedding) > 0 {
		blob = encodeEmbedding(s.Embedding)
	}

	res, err := db.Exec(`
		INSERT INTO daily_summaries (user_id, date, summary, trust_snapshot, embedding, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.UserID, s.Date, s.Summary, s.TrustSnapshot, nullable(blob), s.Model, s.CreatedAt)
	if err != nil {
		return storeErr("append summary", err)
	}
	s.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("append summary id: %w", err)
	}
	return nil
}

// SummariesForUser returns a user's summaries, newest first, up to limit.
func (db *DB) SummariesForUser(userID string, limit int) ([]DailySummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, user_id, date, summary, trust_snapshot, embedding, model, created_at
		FROM daily_summaries WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, storeErr("summaries for user", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// AllSummaries returns every summary for a user, oldest first. Used by the
// similarity search over archived history.
func (db *DB) AllSummaries(userID string) ([]DailySummary, error) {
	rows, err := db.Query(`
		SELECT id, user_id, date, summary, trust_snapshot, embedding, model, created_at
		FROM daily_summaries WHERE user_id = ?
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, storeErr("all summaries", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func scanSummaries(rows *sql.Rows) ([]DailySummary, error) {
	var summaries []DailySummary
	for rows.Next() {
		var s DailySummary
		var blob []byte
		var model sql.NullString
		if err := rows.Scan(&s.ID, &s.UserID, &s.Date, &s.Summary, &s.TrustSnapshot, &blob, &model, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if len(blob) > 0 {
			s.Embedding = decodeEmbedding(blob)
		}
		s.Model = model.String
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
