package store

import (
	"database/sql"
	"time"
)

// DefaultTrustScore is the score assigned to a user on first contact.
const DefaultTrustScore = 50

// Trust tiers consumed by downstream behavior selection.
const (
	TierHigh = "HIGH"
	TierMid  = "MID"
	TierLow  = "LOW"
)

// TrustTier buckets a score into HIGH (>=70), MID (40-69), or LOW (<40).
func TrustTier(score int) string {
	switch {
	case score >= 70:
		return TierHigh
	case score >= 40:
		return TierMid
	default:
		return TierLow
	}
}

// GetTrustScore returns the user's trust score, or DefaultTrustScore if the
// user has never been seen. Absent users are not inserted on read.
func (db *DB) GetTrustScore(userID string) (int, error) {
	var score int
	err := db.QueryRow(
		"SELECT score FROM trust_scores WHERE user_id = ?", userID,
	).Scan(&score)
	if err == sql.ErrNoRows {
		return DefaultTrustScore, nil
	}
	if err != nil {
		return 0, storeErr("get trust score", err)
	}
	return score, nil
}

// ApplyTrustDelta atomically adds delta to the user's score and clamps the
// result to [0,100], returning the new score. The clamp happens inside a
// single upsert statement: concurrent appliers for the same user serialize
// in SQLite rather than racing through a read-then-write in Go. A get/modify/
// set sequence here would lose updates under load, so this must stay a
// single statement.
func (db *DB) ApplyTrustDelta(userID string, delta int) (int, error) {
	now := time.Now().UnixMilli()

	var score int
	err := db.QueryRow(`
		INSERT INTO trust_scores (user_id, score, updated_at)
		VALUES (?, MAX(0, MIN(100, ? + ?)), ?)
		ON CONFLICT(user_id) DO UPDATE SET
			score = MAX(0, MIN(100, score + ?)),
			updated_at = ?
		RETURNING score
	`, userID, DefaultTrustScore, delta, now, delta, now).Scan(&score)
	if err != nil {
		return 0, storeErr("apply trust delta", err)
	}
	return score, nil
}
