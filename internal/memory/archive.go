package memory

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/lazypower/vigil/internal/store"
)

// Archive is the permanent history tier: consolidated daily summaries,
// append-only, never pruned here.
type Archive struct {
	db       *store.DB
	embedder Embedder
}

// NewArchive creates the history archive over the given store.
func NewArchive(db *store.DB, embedder Embedder) *Archive {
	return &Archive{db: db, embedder: embedder}
}

// SetEmbedder swaps the embedding provider.
func (a *Archive) SetEmbedder(emb Embedder) {
	a.embedder = emb
}

// Append persists a daily summary, embedding it for later retrieval. As with
// events, a failed embedding degrades to a time-ordered record.
func (a *Archive) Append(ctx context.Context, s *store.DailySummary) error {
	if a.embedder != nil && len(s.Embedding) == 0 {
		vec, err := a.embedder.Embed(ctx, s.Summary)
		if err != nil {
			log.Printf("archive: embed failed, storing without vector: %v", err)
		} else {
			s.Embedding = vec
			s.Model = a.embedder.Model()
		}
	}
	return a.db.AppendSummary(s)
}

// ArchiveResult is a single similarity hit against the archive.
type ArchiveResult struct {
	Summary    store.DailySummary
	Similarity float64
}

// Search returns the k most similar summaries for a user, best first.
func (a *Archive) Search(ctx context.Context, userID, query string, k int) ([]ArchiveResult, error) {
	if a.embedder == nil {
		return nil, fmt.Errorf("no embedder configured")
	}
	if k <= 0 {
		k = 2
	}

	queryVec, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	summaries, err := a.db.AllSummaries(userID)
	if err != nil {
		return nil, err
	}

	var results []ArchiveResult
	for _, s := range summaries {
		if len(s.Embedding) == 0 {
			continue
		}
		sim := CosineSimilarity(queryVec, s.Embedding)
		if sim > 0 {
			results = append(results, ArchiveResult{Summary: s, Similarity: sim})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Recent returns a user's latest summaries, newest first.
func (a *Archive) Recent(userID string, limit int) ([]store.DailySummary, error) {
	return a.db.SummariesForUser(userID, limit)
}
