package memory

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"
	"github.com/lazypower/vigil/internal/store"
)

// Events is the short-term behavioral event tier. Records are embedded on
// insert and retrieved either by similarity (relevance) or through the
// (user, timestamp) range index — never by probing the similarity index
// with generic queries.
type Events struct {
	db       *store.DB
	embedder Embedder
}

// NewEvents creates the event memory over the given store.
func NewEvents(db *store.DB, embedder Embedder) *Events {
	return &Events{db: db, embedder: embedder}
}

// SetEmbedder swaps the embedding provider.
func (e *Events) SetEmbedder(emb Embedder) {
	e.embedder = emb
}

// Record embeds the content and appends an event. An embedding failure is
// transient: the event is still stored, reachable via the time index, and
// the failure is logged rather than returned.
func (e *Events) Record(ctx context.Context, userID, content, category string, metadata map[string]string) (*store.Event, error) {
	ev := &store.Event{
		ID:       uuid.NewString(),
		UserID:   userID,
		Category: category,
		Content:  content,
		Metadata: metadata,
	}

	if e.embedder != nil {
		vec, err := e.embedder.Embed(ctx, content)
		if err != nil {
			log.Printf("events: embed failed, storing without vector: %v", err)
		} else {
			ev.Embedding = vec
			ev.Model = e.embedder.Model()
		}
	}

	if err := e.db.InsertEvent(ev); err != nil {
		return nil, fmt.Errorf("record event: %w", err)
	}
	return ev, nil
}

// Result is a single similarity search hit.
type Result struct {
	Event      store.Event
	Similarity float64
}

// Search returns the k most similar live events for a user, best first.
// Events at or before the user's consolidation epoch are excluded: they
// have been folded into the history archive.
func (e *Events) Search(ctx context.Context, userID, query string, k int) ([]Result, error) {
	if e.embedder == nil {
		return nil, fmt.Errorf("no embedder configured")
	}
	if k <= 0 {
		k = 5
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	events, err := e.Live(userID)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, ev := range events {
		if len(ev.Embedding) == 0 {
			continue
		}
		sim := CosineSimilarity(queryVec, ev.Embedding)
		if sim > 0 {
			results = append(results, Result{Event: ev, Similarity: sim})
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

// Live returns all of a user's events after the consolidation epoch,
// oldest first.
func (e *Events) Live(userID string) ([]store.Event, error) {
	epoch, err := e.db.ConsolidationEpoch(userID)
	if err != nil {
		return nil, err
	}
	return e.db.EventsSince(userID, epoch)
}

// CountLive returns the number of unconsolidated events for a user.
func (e *Events) CountLive(userID string) (int, error) {
	epoch, err := e.db.ConsolidationEpoch(userID)
	if err != nil {
		return 0, err
	}
	return e.db.CountEventsSince(userID, epoch)
}
