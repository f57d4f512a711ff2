package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lazypower/vigil/internal/store"
)

// ContextBuilder assembles generation context from the three memory tiers.
// The tiers are queried concurrently under one combined deadline; whatever
// has not arrived when it expires is simply left out. A partial context
// beats a slow chat response.
type ContextBuilder struct {
	Buffer  *Buffer
	Events  *Events
	Archive *Archive
	Timeout time.Duration
}

// NewContextBuilder wires the three tiers with the given combined budget.
func NewContextBuilder(buf *Buffer, events *Events, archive *Archive, timeout time.Duration) *ContextBuilder {
	if timeout <= 0 {
		timeout = 700 * time.Millisecond
	}
	return &ContextBuilder{Buffer: buf, Events: events, Archive: archive, Timeout: timeout}
}

// Build returns a sectioned context string for the user and query. It never
// returns an error: every tier failure or timeout degrades to an absent
// section.
func (cb *ContextBuilder) Build(ctx context.Context, userID, query string) string {
	fetchCtx, cancel := context.WithTimeout(ctx, cb.Timeout)
	defer cancel()

	var mu sync.Mutex
	var conversation, recent, history string

	g, gctx := errgroup.WithContext(fetchCtx)

	g.Go(func() error {
		// In-process read: cannot meaningfully block.
		text := cb.Buffer.RecentText(userID, 0)
		mu.Lock()
		conversation = text
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		text := cb.eventLines(gctx, userID, query)
		mu.Lock()
		recent = text
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		text := cb.historyLines(gctx, userID, query)
		mu.Lock()
		history = text
		mu.Unlock()
		return nil
	})

	// Do not block past the combined budget: a tier that outlives the
	// deadline finishes in the background and its section is dropped.
	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-fetchCtx.Done():
		log.Printf("context: fetch deadline hit (%s), using partial context", cb.Timeout)
	}

	mu.Lock()
	defer mu.Unlock()

	var sb strings.Builder
	sb.WriteString("=== Memory Context ===\n")
	if conversation != "" {
		sb.WriteString("[Recent Conversation]\n")
		sb.WriteString(conversation)
	}
	if recent != "" {
		sb.WriteString("[Recent Short-Term Memories]\n")
		sb.WriteString(recent)
	}
	if history != "" {
		sb.WriteString("[Long-Term History]\n")
		sb.WriteString(history)
	}
	sb.WriteString("======================\n")
	return sb.String()
}

// eventLines prefers similarity retrieval but degrades to the newest live
// events when there is no query or no embedder. The time index keeps
// retrieval working even when the vector path is down.
func (cb *ContextBuilder) eventLines(ctx context.Context, userID, query string) string {
	var events []store.Event
	if query != "" {
		results, err := cb.Events.Search(ctx, userID, query, 3)
		if err == nil {
			for _, r := range results {
				events = append(events, r.Event)
			}
		} else {
			log.Printf("context: event search unavailable: %v", err)
		}
	}
	if len(events) == 0 {
		live, err := cb.Events.Live(userID)
		if err != nil {
			log.Printf("context: event fetch unavailable: %v", err)
			return ""
		}
		if len(live) > 3 {
			live = live[len(live)-3:]
		}
		events = live
	}

	var sb strings.Builder
	for _, ev := range events {
		ts := time.UnixMilli(ev.CreatedAt).Format("2006-01-02 15:04")
		fmt.Fprintf(&sb, "- [%s] %s\n", ts, ev.Content)
	}
	return sb.String()
}

func (cb *ContextBuilder) historyLines(ctx context.Context, userID, query string) string {
	var summaries []store.DailySummary
	if query != "" {
		results, err := cb.Archive.Search(ctx, userID, query, 2)
		if err == nil {
			for _, r := range results {
				summaries = append(summaries, r.Summary)
			}
		} else {
			log.Printf("context: archive search unavailable: %v", err)
		}
	}
	if len(summaries) == 0 {
		recent, err := cb.Archive.Recent(userID, 2)
		if err != nil {
			log.Printf("context: archive fetch unavailable: %v", err)
			return ""
		}
		summaries = recent
	}

	var sb strings.Builder
	for _, s := range summaries {
		fmt.Fprintf(&sb, "- [%s] %s\n", s.Date, s.Summary)
	}
	return sb.String()
}
