package consolidate

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lazypower/vigil/internal/llm"
	"github.com/lazypower/vigil/internal/memory"
	"github.com/lazypower/vigil/internal/store"
)

// ErrBusy is returned when a consolidation run for the same user is already
// in progress.
var ErrBusy = fmt.Errorf("consolidation already running")

// Consolidator drains a user's live events into a daily summary. Events are
// only retired after the summary has been durably written, so a failed run
// leaves them queryable for the next attempt.
type Consolidator struct {
	db      *store.DB
	llm     llm.Client
	buffer  *memory.Buffer
	events  *memory.Events
	archive *memory.Archive

	mu     sync.Mutex
	active map[string]bool
}

func New(db *store.DB, client llm.Client, buf *memory.Buffer, events *memory.Events, archive *memory.Archive) *Consolidator {
	return &Consolidator{
		db:      db,
		llm:     client,
		buffer:  buf,
		events:  events,
		archive: archive,
		active:  map[string]bool{},
	}
}

// Result describes a completed consolidation run.
type Result struct {
	UserID        string `json:"user_id"`
	EventCount    int    `json:"event_count"`
	Summary       string `json:"summary"`
	TrustSnapshot int    `json:"trust_snapshot"`
	Deleted       int    `json:"deleted"`
}

func (c *Consolidator) begin(userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active[userID] {
		return ErrBusy
	}
	c.active[userID] = true
	return nil
}

func (c *Consolidator) end(userID string) {
	c.mu.Lock()
	delete(c.active, userID)
	c.mu.Unlock()
}

// Run consolidates a single user's live events. An empty drain is a no-op
// that returns a Result with EventCount 0.
func (c *Consolidator) Run(ctx context.Context, userID string) (*Result, error) {
	if err := c.begin(userID); err != nil {
		return nil, err
	}
	defer c.end(userID)

	events, err := c.events.Live(userID)
	if err != nil {
		return nil, fmt.Errorf("consolidate %s: %w", userID, err)
	}
	if len(events) == 0 {
		return &Result{UserID: userID}, nil
	}

	summary, err := c.summarize(ctx, events)
	if err != nil {
		return nil, fmt.Errorf("consolidate %s: %w", userID, err)
	}

	trust, err := c.db.GetTrustScore(userID)
	if err != nil {
		return nil, fmt.Errorf("consolidate %s: %w", userID, err)
	}

	now := time.Now()
	entry := &store.DailySummary{
		UserID:        userID,
		Date:          now.Format("2006-01-02"),
		Summary:       summary,
		TrustSnapshot: trust,
	}
	if err := c.archive.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("consolidate %s: %w", userID, err)
	}

	// The summary is durable; retire the drained events. Advance the epoch
	// first so retrieval excludes them even if the physical delete fails.
	last := events[len(events)-1].CreatedAt
	if err := c.db.SetConsolidationEpoch(userID, last); err != nil {
		return nil, fmt.Errorf("consolidate %s: %w", userID, err)
	}
	deleted, err := c.db.DeleteEventsThrough(userID, last)
	if err != nil {
		log.Printf("consolidate: delete for %s failed, epoch advanced anyway: %v", userID, err)
	}
	c.buffer.Reset(userID)

	return &Result{
		UserID:        userID,
		EventCount:    len(events),
		Summary:       summary,
		TrustSnapshot: trust,
		Deleted:       deleted,
	}, nil
}

// RunAll consolidates every user with live events.
func (c *Consolidator) RunAll(ctx context.Context) error {
	users, err := c.db.UsersWithEvents()
	if err != nil {
		return err
	}
	var firstErr error
	for _, userID := range users {
		res, err := c.Run(ctx, userID)
		if err != nil {
			log.Printf("consolidate: %s failed: %v", userID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if res.EventCount > 0 {
			log.Printf("consolidate: %s drained %d events (trust %d)", userID, res.EventCount, res.TrustSnapshot)
		}
	}
	return firstErr
}

func (c *Consolidator) summarize(ctx context.Context, events []store.Event) (string, error) {
	var sb strings.Builder
	for _, ev := range events {
		ts := time.UnixMilli(ev.CreatedAt).Format("15:04")
		fmt.Fprintf(&sb, "[%s] %s: %s\n", ts, ev.Category, ev.Content)
	}

	resp, err := c.llm.Complete(ctx, llm.ConsolidationPrompt(sb.String()))
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", fmt.Errorf("summarize: empty completion")
	}
	return summary, nil
}
