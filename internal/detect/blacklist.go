package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Source is the authoritative blacklist feed.
type Source interface {
	FetchBlacklist(ctx context.Context) ([]string, error)
}

// StaticSource serves a fixed list. Used when no remote feed is configured
// and in tests.
type StaticSource struct {
	Apps []string
}

func (s *StaticSource) FetchBlacklist(ctx context.Context) ([]string, error) {
	return s.Apps, nil
}

// DefaultBlacklist is the built-in server-side list, applied when no
// authoritative source is configured.
var DefaultBlacklist = []string{
	"Overwatch", "MapleStory", "Destiny", "Battle.net", "Steam",
	"League of Legends",
}

// HTTPSource polls a JSON array of app names from a URL.
type HTTPSource struct {
	URL    string
	client *http.Client
}

// NewHTTPSource creates a blacklist feed client.
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		URL:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (h *HTTPSource) FetchBlacklist(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", h.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create blacklist request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch blacklist: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read blacklist: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("blacklist status %d", resp.StatusCode)
	}

	var apps []string
	if err := json.Unmarshal(body, &apps); err != nil {
		return nil, fmt.Errorf("decode blacklist: %w", err)
	}
	return apps, nil
}

// Cache holds the merged blacklist (authoritative + runtime-learned) and the
// learned safe-list. It is read on every heartbeat, so reads take an RLock
// and the background refresh swaps the authoritative set in one write.
// Contents are in-process only and rebuilt on restart.
type Cache struct {
	mu            sync.RWMutex
	authoritative []string        // substring-matched, original casing kept for messages
	learned       map[string]bool // lowercased exact app names
	safe          map[string]bool // lowercased exact app names

	source Source
	ttl    time.Duration
	stopCh chan struct{}
}

// NewCache creates a cache over the given source. Call Refresh (or
// StartRefresh) to populate it.
func NewCache(source Source, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Cache{
		learned: make(map[string]bool),
		safe:    make(map[string]bool),
		source:  source,
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
}

// Refresh fetches the authoritative list and swaps it in. On failure the
// previous list stays in effect: the detector neither fails open nor closed
// on a flaky feed.
func (c *Cache) Refresh(ctx context.Context) error {
	apps, err := c.source.FetchBlacklist(ctx)
	if err != nil {
		return fmt.Errorf("blacklist refresh: %w", err)
	}

	c.mu.Lock()
	c.authoritative = apps
	c.mu.Unlock()
	return nil
}

// StartRefresh refreshes now and then on every TTL tick until Stop or ctx
// cancellation. Refresh runs off the heartbeat path: a slow fetch never
// delays detection.
func (c *Cache) StartRefresh(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		log.Printf("detect: initial %v", err)
	}

	go func() {
		ticker := time.NewTicker(c.ttl)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.Refresh(ctx); err != nil {
					log.Printf("detect: keeping stale cache: %v", err)
				}
			case <-c.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop shuts down the background refresh.
func (c *Cache) Stop() {
	close(c.stopCh)
}

// Match reports the first blacklist entry contained in the app name,
// checking the authoritative list then the learned one.
func (c *Cache) Match(app string) (string, bool) {
	lower := strings.ToLower(app)

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, bad := range c.authoritative {
		if strings.Contains(lower, strings.ToLower(bad)) {
			return bad, true
		}
	}
	if c.learned[lower] {
		return app, true
	}
	return "", false
}

// LearnBlacklist adds an app to the learned blacklist so future heartbeats
// hit the O(1) path without an AI call.
func (c *Cache) LearnBlacklist(app string) {
	c.mu.Lock()
	c.learned[strings.ToLower(app)] = true
	c.mu.Unlock()
}

// LearnSafe marks apps as cleared by a negative verdict.
func (c *Cache) LearnSafe(apps ...string) {
	c.mu.Lock()
	for _, app := range apps {
		c.safe[strings.ToLower(app)] = true
	}
	c.mu.Unlock()
}

// IsSafe reports whether the app has been cleared already.
func (c *Cache) IsSafe(app string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.safe[strings.ToLower(app)]
}
