package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Searcher supplies web context for terms the classifier cannot place.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

const duckduckgoAPI = "https://api.duckduckgo.com/"

// DuckDuckGo queries the DuckDuckGo Instant Answer API. No API key needed.
type DuckDuckGo struct {
	client *http.Client
}

// NewDuckDuckGo creates a web searcher with a short timeout.
func NewDuckDuckGo() *DuckDuckGo {
	return &DuckDuckGo{
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Search returns a short textual summary for the query.
func (d *DuckDuckGo) Search(ctx context.Context, query string) (string, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")

	req, err := http.NewRequestWithContext(ctx, "GET", duckduckgoAPI+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create search request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search api status %d", resp.StatusCode)
	}

	var result struct {
		AbstractText  string `json:"AbstractText"`
		Heading       string `json:"Heading"`
		RelatedTopics []struct {
			Text string `json:"Text"`
		} `json:"RelatedTopics"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}

	var lines []string
	if result.AbstractText != "" {
		lines = append(lines, fmt.Sprintf("- %s: %s", result.Heading, result.AbstractText))
	}
	for i, topic := range result.RelatedTopics {
		if i >= 3 || topic.Text == "" {
			break
		}
		lines = append(lines, "- "+topic.Text)
	}
	if len(lines) == 0 {
		return "No search results found.", nil
	}
	return fmt.Sprintf("Web Search Context (%s):\n%s", query, strings.Join(lines, "\n")), nil
}
