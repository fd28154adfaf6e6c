package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// SearXNG queries the JSON API of a SearXNG instance.
type SearXNG struct {
	baseURL string
	client  *http.Client
}

// Ensure SearXNG implements Searcher at compile time.
var _ Searcher = (*SearXNG)(nil)

// NewSearXNG creates a SearXNG searcher. A nil client uses
// http.DefaultClient.
func NewSearXNG(baseURL string, client *http.Client) *SearXNG {
	if client == nil {
		client = http.DefaultClient
	}
	return &SearXNG{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Search implements Searcher.
func (s *SearXNG) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("categories", "general")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search backend returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("search backend returned invalid JSON")
	}

	var results []Result
	if hits := gjson.GetBytes(body, "results"); hits.IsArray() {
		hits.ForEach(func(_, r gjson.Result) bool {
			if len(results) >= maxResults {
				return false
			}
			results = append(results, Result{
				Title:   stripHTML(r.Get("title").Str),
				URL:     r.Get("url").Str,
				Snippet: stripHTML(r.Get("content").Str),
			})
			return true
		})
	}
	return results, nil
}

func stripHTML(s string) string {
	return strings.TrimSpace(htmlTag.ReplaceAllString(s, ""))
}
