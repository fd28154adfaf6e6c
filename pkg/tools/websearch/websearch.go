// Package websearch provides a web_search tool backed by a SearXNG
// instance. Register adds it to a tool registry so models can look up
// current information during automatic function calling.
package websearch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rhuss/strom/pkg/tools/registry"
)

// ToolName is the name the tool is offered under.
const ToolName = "web_search"

// DefaultMaxResults bounds the results returned when no limit is set.
const DefaultMaxResults = 5

var queriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "strom_websearch_queries_total",
		Help: "Web search queries",
	},
	[]string{"status"},
)

var resultsReturned = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "strom_websearch_results_returned",
		Help:    "Web search results returned per query",
		Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
	},
)

func init() {
	prometheus.MustRegister(queriesTotal, resultsReturned)
}

// Result is a single search hit.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Searcher runs a query against a search backend.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Args are the tool arguments the model supplies.
type Args struct {
	Query string `json:"query" jsonschema:"the search query"`
}

// Register adds the web_search tool to r. maxResults <= 0 uses
// DefaultMaxResults.
func Register(r *registry.Registry, s Searcher, maxResults int) error {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return registry.RegisterTyped(r, ToolName, "Search the web for current information",
		func(ctx context.Context, in Args) (string, error) {
			query := strings.TrimSpace(in.Query)
			if query == "" {
				queriesTotal.WithLabelValues("error").Inc()
				return "", errors.New("query must not be empty")
			}

			results, err := s.Search(ctx, query, maxResults)
			if err != nil {
				queriesTotal.WithLabelValues("error").Inc()
				return "", fmt.Errorf("search failed: %w", err)
			}
			queriesTotal.WithLabelValues("success").Inc()
			resultsReturned.Observe(float64(len(results)))
			return formatResults(query, results), nil
		})
}

// formatResults renders results as a numbered text block.
func formatResults(query string, results []Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "\n%d. %s\n   URL: %s\n   %s\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return b.String()
}
