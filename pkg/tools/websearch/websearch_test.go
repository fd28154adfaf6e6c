package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/rhuss/strom/pkg/tools"
	"github.com/rhuss/strom/pkg/tools/registry"
)

// newSearXNGServer serves a fixed SearXNG result list and records the
// last query.
func newSearXNGServer(t *testing.T, results []map[string]string, lastQuery *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.URL.Query().Get("format") != "json" {
			http.NotFound(w, r)
			return
		}
		if lastQuery != nil {
			*lastQuery = r.URL.Query().Get("q")
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newSearchRegistry(t *testing.T, baseURL string, maxResults int) *registry.Registry {
	t.Helper()
	reg := registry.New()
	if err := Register(reg, NewSearXNG(baseURL, nil), maxResults); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return reg
}

func TestWebSearchExecute(t *testing.T) {
	var query string
	srv := newSearXNGServer(t, []map[string]string{
		{"title": "Go Programming", "url": "https://go.dev", "content": "The <b>Go</b> programming language"},
		{"title": "Go Tutorial", "url": "https://go.dev/tour", "content": "A tour of Go"},
		{"title": "Go Docs", "url": "https://go.dev/doc", "content": "Documentation for Go"},
	}, &query)
	reg := newSearchRegistry(t, srv.URL, 0)

	result, err := reg.Execute(context.Background(), tools.ToolCall{
		ID:        "call_1",
		Name:      ToolName,
		Arguments: `{"query":"golang tips"}`,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("error result: %s", result.Output)
	}
	if query != "golang tips" {
		t.Errorf("backend query = %q", query)
	}
	for _, want := range []string{`Search results for "golang tips"`, "1. Go Programming", "https://go.dev/tour", "3. Go Docs", "The Go programming language"} {
		if !strings.Contains(result.Output, want) {
			t.Errorf("output missing %q:\n%s", want, result.Output)
		}
	}
}

func TestWebSearchMaxResults(t *testing.T) {
	srv := newSearXNGServer(t, []map[string]string{
		{"title": "A", "url": "https://a.example"},
		{"title": "B", "url": "https://b.example"},
		{"title": "C", "url": "https://c.example"},
	}, nil)

	results, err := NewSearXNG(srv.URL, nil).Search(context.Background(), "x", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 || results[1].Title != "B" {
		t.Errorf("results = %+v, want the first two", results)
	}
}

func TestWebSearchNoResults(t *testing.T) {
	srv := newSearXNGServer(t, nil, nil)
	reg := newSearchRegistry(t, srv.URL, 3)

	result, _ := reg.Execute(context.Background(), tools.ToolCall{ID: "c", Name: ToolName, Arguments: `{"query":"nothing"}`})
	if result.IsError || result.Output != `No results found for "nothing".` {
		t.Errorf("result = %+v", result)
	}
}

func TestWebSearchNullResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"query":"x","results":null}`))
	}))
	defer srv.Close()

	results, err := NewSearXNG(srv.URL, nil).Search(context.Background(), "x", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %+v, want none", results)
	}
}

func TestWebSearchErrors(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(failing.Close)
	ok := newSearXNGServer(t, nil, nil)

	tests := []struct {
		name    string
		baseURL string
		args    string
		want    string
	}{
		{"empty query", ok.URL, `{"query":"  "}`, "query must not be empty"},
		{"missing query", ok.URL, `{}`, "invalid arguments"},
		{"backend failure", failing.URL, `{"query":"x"}`, "status 502"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newSearchRegistry(t, tt.baseURL, 0)
			result, err := reg.Execute(context.Background(), tools.ToolCall{ID: "c", Name: ToolName, Arguments: tt.args})
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if !result.IsError {
				t.Fatalf("expected error result, got %q", result.Output)
			}
			if !strings.Contains(result.Output, tt.want) {
				t.Errorf("output = %q, want it to contain %q", result.Output, tt.want)
			}
		})
	}
}

func TestWebSearchDefinition(t *testing.T) {
	reg := newSearchRegistry(t, "http://127.0.0.1:1", 0)
	defs := reg.Definitions()
	if len(defs) != 1 || defs[0].Name != ToolName {
		t.Fatalf("definitions = %+v", defs)
	}
	if got := gjson.GetBytes(defs[0].Parameters, "properties.query.type").Str; got != "string" {
		t.Errorf("query type = %q, want string", got)
	}
	if got := gjson.GetBytes(defs[0].Parameters, "required.0").Str; got != "query" {
		t.Errorf("required = %s", gjson.GetBytes(defs[0].Parameters, "required").Raw)
	}
}
