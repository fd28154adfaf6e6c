package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTransportRecordsProviderRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	before := counterValue(t, ProviderRequestsTotal, "groq", "4xx")
	latencyBefore := histogramCount(t, ProviderLatency, "groq")

	client := &http.Client{Transport: NewTransport(nil)}
	req, err := http.NewRequestWithContext(WithProvider(context.Background(), "groq"), http.MethodPost, srv.URL, nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if got := counterValue(t, ProviderRequestsTotal, "groq", "4xx") - before; got != 1 {
		t.Errorf("expected 4xx count to increase by 1, got delta=%f", got)
	}
	if got := histogramCount(t, ProviderLatency, "groq") - latencyBefore; got != 1 {
		t.Errorf("expected one latency observation, got %d", got)
	}
}

func TestTransportStreamingGauge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	baseline := gaugeValue(t, StreamingConnections)

	client := &http.Client{Transport: NewTransport(http.DefaultTransport)}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if during := gaugeValue(t, StreamingConnections); during != baseline+1 {
		t.Errorf("expected streaming gauge=%f while body is open, got %f", baseline+1, during)
	}

	resp.Body.Close()
	resp.Body.Close()

	if after := gaugeValue(t, StreamingConnections); after != baseline {
		t.Errorf("expected streaming gauge=%f after close, got %f", baseline, after)
	}
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestTransportRecordsErrors(t *testing.T) {
	before := counterValue(t, ProviderRequestsTotal, "unknown", "error")

	client := &http.Client{Transport: NewTransport(failingTransport{})}
	if _, err := client.Get("http://127.0.0.1:1"); err == nil {
		t.Fatal("expected transport error")
	}

	if got := counterValue(t, ProviderRequestsTotal, "unknown", "error") - before; got != 1 {
		t.Errorf("expected error count to increase by 1, got delta=%f", got)
	}
}

func TestProviderFromDefault(t *testing.T) {
	if got := ProviderFrom(context.Background()); got != "unknown" {
		t.Errorf("ProviderFrom(empty) = %q, want unknown", got)
	}
	if got := ProviderFrom(WithProvider(context.Background(), "gemini")); got != "gemini" {
		t.Errorf("ProviderFrom = %q, want gemini", got)
	}
}
