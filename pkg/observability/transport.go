package observability

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"
)

type providerKey struct{}

// WithProvider tags ctx with the provider label used by Transport.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, providerKey{}, provider)
}

// ProviderFrom returns the provider label stored in ctx, or "unknown".
func ProviderFrom(ctx context.Context) string {
	if p, ok := ctx.Value(providerKey{}).(string); ok && p != "" {
		return p
	}
	return "unknown"
}

// Transport is an http.RoundTripper that records provider metrics.
//
// It captures:
//   - strom_provider_requests_total (counter): per provider and status class, "error" on transport failure
//   - strom_provider_latency_seconds (histogram): time until response headers arrive
//   - strom_streaming_connections_active (gauge): held until the response body is closed
type Transport struct {
	Base http.RoundTripper
}

// NewTransport wraps base. A nil base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper) *Transport {
	return &Transport{Base: base}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	provider := ProviderFrom(req.Context())

	start := time.Now()
	resp, err := base.RoundTrip(req)
	ProviderLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		ProviderRequestsTotal.WithLabelValues(provider, "error").Inc()
		return nil, err
	}
	ProviderRequestsTotal.WithLabelValues(provider, statusClass(resp.StatusCode)).Inc()

	StreamingConnections.Inc()
	resp.Body = &trackedBody{ReadCloser: resp.Body}
	return resp, nil
}

// trackedBody releases the streaming gauge exactly once on Close.
type trackedBody struct {
	io.ReadCloser
	once sync.Once
}

func (b *trackedBody) Close() error {
	b.once.Do(StreamingConnections.Dec)
	return b.ReadCloser.Close()
}
