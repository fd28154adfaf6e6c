package mcp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// tokenTimeout bounds each request to an OAuth token endpoint.
const tokenTimeout = 10 * time.Second

// httpClientFor builds the HTTP client for an MCP server connection.
// Static headers are applied to every request; with OAuth client
// credentials the Authorization header is then set from a cached token
// that oauth2 refreshes when it expires. Returns nil when neither is
// configured, letting the SDK use its default client.
func httpClientFor(ctx context.Context, cfg ServerConfig) (*http.Client, error) {
	var base http.RoundTripper = http.DefaultTransport

	switch cfg.Auth.Type {
	case "":
		if len(cfg.Headers) == 0 {
			return nil, nil
		}

	case AuthOAuthClientCredentials:
		if cfg.Auth.TokenURL == "" || cfg.Auth.ClientID == "" {
			return nil, fmt.Errorf("auth %s requires token_url and client_id", cfg.Auth.Type)
		}
		cc := &clientcredentials.Config{
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			TokenURL:     cfg.Auth.TokenURL,
			Scopes:       cfg.Auth.Scopes,
			AuthStyle:    oauth2.AuthStyleInParams,
		}
		// Token refreshes outlive the connect call, so they must not
		// inherit its cancellation.
		tokenCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, &http.Client{Timeout: tokenTimeout})
		base = &oauth2.Transport{
			Source: cc.TokenSource(tokenCtx),
			Base:   base,
		}

	default:
		return nil, fmt.Errorf("unsupported auth type %q", cfg.Auth.Type)
	}

	if len(cfg.Headers) > 0 {
		base = &headerTransport{base: base, headers: cfg.Headers}
	}
	return &http.Client{Transport: base}, nil
}

// headerTransport is an http.RoundTripper that adds custom headers to
// every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
