package config

import (
	"errors"
	"fmt"

	"github.com/rhuss/strom/pkg/provider"
	"github.com/rhuss/strom/pkg/tools/mcp"
)

var knownProviders = map[provider.Tag]bool{
	provider.TagOpenAI:     true,
	provider.TagAnthropic:  true,
	provider.TagGemini:     true,
	provider.TagGroq:       true,
	provider.TagSambaNova:  true,
	provider.TagOpenRouter: true,
	provider.TagCerebras:   true,
	provider.TagMistral:    true,
	provider.TagGeneric:    true,
}

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		switch {
		case p.Name == "":
			errs = append(errs, fmt.Errorf("providers[%d].name is required", i))
		case !knownProviders[provider.Tag(p.Name)]:
			errs = append(errs, fmt.Errorf("providers[%d].name %q is not a known provider", i, p.Name))
		case seen[p.Name]:
			errs = append(errs, fmt.Errorf("providers[%d].name %q is configured twice", i, p.Name))
		}
		seen[p.Name] = true

		if provider.Tag(p.Name) == provider.TagGeneric && p.BaseURL == "" {
			errs = append(errs, fmt.Errorf("providers[%d].base_url is required for the generic provider", i))
		}
		if p.Timeout < 0 {
			errs = append(errs, fmt.Errorf("providers[%d].timeout must be >= 0, got %v", i, p.Timeout))
		}
	}

	// default_model must name a configured provider.
	if c.DefaultModel != "" {
		tag, _, err := provider.ParseModel(c.DefaultModel)
		if err != nil {
			errs = append(errs, fmt.Errorf("default_model: %w", err))
		} else if !seen[string(tag)] {
			errs = append(errs, fmt.Errorf("default_model %q uses provider %q, which is not configured", c.DefaultModel, tag))
		}
	}

	if c.Dispatch.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("dispatch.max_concurrent must be > 0, got %d", c.Dispatch.MaxConcurrent))
	}
	if c.Dispatch.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("dispatch.queue_size must be >= 0, got %d", c.Dispatch.QueueSize))
	}
	if c.Dispatch.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("dispatch.request_timeout must be >= 0, got %v", c.Dispatch.RequestTimeout))
	}
	if c.Dispatch.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("dispatch.rate_limit must be >= 0, got %v", c.Dispatch.RateLimit))
	}

	if c.Buffer.Min <= 0 {
		errs = append(errs, fmt.Errorf("buffer.min must be > 0, got %d", c.Buffer.Min))
	}
	if c.Buffer.Max < c.Buffer.Min {
		errs = append(errs, fmt.Errorf("buffer.max (%d) must be >= buffer.min (%d)", c.Buffer.Max, c.Buffer.Min))
	}
	if c.Buffer.Growth <= 1 {
		errs = append(errs, fmt.Errorf("buffer.growth must be > 1, got %v", c.Buffer.Growth))
	}
	if c.Buffer.Shrink <= 0 || c.Buffer.Shrink >= 1 {
		errs = append(errs, fmt.Errorf("buffer.shrink must be between 0 and 1, got %v", c.Buffer.Shrink))
	}
	if c.Buffer.Window <= 0 {
		errs = append(errs, fmt.Errorf("buffer.window must be > 0, got %d", c.Buffer.Window))
	}

	if c.AFC.MaxRounds <= 0 {
		errs = append(errs, fmt.Errorf("afc.max_rounds must be > 0, got %d", c.AFC.MaxRounds))
	}
	if c.AFC.MaxParallelTools < 0 {
		errs = append(errs, fmt.Errorf("afc.max_parallel_tools must be >= 0, got %d", c.AFC.MaxParallelTools))
	}
	if c.AFC.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("afc.retry.max_retries must be >= 0, got %d", c.AFC.Retry.MaxRetries))
	}

	for i, s := range c.MCP.Servers {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("mcp.servers[%d].name is required", i))
		}
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("mcp.servers[%d].url is required", i))
		}
		switch s.Transport {
		case "", "sse", "streamable-http":
			// valid
		default:
			errs = append(errs, fmt.Errorf("mcp.servers[%d].transport must be \"sse\" or \"streamable-http\", got %q", i, s.Transport))
		}
		switch s.Auth.Type {
		case "":
			// valid
		case mcp.AuthOAuthClientCredentials:
			if s.Auth.TokenURL == "" {
				errs = append(errs, fmt.Errorf("mcp.servers[%d].auth.token_url is required for %s", i, s.Auth.Type))
			}
			if s.Auth.ClientID == "" {
				errs = append(errs, fmt.Errorf("mcp.servers[%d].auth.client_id is required for %s", i, s.Auth.Type))
			}
		default:
			errs = append(errs, fmt.Errorf("mcp.servers[%d].auth.type must be empty or %q, got %q", i, mcp.AuthOAuthClientCredentials, s.Auth.Type))
		}
	}

	if c.Tools.WebSearch.MaxResults < 0 {
		errs = append(errs, fmt.Errorf("tools.web_search.max_results must be >= 0, got %d", c.Tools.WebSearch.MaxResults))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
		// valid
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	if c.Observability.Metrics.Enabled && c.Observability.Metrics.Addr == "" {
		errs = append(errs, fmt.Errorf("observability.metrics.addr is required when metrics are enabled"))
	}

	return errors.Join(errs...)
}
