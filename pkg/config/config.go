// Package config provides unified configuration for strom.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (STROM_ prefix, <PROVIDER>_API_KEY)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"time"

	"github.com/rhuss/strom/pkg/afc"
	"github.com/rhuss/strom/pkg/buffer"
	"github.com/rhuss/strom/pkg/dispatch"
	"github.com/rhuss/strom/pkg/retry"
	"github.com/rhuss/strom/pkg/tools/mcp"
)

// Config holds all configuration for a strom client.
type Config struct {
	// DefaultModel is used when a call names no model, as "provider/model".
	DefaultModel string `yaml:"default_model"`

	Providers     []ProviderConfig    `yaml:"providers"`
	Dispatch      DispatchConfig      `yaml:"dispatch"`
	Buffer        BufferConfig        `yaml:"buffer"`
	AFC           AFCConfig           `yaml:"afc"`
	MCP           MCPConfig           `yaml:"mcp"`
	Tools         ToolsConfig         `yaml:"tools"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ProviderConfig configures one provider adapter.
type ProviderConfig struct {
	Name       string            `yaml:"name"`         // provider tag, e.g. "openai", "anthropic", "gemini"
	BaseURL    string            `yaml:"base_url"`     // optional, required for "generic"
	APIKey     string            `yaml:"api_key"`      // optional
	APIKeyFile string            `yaml:"api_key_file"` // _file variant for api_key
	Headers    map[string]string `yaml:"headers"`
	Timeout    time.Duration     `yaml:"timeout"`    // default: dispatch.request_timeout
	MaxTokens  int               `yaml:"max_tokens"` // default: provider specific
}

// DispatchConfig holds dispatch engine settings.
type DispatchConfig struct {
	MaxConcurrent       int           `yaml:"max_concurrent"`          // default: 30
	QueueSize           int           `yaml:"queue_size"`              // default: 256
	RequestTimeout      time.Duration `yaml:"request_timeout"`         // default: 60s
	RateLimit           float64       `yaml:"rate_limit"`              // requests per second, 0 disables
	RateBurst           int           `yaml:"rate_burst"`              // default: 1
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"` // default: 30
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`       // default: 90s
	KeepAlive           time.Duration `yaml:"keep_alive"`              // default: 30s
}

// BufferConfig holds read buffer sizing settings.
type BufferConfig struct {
	ArchivePath string  `yaml:"archive_path"` // optional learned archive
	Default     int     `yaml:"default"`      // default: 8192
	Min         int     `yaml:"min"`          // default: 4096
	Max         int     `yaml:"max"`          // default: 131072
	Growth      float64 `yaml:"growth"`       // default: 1.25
	Shrink      float64 `yaml:"shrink"`       // default: 0.8
	Window      int     `yaml:"window"`       // default: 5
}

// AFCConfig holds automatic function calling settings.
type AFCConfig struct {
	MaxRounds        int         `yaml:"max_rounds"`         // default: 10
	MaxParallelTools int         `yaml:"max_parallel_tools"` // 0 means unlimited
	AllowedTools     []string    `yaml:"allowed_tools"`
	Retry            RetryConfig `yaml:"retry"`
}

// RetryConfig holds the round retry policy.
type RetryConfig struct {
	MaxRetries      int           `yaml:"max_retries"`      // default: 3
	InitialInterval time.Duration `yaml:"initial_interval"` // default: 100ms
	Multiplier      float64       `yaml:"multiplier"`       // default: 2
	MaxInterval     time.Duration `yaml:"max_interval"`     // default: 30s
}

// MCPConfig holds MCP (Model Context Protocol) server settings.
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers" json:"servers"`
}

// MCPServerConfig describes a single MCP server connection.
type MCPServerConfig struct {
	Name      string            `yaml:"name" json:"name"`
	Transport string            `yaml:"transport" json:"transport"` // "sse" or "streamable-http"
	URL       string            `yaml:"url" json:"url"`
	Headers   map[string]string `yaml:"headers" json:"headers"`
	Auth      MCPAuthConfig     `yaml:"auth" json:"auth"`
}

// MCPAuthConfig holds OAuth client credentials for an MCP server.
type MCPAuthConfig struct {
	Type             string   `yaml:"type" json:"type"` // "" or "oauth_client_credentials"
	TokenURL         string   `yaml:"token_url" json:"token_url"`
	ClientID         string   `yaml:"client_id" json:"client_id"`
	ClientIDFile     string   `yaml:"client_id_file" json:"client_id_file"`
	ClientSecret     string   `yaml:"client_secret" json:"client_secret"`
	ClientSecretFile string   `yaml:"client_secret_file" json:"client_secret_file"`
	Scopes           []string `yaml:"scopes" json:"scopes"`
}

// ToolsConfig holds settings for built-in tools.
type ToolsConfig struct {
	WebSearch WebSearchConfig `yaml:"web_search"`
}

// WebSearchConfig enables the web_search tool when URL is set.
type WebSearchConfig struct {
	URL        string `yaml:"url"`         // SearXNG base URL
	MaxResults int    `yaml:"max_results"` // default: 5
}

// LoggingConfig controls the slog handler installed by the CLI.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"; default: "info"
	Format string `yaml:"format"` // "text" or "json"; default: "text"
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: false
	Addr    string `yaml:"addr"`    // default: ":9090"
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	d := dispatch.DefaultConfig()
	b := buffer.DefaultConfig()
	p := retry.DefaultPolicy()
	return Config{
		Dispatch: DispatchConfig{
			MaxConcurrent:       d.MaxConcurrent,
			QueueSize:           d.QueueSize,
			RequestTimeout:      d.RequestTimeout,
			RateBurst:           1,
			MaxIdleConnsPerHost: d.MaxIdleConnsPerHost,
			IdleConnTimeout:     d.IdleConnTimeout,
			KeepAlive:           d.KeepAlive,
		},
		Buffer: BufferConfig{
			Default: b.Default,
			Min:     b.Min,
			Max:     b.Max,
			Growth:  b.Growth,
			Shrink:  b.Shrink,
			Window:  b.Window,
		},
		AFC: AFCConfig{
			MaxRounds: afc.DefaultMaxRounds,
			Retry: RetryConfig{
				MaxRetries:      p.MaxRetries,
				InitialInterval: p.InitialInterval,
				Multiplier:      p.Multiplier,
				MaxInterval:     30 * time.Second,
			},
		},
		Tools: ToolsConfig{
			WebSearch: WebSearchConfig{MaxResults: 5},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Addr: ":9090",
				Path: "/metrics",
			},
		},
	}
}

// Provider returns the configuration for the named provider.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// DispatchSettings converts the dispatch section into engine settings.
func (c *Config) DispatchSettings() dispatch.Config {
	d := dispatch.DefaultConfig()
	d.MaxConcurrent = c.Dispatch.MaxConcurrent
	d.QueueSize = c.Dispatch.QueueSize
	d.RequestTimeout = c.Dispatch.RequestTimeout
	d.RateLimit = c.Dispatch.RateLimit
	d.RateBurst = c.Dispatch.RateBurst
	d.MaxIdleConnsPerHost = c.Dispatch.MaxIdleConnsPerHost
	d.IdleConnTimeout = c.Dispatch.IdleConnTimeout
	d.KeepAlive = c.Dispatch.KeepAlive
	return d
}

// BufferSettings converts the buffer section into sizer settings.
func (c *Config) BufferSettings() buffer.Config {
	return buffer.Config{
		Default: c.Buffer.Default,
		Min:     c.Buffer.Min,
		Max:     c.Buffer.Max,
		Growth:  c.Buffer.Growth,
		Shrink:  c.Buffer.Shrink,
		Window:  c.Buffer.Window,
	}
}

// AFCSettings converts the afc section into controller settings.
func (c *Config) AFCSettings() afc.Config {
	return afc.Config{
		MaxRounds:        c.AFC.MaxRounds,
		MaxParallelTools: c.AFC.MaxParallelTools,
		AllowedTools:     c.AFC.AllowedTools,
		Retry: retry.Policy{
			MaxRetries:      c.AFC.Retry.MaxRetries,
			InitialInterval: c.AFC.Retry.InitialInterval,
			Multiplier:      c.AFC.Retry.Multiplier,
			MaxInterval:     c.AFC.Retry.MaxInterval,
		},
	}
}

// MCPSettings converts the mcp section into tool source settings. File
// references must already be resolved.
func (c *Config) MCPSettings() mcp.Config {
	servers := make([]mcp.ServerConfig, 0, len(c.MCP.Servers))
	for _, s := range c.MCP.Servers {
		servers = append(servers, mcp.ServerConfig{
			Name:      s.Name,
			Transport: s.Transport,
			URL:       s.URL,
			Headers:   s.Headers,
			Auth: mcp.AuthConfig{
				Type:         s.Auth.Type,
				TokenURL:     s.Auth.TokenURL,
				ClientID:     s.Auth.ClientID,
				ClientSecret: s.Auth.ClientSecret,
				Scopes:       s.Auth.Scopes,
			},
		})
	}
	return mcp.Config{Servers: servers}
}
