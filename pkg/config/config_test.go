package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable the loader reads so the host
// environment cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"STROM_CONFIG", "STROM_DEFAULT_MODEL", "STROM_MAX_CONCURRENT",
		"STROM_REQUEST_TIMEOUT", "STROM_RATE_LIMIT", "STROM_ARCHIVE_PATH",
		"STROM_MAX_ROUNDS", "STROM_LOG_LEVEL", "STROM_LOG_FORMAT",
		"STROM_METRICS_ADDR", "STROM_MCP_SERVERS", "STROM_WEB_SEARCH_URL",
	} {
		t.Setenv(name, "")
	}
	for _, tag := range keyedProviders {
		t.Setenv(strings.ToUpper(string(tag))+"_API_KEY", "")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Dispatch.MaxConcurrent != 30 {
		t.Errorf("default dispatch.max_concurrent = %d, want 30", cfg.Dispatch.MaxConcurrent)
	}
	if cfg.Dispatch.RequestTimeout != 60*time.Second {
		t.Errorf("default dispatch.request_timeout = %v, want 60s", cfg.Dispatch.RequestTimeout)
	}
	if cfg.Buffer.Default != 8192 || cfg.Buffer.Min != 4096 || cfg.Buffer.Max != 131072 {
		t.Errorf("default buffer sizes = %d/%d/%d, want 8192/4096/131072", cfg.Buffer.Default, cfg.Buffer.Min, cfg.Buffer.Max)
	}
	if cfg.Buffer.Window != 5 {
		t.Errorf("default buffer.window = %d, want 5", cfg.Buffer.Window)
	}
	if cfg.AFC.MaxRounds != 10 {
		t.Errorf("default afc.max_rounds = %d, want 10", cfg.AFC.MaxRounds)
	}
	if cfg.AFC.Retry.MaxRetries != 3 || cfg.AFC.Retry.InitialInterval != 100*time.Millisecond {
		t.Errorf("default retry = %+v, want 3 retries from 100ms", cfg.AFC.Retry)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("default logging = %+v, want info/text", cfg.Logging)
	}
	if cfg.Observability.Metrics.Enabled {
		t.Error("metrics endpoint should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	clearEnv(t)
	yamlContent := `
default_model: anthropic/claude-sonnet
providers:
  - name: anthropic
    api_key: sk-ant-test
    max_tokens: 2048
  - name: generic
    base_url: http://localhost:8000/v1
    headers:
      X-Team: research
    timeout: 30s
dispatch:
  max_concurrent: 8
  queue_size: 16
  request_timeout: 45s
  rate_limit: 2.5
  rate_burst: 4
buffer:
  archive_path: /var/lib/strom/archive.json
  min: 1024
  max: 32768
  growth: 1.5
afc:
  max_rounds: 4
  max_parallel_tools: 2
  allowed_tools: [get_weather]
  retry:
    max_retries: 1
    initial_interval: 250ms
mcp:
  servers:
    - name: tools
      transport: streamable-http
      url: http://localhost:3000/mcp
      headers:
        Authorization: "Bearer tok-123"
logging:
  level: debug
  format: json
observability:
  metrics:
    enabled: true
    addr: ":9100"
`
	tmpFile := writeTemp(t, "config-*.yaml", yamlContent)

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DefaultModel != "anthropic/claude-sonnet" {
		t.Errorf("default_model = %q", cfg.DefaultModel)
	}
	if len(cfg.Providers) != 2 {
		t.Fatalf("providers length = %d, want 2", len(cfg.Providers))
	}
	anthropic, ok := cfg.Provider("anthropic")
	if !ok || anthropic.APIKey != "sk-ant-test" || anthropic.MaxTokens != 2048 {
		t.Errorf("anthropic provider = %+v", anthropic)
	}
	generic, _ := cfg.Provider("generic")
	if generic.BaseURL != "http://localhost:8000/v1" || generic.Headers["X-Team"] != "research" || generic.Timeout != 30*time.Second {
		t.Errorf("generic provider = %+v", generic)
	}

	if cfg.Dispatch.MaxConcurrent != 8 || cfg.Dispatch.QueueSize != 16 {
		t.Errorf("dispatch = %+v", cfg.Dispatch)
	}
	if cfg.Dispatch.RequestTimeout != 45*time.Second {
		t.Errorf("dispatch.request_timeout = %v, want 45s", cfg.Dispatch.RequestTimeout)
	}
	if cfg.Dispatch.RateLimit != 2.5 || cfg.Dispatch.RateBurst != 4 {
		t.Errorf("dispatch rate = %v/%d, want 2.5/4", cfg.Dispatch.RateLimit, cfg.Dispatch.RateBurst)
	}

	if cfg.Buffer.ArchivePath != "/var/lib/strom/archive.json" {
		t.Errorf("buffer.archive_path = %q", cfg.Buffer.ArchivePath)
	}
	if cfg.Buffer.Min != 1024 || cfg.Buffer.Max != 32768 || cfg.Buffer.Growth != 1.5 {
		t.Errorf("buffer = %+v", cfg.Buffer)
	}
	// Unset fields keep their defaults.
	if cfg.Buffer.Shrink != 0.8 || cfg.Buffer.Window != 5 {
		t.Errorf("buffer defaults lost: %+v", cfg.Buffer)
	}

	if cfg.AFC.MaxRounds != 4 || cfg.AFC.MaxParallelTools != 2 {
		t.Errorf("afc = %+v", cfg.AFC)
	}
	if len(cfg.AFC.AllowedTools) != 1 || cfg.AFC.AllowedTools[0] != "get_weather" {
		t.Errorf("afc.allowed_tools = %v", cfg.AFC.AllowedTools)
	}
	if cfg.AFC.Retry.MaxRetries != 1 || cfg.AFC.Retry.InitialInterval != 250*time.Millisecond || cfg.AFC.Retry.Multiplier != 2 {
		t.Errorf("afc.retry = %+v", cfg.AFC.Retry)
	}

	if len(cfg.MCP.Servers) != 1 || cfg.MCP.Servers[0].Headers["Authorization"] != "Bearer tok-123" {
		t.Errorf("mcp.servers = %+v", cfg.MCP.Servers)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if !cfg.Observability.Metrics.Enabled || cfg.Observability.Metrics.Addr != ":9100" || cfg.Observability.Metrics.Path != "/metrics" {
		t.Errorf("metrics = %+v", cfg.Observability.Metrics)
	}
}

func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	yamlContent := `
default_model: openai/gpt-4o
providers:
  - name: openai
    api_key: sk-yaml
dispatch:
  max_concurrent: 8
afc:
  max_rounds: 4
`
	tmpFile := writeTemp(t, "config-*.yaml", yamlContent)

	t.Setenv("STROM_DEFAULT_MODEL", "openai/gpt-4o-mini")
	t.Setenv("STROM_MAX_CONCURRENT", "3")
	t.Setenv("STROM_REQUEST_TIMEOUT", "5s")
	t.Setenv("STROM_MAX_ROUNDS", "2")
	t.Setenv("STROM_LOG_LEVEL", "warn")
	t.Setenv("STROM_ARCHIVE_PATH", "/tmp/archive.json")
	t.Setenv("STROM_METRICS_ADDR", ":9200")
	t.Setenv("STROM_WEB_SEARCH_URL", "http://searxng:8080")

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DefaultModel != "openai/gpt-4o-mini" {
		t.Errorf("default_model = %q, want env override", cfg.DefaultModel)
	}
	if cfg.Dispatch.MaxConcurrent != 3 {
		t.Errorf("dispatch.max_concurrent = %d, want env override 3", cfg.Dispatch.MaxConcurrent)
	}
	if cfg.Dispatch.RequestTimeout != 5*time.Second {
		t.Errorf("dispatch.request_timeout = %v, want 5s", cfg.Dispatch.RequestTimeout)
	}
	if cfg.AFC.MaxRounds != 2 {
		t.Errorf("afc.max_rounds = %d, want 2", cfg.AFC.MaxRounds)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("logging.level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Buffer.ArchivePath != "/tmp/archive.json" {
		t.Errorf("buffer.archive_path = %q", cfg.Buffer.ArchivePath)
	}
	if !cfg.Observability.Metrics.Enabled || cfg.Observability.Metrics.Addr != ":9200" {
		t.Errorf("metrics = %+v, want enabled on :9200", cfg.Observability.Metrics)
	}
	if cfg.Tools.WebSearch.URL != "http://searxng:8080" || cfg.Tools.WebSearch.MaxResults != 5 {
		t.Errorf("tools.web_search = %+v", cfg.Tools.WebSearch)
	}
}

func TestEnvInvalidNumbersIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("STROM_MAX_CONCURRENT", "lots")
	t.Setenv("STROM_REQUEST_TIMEOUT", "soon")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Dispatch.MaxConcurrent != 30 || cfg.Dispatch.RequestTimeout != 60*time.Second {
		t.Errorf("invalid env values should be ignored, got %+v", cfg.Dispatch)
	}
}

func TestProviderAPIKeyEnv(t *testing.T) {
	clearEnv(t)
	yamlContent := `
providers:
  - name: anthropic
  - name: openai
    api_key: sk-explicit
`
	tmpFile := writeTemp(t, "config-*.yaml", yamlContent)

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")
	t.Setenv("OPENAI_API_KEY", "sk-openai-env")
	t.Setenv("GEMINI_API_KEY", "gm-env")

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if p, _ := cfg.Provider("anthropic"); p.APIKey != "sk-ant-env" {
		t.Errorf("anthropic api_key = %q, want env value", p.APIKey)
	}
	if p, _ := cfg.Provider("openai"); p.APIKey != "sk-explicit" {
		t.Errorf("openai api_key = %q, explicit value must win", p.APIKey)
	}
	gemini, ok := cfg.Provider("gemini")
	if !ok || gemini.APIKey != "gm-env" {
		t.Errorf("gemini should be added from env, got %+v (found=%v)", gemini, ok)
	}
}

func TestMCPServersEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("STROM_MCP_SERVERS", `[{"name":"env-mcp","transport":"sse","url":"http://mcp:3000"}]`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.MCP.Servers) != 1 || cfg.MCP.Servers[0].Name != "env-mcp" || cfg.MCP.Servers[0].Transport != "sse" {
		t.Errorf("mcp.servers = %+v", cfg.MCP.Servers)
	}
}

func TestFileReference(t *testing.T) {
	clearEnv(t)
	secretFile := writeTemp(t, "secret-*.txt", "  sk-from-file-123  \n")
	idFile := writeTemp(t, "client-id-*.txt", "strom-client\n")
	secretFile2 := writeTemp(t, "client-secret-*.txt", "s3cret\n")

	yamlContent := `
providers:
  - name: openai
    api_key_file: ` + secretFile + `
mcp:
  servers:
    - name: secured
      url: http://localhost:3000/mcp
      auth:
        type: oauth_client_credentials
        token_url: http://localhost:3001/token
        client_id_file: ` + idFile + `
        client_secret_file: ` + secretFile2 + `
`
	tmpFile := writeTemp(t, "config-*.yaml", yamlContent)

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if p, _ := cfg.Provider("openai"); p.APIKey != "sk-from-file-123" {
		t.Errorf("providers[0].api_key = %q, want value from file, trimmed", p.APIKey)
	}
	auth := cfg.MCP.Servers[0].Auth
	if auth.ClientID != "strom-client" || auth.ClientSecret != "s3cret" {
		t.Errorf("mcp auth = %+v, want values from files", auth)
	}

	settings := cfg.MCPSettings()
	if settings.Servers[0].Auth.ClientSecret != "s3cret" || settings.Servers[0].Auth.TokenURL != "http://localhost:3001/token" {
		t.Errorf("MCPSettings() = %+v", settings.Servers[0])
	}
}

func TestFileReferenceDoesNotOverrideExplicitValue(t *testing.T) {
	clearEnv(t)
	secretFile := writeTemp(t, "secret-*.txt", "from-file")

	yamlContent := `
providers:
  - name: openai
    api_key: explicit
    api_key_file: ` + secretFile + `
`
	tmpFile := writeTemp(t, "config-*.yaml", yamlContent)

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if p, _ := cfg.Provider("openai"); p.APIKey != "explicit" {
		t.Errorf("api_key = %q, want explicit value", p.APIKey)
	}
}

func TestFileReferenceMissingFile(t *testing.T) {
	clearEnv(t)
	yamlContent := `
providers:
  - name: openai
    api_key_file: /nonexistent/strom/key
`
	tmpFile := writeTemp(t, "config-*.yaml", yamlContent)

	_, err := Load(tmpFile)
	if err == nil || !strings.Contains(err.Error(), "providers[0].api_key_file") {
		t.Errorf("expected api_key_file error, got %v", err)
	}
}

func TestFileDiscovery(t *testing.T) {
	clearEnv(t)

	t.Run("STROM_CONFIG", func(t *testing.T) {
		tmpFile := writeTemp(t, "config-*.yaml", "dispatch:\n  max_concurrent: 7\n")
		t.Setenv("STROM_CONFIG", tmpFile)

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if cfg.Dispatch.MaxConcurrent != 7 {
			t.Errorf("dispatch.max_concurrent = %d, want 7 from STROM_CONFIG", cfg.Dispatch.MaxConcurrent)
		}
	})

	t.Run("explicit path wins", func(t *testing.T) {
		envFile := writeTemp(t, "env-*.yaml", "dispatch:\n  max_concurrent: 7\n")
		explicit := writeTemp(t, "explicit-*.yaml", "dispatch:\n  max_concurrent: 9\n")
		t.Setenv("STROM_CONFIG", envFile)

		cfg, err := Load(explicit)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if cfg.Dispatch.MaxConcurrent != 9 {
			t.Errorf("dispatch.max_concurrent = %d, want 9 from explicit path", cfg.Dispatch.MaxConcurrent)
		}
	})

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		if err == nil {
			t.Error("expected error for a missing explicit config file")
		}
	})
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "negative web search results",
			mutate:  func(c *Config) { c.Tools.WebSearch.MaxResults = -1 },
			wantErr: "tools.web_search.max_results",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Providers = []ProviderConfig{{Name: "acme"}} },
			wantErr: `providers[0].name "acme" is not a known provider`,
		},
		{
			name:    "duplicate provider",
			mutate:  func(c *Config) { c.Providers = []ProviderConfig{{Name: "openai"}, {Name: "openai"}} },
			wantErr: "configured twice",
		},
		{
			name:    "generic without base url",
			mutate:  func(c *Config) { c.Providers = []ProviderConfig{{Name: "generic"}} },
			wantErr: "base_url is required",
		},
		{
			name:    "default model without provider prefix",
			mutate:  func(c *Config) { c.DefaultModel = "gpt-4o" },
			wantErr: "default_model",
		},
		{
			name:    "default model with unconfigured provider",
			mutate:  func(c *Config) { c.DefaultModel = "gemini/gemini-2.0-flash" },
			wantErr: "not configured",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Dispatch.MaxConcurrent = 0 },
			wantErr: "dispatch.max_concurrent",
		},
		{
			name:    "buffer max below min",
			mutate:  func(c *Config) { c.Buffer.Max = 100 },
			wantErr: "buffer.max",
		},
		{
			name:    "shrink out of range",
			mutate:  func(c *Config) { c.Buffer.Shrink = 1.2 },
			wantErr: "buffer.shrink",
		},
		{
			name:    "growth not above one",
			mutate:  func(c *Config) { c.Buffer.Growth = 1 },
			wantErr: "buffer.growth",
		},
		{
			name:    "zero rounds",
			mutate:  func(c *Config) { c.AFC.MaxRounds = 0 },
			wantErr: "afc.max_rounds",
		},
		{
			name: "mcp server without url",
			mutate: func(c *Config) {
				c.MCP.Servers = []MCPServerConfig{{Name: "x"}}
			},
			wantErr: "mcp.servers[0].url is required",
		},
		{
			name: "mcp bad transport",
			mutate: func(c *Config) {
				c.MCP.Servers = []MCPServerConfig{{Name: "x", URL: "http://x", Transport: "stdio"}}
			},
			wantErr: "mcp.servers[0].transport",
		},
		{
			name: "mcp oauth without token url",
			mutate: func(c *Config) {
				c.MCP.Servers = []MCPServerConfig{{Name: "x", URL: "http://x", Auth: MCPAuthConfig{Type: "oauth_client_credentials", ClientID: "id"}}}
			},
			wantErr: "auth.token_url is required",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidationJoinsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Dispatch.MaxConcurrent = -1
	cfg.AFC.MaxRounds = -1
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"dispatch.max_concurrent", "afc.max_rounds", "logging.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error %q is missing %q", err.Error(), want)
		}
	}
}

func TestSettingsConversion(t *testing.T) {
	cfg := Defaults()
	cfg.Dispatch.MaxConcurrent = 5
	cfg.Dispatch.RateLimit = 3
	cfg.Buffer.Min = 2048
	cfg.AFC.MaxRounds = 6
	cfg.AFC.AllowedTools = []string{"a"}

	d := cfg.DispatchSettings()
	if d.MaxConcurrent != 5 || d.RateLimit != 3 || d.DeltaBuffer != 64 {
		t.Errorf("DispatchSettings() = %+v", d)
	}
	if b := cfg.BufferSettings(); b.Min != 2048 || b.Default != 8192 {
		t.Errorf("BufferSettings() = %+v", b)
	}
	a := cfg.AFCSettings()
	if a.MaxRounds != 6 || len(a.AllowedTools) != 1 || a.Retry.MaxRetries != 3 {
		t.Errorf("AFCSettings() = %+v", a)
	}
}

// writeTemp creates a temporary file with the given content and returns its path.
// The file is automatically cleaned up when the test finishes.
func writeTemp(t *testing.T, pattern, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), pattern)
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		t.Fatalf("writing temp file: %v", err)
	}
	f.Close()
	return f.Name()
}
