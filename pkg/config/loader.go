package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/strom/pkg/provider"
)

// searchPaths are tried in order when neither an explicit path nor
// STROM_CONFIG names a config file.
var searchPaths = []string{"strom.yaml", "/etc/strom/config.yaml"}

// Load builds the configuration. Later layers win:
//
//	defaults < YAML file < STROM_* and <PROVIDER>_API_KEY variables < *_file secrets
//
// The file is configPath if set, then $STROM_CONFIG, then the first of
// searchPaths that exists. Running without any file is fine.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if path := findConfigFile(configPath); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	for _, o := range envOverrides {
		if v := os.Getenv(o.name); v != "" {
			if err := o.apply(&cfg, v); err != nil {
				slog.Warn("ignoring environment variable", "name", o.name, "error", err)
			}
		}
	}
	applyAPIKeys(&cfg)

	if err := readSecrets(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("STROM_CONFIG"); p != "" {
		return p
	}
	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envOverride sets one config field from an environment variable.
type envOverride struct {
	name  string
	apply func(cfg *Config, v string) error
}

var envOverrides = []envOverride{
	{"STROM_DEFAULT_MODEL", func(c *Config, v string) error { c.DefaultModel = v; return nil }},
	{"STROM_MAX_CONCURRENT", intVar(func(c *Config) *int { return &c.Dispatch.MaxConcurrent })},
	{"STROM_REQUEST_TIMEOUT", func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err == nil {
			c.Dispatch.RequestTimeout = d
		}
		return err
	}},
	{"STROM_RATE_LIMIT", func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			c.Dispatch.RateLimit = f
		}
		return err
	}},
	{"STROM_ARCHIVE_PATH", func(c *Config, v string) error { c.Buffer.ArchivePath = v; return nil }},
	{"STROM_MAX_ROUNDS", intVar(func(c *Config) *int { return &c.AFC.MaxRounds })},
	{"STROM_WEB_SEARCH_URL", func(c *Config, v string) error { c.Tools.WebSearch.URL = v; return nil }},
	{"STROM_LOG_LEVEL", func(c *Config, v string) error { c.Logging.Level = v; return nil }},
	{"STROM_LOG_FORMAT", func(c *Config, v string) error { c.Logging.Format = v; return nil }},
	{"STROM_METRICS_ADDR", func(c *Config, v string) error {
		c.Observability.Metrics.Enabled = true
		c.Observability.Metrics.Addr = v
		return nil
	}},
	{"STROM_MCP_SERVERS", func(c *Config, v string) error {
		var servers []MCPServerConfig
		if err := json.Unmarshal([]byte(v), &servers); err != nil {
			return fmt.Errorf("expected a JSON array of servers: %w", err)
		}
		if len(servers) > 0 {
			c.MCP.Servers = servers
		}
		return nil
	}},
}

func intVar(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err == nil {
			*field(c) = n
		}
		return err
	}
}

// keyedProviders are the tags whose key may come from <TAG>_API_KEY.
var keyedProviders = []provider.Tag{
	provider.TagOpenAI,
	provider.TagAnthropic,
	provider.TagGemini,
	provider.TagGroq,
	provider.TagSambaNova,
	provider.TagOpenRouter,
	provider.TagCerebras,
	provider.TagMistral,
}

// applyAPIKeys fills the key of a configured provider that has none, or
// adds the provider with its preset endpoint.
func applyAPIKeys(cfg *Config) {
	for _, tag := range keyedProviders {
		key := os.Getenv(strings.ToUpper(string(tag)) + "_API_KEY")
		if key == "" {
			continue
		}
		configured := false
		for i := range cfg.Providers {
			p := &cfg.Providers[i]
			if p.Name != string(tag) {
				continue
			}
			configured = true
			if p.APIKey == "" && p.APIKeyFile == "" {
				p.APIKey = key
			}
		}
		if !configured {
			cfg.Providers = append(cfg.Providers, ProviderConfig{Name: string(tag), APIKey: key})
		}
	}
}

// readSecrets loads every *_file field into its value field unless the
// value is already set.
func readSecrets(cfg *Config) error {
	type secret struct {
		label string
		file  string
		dst   *string
	}
	var secrets []secret
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		secrets = append(secrets, secret{fmt.Sprintf("providers[%d].api_key_file", i), p.APIKeyFile, &p.APIKey})
	}
	for i := range cfg.MCP.Servers {
		a := &cfg.MCP.Servers[i].Auth
		secrets = append(secrets,
			secret{fmt.Sprintf("mcp.servers[%d].auth.client_id_file", i), a.ClientIDFile, &a.ClientID},
			secret{fmt.Sprintf("mcp.servers[%d].auth.client_secret_file", i), a.ClientSecretFile, &a.ClientSecret},
		)
	}

	var errs []error
	for _, s := range secrets {
		if s.file == "" || *s.dst != "" {
			continue
		}
		data, err := os.ReadFile(s.file)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.label, err))
			continue
		}
		*s.dst = strings.TrimSpace(string(data))
	}
	return errors.Join(errs...)
}
