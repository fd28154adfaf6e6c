package mcp

// Transport names accepted in ServerConfig.Transport.
const (
	TransportStreamableHTTP = "streamable-http"
	TransportSSE            = "sse"
)

// Config lists the MCP servers whose tools are offered to the model.
type Config struct {
	Servers []ServerConfig `yaml:"servers" json:"servers"`
}

// ServerConfig describes one MCP server.
type ServerConfig struct {
	// Name identifies the server in logs and must be unique.
	Name string `yaml:"name" json:"name"`

	// Transport is TransportStreamableHTTP (the default) or TransportSSE.
	Transport string `yaml:"transport" json:"transport"`

	URL string `yaml:"url" json:"url"`

	// Headers are added to every request, e.g. a static API key.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	Auth AuthConfig `yaml:"auth,omitempty" json:"auth,omitempty"`
}

// AuthOAuthClientCredentials selects the OAuth 2.0 client credentials grant.
const AuthOAuthClientCredentials = "oauth_client_credentials"

// AuthConfig describes how bearer tokens for a server are obtained. An
// empty Type sends no token.
type AuthConfig struct {
	Type         string   `yaml:"type" json:"type"`
	TokenURL     string   `yaml:"token_url" json:"token_url"`
	ClientID     string   `yaml:"client_id" json:"client_id"`
	ClientSecret string   `yaml:"client_secret" json:"client_secret"`
	Scopes       []string `yaml:"scopes,omitempty" json:"scopes,omitempty"`
}
