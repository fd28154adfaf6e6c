package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/rhuss/strom/pkg/api"
	"github.com/rhuss/strom/pkg/tools"
	"github.com/rhuss/strom/pkg/tools/registry"
)

// Source exposes the tools of several MCP servers as one tool provider.
// Tool names are routed to the server that advertised them; on duplicate
// names the server that sorts first wins.
type Source struct {
	mu sync.RWMutex

	servers map[string]*Server
	owner   map[string]string // tool name to server name
	tools   []api.ToolDefinition
}

// Ensure Source plugs into the registry and can run calls on its own.
var (
	_ registry.Provider  = (*Source)(nil)
	_ tools.ToolExecutor = (*Source)(nil)
)

// NewSource creates a Source over open servers keyed by name. Call
// Discover before use.
func NewSource(servers map[string]*Server) *Source {
	if servers == nil {
		servers = make(map[string]*Server)
	}
	return &Source{servers: servers, owner: make(map[string]string)}
}

// Connect connects to every configured server and discovers its tools.
// Servers that cannot be reached are logged and skipped; the returned
// error joins their failures and the Source is usable with the rest.
func Connect(ctx context.Context, cfg Config) (*Source, error) {
	servers := make(map[string]*Server, len(cfg.Servers))
	var errs []error
	for _, sc := range cfg.Servers {
		if _, dup := servers[sc.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate MCP server name %q", sc.Name))
			continue
		}
		srv, err := Dial(ctx, sc)
		if err != nil {
			slog.Warn("skipping MCP server", "server", sc.Name, "error", err)
			errs = append(errs, err)
			continue
		}
		servers[sc.Name] = srv
	}

	s := NewSource(servers)
	if err := s.Discover(ctx); err != nil {
		errs = append(errs, err)
	}
	return s, errors.Join(errs...)
}

// Discover lists the tools of every connected server. Servers whose
// listing fails contribute no tools.
func (s *Source) Discover(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.owner = make(map[string]string)
	s.tools = nil

	var errs []error
	for _, name := range slices.Sorted(maps.Keys(s.servers)) {
		defs, err := s.servers[name].ListTools(ctx)
		if err != nil {
			slog.Error("MCP tool discovery failed", "server", name, "error", err)
			errs = append(errs, err)
			continue
		}

		added := 0
		for _, def := range defs {
			if first, taken := s.owner[def.Name]; taken {
				slog.Warn("MCP tool name already taken", "tool", def.Name, "server", name, "owner", first)
				continue
			}
			s.owner[def.Name] = name
			s.tools = append(s.tools, def)
			added++
		}
		slog.Info("MCP tools discovered", "server", name, "count", added)
	}
	return errors.Join(errs...)
}

// Name returns "mcp".
func (s *Source) Name() string {
	return "mcp"
}

// Kind returns ToolKindMCP.
func (s *Source) Kind() tools.ToolKind {
	return tools.ToolKindMCP
}

// Tools returns the discovered tool definitions.
func (s *Source) Tools() []api.ToolDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tools)
}

func (s *Source) CanExecute(toolName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.owner[toolName]
	return ok
}

// Execute forwards call to the server that advertised the tool.
func (s *Source) Execute(ctx context.Context, call tools.ToolCall) (*tools.ToolResult, error) {
	s.mu.RLock()
	srv := s.servers[s.owner[call.Name]]
	s.mu.RUnlock()

	if srv == nil {
		return tools.ErrorResult(call.ID, "no MCP server provides tool %q", call.Name), nil
	}
	return srv.Call(ctx, call), nil
}

// Close ends every session.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for name, srv := range s.servers {
		if err := srv.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing MCP server %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
