package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tidwall/gjson"

	"github.com/rhuss/strom/pkg/api"
	"github.com/rhuss/strom/pkg/tools"
)

// clientInfo is what strom reports about itself in the MCP handshake.
var clientInfo = &mcp.Implementation{Name: "strom", Version: "1.0.0"}

// Server is an open session with one MCP server.
type Server struct {
	name    string
	session *mcp.ClientSession
}

// Dial opens a session with the server described by cfg.
func Dial(ctx context.Context, cfg ServerConfig) (*Server, error) {
	transport, err := newTransport(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("MCP server %q: %w", cfg.Name, err)
	}
	return Open(ctx, cfg.Name, transport)
}

// Open performs the MCP handshake over an existing transport.
func Open(ctx context.Context, name string, transport mcp.Transport) (*Server, error) {
	c := mcp.NewClient(clientInfo, &mcp.ClientOptions{Capabilities: &mcp.ClientCapabilities{}})
	session, err := c.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to MCP server %q: %w", name, err)
	}
	return &Server{name: name, session: session}, nil
}

func newTransport(ctx context.Context, cfg ServerConfig) (mcp.Transport, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("no url configured")
	}
	hc, err := httpClientFor(ctx, cfg)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.Transport) {
	case TransportStreamableHTTP, "":
		return &mcp.StreamableClientTransport{Endpoint: cfg.URL, HTTPClient: hc}, nil
	case TransportSSE:
		return &mcp.SSEClientTransport{Endpoint: cfg.URL, HTTPClient: hc}, nil
	}
	return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
}

// Name returns the configured server name.
func (s *Server) Name() string { return s.name }

// ListTools pages through the server's tools.
func (s *Server) ListTools(ctx context.Context) ([]api.ToolDefinition, error) {
	var defs []api.ToolDefinition
	for tool, err := range s.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("listing tools from %q: %w", s.name, err)
		}
		def := api.ToolDefinition{Name: tool.Name, Description: tool.Description}
		if tool.InputSchema != nil {
			raw, err := json.Marshal(tool.InputSchema)
			if err != nil {
				return nil, fmt.Errorf("tool %q from %q: encoding input schema: %w", tool.Name, s.name, err)
			}
			def.Parameters = raw
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Call runs call on the server. Bad arguments and protocol failures come
// back as error results for the model to read.
func (s *Server) Call(ctx context.Context, call tools.ToolCall) *tools.ToolResult {
	args := strings.TrimSpace(call.Arguments)
	if args == "" {
		args = "{}"
	}
	if !gjson.Valid(args) || !gjson.Parse(args).IsObject() {
		return tools.ErrorResult(call.ID, "invalid arguments for %s: expected a JSON object", call.Name)
	}

	res, err := s.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      call.Name,
		Arguments: json.RawMessage(args),
	})
	if err != nil {
		return tools.ErrorResult(call.ID, "MCP server %s: %v", s.name, err)
	}
	return &tools.ToolResult{CallID: call.ID, Output: resultText(res), IsError: res.IsError}
}

// resultText flattens a tool result into the text the model sees. Text
// blocks are joined by newlines; other blocks are summarised. With no
// content at all the structured content is used.
func resultText(res *mcp.CallToolResult) string {
	parts := make([]string, 0, len(res.Content))
	for _, c := range res.Content {
		switch c := c.(type) {
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[image %s, %d bytes]", c.MIMEType, len(c.Data)))
		case *mcp.AudioContent:
			parts = append(parts, fmt.Sprintf("[audio %s, %d bytes]", c.MIMEType, len(c.Data)))
		}
	}
	if len(parts) == 0 && res.StructuredContent != nil {
		if raw, err := json.Marshal(res.StructuredContent); err == nil {
			return string(raw)
		}
	}
	return strings.Join(parts, "\n")
}

// Close ends the session.
func (s *Server) Close() error {
	return s.session.Close()
}
