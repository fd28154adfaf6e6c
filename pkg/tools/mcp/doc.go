// Package mcp connects strom's tool registry to MCP (Model Context
// Protocol) servers. A Source connects to the configured servers,
// discovers their tools and forwards tool calls to the server that
// advertised each tool.
//
// The package wraps the official MCP Go SDK (github.com/modelcontextprotocol/go-sdk).
// Source implements registry.Provider, so MCP tools take part in
// automatic function calling alongside in-process functions.
//
// Servers are reached over SSE or streamable HTTP, with optional static
// headers and OAuth 2.0 client credentials.
package mcp
