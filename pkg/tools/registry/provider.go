// Package registry maps tool names to executable tools for automatic
// function calling. Tools are either in-process Go functions registered
// with a JSON schema for their arguments, or come from a Provider such as
// a set of MCP servers.
//
// The Registry implements tools.ToolExecutor, recovers from panics in tool
// code and records execution metrics.
package registry

import (
	"context"

	"github.com/rhuss/strom/pkg/api"
	"github.com/rhuss/strom/pkg/tools"
)

// Provider contributes tools that run outside the registry. Registered
// functions take precedence over provider tools of the same name.
type Provider interface {
	Name() string
	Tools() []api.ToolDefinition
	CanExecute(name string) bool
	Execute(ctx context.Context, call tools.ToolCall) (*tools.ToolResult, error)

	// Close is called by Registry.Close.
	Close() error
}
