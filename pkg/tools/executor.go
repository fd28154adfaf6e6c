package tools

import (
	"context"
	"fmt"

	"github.com/rhuss/strom/pkg/api"
)

// ToolKind says where a tool runs.
type ToolKind int

const (
	// ToolKindFunction is a Go function in the tool registry.
	ToolKindFunction ToolKind = iota

	// ToolKindMCP is forwarded to the MCP server that advertised it.
	ToolKindMCP
)

func (k ToolKind) String() string {
	switch k {
	case ToolKindFunction:
		return "function"
	case ToolKindMCP:
		return "mcp"
	default:
		return "unknown"
	}
}

// ToolExecutor runs tool calls for one kind of tool.
type ToolExecutor interface {
	Kind() ToolKind

	// CanExecute reports whether the executor knows toolName.
	CanExecute(toolName string) bool

	// Execute runs the call. A failing tool yields a result with IsError
	// set; a non-nil error means the call could not be attempted.
	Execute(ctx context.Context, call ToolCall) (*ToolResult, error)
}

// ToolCall is one invocation requested by the model, with complete
// arguments.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON object
}

// CallFromAPI converts a call taken from an assistant message.
func CallFromAPI(c api.ToolCall) ToolCall {
	return ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
}

// ToolResult is the text sent back to the model for one call.
type ToolResult struct {
	CallID  string
	Output  string
	IsError bool // Output describes a failure
}

// Message renders r as the tool message answering call.
func (r ToolResult) Message(call api.ToolCall) api.Message {
	return api.Message{
		Role:       api.RoleTool,
		Content:    r.Output,
		ToolCallID: call.ID,
		Name:       call.Name,
	}
}

// ErrorResult builds an error result for callID.
func ErrorResult(callID, format string, args ...any) *ToolResult {
	return &ToolResult{
		CallID:  callID,
		Output:  fmt.Sprintf(format, args...),
		IsError: true,
	}
}
