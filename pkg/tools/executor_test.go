package tools

import (
	"testing"

	"github.com/rhuss/strom/pkg/api"
)

func TestCallFromAPI(t *testing.T) {
	call := CallFromAPI(api.ToolCall{ID: "call_1", Name: "get_weather", Arguments: `{"city":"Paris"}`})
	want := ToolCall{ID: "call_1", Name: "get_weather", Arguments: `{"city":"Paris"}`}
	if call != want {
		t.Errorf("CallFromAPI = %+v, want %+v", call, want)
	}
}

func TestResultMessage(t *testing.T) {
	res := ToolResult{CallID: "call_1", Output: "Paris: sunny"}
	msg := res.Message(api.ToolCall{ID: "call_1", Name: "get_weather"})

	if msg.Role != api.RoleTool {
		t.Errorf("Role = %q, want tool", msg.Role)
	}
	if msg.Content != "Paris: sunny" || msg.ToolCallID != "call_1" || msg.Name != "get_weather" {
		t.Errorf("message = %+v", msg)
	}
}

func TestErrorResult(t *testing.T) {
	res := ErrorResult("c1", "tool %q failed: %s", "get_weather", "connection refused")
	if !res.IsError || res.CallID != "c1" {
		t.Fatalf("result = %+v", res)
	}
	if res.Output != `tool "get_weather" failed: connection refused` {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestToolKindString(t *testing.T) {
	tests := []struct {
		kind ToolKind
		want string
	}{
		{ToolKindFunction, "function"},
		{ToolKindMCP, "mcp"},
		{ToolKind(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}
