package anthropic

import (
	"testing"

	"github.com/tidwall/gjson"

	"github.com/rhuss/strom/pkg/api"
	"github.com/rhuss/strom/pkg/provider"
)

func TestBuildRequest(t *testing.T) {
	a := New(provider.Options{APIKey: "sk-ant"})
	req, err := a.BuildRequest(&provider.ChatRequest{
		Model:  "claude-sonnet-4",
		Stream: true,
		Messages: []api.Message{
			api.SystemMessage("You are terse."),
			api.UserMessage("Weather in NYC and Paris?"),
			{Role: api.RoleAssistant, Content: "Checking.", ToolCalls: []api.ToolCall{
				{ID: "toolu_1", Name: "get_weather", Arguments: `{"city":"NYC"}`},
				{ID: "toolu_2", Name: "get_weather", Arguments: `not json`},
			}},
			{Role: api.RoleTool, ToolCallID: "toolu_1", Content: "sunny"},
			{Role: api.RoleTool, ToolCallID: "toolu_2", Content: "rain"},
		},
		Tools: []api.ToolDefinition{{Name: "get_weather", Description: "Weather lookup"}},
	})
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}

	if req.Endpoint != "https://api.anthropic.com/v1/messages" {
		t.Errorf("endpoint = %q", req.Endpoint)
	}
	if req.Header.Get("x-api-key") != "sk-ant" {
		t.Error("x-api-key header missing")
	}
	if req.Header.Get("anthropic-version") != APIVersion {
		t.Error("anthropic-version header missing")
	}
	if req.Header.Get("Authorization") != "" {
		t.Error("Anthropic requests must not send a bearer token")
	}

	body := gjson.ParseBytes(req.Body)
	if body.Get("system").Str != "You are terse." {
		t.Errorf("system = %q", body.Get("system").Str)
	}
	if n := len(body.Get("messages").Array()); n != 3 {
		t.Fatalf("messages = %d, want 3 (user, assistant, merged tool results)", n)
	}
	if body.Get("max_tokens").Int() != defaultMaxTokens {
		t.Errorf("max_tokens = %d, want default", body.Get("max_tokens").Int())
	}
	assistant := body.Get("messages.1.content")
	if assistant.Get("0.type").Str != "text" || assistant.Get("1.type").Str != "tool_use" {
		t.Errorf("assistant blocks = %s", assistant.Raw)
	}
	if assistant.Get("1.input.city").Str != "NYC" {
		t.Errorf("tool_use input = %s", assistant.Get("1.input").Raw)
	}
	if assistant.Get("2.input").Raw != "{}" {
		t.Errorf("malformed arguments should become {}, got %s", assistant.Get("2.input").Raw)
	}
	results := body.Get("messages.2")
	if results.Get("role").Str != "user" || len(results.Get("content").Array()) != 2 {
		t.Errorf("tool results turn = %s", results.Raw)
	}
	if results.Get("content.1.tool_use_id").Str != "toolu_2" {
		t.Errorf("second tool result = %s", results.Get("content.1").Raw)
	}
	if body.Get("tools.0.input_schema.type").Str != "object" {
		t.Errorf("tools = %s", body.Get("tools").Raw)
	}
	if !body.Get("stream").Bool() {
		t.Error("stream flag missing")
	}
}
