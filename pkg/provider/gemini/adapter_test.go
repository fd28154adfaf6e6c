package gemini

import (
	"encoding/json"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/rhuss/strom/pkg/api"
	"github.com/rhuss/strom/pkg/provider"
)

func TestBuildRequest_Endpoints(t *testing.T) {
	a := New(provider.Options{APIKey: "g-key", BaseURL: "http://localhost:9999/v1beta/"})
	msgs := []api.Message{api.UserMessage("hi")}

	streamReq, err := a.BuildRequest(&provider.ChatRequest{Model: "gemini-2.0-flash", Messages: msgs, Stream: true})
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	if streamReq.Endpoint != "http://localhost:9999/v1beta/models/gemini-2.0-flash:streamGenerateContent?alt=sse" {
		t.Errorf("stream endpoint = %q", streamReq.Endpoint)
	}
	if streamReq.Header.Get("x-goog-api-key") != "g-key" {
		t.Error("x-goog-api-key header missing")
	}

	plainReq, _ := a.BuildRequest(&provider.ChatRequest{Model: "gemini-2.0-flash", Messages: msgs})
	if plainReq.Endpoint != "http://localhost:9999/v1beta/models/gemini-2.0-flash:generateContent" {
		t.Errorf("endpoint = %q", plainReq.Endpoint)
	}
}

func TestBuildRequest_Body(t *testing.T) {
	a := New(provider.Options{})
	req, err := a.BuildRequest(&provider.ChatRequest{
		Model: "gemini-2.0-flash",
		Messages: []api.Message{
			api.SystemMessage("Be helpful."),
			api.UserMessage("Weather?"),
			{Role: api.RoleAssistant, ToolCalls: []api.ToolCall{{ID: "call_x", Name: "get_weather", Arguments: `{"city":"Rome"}`}}},
			{Role: api.RoleTool, ToolCallID: "call_x", Name: "get_weather", Content: "warm"},
		},
		Tools:          []api.ToolDefinition{{Name: "get_weather", Parameters: json.RawMessage(`{"type":"object"}`)}},
		ResponseSchema: json.RawMessage(`{"type":"object","properties":{"t":{"type":"number"}}}`),
	})
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}

	body := gjson.ParseBytes(req.Body)
	if body.Get("systemInstruction.parts.0.text").Str != "Be helpful." {
		t.Errorf("systemInstruction = %s", body.Get("systemInstruction").Raw)
	}
	if n := len(body.Get("contents").Array()); n != 3 {
		t.Fatalf("contents = %d, want 3", n)
	}
	if body.Get("contents.1.role").Str != "model" {
		t.Errorf("assistant role = %q, want model", body.Get("contents.1.role").Str)
	}
	if body.Get("contents.1.parts.0.functionCall.args.city").Str != "Rome" {
		t.Errorf("functionCall = %s", body.Get("contents.1.parts.0").Raw)
	}
	resp := body.Get("contents.2.parts.0.functionResponse")
	if resp.Get("name").Str != "get_weather" || resp.Get("response.content").Str != "warm" {
		t.Errorf("functionResponse = %s", resp.Raw)
	}
	if body.Get("tools.0.functionDeclarations.0.name").Str != "get_weather" {
		t.Errorf("tools = %s", body.Get("tools").Raw)
	}
	if body.Get("generationConfig.responseMimeType").Str != "application/json" {
		t.Error("response schema should set responseMimeType")
	}
	if body.Get("generationConfig.responseJsonSchema.properties.t.type").Str != "number" {
		t.Errorf("responseJsonSchema = %s", body.Get("generationConfig.responseJsonSchema").Raw)
	}
}
