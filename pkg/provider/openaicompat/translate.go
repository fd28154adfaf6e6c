package openaicompat

import (
	"github.com/rhuss/strom/pkg/api"
	"github.com/rhuss/strom/pkg/provider"
)

// defaultSchemaName is sent when a response schema has no name.
const defaultSchemaName = "response"

// translateRequest builds the Chat Completions body for req.
// fallbackMaxTokens applies when req sets no limit; zero sends none.
func translateRequest(req *provider.ChatRequest, fallbackMaxTokens int) chatRequest {
	cr := chatRequest{
		Model:       req.Model,
		Messages:    make([]message, 0, len(req.Messages)),
		Temperature: req.Temperature,
		Stream:      req.Stream,
	}
	if req.Stream {
		cr.StreamOptions = &streamOptions{IncludeUsage: true}
	}

	limit := req.MaxTokens
	if limit <= 0 {
		limit = fallbackMaxTokens
	}
	if limit > 0 {
		cr.MaxTokens = &limit
	}

	for _, m := range req.Messages {
		cr.Messages = append(cr.Messages, toMessage(m))
	}
	for _, td := range req.Tools {
		cr.Tools = append(cr.Tools, tool{
			Type:     "function",
			Function: functionDef{Name: td.Name, Description: td.Description, Parameters: td.Parameters},
		})
	}

	if len(req.ResponseSchema) > 0 {
		name := req.SchemaName
		if name == "" {
			name = defaultSchemaName
		}
		cr.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchema{Name: name, Schema: req.ResponseSchema},
		}
	}
	return cr
}

func toMessage(m api.Message) message {
	out := message{Role: string(m.Role), ToolCallID: m.ToolCallID}
	if m.Content != "" || len(m.ToolCalls) == 0 {
		text := m.Content
		out.Content = &text
	}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, toolCall{
			ID:       tc.ID,
			Type:     "function",
			Function: functionCall{Name: tc.Name, Arguments: tc.Arguments},
		})
	}
	return out
}
