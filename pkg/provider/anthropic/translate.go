package anthropic

import (
	"encoding/json"
	"strings"

	"github.com/rhuss/strom/pkg/api"
	"github.com/rhuss/strom/pkg/provider"
)

var emptyObject = json.RawMessage(`{}`)

// translateRequest converts a ChatRequest into a Messages API body.
// System messages are lifted into the top-level system field and
// consecutive tool results are merged into a single user turn, as the
// API requires.
func translateRequest(req *provider.ChatRequest, fallbackMaxTokens int) messagesRequest {
	mr := messagesRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      req.Stream,
	}
	if mr.MaxTokens <= 0 {
		mr.MaxTokens = fallbackMaxTokens
	}
	if mr.MaxTokens <= 0 {
		mr.MaxTokens = defaultMaxTokens
	}

	var system []string
	for _, m := range req.Messages {
		switch m.Role {
		case api.RoleSystem:
			system = append(system, m.Content)

		case api.RoleTool:
			block := contentBlock{
				Type:      "tool_result",
				ToolUseID: m.ToolCallID,
				Content:   m.Content,
			}
			if n := len(mr.Messages); n > 0 && isToolResultTurn(mr.Messages[n-1]) {
				mr.Messages[n-1].Content = append(mr.Messages[n-1].Content, block)
				continue
			}
			mr.Messages = append(mr.Messages, message{Role: "user", Content: []contentBlock{block}})

		case api.RoleAssistant:
			msg := message{Role: "assistant"}
			if m.Content != "" {
				msg.Content = append(msg.Content, contentBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				msg.Content = append(msg.Content, contentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: toolInput(tc.Arguments),
				})
			}
			mr.Messages = append(mr.Messages, msg)

		default:
			mr.Messages = append(mr.Messages, message{
				Role:    "user",
				Content: []contentBlock{{Type: "text", Text: m.Content}},
			})
		}
	}
	mr.System = strings.Join(system, "\n\n")

	for _, td := range req.Tools {
		schema := td.Parameters
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		mr.Tools = append(mr.Tools, tool{
			Name:        td.Name,
			Description: td.Description,
			InputSchema: schema,
		})
	}

	return mr
}

func isToolResultTurn(m message) bool {
	return m.Role == "user" && len(m.Content) > 0 && m.Content[0].Type == "tool_result"
}

// toolInput returns args as a JSON object, or {} when args is empty or
// not an object.
func toolInput(args string) json.RawMessage {
	raw := json.RawMessage(args)
	var obj map[string]any
	if args == "" || json.Unmarshal(raw, &obj) != nil {
		return emptyObject
	}
	return raw
}
