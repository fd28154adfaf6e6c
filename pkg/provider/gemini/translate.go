package gemini

import (
	"encoding/json"

	"github.com/rhuss/strom/pkg/api"
	"github.com/rhuss/strom/pkg/provider"
)

// translateRequest converts a ChatRequest into a generateContent body.
// Assistant turns use the "model" role; tool results become
// functionResponse parts keyed by tool name, merged per turn.
func translateRequest(req *provider.ChatRequest, fallbackMaxTokens int) generateRequest {
	var gr generateRequest

	var system []part
	for _, m := range req.Messages {
		switch m.Role {
		case api.RoleSystem:
			system = append(system, part{Text: m.Content})

		case api.RoleTool:
			p := part{FunctionResponse: &functionResponse{
				ID:       m.ToolCallID,
				Name:     m.Name,
				Response: map[string]any{"content": m.Content},
			}}
			if n := len(gr.Contents); n > 0 && isFunctionResponseTurn(gr.Contents[n-1]) {
				gr.Contents[n-1].Parts = append(gr.Contents[n-1].Parts, p)
				continue
			}
			gr.Contents = append(gr.Contents, content{Role: "user", Parts: []part{p}})

		case api.RoleAssistant:
			c := content{Role: "model"}
			if m.Content != "" {
				c.Parts = append(c.Parts, part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				c.Parts = append(c.Parts, part{FunctionCall: &functionCall{
					Name: tc.Name,
					Args: argsObject(tc.Arguments),
				}})
			}
			gr.Contents = append(gr.Contents, c)

		default:
			gr.Contents = append(gr.Contents, content{Role: "user", Parts: []part{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		gr.SystemInstruction = &content{Parts: system}
	}

	if len(req.Tools) > 0 {
		ts := toolSet{}
		for _, td := range req.Tools {
			ts.FunctionDeclarations = append(ts.FunctionDeclarations, functionDeclaration{
				Name:        td.Name,
				Description: td.Description,
				Parameters:  td.Parameters,
			})
		}
		gr.Tools = []toolSet{ts}
	}

	cfg := generationConfig{Temperature: req.Temperature, MaxOutputTokens: req.MaxTokens}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = fallbackMaxTokens
	}
	if len(req.ResponseSchema) > 0 {
		cfg.ResponseMimeType = "application/json"
		cfg.ResponseJSONSchema = req.ResponseSchema
	}
	if cfg.Temperature != nil || cfg.MaxOutputTokens > 0 || cfg.ResponseMimeType != "" {
		gr.GenerationConfig = &cfg
	}

	return gr
}

func isFunctionResponseTurn(c content) bool {
	return c.Role == "user" && len(c.Parts) > 0 && c.Parts[0].FunctionResponse != nil
}

func argsObject(args string) json.RawMessage {
	var obj map[string]any
	if args == "" || json.Unmarshal([]byte(args), &obj) != nil {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(args)
}
