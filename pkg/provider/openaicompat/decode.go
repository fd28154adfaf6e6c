package openaicompat

import (
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/rhuss/strom/pkg/api"
	"github.com/rhuss/strom/pkg/provider"
	"github.com/rhuss/strom/pkg/provider/sse"
)

// NewDecoder returns the Chat Completions frame decoder. The same decoder
// handles streaming chunks (choices[].delta) and whole response bodies
// (choices[].message).
//
// Chunk format expected:
//
//	data: {"id":"...","choices":[{"index":0,"delta":{...},"finish_reason":null}]}
//
//	data: [DONE]
func NewDecoder(tag provider.Tag) provider.Decoder {
	return provider.DecoderFunc(func(f sse.Frame) []provider.Delta {
		if deltas, done := provider.PreparePayload(tag, f.Data); done {
			return deltas
		}
		return TranslateChunk(gjson.ParseBytes(f.Data))
	})
}

// TranslateChunk converts one parsed chunk or response body into
// canonical deltas in wire order: text, then tool call fragments, then
// the completion.
func TranslateChunk(chunk gjson.Result) []provider.Delta {
	var out []provider.Delta

	choice := chunk.Get("choices.0")
	usage := translateUsage(chunk.Get("usage"))

	if !choice.Exists() {
		// Usage-only final chunk (stream_options.include_usage).
		if usage != nil {
			out = append(out, provider.Delta{Kind: provider.DeltaCompletion, Usage: usage})
		}
		return out
	}

	msg := choice.Get("delta")
	whole := false
	if !msg.Exists() {
		msg = choice.Get("message")
		whole = true
	}

	if content := msg.Get("content"); content.Type == gjson.String && content.Str != "" {
		out = append(out, provider.TextDelta(content.Str))
	}

	if calls := msg.Get("tool_calls"); calls.IsArray() {
		calls.ForEach(func(pos, tc gjson.Result) bool {
			index := int(pos.Int())
			if idx := tc.Get("index"); idx.Exists() {
				index = int(idx.Int())
			}
			out = append(out, provider.Delta{
				Kind:          provider.DeltaToolCall,
				ToolCallIndex: index,
				ToolCallID:    tc.Get("id").Str,
				FunctionName:  tc.Get("function.name").Str,
				Arguments:     tc.Get("function.arguments").Str,
				Complete:      whole,
			})
			return true
		})
	}

	if reason := choice.Get("finish_reason"); reason.Type == gjson.String && reason.Str != "" {
		out = append(out, provider.Delta{
			Kind:   provider.DeltaCompletion,
			Reason: MapFinishReason(reason.Str),
			Usage:  usage,
		})
	} else if usage != nil {
		out = append(out, provider.Delta{Kind: provider.DeltaCompletion, Usage: usage})
	}

	return out
}

// MapFinishReason maps a Chat Completions finish_reason to the canonical
// reason.
func MapFinishReason(reason string) provider.FinishReason {
	switch reason {
	case "stop":
		return provider.FinishStop
	case "length":
		return provider.FinishLength
	case "tool_calls", "function_call":
		return provider.FinishToolCalls
	case "content_filter":
		return provider.FinishContentFilter
	default:
		slog.Warn("unknown finish_reason in stream, treating as stop",
			"finish_reason", reason,
		)
		return provider.FinishStop
	}
}

func translateUsage(u gjson.Result) *api.Usage {
	if !u.IsObject() {
		return nil
	}
	return &api.Usage{
		InputTokens:  int(u.Get("prompt_tokens").Int()),
		OutputTokens: int(u.Get("completion_tokens").Int()),
		TotalTokens:  int(u.Get("total_tokens").Int()),
	}
}
