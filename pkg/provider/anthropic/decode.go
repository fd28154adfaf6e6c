package anthropic

import (
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/rhuss/strom/pkg/api"
	"github.com/rhuss/strom/pkg/provider"
	"github.com/rhuss/strom/pkg/provider/sse"
)

// NewDecoder returns the Messages API frame decoder. Streaming events are
// keyed by their payload "type"; a whole response body has type "message".
// Tool call fragments use the content block index as accumulator index.
func NewDecoder() provider.Decoder {
	return provider.DecoderFunc(func(f sse.Frame) []provider.Delta {
		if deltas, done := provider.PreparePayload(provider.TagAnthropic, f.Data); done {
			return deltas
		}
		return translateEvent(gjson.ParseBytes(f.Data))
	})
}

func translateEvent(ev gjson.Result) []provider.Delta {
	switch ev.Get("type").Str {
	case "content_block_start":
		block := ev.Get("content_block")
		index := int(ev.Get("index").Int())
		switch block.Get("type").Str {
		case "tool_use":
			return []provider.Delta{{
				Kind:          provider.DeltaToolCall,
				ToolCallIndex: index,
				ToolCallID:    block.Get("id").Str,
				FunctionName:  block.Get("name").Str,
			}}
		case "text":
			if text := block.Get("text").Str; text != "" {
				return []provider.Delta{provider.TextDelta(text)}
			}
		}
		return nil

	case "content_block_delta":
		delta := ev.Get("delta")
		switch delta.Get("type").Str {
		case "text_delta":
			return []provider.Delta{provider.TextDelta(delta.Get("text").Str)}
		case "input_json_delta":
			return []provider.Delta{{
				Kind:          provider.DeltaToolCall,
				ToolCallIndex: int(ev.Get("index").Int()),
				Arguments:     delta.Get("partial_json").Str,
			}}
		}
		// thinking_delta and signature_delta carry no assistant text.
		return nil

	case "message_delta":
		return []provider.Delta{{
			Kind:   provider.DeltaCompletion,
			Reason: MapStopReason(ev.Get("delta.stop_reason").Str),
			Usage:  translateUsage(ev.Get("usage")),
		}}

	case "message_stop":
		return []provider.Delta{{Kind: provider.DeltaCompletion, End: true}}

	case "message":
		return translateMessage(ev)

	case "message_start":
		// Input tokens are only reported here; message_delta carries output.
		if usage := translateUsage(ev.Get("message.usage")); usage != nil {
			return []provider.Delta{{Kind: provider.DeltaCompletion, Usage: usage}}
		}
		return nil

	case "content_block_stop", "ping":
		return nil

	default:
		slog.Debug("ignoring unknown anthropic event", "type", ev.Get("type").Str)
		return nil
	}
}

// translateMessage decodes a non-streaming Messages API response.
func translateMessage(msg gjson.Result) []provider.Delta {
	var out []provider.Delta
	if blocks := msg.Get("content"); blocks.IsArray() {
		blocks.ForEach(func(pos, block gjson.Result) bool {
			switch block.Get("type").Str {
			case "text":
				if text := block.Get("text").Str; text != "" {
					out = append(out, provider.TextDelta(text))
				}
			case "tool_use":
				args := block.Get("input").Raw
				if args == "" {
					args = "{}"
				}
				out = append(out, provider.Delta{
					Kind:          provider.DeltaToolCall,
					ToolCallIndex: int(pos.Int()),
					ToolCallID:    block.Get("id").Str,
					FunctionName:  block.Get("name").Str,
					Arguments:     args,
					Complete:      true,
				})
			}
			return true
		})
	}
	out = append(out, provider.Delta{
		Kind:   provider.DeltaCompletion,
		Reason: MapStopReason(msg.Get("stop_reason").Str),
		Usage:  translateUsage(msg.Get("usage")),
	})
	return out
}

// MapStopReason maps an Anthropic stop_reason to the canonical reason.
func MapStopReason(reason string) provider.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence", "pause_turn":
		return provider.FinishStop
	case "tool_use":
		return provider.FinishToolCalls
	case "max_tokens":
		return provider.FinishLength
	case "refusal":
		return provider.FinishContentFilter
	case "":
		return ""
	default:
		slog.Warn("unknown anthropic stop_reason, treating as stop", "stop_reason", reason)
		return provider.FinishStop
	}
}

func translateUsage(u gjson.Result) *api.Usage {
	if !u.IsObject() {
		return nil
	}
	in := int(u.Get("input_tokens").Int())
	out := int(u.Get("output_tokens").Int())
	return &api.Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out}
}
