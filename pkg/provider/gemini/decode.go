package gemini

import (
	"github.com/tidwall/gjson"

	"github.com/rhuss/strom/pkg/api"
	"github.com/rhuss/strom/pkg/provider"
	"github.com/rhuss/strom/pkg/provider/sse"
)

// NewDecoder returns the generateContent frame decoder. Each streamed
// frame is a complete GenerateContentResponse; a non-SSE stream body is
// a JSON array of them.
func NewDecoder() provider.Decoder {
	return provider.DecoderFunc(func(f sse.Frame) []provider.Delta {
		if deltas, done := provider.PreparePayload(provider.TagGemini, f.Data); done {
			return deltas
		}
		r := gjson.ParseBytes(f.Data)
		if !r.IsArray() {
			return translateResponse(r)
		}
		var out []provider.Delta
		r.ForEach(func(_, item gjson.Result) bool {
			out = append(out, translateResponse(item)...)
			return true
		})
		return out
	})
}

func translateResponse(resp gjson.Result) []provider.Delta {
	var out []provider.Delta

	if block := resp.Get("promptFeedback.blockReason"); block.Exists() {
		return []provider.Delta{{
			Kind:   provider.DeltaCompletion,
			Reason: provider.FinishContentFilter,
			Usage:  translateUsage(resp.Get("usageMetadata")),
		}}
	}

	cand := resp.Get("candidates.0")
	hasCalls := false
	if parts := cand.Get("content.parts"); parts.IsArray() {
		parts.ForEach(func(pos, p gjson.Result) bool {
			switch {
			case p.Get("functionCall").Exists():
				fc := p.Get("functionCall")
				args := fc.Get("args").Raw
				if args == "" {
					args = "{}"
				}
				out = append(out, provider.Delta{
					Kind:          provider.DeltaToolCall,
					ToolCallIndex: int(pos.Int()),
					ToolCallID:    fc.Get("id").Str,
					FunctionName:  fc.Get("name").Str,
					Arguments:     args,
					Complete:      true,
				})
				hasCalls = true
			case p.Get("thought").Bool():
				// Thought summaries are not assistant output.
			case p.Get("text").Exists():
				if text := p.Get("text").Str; text != "" {
					out = append(out, provider.TextDelta(text))
				}
			}
			return true
		})
	}

	if reason := cand.Get("finishReason"); reason.Exists() && reason.Str != "" && reason.Str != "FINISH_REASON_UNSPECIFIED" {
		fr := MapFinishReason(reason.Str)
		if hasCalls && fr == provider.FinishStop {
			fr = provider.FinishToolCalls
		}
		out = append(out, provider.Delta{
			Kind:   provider.DeltaCompletion,
			Reason: fr,
			Usage:  translateUsage(resp.Get("usageMetadata")),
		})
	}
	return out
}

// MapFinishReason maps a Gemini finishReason to the canonical reason.
func MapFinishReason(reason string) provider.FinishReason {
	switch reason {
	case "STOP":
		return provider.FinishStop
	case "MAX_TOKENS":
		return provider.FinishLength
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII", "IMAGE_SAFETY":
		return provider.FinishContentFilter
	default:
		return provider.FinishStop
	}
}

func translateUsage(u gjson.Result) *api.Usage {
	if !u.IsObject() {
		return nil
	}
	return &api.Usage{
		InputTokens:  int(u.Get("promptTokenCount").Int()),
		OutputTokens: int(u.Get("candidatesTokenCount").Int()),
		TotalTokens:  int(u.Get("totalTokenCount").Int()),
	}
}
