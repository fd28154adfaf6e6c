package provider

import "github.com/rhuss/strom/pkg/api"

// DeltaKind classifies a canonical delta.
type DeltaKind int

const (
	DeltaText       DeltaKind = iota // Incremental assistant text
	DeltaToolCall                    // Tool call start or argument fragment
	DeltaCompletion                  // End of the assistant turn
	DeltaError                       // Terminal failure
)

func (k DeltaKind) String() string {
	switch k {
	case DeltaText:
		return "text"
	case DeltaToolCall:
		return "tool_call"
	case DeltaCompletion:
		return "completion"
	case DeltaError:
		return "error"
	default:
		return "unknown"
	}
}

// FinishReason explains why an assistant turn ended.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"

	// FinishMaxRounds ends an automatic function calling run that hit
	// its round limit. Providers never send it.
	FinishMaxRounds FinishReason = "max_rounds"
)

// Delta is the provider-neutral unit every decoder produces. Which fields
// are meaningful depends on Kind.
type Delta struct {
	Kind DeltaKind

	// Text is the fragment for DeltaText.
	Text string

	// ToolCallIndex identifies the accumulator a tool call fragment
	// belongs to. ToolCallID and FunctionName are usually set only on
	// the first fragment of a call.
	ToolCallIndex int
	ToolCallID    string
	FunctionName  string
	Arguments     string

	// Complete marks a tool call delivered whole in one fragment
	// (non-streaming bodies, Gemini). Such calls never merge with
	// another fragment sharing their index.
	Complete bool

	// Reason is set on DeltaCompletion. It may be empty on a sentinel.
	Reason FinishReason

	// End marks the provider's end-of-stream sentinel ("[DONE]",
	// message_stop). The engine stops reading after it.
	End bool

	// Usage may accompany a completion.
	Usage *api.Usage

	// Err is set on DeltaError.
	Err error
}

// TextDelta returns a DeltaText.
func TextDelta(s string) Delta {
	return Delta{Kind: DeltaText, Text: s}
}

// CompletionDelta returns a DeltaCompletion with the given reason.
func CompletionDelta(reason FinishReason) Delta {
	return Delta{Kind: DeltaCompletion, Reason: reason}
}

// ErrorDelta returns a DeltaError wrapping err.
func ErrorDelta(err error) Delta {
	return Delta{Kind: DeltaError, Err: err}
}

// Terminal reports whether the delta ends a stream.
func (d Delta) Terminal() bool {
	return d.Kind == DeltaCompletion || d.Kind == DeltaError
}
