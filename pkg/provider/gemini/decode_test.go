package gemini

import (
	"reflect"
	"testing"

	"github.com/rhuss/strom/pkg/provider"
	"github.com/rhuss/strom/pkg/provider/sse"
)

func decodeStream(t *testing.T, sseData string) []provider.Delta {
	t.Helper()
	dec := NewDecoder()
	framer := sse.NewEventStream()
	frames := append(framer.Feed([]byte(sseData)), framer.Flush()...)

	var deltas []provider.Delta
	for _, f := range frames {
		deltas = append(deltas, dec.Decode(f)...)
	}
	return deltas
}

func TestDecode_TextStream(t *testing.T) {
	sseData := `data: {"candidates":[{"content":{"parts":[{"text":"Hel"}],"role":"model"}}],"usageMetadata":{"promptTokenCount":4,"totalTokenCount":4}}

data: {"candidates":[{"content":{"parts":[{"text":"lo"}],"role":"model"},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":4,"candidatesTokenCount":2,"totalTokenCount":6}}

`
	deltas := decodeStream(t, sseData)
	if len(deltas) != 3 {
		t.Fatalf("expected 3 deltas, got %+v", deltas)
	}
	if deltas[0].Text+deltas[1].Text != "Hello" {
		t.Errorf("text = %q", deltas[0].Text+deltas[1].Text)
	}
	done := deltas[2]
	if done.Kind != provider.DeltaCompletion || done.Reason != provider.FinishStop {
		t.Errorf("completion = %+v", done)
	}
	if done.Usage == nil || done.Usage.TotalTokens != 6 {
		t.Errorf("usage = %+v", done.Usage)
	}
}

func TestDecode_FunctionCalls(t *testing.T) {
	sseData := `data: {"candidates":[{"content":{"parts":[{"functionCall":{"name":"get_weather","args":{"city":"Paris"}}},{"functionCall":{"id":"fc_2","name":"get_time","args":{}}}],"role":"model"},"finishReason":"STOP"}]}

`
	deltas := decodeStream(t, sseData)
	if len(deltas) != 3 {
		t.Fatalf("expected 3 deltas, got %+v", deltas)
	}
	first, second := deltas[0], deltas[1]
	if first.Kind != provider.DeltaToolCall || !first.Complete || first.FunctionName != "get_weather" {
		t.Errorf("first call = %+v", first)
	}
	if first.Arguments != `{"city":"Paris"}` || first.ToolCallID != "" {
		t.Errorf("first call args/id = %q/%q", first.Arguments, first.ToolCallID)
	}
	if second.ToolCallIndex != 1 || second.ToolCallID != "fc_2" {
		t.Errorf("second call = %+v", second)
	}
	if deltas[2].Reason != provider.FinishToolCalls {
		t.Errorf("STOP with function calls should map to tool_calls, got %q", deltas[2].Reason)
	}
}

func TestDecode_ArrayBody(t *testing.T) {
	body := `[{"candidates":[{"content":{"parts":[{"text":"a"}]}}]},{"candidates":[{"content":{"parts":[{"text":"b"}]},"finishReason":"MAX_TOKENS"}]}]`
	deltas := NewDecoder().Decode(sse.Frame{Data: []byte(body)})
	if len(deltas) != 3 || deltas[2].Reason != provider.FinishLength {
		t.Fatalf("unexpected deltas %+v", deltas)
	}
}

func TestDecode_BlockedPrompt(t *testing.T) {
	deltas := NewDecoder().Decode(sse.Frame{Data: []byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`)})
	if len(deltas) != 1 || deltas[0].Reason != provider.FinishContentFilter {
		t.Fatalf("unexpected deltas %+v", deltas)
	}
}

func TestDecode_ErrorBody(t *testing.T) {
	deltas := NewDecoder().Decode(sse.Frame{Data: []byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`)})
	if len(deltas) != 1 || deltas[0].Kind != provider.DeltaError {
		t.Fatalf("unexpected deltas %+v", deltas)
	}
}

func TestDecode_SkipsThoughts(t *testing.T) {
	deltas := NewDecoder().Decode(sse.Frame{Data: []byte(`{"candidates":[{"content":{"parts":[{"text":"pondering","thought":true},{"text":"answer"}]}}]}`)})
	if len(deltas) != 1 || deltas[0].Text != "answer" {
		t.Fatalf("unexpected deltas %+v", deltas)
	}
}

func TestDecode_NullParts(t *testing.T) {
	deltas := NewDecoder().Decode(sse.Frame{Data: []byte(`{"candidates":[{"content":{"role":"model","parts":null},"finishReason":"STOP"}]}`)})
	if len(deltas) != 1 || deltas[0].Kind != provider.DeltaCompletion || deltas[0].Reason != provider.FinishStop {
		t.Fatalf("expected only the completion, got %+v", deltas)
	}
}

func TestDecode_Idempotent(t *testing.T) {
	dec := NewDecoder()
	frame := sse.Frame{Data: []byte(`{"candidates":[{"content":{"parts":[{"text":"x"},{"functionCall":{"name":"f","args":{"a":1}}}]},"finishReason":"STOP"}]}`)}
	if a, b := dec.Decode(frame), dec.Decode(frame); !reflect.DeepEqual(a, b) {
		t.Errorf("decoding twice differs: %+v vs %+v", a, b)
	}
}
