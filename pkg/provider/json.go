package provider

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// DonePayload is the OpenAI-style end-of-stream sentinel.
const DonePayload = "[DONE]"

// PreparePayload classifies frame data before provider specific decoding.
// It returns the deltas for the cases every provider treats alike and
// ok=false when the caller should decode the JSON object itself:
//   - empty data yields no deltas
//   - the [DONE] sentinel yields a sentinel completion
//   - a bare JSON primitive yields its text
//   - malformed JSON is skipped with a warning
//   - provider error payloads yield an error delta
func PreparePayload(tag Tag, data []byte) ([]Delta, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, true
	}
	if string(data) == DonePayload {
		return []Delta{{Kind: DeltaCompletion, End: true}}, true
	}
	if !gjson.ValidBytes(data) {
		slog.Warn("skipping malformed stream frame",
			"provider", string(tag),
			"data", Truncate(string(data), 200),
		)
		return nil, true
	}

	r := gjson.ParseBytes(data)
	switch r.Type {
	case gjson.String:
		return []Delta{TextDelta(r.Str)}, true
	case gjson.Number, gjson.True, gjson.False:
		return []Delta{TextDelta(r.Raw)}, true
	case gjson.Null:
		return nil, true
	}
	if r.IsArray() {
		return nil, false
	}
	if d, ok := ErrorFrame(data); ok {
		return []Delta{d}, true
	}
	return nil, false
}

// Truncate limits a string to maxLen characters for log output.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// ApplyExtra merges extra fields into a JSON body. Keys are sjson paths,
// so nested fields such as "provider.order" can be set without a typed
// request struct.
func ApplyExtra(body []byte, extra map[string]any) ([]byte, error) {
	var err error
	for path, v := range extra {
		body, err = sjson.SetBytes(body, path, v)
		if err != nil {
			return nil, fmt.Errorf("setting %q: %w", path, err)
		}
	}
	return body, nil
}
