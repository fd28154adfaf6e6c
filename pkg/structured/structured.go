// Package structured asks providers for JSON output that matches a Go
// type and parses the reply back into that type.
package structured

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/rhuss/strom/pkg/api"
)

// SchemaFor returns the JSON schema inferred from T.
func SchemaFor[T any]() (json.RawMessage, error) {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("inferring schema for %s: %w", typeName[T](), err)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshaling schema for %s: %w", typeName[T](), err)
	}
	return data, nil
}

// SchemaName returns a provider-safe schema name for T.
func SchemaName[T any]() string {
	name := typeName[T]()
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = invalidNameChars.ReplaceAllString(name, "_")
	if name == "" {
		return "response"
	}
	return name
}

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func typeName[T any]() string {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

// Parser decodes model output into T after validating it against T's
// schema. A Parser is safe for concurrent use.
type Parser[T any] struct {
	schema   json.RawMessage
	resolved *jsonschema.Resolved
}

// NewParser builds a parser for T.
func NewParser[T any]() (*Parser[T], error) {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("inferring schema for %s: %w", typeName[T](), err)
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolving schema for %s: %w", typeName[T](), err)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshaling schema for %s: %w", typeName[T](), err)
	}
	return &Parser[T]{schema: data, resolved: resolved}, nil
}

// Schema returns the JSON schema the parser validates against.
func (p *Parser[T]) Schema() json.RawMessage {
	return p.schema
}

// Parse extracts the JSON value from text, validates it and decodes it
// into T. Models sometimes wrap JSON in a markdown code fence or add
// prose around it; both are tolerated.
func (p *Parser[T]) Parse(text string) (T, error) {
	var out T

	raw, ok := ExtractJSON(text)
	if !ok {
		return out, api.NewProtocolError("model output contains no JSON value")
	}

	var instance any
	if err := json.Unmarshal([]byte(raw), &instance); err != nil {
		return out, api.NewProtocolError(fmt.Sprintf("model output is not valid JSON: %v", err))
	}
	if err := p.resolved.Validate(instance); err != nil {
		return out, api.NewProtocolError(fmt.Sprintf("model output does not match schema: %v", err))
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, api.NewProtocolError(fmt.Sprintf("decoding model output: %v", err))
	}
	return out, nil
}

var codeBlockRegex = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n(.*?)```")

// ExtractJSON returns the JSON value in text: the whole text when it is
// valid JSON, else the first fenced code block that is, else the span
// from the first opening brace or bracket to the matching last one.
func ExtractJSON(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}
	if json.Valid([]byte(trimmed)) {
		return trimmed, true
	}

	for _, m := range codeBlockRegex.FindAllStringSubmatch(text, -1) {
		block := strings.TrimSpace(m[1])
		if json.Valid([]byte(block)) {
			return block, true
		}
	}

	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(trimmed, pair[0])
		end := strings.LastIndex(trimmed, pair[1])
		if start >= 0 && end > start {
			candidate := trimmed[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
	}
	return "", false
}
