package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/rhuss/strom/pkg/api"
)

// RegisterTyped registers fn as a tool whose parameter schema is inferred
// from In. Arguments are validated against that schema and decoded into
// In. A string result is returned verbatim; anything else is sent to the
// model as JSON.
func RegisterTyped[In, Out any](r *Registry, name, description string, fn func(ctx context.Context, in In) (Out, error)) error {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return api.NewInvalidRequestError("parameters", fmt.Sprintf("tool %s: inferring schema: %v", name, err))
	}
	params, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("tool %s: marshaling schema: %w", name, err)
	}

	return r.Register(name, func(ctx context.Context, args json.RawMessage) (string, error) {
		var in In
		if err := json.Unmarshal(args, &in); err != nil {
			return "", fmt.Errorf("decoding arguments: %w", err)
		}
		out, err := fn(ctx, in)
		if err != nil {
			return "", err
		}
		return formatOutput(out)
	}, description, params)
}

func formatOutput(v any) (string, error) {
	switch out := v.(type) {
	case string:
		return out, nil
	case []byte:
		return string(out), nil
	case json.RawMessage:
		return string(out), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	return string(data), nil
}
