package registry

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rhuss/strom/pkg/tools"
)

type weatherArgs struct {
	City  string `json:"city"`
	Units string `json:"units,omitempty"`
}

type weatherReport struct {
	City        string  `json:"city"`
	Temperature float64 `json:"temperature"`
}

func TestRegisterTyped(t *testing.T) {
	reg := New()
	err := RegisterTyped(reg, "get_weather", "Current weather", func(_ context.Context, in weatherArgs) (weatherReport, error) {
		return weatherReport{City: in.City, Temperature: 21.5}, nil
	})
	if err != nil {
		t.Fatalf("RegisterTyped failed: %v", err)
	}

	defs := reg.Definitions()
	if len(defs) != 1 {
		t.Fatalf("expected one definition, got %d", len(defs))
	}
	var schema map[string]any
	if err := json.Unmarshal(defs[0].Parameters, &schema); err != nil {
		t.Fatalf("parameters are not JSON: %v", err)
	}
	props, _ := schema["properties"].(map[string]any)
	if _, ok := props["city"]; !ok {
		t.Errorf("expected city property in inferred schema, got %s", defs[0].Parameters)
	}

	result, _ := reg.Execute(context.Background(), tools.ToolCall{ID: "c1", Name: "get_weather", Arguments: `{"city":"Paris"}`})
	if result.IsError {
		t.Fatalf("unexpected error result: %s", result.Output)
	}
	if result.Output != `{"city":"Paris","temperature":21.5}` {
		t.Errorf("unexpected output: %s", result.Output)
	}
}

func TestRegisterTypedRejectsMissingRequiredField(t *testing.T) {
	reg := New()
	RegisterTyped(reg, "get_weather", "", func(_ context.Context, in weatherArgs) (string, error) {
		return "never", nil
	})

	result, _ := reg.Execute(context.Background(), tools.ToolCall{ID: "c1", Name: "get_weather", Arguments: `{}`})
	if !result.IsError || !strings.Contains(result.Output, "invalid arguments") {
		t.Errorf("expected schema validation failure, got %+v", result)
	}
}

func TestRegisterTypedStringOutput(t *testing.T) {
	reg := New()
	RegisterTyped(reg, "shout", "", func(_ context.Context, in struct {
		Text string `json:"text"`
	}) (string, error) {
		return strings.ToUpper(in.Text), nil
	})

	result, _ := reg.Execute(context.Background(), tools.ToolCall{ID: "c1", Name: "shout", Arguments: `{"text":"hi"}`})
	if result.Output != "HI" {
		t.Errorf("expected verbatim string output, got %q", result.Output)
	}
}
