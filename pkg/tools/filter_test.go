package tools

import (
	"strings"
	"testing"
)

func TestAllowList(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		tool  string
		want  bool
	}{
		{"nil allows all", nil, "anything", true},
		{"empty allows all", []string{}, "anything", true},
		{"listed", []string{"get_weather", "web_search"}, "web_search", true},
		{"not listed", []string{"get_weather"}, "delete_files", false},
		{"case sensitive", []string{"get_weather"}, "Get_Weather", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewAllowList(tt.names).Allows(tt.tool); got != tt.want {
				t.Errorf("Allows(%q) = %v, want %v", tt.tool, got, tt.want)
			}
		})
	}
}

func TestAllowListZeroValue(t *testing.T) {
	var a AllowList
	if !a.Allows("get_weather") {
		t.Error("zero AllowList should allow every tool")
	}
}

func TestRejection(t *testing.T) {
	res := Rejection(ToolCall{ID: "call_7", Name: "delete_files", Arguments: "{}"})
	if !res.IsError || res.CallID != "call_7" {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(res.Output, "delete_files") || !strings.Contains(res.Output, "not in the allowed tools list") {
		t.Errorf("Output = %q", res.Output)
	}
}
