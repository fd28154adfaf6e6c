package api

import (
	"strings"
	"testing"
)

func TestNewRequestID(t *testing.T) {
	id := NewRequestID()
	if !strings.HasPrefix(id, "req_") {
		t.Errorf("NewRequestID() = %q, want req_ prefix", id)
	}
	if !ValidateRequestID(id) {
		t.Errorf("NewRequestID() = %q, want valid request ID", id)
	}
	if NewRequestID() == id {
		t.Error("request IDs should be unique")
	}
}

func TestValidateRequestID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"valid", "req_6ba7b810-9dad-11d1-80b4-00c04fd430c8", true},
		{"wrong prefix", "call_6ba7b810-9dad-11d1-80b4-00c04fd430c8", false},
		{"not a uuid", "req_abc", false},
		{"prefix only", "req_", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateRequestID(tt.id); got != tt.want {
				t.Errorf("ValidateRequestID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestNewCallID(t *testing.T) {
	id := NewCallID()
	if !ValidateCallID(id) {
		t.Errorf("NewCallID() = %q, want valid call ID", id)
	}
}

func TestValidateCallID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"valid", "call_abcdefghijklmnopqrstuvwx", true},
		{"too short", "call_abc", false},
		{"special chars", "call_abcdefghijklmnopqrstuv!@", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateCallID(tt.id); got != tt.want {
				t.Errorf("ValidateCallID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}
