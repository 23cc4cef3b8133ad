package provider

import (
	"context"
	"testing"

	"steward/internal/config"
)

func TestNewChatModelNoProvider(t *testing.T) {
	cfg := config.DefaultConfig()

	_, err := NewChatModel(context.Background(), cfg)
	if err == nil {
		t.Error("expected error when no provider configured")
	}
}

func TestModelID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"anthropic/claude-sonnet-4-5", "claude-sonnet-4-5"},
		{"ollama/llama3.1", "llama3.1"},
		{"gpt-4o", "gpt-4o"},
	}
	for _, tt := range tests {
		if got := modelID(tt.in); got != tt.want {
			t.Fatalf("modelID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
