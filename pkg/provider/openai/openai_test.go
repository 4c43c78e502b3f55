package openai

import (
	"encoding/json"
	"testing"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/provider"
)

func TestIsReasoningModel(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"gpt-4o", false},
		{"gpt-4o-mini", false},
		{"gpt-4.1", false},
		{"o1", true},
		{"o1-preview", true},
		{"o3-mini", true},
		{"O4-mini", true},
		{"gpt-5", true},
		{"gpt-5-mini", true},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := IsReasoningModel(tt.model); got != tt.want {
				t.Errorf("IsReasoningModel(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestReasoningRequestShape(t *testing.T) {
	a, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if a.ID() != api.ProviderOpenAI {
		t.Errorf("expected provider openai, got %s", a.ID())
	}

	model, ok := provider.FindModel(a.Models(), "o3-mini")
	if !ok {
		t.Fatal("o3-mini missing from catalog")
	}
	mctx := api.MoveRequestContext{Position: "8/8/8/8/8/8/8/K6k w - - 0 1", Temperature: 0.7, TokenBudget: 300, APIKey: "sk"}

	req, err := a.BuildRequest(mctx, model)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.URL != DefaultBaseURL+"/chat/completions" {
		t.Errorf("unexpected URL %s", req.URL)
	}

	var body map[string]any
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if _, ok := body["temperature"]; ok {
		t.Error("reasoning model request must not carry temperature")
	}
	if body["max_completion_tokens"] != float64(300) {
		t.Errorf("expected max_completion_tokens 300, got %v", body["max_completion_tokens"])
	}

	chat, _ := provider.FindModel(a.Models(), "gpt-4o")
	req, _ = a.BuildRequest(mctx, chat)
	body = nil
	json.Unmarshal(req.Body, &body)
	if body["temperature"] != 0.7 {
		t.Errorf("chat model should carry temperature, got %v", body["temperature"])
	}
	if body["max_tokens"] != float64(300) {
		t.Errorf("expected max_tokens 300, got %v", body["max_tokens"])
	}
}

func TestExtraModels(t *testing.T) {
	a, _ := New(Config{ExtraModels: []api.ModelDescriptor{{ID: "gpt-4o-2024-11-20", SupportsStreaming: true}}})
	if _, ok := provider.FindModel(a.Models(), "gpt-4o-2024-11-20"); !ok {
		t.Error("extra model not in catalog")
	}
	if _, ok := provider.FindModel(Models, "gpt-4o-2024-11-20"); ok {
		t.Error("extra model leaked into the shared catalog")
	}
}
