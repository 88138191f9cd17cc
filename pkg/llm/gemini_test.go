package llm

import (
	"testing"

	"google.golang.org/genai"

	"github.com/lumen-ed/compass/pkg/config"
)

func TestNewGemini(t *testing.T) {
	cfg := testLLMConfig(config.LLMProviderGemini)
	provider, err := NewGemini(cfg, "test-key")
	if err != nil {
		t.Fatalf("NewGemini() error = %v", err)
	}

	if provider.Name() != "gemini" {
		t.Errorf("Name() = %q, want gemini", provider.Name())
	}
	if provider.Model() != "gemini-2.0-flash" {
		t.Errorf("Model() = %q, want gemini-2.0-flash", provider.Model())
	}
	if err := provider.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNewGemini_RequiresAPIKey(t *testing.T) {
	if _, err := NewGemini(testLLMConfig(config.LLMProviderGemini), ""); err == nil {
		t.Fatal("NewGemini() without API key should fail")
	}
}

func TestToGenaiSchema(t *testing.T) {
	if toGenaiSchema(nil) != nil {
		t.Error("toGenaiSchema(nil) should be nil")
	}

	schema := toGenaiSchema(map[string]any{
		"type":        "object",
		"description": "rationale payload",
		"required":    []any{"narrative", "strengths"},
		"properties": map[string]any{
			"narrative": map[string]any{"type": "string"},
			"strengths": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"generator": map[string]any{
				"type": "string",
				"enum": []any{"llm", "template"},
			},
		},
	})

	if schema.Type != genai.TypeObject {
		t.Errorf("Type = %q, want OBJECT", schema.Type)
	}
	if schema.Description != "rationale payload" {
		t.Errorf("Description = %q", schema.Description)
	}
	if len(schema.Required) != 2 {
		t.Errorf("Required = %v, want two entries", schema.Required)
	}

	narrative, ok := schema.Properties["narrative"]
	if !ok || narrative.Type != genai.TypeString {
		t.Errorf("narrative property = %+v, want STRING", narrative)
	}
	strengths, ok := schema.Properties["strengths"]
	if !ok || strengths.Type != genai.TypeArray {
		t.Fatalf("strengths property = %+v, want ARRAY", strengths)
	}
	if strengths.Items == nil || strengths.Items.Type != genai.TypeString {
		t.Errorf("strengths items = %+v, want STRING", strengths.Items)
	}
	generator, ok := schema.Properties["generator"]
	if !ok || len(generator.Enum) != 2 {
		t.Errorf("generator enum = %+v, want two values", generator)
	}
}
