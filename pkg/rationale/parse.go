package rationale

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lumen-ed/compass/pkg/skills"
)

const (
	// maxNarrativeChars caps the narrative, counted in runes.
	maxNarrativeChars = 600

	// maxListItems caps strengths and growth suggestions.
	maxListItems = 3
)

// llmResponse is the object the backend is asked to produce. Pointer fields
// distinguish a missing field from an empty one.
type llmResponse struct {
	Narrative         *string   `json:"narrative"`
	Strengths         *[]string `json:"strengths"`
	GrowthSuggestions *[]string `json:"growth_suggestions"`
}

// parseResponse validates completion text into a Rationale. Backends
// sometimes wrap JSON in a markdown fence despite instructions, so a fence is
// tolerated and stripped; any other deviation is an error and the caller
// falls back to the template. Generator and TokensConsumed are left for the
// caller to fill.
func parseResponse(text string) (*skills.Rationale, error) {
	cleaned := stripFence(strings.TrimSpace(text))
	if cleaned == "" {
		return nil, fmt.Errorf("empty response")
	}

	dec := json.NewDecoder(strings.NewReader(cleaned))
	var resp llmResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing content after JSON object")
	}

	if resp.Narrative == nil {
		return nil, fmt.Errorf("missing field narrative")
	}
	if resp.Strengths == nil {
		return nil, fmt.Errorf("missing field strengths")
	}
	if resp.GrowthSuggestions == nil {
		return nil, fmt.Errorf("missing field growth_suggestions")
	}

	narrative := strings.TrimSpace(*resp.Narrative)
	if narrative == "" {
		return nil, fmt.Errorf("narrative is empty")
	}
	strengths, err := cleanList("strengths", *resp.Strengths)
	if err != nil {
		return nil, err
	}
	suggestions, err := cleanList("growth_suggestions", *resp.GrowthSuggestions)
	if err != nil {
		return nil, err
	}

	return &skills.Rationale{
		Narrative:         trimNarrative(narrative),
		Strengths:         strengths,
		GrowthSuggestions: suggestions,
	}, nil
}

// cleanList trims items and drops blanks. A list over the cap is a
// validation failure, not a trim; only the narrative has a repair rule.
func cleanList(field string, items []string) ([]string, error) {
	if len(items) > maxListItems {
		return nil, fmt.Errorf("%s has %d items, limit is %d", field, len(items), maxListItems)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out, nil
}

// trimNarrative cuts an over-long narrative at a rune boundary, marking the
// cut with an ellipsis so the result lands exactly on the cap.
func trimNarrative(s string) string {
	runes := []rune(s)
	if len(runes) <= maxNarrativeChars {
		return s
	}
	return string(runes[:maxNarrativeChars-1]) + "…"
}

// stripFence removes a ```json ... ``` wrapper when present.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	i := strings.IndexByte(s, '\n')
	if i < 0 {
		return ""
	}
	s = s[i+1:]
	if j := strings.LastIndex(s, "```"); j >= 0 {
		s = s[:j]
	}
	return strings.TrimSpace(s)
}
