package rationale

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lumen-ed/compass/pkg/fusion"
	"github.com/lumen-ed/compass/pkg/skills"
)

// Safe input budgets per model family, reserving a response buffer below the
// hard context window.
const (
	longContextBudget = 120000
	legacyBudget      = 6000
)

// kLadder is the successive-halving schedule for evidence count under token
// budget pressure.
var kLadder = [...]int{10, 5, 3, 2, 1}

// systemPreamble is the fixed instruction block sent with every request.
const systemPreamble = `You are a supportive K-12 learning coach writing feedback about one social-emotional skill.

Write in the second person, directly to the student. Be warm, specific, and growth-oriented: name what the student already does well, then frame growth as concrete next steps rather than deficits. Use plain language a middle schooler can read. Do not mention scores, percentages, models, or data sources.

Respond with a single JSON object with exactly these fields:
  "narrative": one paragraph of at most 600 characters,
  "strengths": up to 3 short phrases,
  "growth_suggestions": up to 3 short phrases.
Output only the JSON object.`

// responseSchema is sent to backends with native structured-output support
// and rendered into the instruction block for those without.
var responseSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []any{"narrative", "strengths", "growth_suggestions"},
	"properties": map[string]any{
		"narrative": map[string]any{
			"type":        "string",
			"description": "One growth-oriented paragraph of at most 600 characters, addressed to the student.",
		},
		"strengths": map[string]any{
			"type":     "array",
			"maxItems": 3,
			"items":    map[string]any{"type": "string"},
		},
		"growth_suggestions": map[string]any{
			"type":     "array",
			"maxItems": 3,
			"items":    map[string]any{"type": "string"},
		},
	},
}

// sourceTrust scores how much each evidence channel is trusted when ordering
// items for the prompt. Teacher observation ranks highest, peer feedback
// lowest; the two raw feature channels sit between.
var sourceTrust = map[skills.Source]float64{
	skills.SourceTeacherObservation: 0.95,
	skills.SourceModel:              0.90,
	skills.SourceLinguisticFeatures: 0.80,
	skills.SourceBehavioralFeatures: 0.80,
	skills.SourcePeerFeedback:       0.70,
}

// rankEvidence orders items by configured source weight times relevance times
// channel trust, descending. Ties break on recency.
func rankEvidence(items []skills.Evidence, weights map[string]float64) []skills.Evidence {
	ranked := make([]skills.Evidence, len(items))
	copy(ranked, items)
	sort.SliceStable(ranked, func(i, j int) bool {
		ri := rankKey(ranked[i], weights)
		rj := rankKey(ranked[j], weights)
		if ri != rj {
			return ri > rj
		}
		return ranked[i].CapturedAt.After(ranked[j].CapturedAt)
	})
	return ranked
}

func rankKey(ev skills.Evidence, weights map[string]float64) float64 {
	return sourceWeight(ev.Source, weights) * ev.Relevance * sourceTrust[ev.Source]
}

// sourceWeight maps an evidence source to its entry in the fused weights
// snapshot. Human observations carry no configured weight and rank at weight
// 1, mirroring the fusion presentation rule.
func sourceWeight(src skills.Source, weights map[string]float64) float64 {
	switch src {
	case skills.SourceModel:
		return weights[fusion.SourceMLInference]
	case skills.SourceLinguisticFeatures:
		return weights[fusion.SourceLinguisticFeatures]
	case skills.SourceBehavioralFeatures:
		return weights[fusion.SourceBehavioralFeatures]
	default:
		return 1
	}
}

// fitPrompt assembles the prompt body at the largest evidence count whose
// combined instruction and body tokens stay inside the model budget. The
// count halves down the ladder; a miss at the last rung reports false and
// the caller abandons the LLM path.
func (g *Generator) fitPrompt(a *skills.FusedAssessment, grade string, ranked []skills.Evidence) (string, int, int, bool) {
	base := g.counter.Count(systemPreamble)
	var prompt string
	var tokens int
	for _, k := range kLadder {
		if k > len(ranked) {
			k = len(ranked)
		}
		prompt = promptBody(a, grade, ranked[:k])
		tokens = base + g.counter.Count(prompt)
		if tokens <= g.budget {
			return prompt, k, tokens, true
		}
	}
	return prompt, 0, tokens, false
}

// promptBody renders the structured half of the prompt. Scores stay in [0,1]
// with the anchor spelled out so the model does not read them as percentages.
func promptBody(a *skills.FusedAssessment, grade string, evidence []skills.Evidence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Skill: %s\n", skillLabel(a.Skill))
	if grade != "" {
		fmt.Fprintf(&b, "Grade: %s\n", grade)
	}
	fmt.Fprintf(&b, "Fused score: %.2f (0 = emerging, 1 = strong)\n", a.FusedScore)
	fmt.Fprintf(&b, "Assessment confidence: %.2f\n", a.FusedConfidence)
	b.WriteString("Evidence:\n")
	for i, ev := range evidence {
		fmt.Fprintf(&b, "%d. [%s] score %.2f, relevance %.2f",
			i+1, sourceLabel(ev.Source), ev.NormalizedScore, ev.Relevance)
		if ev.Provenance != "" {
			fmt.Fprintf(&b, " (%s)", ev.Provenance)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// safeBudget picks the input budget for the model family. Only the dated 8k
// GPT-4 snapshots still have small windows; everything current is
// long-context.
func safeBudget(model string) int {
	m := strings.ToLower(model)
	if m == "gpt-4" || strings.HasPrefix(m, "gpt-4-0314") || strings.HasPrefix(m, "gpt-4-0613") {
		return legacyBudget
	}
	return longContextBudget
}

func skillLabel(s skills.Skill) string {
	return strings.ReplaceAll(s.String(), "_", " ")
}

func sourceLabel(s skills.Source) string {
	return strings.ReplaceAll(string(s), "_", " ")
}
