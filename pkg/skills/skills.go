// Package skills defines the social-emotional skill taxonomy and the shared
// domain types that flow through the inference pipeline: feature vectors,
// predictions, evidence, fused assessments, and rationales.
package skills

import "fmt"

// Skill identifies one of the four assessed social-emotional competencies.
// The string values are stable identifiers used in persistence and config.
type Skill string

const (
	Empathy        Skill = "empathy"
	ProblemSolving Skill = "problem_solving"
	SelfRegulation Skill = "self_regulation"
	Resilience     Skill = "resilience"
)

// All returns every recognized skill in canonical order.
func All() []Skill {
	return []Skill{Empathy, ProblemSolving, SelfRegulation, Resilience}
}

// Parse converts a string identifier to a Skill.
func Parse(s string) (Skill, error) {
	skill := Skill(s)
	if !skill.Valid() {
		return "", fmt.Errorf("unknown skill: %q", s)
	}
	return skill, nil
}

// Valid reports whether the skill is part of the closed set.
func (s Skill) Valid() bool {
	switch s {
	case Empathy, ProblemSolving, SelfRegulation, Resilience:
		return true
	}
	return false
}

func (s Skill) String() string {
	return string(s)
}
