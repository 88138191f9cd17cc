package skills

// VectorSize is the dimensionality of every per-skill feature vector:
// 16 linguistic fields, 9 behavioral fields, and 1 skill-specific derived field.
const VectorSize = 26

// LinguisticFeatures lists the 16 linguistic field names in canonical order.
var LinguisticFeatures = []string{
	"empathy_markers",
	"problem_solving_language",
	"perseverance_indicators",
	"social_processes",
	"cognitive_processes",
	"positive_sentiment",
	"negative_sentiment",
	"avg_sentence_length",
	"syntactic_complexity",
	"word_count",
	"unique_word_count",
	"readability_score",
	"noun_count",
	"verb_count",
	"adj_count",
	"adv_count",
}

// BehavioralFeatures lists the 9 behavioral field names in canonical order.
var BehavioralFeatures = []string{
	"task_completion_rate",
	"time_efficiency",
	"retry_count",
	"recovery_rate",
	"distraction_resistance",
	"focus_duration",
	"collaboration_indicators",
	"leadership_indicators",
	"event_count",
}

// DerivedFeature is the skill-specific 26th field, computed from the named
// raw inputs. Keeping the formulas in a table keeps the contract inspectable.
type DerivedFeature struct {
	Name    string
	Compute func(features map[string]float64) float64
}

var derivedBySkill = map[Skill]DerivedFeature{
	Empathy: {
		Name: "social_sentiment_composite",
		Compute: func(f map[string]float64) float64 {
			return f["positive_sentiment"] * f["social_processes"]
		},
	},
	ProblemSolving: {
		Name: "cognitive_strategy_composite",
		Compute: func(f map[string]float64) float64 {
			return f["problem_solving_language"] * f["cognitive_processes"]
		},
	},
	SelfRegulation: {
		Name: "focus_recovery_composite",
		Compute: func(f map[string]float64) float64 {
			return f["distraction_resistance"] * f["recovery_rate"]
		},
	},
	Resilience: {
		Name: "perseverance_recovery_composite",
		Compute: func(f map[string]float64) float64 {
			return f["perseverance_indicators"] * f["recovery_rate"]
		},
	},
}

// Derived returns the derived-feature definition for a skill.
func Derived(skill Skill) (DerivedFeature, bool) {
	d, ok := derivedBySkill[skill]
	return d, ok
}
