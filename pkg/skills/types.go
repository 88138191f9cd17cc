package skills

import "time"

// Source identifies where a piece of evidence came from.
type Source string

const (
	SourceModel              Source = "model"
	SourceLinguisticFeatures Source = "linguistic_features"
	SourceBehavioralFeatures Source = "behavioral_features"
	SourceTeacherObservation Source = "teacher_observation"
	SourcePeerFeedback       Source = "peer_feedback"
)

// Prediction is the raw model output for one (student, skill) pair.
type Prediction struct {
	Skill             Skill              `json:"skill_type"`
	RawScore          float64            `json:"score"`
	Confidence        float64            `json:"confidence"`
	FeatureImportance map[string]float64 `json:"feature_importance"`
	ModelVersion      string             `json:"model_version"`
	LatencyMS         float64            `json:"inference_time_ms"`
}

// Evidence is one normalized signal contributing to a fused score.
type Evidence struct {
	Source          Source    `json:"source"`
	Skill           Skill     `json:"skill_type"`
	NormalizedScore float64   `json:"normalized_score"`
	Relevance       float64   `json:"relevance"`
	Provenance      string    `json:"provenance"`
	CapturedAt      time.Time `json:"captured_at"`
}

// FusedAssessment combines the model prediction with raw feature evidence
// under the active per-skill weights.
type FusedAssessment struct {
	Skill           Skill              `json:"skill_type"`
	FusedScore      float64            `json:"fused_score"`
	FusedConfidence float64            `json:"fused_confidence"`
	TopEvidence     []Evidence         `json:"top_evidence"`
	ModelVersion    string             `json:"model_version"`
	WeightsSnapshot map[string]float64 `json:"weights_snapshot"`
	DegradedFusion  bool               `json:"degraded_fusion,omitempty"`
}

// Generator identifies how a rationale was produced.
type Generator string

const (
	GeneratorLLM      Generator = "llm"
	GeneratorTemplate Generator = "template"
)

// Rationale is the short growth-oriented narrative returned alongside
// numeric output.
type Rationale struct {
	Narrative         string    `json:"narrative"`
	Strengths         []string  `json:"strengths"`
	GrowthSuggestions []string  `json:"growth_suggestions"`
	Generator         Generator `json:"generator"`
	TokensConsumed    int       `json:"tokens_consumed"`
}

// ErrorCategory is the shared vocabulary for tagging failed pipeline runs in
// metrics records and batch results.
type ErrorCategory string

const (
	CategoryFeatureShape         ErrorCategory = "feature_shape"
	CategoryArtifactIntegrity    ErrorCategory = "artifact_integrity"
	CategoryInvalidConfig        ErrorCategory = "invalid_config"
	CategoryUpstreamUnavailable  ErrorCategory = "upstream_unavailable"
	CategoryPredictionFailure    ErrorCategory = "prediction_failure"
	CategoryRateLimited          ErrorCategory = "rate_limited"
	CategoryLLMTransport         ErrorCategory = "llm_transport"
	CategoryInsufficientEvidence ErrorCategory = "insufficient_evidence"
	CategoryDeadlineExceeded     ErrorCategory = "deadline_exceeded"
	CategoryInternal             ErrorCategory = "internal"
)
