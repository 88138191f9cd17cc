package model

import (
	"gonum.org/v1/gonum/stat"

	"github.com/lumen-ed/compass/pkg/skills"
)

// Output is the result of a single prediction.
type Output struct {
	// RawScore is the ensemble mean clamped to [0,1].
	RawScore float64

	// Importance maps feature name to normalized importance (sums to 1).
	// Shared across predictions; callers must not mutate it.
	Importance map[string]float64

	// MemberOutputs are the individual member predictions, retained for
	// the confidence estimate.
	MemberOutputs []float64
}

// Predictor evaluates one skill's ensemble. Read-only after load.
type Predictor struct {
	skill      skills.Skill
	version    string
	hash       string
	manifest   *Manifest
	ensemble   *Ensemble
	importance map[string]float64
}

// NewPredictor builds a Predictor from a validated artifact.
func NewPredictor(artifact *Artifact, hash string) *Predictor {
	skill, _ := skills.Parse(artifact.Skill)
	return &Predictor{
		skill:      skill,
		version:    artifact.Version,
		hash:       hash,
		manifest:   &artifact.Manifest,
		ensemble:   &artifact.Ensemble,
		importance: splitImportance(artifact),
	}
}

// Skill returns the skill this predictor serves.
func (p *Predictor) Skill() skills.Skill {
	return p.skill
}

// Version returns the artifact version string.
func (p *Predictor) Version() string {
	return p.version
}

// Hash returns the artifact content hash.
func (p *Predictor) Hash() string {
	return p.hash
}

// Manifest returns the ordered feature manifest.
func (p *Predictor) Manifest() *Manifest {
	return p.manifest
}

// Predict evaluates the ensemble for a feature vector.
//
// Each member contributes base_score plus the sum of its trees; the raw
// score is the member mean clamped to [0,1]. Vectors that do not match
// the manifest length are rejected with a FeatureShapeError.
func (p *Predictor) Predict(vec []float64) (*Output, error) {
	if len(vec) != p.manifest.Len() {
		return nil, &FeatureShapeError{
			Skill: string(p.skill),
			Want:  p.manifest.Len(),
			Got:   len(vec),
		}
	}

	outputs := make([]float64, len(p.ensemble.Members))
	for i, member := range p.ensemble.Members {
		out := p.ensemble.BaseScore
		for _, tree := range member.Trees {
			v, err := tree.Evaluate(vec)
			if err != nil {
				return nil, &PredictionError{Skill: string(p.skill), Reason: err.Error()}
			}
			out += v
		}
		outputs[i] = out
	}

	return &Output{
		RawScore:      clamp01(stat.Mean(outputs, nil)),
		Importance:    p.importance,
		MemberOutputs: outputs,
	}, nil
}

// splitImportance derives the ensemble's natural feature importance
// from split frequency, normalized to sum to 1. Split-free ensembles
// fall back to uniform importance.
func splitImportance(artifact *Artifact) map[string]float64 {
	names := artifact.Manifest.Names()
	counts := make([]float64, len(names))
	total := 0.0

	for _, member := range artifact.Ensemble.Members {
		for _, tree := range member.Trees {
			for _, node := range tree.Nodes {
				if node.Leaf != nil {
					continue
				}
				if node.Feature >= 0 && node.Feature < len(counts) {
					counts[node.Feature]++
					total++
				}
			}
		}
	}

	importance := make(map[string]float64, len(names))
	if total == 0 {
		uniform := 1.0 / float64(len(names))
		for _, name := range names {
			importance[name] = uniform
		}
		return importance
	}

	for i, name := range names {
		importance[name] = counts[i] / total
	}
	return importance
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
