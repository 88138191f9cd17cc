package inference

import (
	"github.com/lumen-ed/compass/pkg/featurestore"
	"github.com/lumen-ed/compass/pkg/model"
	"github.com/lumen-ed/compass/pkg/skills"
)

// BuildVector assembles the model input in manifest order from the two raw
// feature records. A nil record or an absent field contributes 0.0, never an
// error; sparse input shows up downstream as low completeness. The
// skill-specific derived field is computed from the merged raw values before
// the vector is laid out, so it sees both record kinds.
func BuildVector(manifest *model.Manifest, skill skills.Skill, linguistic, behavioral *featurestore.Record) []float64 {
	merged := make(map[string]float64, skills.VectorSize)
	if linguistic != nil {
		for name, v := range linguistic.Features {
			merged[name] = v
		}
	}
	if behavioral != nil {
		for name, v := range behavioral.Features {
			merged[name] = v
		}
	}
	if derived, ok := skills.Derived(skill); ok {
		merged[derived.Name] = derived.Compute(merged)
	}

	names := manifest.Names()
	vec := make([]float64, len(names))
	for i, name := range names {
		vec[i] = merged[name]
	}
	return vec
}
