package inference

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/lumen-ed/compass/pkg/config"
)

// sigmaEpsilon is the ensemble spread below which the variance component
// carries no signal and the degenerate weight split takes over.
const sigmaEpsilon = 1e-6

// ConfidenceParams are the calibration knobs for ComputeConfidence, lifted
// out of config so the math is testable without a Config value.
type ConfidenceParams struct {
	SigmaRef float64

	VarianceWeight     float64
	ExtremityWeight    float64
	CompletenessWeight float64

	DegenerateVarianceWeight     float64
	DegenerateExtremityWeight    float64
	DegenerateCompletenessWeight float64

	ClampMin float64
	ClampMax float64
}

// ConfidenceParamsFromConfig copies a validated ConfidenceConfig into params.
func ConfidenceParamsFromConfig(cfg *config.ConfidenceConfig) ConfidenceParams {
	return ConfidenceParams{
		SigmaRef:                     cfg.SigmaRef,
		VarianceWeight:               cfg.VarianceWeight,
		ExtremityWeight:              cfg.ExtremityWeight,
		CompletenessWeight:           cfg.CompletenessWeight,
		DegenerateVarianceWeight:     cfg.DegenerateVarianceWeight,
		DegenerateExtremityWeight:    cfg.DegenerateExtremityWeight,
		DegenerateCompletenessWeight: cfg.DegenerateCompletenessWeight,
		ClampMin:                     cfg.ClampMin,
		ClampMax:                     cfg.ClampMax,
	}
}

// Confidence is the blended score plus the components that produced it, kept
// around so callers can log or surface the breakdown.
type Confidence struct {
	Value        float64 `json:"value"`
	Variance     float64 `json:"variance"`
	Extremity    float64 `json:"extremity"`
	Completeness float64 `json:"completeness"`
	Sigma        float64 `json:"sigma"`
	Degenerate   bool    `json:"degenerate,omitempty"`
}

// ComputeConfidence derives a calibrated confidence from three signals:
// ensemble agreement (low spread across member outputs reads as high
// confidence), score extremity (scores near 0 or 1 read as more decided than
// scores near 0.5), and feature completeness (the fraction of non-zero
// entries in the assembled vector). When the members agree to within
// sigmaEpsilon the variance signal is meaningless, so the degenerate weights
// shift most of the blend onto extremity. The result is clamped into
// [ClampMin, ClampMax] so a single component can never saturate confidence.
func ComputeConfidence(rawScore float64, memberOutputs, vec []float64, p ConfidenceParams) Confidence {
	var sigma float64
	if len(memberOutputs) > 1 {
		sigma = stat.PopStdDev(memberOutputs, nil)
	}

	variance := 1 - clip(sigma/p.SigmaRef, 0, 1)
	extremity := clip(2*math.Abs(rawScore-0.5), 0, 1)

	var completeness float64
	if len(vec) > 0 {
		nonZero := 0
		for _, v := range vec {
			if v != 0 {
				nonZero++
			}
		}
		completeness = float64(nonZero) / float64(len(vec))
	}

	wv, we, wc := p.VarianceWeight, p.ExtremityWeight, p.CompletenessWeight
	degenerate := sigma < sigmaEpsilon
	if degenerate {
		wv, we, wc = p.DegenerateVarianceWeight, p.DegenerateExtremityWeight, p.DegenerateCompletenessWeight
	}

	return Confidence{
		Value:        clip(wv*variance+we*extremity+wc*completeness, p.ClampMin, p.ClampMax),
		Variance:     variance,
		Extremity:    extremity,
		Completeness: completeness,
		Sigma:        sigma,
		Degenerate:   degenerate,
	}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
