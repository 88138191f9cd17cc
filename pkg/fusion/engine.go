// Copyright 2025 Lumen Education
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fusion

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/lumen-ed/compass/pkg/config"
	"github.com/lumen-ed/compass/pkg/featurestore"
	"github.com/lumen-ed/compass/pkg/logger"
	"github.com/lumen-ed/compass/pkg/model"
	"github.com/lumen-ed/compass/pkg/observability"
	"github.com/lumen-ed/compass/pkg/skills"
)

// topEvidenceLimit caps the evidence items attached to a fused assessment.
const topEvidenceLimit = 10

// Engine fuses a prediction with raw feature evidence and human observations
// under the active per-skill weights.
type Engine struct {
	weights *Store
	models  *model.Registry
	timeout time.Duration
	logger  *slog.Logger
}

// NewEngine builds an Engine. The model registry supplies per-feature
// reference statistics, which track the active artifact automatically.
func NewEngine(weights *Store, models *model.Registry, cfg *config.PipelineConfig) *Engine {
	return &Engine{
		weights: weights,
		models:  models,
		timeout: cfg.FusionTimeout,
		logger:  logger.WithComponent("fusion"),
	}
}

// Input carries everything one Fuse call consumes. Records may be nil;
// observations are optional.
type Input struct {
	StudentID    string
	Skill        skills.Skill
	Prediction   skills.Prediction
	Linguistic   *featurestore.Record
	Behavioral   *featurestore.Record
	Observations []Observation
}

// Observation is a human-scored evidence item (teacher observation or peer
// feedback), already normalized to [0,1] by its producer. A nil Relevance
// defaults to 1.
type Observation struct {
	Source     skills.Source `json:"source"`
	Score      float64       `json:"score"`
	Relevance  *float64      `json:"relevance,omitempty"`
	Provenance string        `json:"provenance,omitempty"`
	CapturedAt time.Time     `json:"captured_at,omitempty"`
}

// sourceAgg is one source's contribution to the weighted blend.
type sourceAgg struct {
	score      float64
	confidence float64
	present    bool
}

// Fuse combines the prediction with whatever evidence is available. The
// active config is read once at the start of the call; evidence builders run
// concurrently and a source with nothing to contribute drops out of the
// blend, its weight redistributed across the rest for this call only.
func (e *Engine) Fuse(ctx context.Context, in Input) (*skills.FusedAssessment, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cfg := e.weights.Get()
	weights, ok := cfg.Weights[in.Skill]
	if !ok {
		return nil, &InvalidConfigError{Field: "weights." + in.Skill.String(), Reason: "missing skill"}
	}

	predictor, err := e.models.Get(in.Skill)
	if err != nil {
		return nil, err
	}
	manifest := predictor.Manifest()

	var (
		wg      sync.WaitGroup
		modelEv []skills.Evidence
		lingEv  []skills.Evidence
		behavEv []skills.Evidence
		obsEv   []skills.Evidence
	)
	build := func(dst *[]skills.Evidence, fn func() []skills.Evidence) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			*dst = fn()
		}()
	}
	build(&modelEv, func() []skills.Evidence { return modelEvidence(in) })
	build(&lingEv, func() []skills.Evidence { return linguisticEvidence(manifest, in) })
	build(&behavEv, func() []skills.Evidence { return behavioralEvidence(manifest, in) })
	build(&obsEv, func() []skills.Evidence { return e.observationEvidence(in) })
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snapshot := copyWeights(weights)

	// Only the model contributed: the blend would be a tautology, so hand
	// back the prediction and flag it.
	if len(lingEv)+len(behavEv)+len(obsEv) == 0 {
		e.logger.Warn("No non-model evidence, degraded fusion",
			"student_id", in.StudentID,
			"skill", in.Skill)
		observability.Global().RecordFusion(ctx, in.Skill.String(), time.Since(start), true)
		return &skills.FusedAssessment{
			Skill:           in.Skill,
			FusedScore:      in.Prediction.RawScore,
			FusedConfidence: in.Prediction.Confidence,
			TopEvidence:     modelEv,
			ModelVersion:    in.Prediction.ModelVersion,
			WeightsSnapshot: snapshot,
			DegradedFusion:  true,
		}, nil
	}

	aggs := map[string]sourceAgg{
		SourceMLInference: {
			score:      in.Prediction.RawScore,
			confidence: in.Prediction.Confidence,
			present:    true,
		},
		// The adjustment slot scores the model's own certainty: it pulls the
		// fused score up only when the model is confident.
		SourceConfidenceAdjustment: {
			score:      in.Prediction.Confidence,
			confidence: in.Prediction.Confidence,
			present:    true,
		},
		SourceLinguisticFeatures: aggregate(lingEv),
		SourceBehavioralFeatures: aggregate(behavEv),
	}

	effective := effectiveWeights(weights, aggs)

	var fusedScore, fusedConfidence float64
	for key, w := range effective {
		fusedScore += w * aggs[key].score
		fusedConfidence += w * aggs[key].confidence
	}

	union := make([]skills.Evidence, 0, len(modelEv)+len(lingEv)+len(behavEv)+len(obsEv))
	union = append(union, modelEv...)
	union = append(union, lingEv...)
	union = append(union, behavEv...)
	union = append(union, obsEv...)

	observability.Global().RecordFusion(ctx, in.Skill.String(), time.Since(start), false)
	return &skills.FusedAssessment{
		Skill:           in.Skill,
		FusedScore:      clip01(fusedScore),
		FusedConfidence: clip01(fusedConfidence),
		TopEvidence:     selectTopEvidence(union, effective, topEvidenceLimit),
		ModelVersion:    in.Prediction.ModelVersion,
		WeightsSnapshot: snapshot,
	}, nil
}

// effectiveWeights drops absent sources and renormalizes the remainder to
// sum 1. If every present source is configured at zero weight, the present
// sources share the weight equally.
func effectiveWeights(weights map[string]float64, aggs map[string]sourceAgg) map[string]float64 {
	effective := make(map[string]float64, len(SourceKeys))
	var total float64
	for _, key := range SourceKeys {
		if aggs[key].present {
			effective[key] = weights[key]
			total += weights[key]
		}
	}

	if total <= 0 {
		share := 1 / float64(len(effective))
		for key := range effective {
			effective[key] = share
		}
		return effective
	}

	for key := range effective {
		effective[key] /= total
	}
	return effective
}

// aggregate folds a source's evidence items into one score and confidence:
// the mean normalized score and the mean relevance.
func aggregate(items []skills.Evidence) sourceAgg {
	if len(items) == 0 {
		return sourceAgg{}
	}
	var score, relevance float64
	for _, item := range items {
		score += item.NormalizedScore
		relevance += item.Relevance
	}
	n := float64(len(items))
	return sourceAgg{score: score / n, confidence: relevance / n, present: true}
}

func modelEvidence(in Input) []skills.Evidence {
	return []skills.Evidence{{
		Source:          skills.SourceModel,
		Skill:           in.Skill,
		NormalizedScore: in.Prediction.RawScore,
		Relevance:       in.Prediction.Confidence,
		Provenance:      "model:" + in.Prediction.ModelVersion,
		CapturedAt:      time.Now(),
	}}
}

// linguisticEvidence z-scores each present linguistic feature against the
// manifest reference statistics and squashes through a sigmoid. Relevance
// grows with distance from the reference mean, saturating at three sigmas.
func linguisticEvidence(manifest *model.Manifest, in Input) []skills.Evidence {
	rec := in.Linguistic
	if rec == nil {
		return nil
	}

	items := make([]skills.Evidence, 0, len(skills.LinguisticFeatures))
	for _, name := range skills.LinguisticFeatures {
		v, ok := rec.Features[name]
		if !ok {
			continue
		}
		stat, ok := manifest.Stat(name)
		if !ok || stat.Stdev <= 0 {
			continue
		}
		z := (v - stat.Mean) / stat.Stdev
		items = append(items, skills.Evidence{
			Source:          skills.SourceLinguisticFeatures,
			Skill:           in.Skill,
			NormalizedScore: sigmoid(z),
			Relevance:       clip01(math.Abs(z) / 3),
			Provenance:      itemProvenance(rec.Provenance, name),
			CapturedAt:      rec.CapturedAt,
		})
	}
	return items
}

// behavioralEvidence min-max normalizes each present behavioral feature
// against the manifest bounds. Every item of the source shares one
// relevance: the fraction of behavioral fields present in the record.
func behavioralEvidence(manifest *model.Manifest, in Input) []skills.Evidence {
	rec := in.Behavioral
	if rec == nil {
		return nil
	}

	present := 0
	for _, name := range skills.BehavioralFeatures {
		if _, ok := rec.Features[name]; ok {
			present++
		}
	}
	if present == 0 {
		return nil
	}
	relevance := float64(present) / float64(len(skills.BehavioralFeatures))

	items := make([]skills.Evidence, 0, present)
	for _, name := range skills.BehavioralFeatures {
		v, ok := rec.Features[name]
		if !ok {
			continue
		}
		stat, ok := manifest.Stat(name)
		if !ok || stat.Max <= stat.Min {
			continue
		}
		items = append(items, skills.Evidence{
			Source:          skills.SourceBehavioralFeatures,
			Skill:           in.Skill,
			NormalizedScore: clip01((v - stat.Min) / (stat.Max - stat.Min)),
			Relevance:       relevance,
			Provenance:      itemProvenance(rec.Provenance, name),
			CapturedAt:      rec.CapturedAt,
		})
	}
	return items
}

// observationEvidence passes through human observations, dropping any item
// outside [0,1] rather than renormalizing it.
func (e *Engine) observationEvidence(in Input) []skills.Evidence {
	items := make([]skills.Evidence, 0, len(in.Observations))
	for _, obs := range in.Observations {
		if obs.Source != skills.SourceTeacherObservation && obs.Source != skills.SourcePeerFeedback {
			e.logger.Warn("Dropping observation with unrecognized source", "source", obs.Source)
			continue
		}
		if obs.Score < 0 || obs.Score > 1 {
			e.logger.Warn("Dropping observation with score outside [0,1]",
				"source", obs.Source,
				"score", obs.Score)
			continue
		}
		relevance := 1.0
		if obs.Relevance != nil {
			if *obs.Relevance < 0 || *obs.Relevance > 1 {
				e.logger.Warn("Dropping observation with relevance outside [0,1]",
					"source", obs.Source,
					"relevance", *obs.Relevance)
				continue
			}
			relevance = *obs.Relevance
		}
		capturedAt := obs.CapturedAt
		if capturedAt.IsZero() {
			capturedAt = time.Now()
		}
		items = append(items, skills.Evidence{
			Source:          obs.Source,
			Skill:           in.Skill,
			NormalizedScore: obs.Score,
			Relevance:       relevance,
			Provenance:      obs.Provenance,
			CapturedAt:      capturedAt,
		})
	}
	return items
}

// selectTopEvidence picks up to limit items by relevance times the source's
// effective weight, then orders the selection by relevance for presentation.
// Ties break on recency both times.
func selectTopEvidence(items []skills.Evidence, effective map[string]float64, limit int) []skills.Evidence {
	ranked := make([]skills.Evidence, len(items))
	copy(ranked, items)

	sort.SliceStable(ranked, func(i, j int) bool {
		ri := ranked[i].Relevance * rankWeight(ranked[i].Source, effective)
		rj := ranked[j].Relevance * rankWeight(ranked[j].Source, effective)
		if ri != rj {
			return ri > rj
		}
		return ranked[i].CapturedAt.After(ranked[j].CapturedAt)
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Relevance != ranked[j].Relevance {
			return ranked[i].Relevance > ranked[j].Relevance
		}
		return ranked[i].CapturedAt.After(ranked[j].CapturedAt)
	})
	return ranked
}

func rankWeight(src skills.Source, effective map[string]float64) float64 {
	switch src {
	case skills.SourceModel:
		return effective[SourceMLInference]
	case skills.SourceLinguisticFeatures:
		return effective[SourceLinguisticFeatures]
	case skills.SourceBehavioralFeatures:
		return effective[SourceBehavioralFeatures]
	default:
		// Human observations carry no configured weight; rank on relevance
		// alone.
		return 1
	}
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func itemProvenance(base, feature string) string {
	if base == "" {
		return feature
	}
	return base + "#" + feature
}
