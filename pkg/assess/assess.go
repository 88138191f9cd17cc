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

// Package assess chains the three pipeline stages for one student: score a
// skill, fuse the prediction with evidence, attach a narrative. It owns the
// response shapes the HTTP surface and the batch dispatcher both return.
//
// Stage failure semantics differ on purpose: inference and fusion errors
// surface to the caller, while rationale generation degrades internally and
// never fails an assessment.
package assess

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lumen-ed/compass/pkg/fusion"
	"github.com/lumen-ed/compass/pkg/inference"
	"github.com/lumen-ed/compass/pkg/logger"
	"github.com/lumen-ed/compass/pkg/rationale"
	"github.com/lumen-ed/compass/pkg/skills"
)

// Observation is a request-supplied human evidence item. SkillType scopes it
// to one skill; left empty it applies to every skill in the call.
type Observation struct {
	fusion.Observation
	SkillType skills.Skill `json:"skill_type,omitempty"`
}

// Options carries the optional request inputs accompanying an assessment.
type Options struct {
	Grade        string        `json:"grade,omitempty"`
	Observations []Observation `json:"observations,omitempty"`
}

// SkillAssessment is the per-skill response object: the raw prediction
// fields with the fusion outcome and the narrative attached.
type SkillAssessment struct {
	skills.Prediction
	FusedScore      float64           `json:"fused_score"`
	FusedConfidence float64           `json:"fused_confidence"`
	DegradedFusion  bool              `json:"degraded_fusion,omitempty"`
	Evidence        []skills.Evidence `json:"evidence"`
	Rationale       *skills.Rationale `json:"rationale"`
}

// StudentAssessment is the full response envelope for one student.
type StudentAssessment struct {
	StudentID            string            `json:"student_id"`
	Skills               []SkillAssessment `json:"skills"`
	TotalInferenceTimeMS float64           `json:"total_inference_time_ms"`
	Timestamp            time.Time         `json:"timestamp"`
}

// Narrator is the narrative stage of the pipeline. *rationale.Generator is
// the production implementation; the pipeline needs only its Generate method.
type Narrator interface {
	Generate(ctx context.Context, in rationale.Input) *skills.Rationale
}

var _ Narrator = (*rationale.Generator)(nil)

// Pipeline runs the per-student chain. One Pipeline serves all requests.
type Pipeline struct {
	engine   *inference.Engine
	fuser    *fusion.Engine
	narrator Narrator
	logger   *slog.Logger
}

// New builds a Pipeline from its three stages.
func New(engine *inference.Engine, fuser *fusion.Engine, narrator Narrator) *Pipeline {
	return &Pipeline{
		engine:   engine,
		fuser:    fuser,
		narrator: narrator,
		logger:   logger.WithComponent("assess"),
	}
}

// AssessSkill runs inference, fusion, and rationale generation for one
// (student, skill) pair. Errors from the first two stages surface as-is so
// callers can categorize them; the rationale stage cannot fail.
func (p *Pipeline) AssessSkill(ctx context.Context, studentID string, skill skills.Skill, opts Options) (*SkillAssessment, error) {
	res, err := p.engine.Infer(ctx, studentID, skill)
	if err != nil {
		return nil, err
	}

	fused, err := p.fuser.Fuse(ctx, fusion.Input{
		StudentID:    studentID,
		Skill:        skill,
		Prediction:   res.Prediction,
		Linguistic:   res.Linguistic,
		Behavioral:   res.Behavioral,
		Observations: observationsFor(skill, opts.Observations),
	})
	if err != nil {
		return nil, err
	}

	rat := p.narrator.Generate(ctx, rationale.Input{
		StudentID:  studentID,
		Assessment: fused,
		Grade:      opts.Grade,
	})

	return &SkillAssessment{
		Prediction:      res.Prediction,
		FusedScore:      fused.FusedScore,
		FusedConfidence: fused.FusedConfidence,
		DegradedFusion:  fused.DegradedFusion,
		Evidence:        fused.TopEvidence,
		Rationale:       rat,
	}, nil
}

// AssessStudent assesses the requested skills in the order given, or every
// skill in canonical order when none are named. Skills run sequentially;
// each stage parallelizes its own fetches internally. The first failing
// skill aborts the call: single-student assessments are all-or-nothing,
// per-item isolation lives in the batch dispatcher.
func (p *Pipeline) AssessStudent(ctx context.Context, studentID string, requested []skills.Skill, opts Options) (*StudentAssessment, error) {
	start := time.Now()
	if len(requested) == 0 {
		requested = skills.All()
	}

	assessed := make([]SkillAssessment, 0, len(requested))
	for _, skill := range requested {
		sa, err := p.AssessSkill(ctx, studentID, skill, opts)
		if err != nil {
			return nil, fmt.Errorf("assess %s: %w", skill, err)
		}
		assessed = append(assessed, *sa)
	}

	totalMS := float64(time.Since(start).Microseconds()) / 1e3
	p.logger.Debug("Student assessed",
		"student_id", studentID,
		"skills", len(assessed),
		"total_ms", totalMS)

	return &StudentAssessment{
		StudentID:            studentID,
		Skills:               assessed,
		TotalInferenceTimeMS: totalMS,
		Timestamp:            time.Now().UTC(),
	}, nil
}

// observationsFor narrows request observations to one skill. Unscoped
// observations pass through to every skill.
func observationsFor(skill skills.Skill, obs []Observation) []fusion.Observation {
	if len(obs) == 0 {
		return nil
	}
	out := make([]fusion.Observation, 0, len(obs))
	for _, o := range obs {
		if o.SkillType == "" || o.SkillType == skill {
			out = append(out, o.Observation)
		}
	}
	return out
}
