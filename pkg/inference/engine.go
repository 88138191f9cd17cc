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

// Package inference runs the per-student, per-skill scoring pipeline: fetch
// the two raw feature records in parallel, assemble the feature vector in
// manifest order, run the gradient-boosted ensemble, and blend a calibrated
// confidence from ensemble spread, score extremity, and feature completeness.
//
// Every Infer call writes one metrics record, success or failure. The hard
// timeout bounds the call; the soft target only logs when exceeded.
package inference

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lumen-ed/compass/pkg/config"
	"github.com/lumen-ed/compass/pkg/featurestore"
	"github.com/lumen-ed/compass/pkg/logger"
	"github.com/lumen-ed/compass/pkg/metrics"
	"github.com/lumen-ed/compass/pkg/model"
	"github.com/lumen-ed/compass/pkg/observability"
	"github.com/lumen-ed/compass/pkg/skills"
)

// metricsWriteTimeout bounds the synchronous sink write so a slow durable
// backend cannot stall the response path. The write runs on a fresh context:
// a cancelled request must still produce a metrics record.
const metricsWriteTimeout = time.Second

// Engine ties the feature store, the model registry, and the metrics sink
// into a single Infer call.
type Engine struct {
	store      featurestore.Store
	models     *model.Registry
	sink       *metrics.Sink
	soft       time.Duration
	hard       time.Duration
	confidence ConfidenceParams
	logger     *slog.Logger
}

// Result carries the prediction together with the raw records and the
// assembled vector so downstream fusion can reuse them without refetching.
type Result struct {
	Prediction skills.Prediction
	Confidence Confidence
	Linguistic *featurestore.Record
	Behavioral *featurestore.Record
	Vector     []float64
}

// New builds an Engine from a pipeline configuration that has been through
// SetDefaults and Validate.
func New(store featurestore.Store, models *model.Registry, sink *metrics.Sink, cfg *config.PipelineConfig) *Engine {
	return &Engine{
		store:      store,
		models:     models,
		sink:       sink,
		soft:       cfg.InferenceSoftTimeout,
		hard:       cfg.InferenceHardTimeout,
		confidence: ConfidenceParamsFromConfig(cfg.Confidence),
		logger:     logger.WithComponent("inference"),
	}
}

// Infer scores one (student, skill) pair. A student without both feature
// records fails with a MissingRecordError rather than scoring on partial
// signal. Returned errors are categorized by Categorize; callers decide
// whether to surface or isolate them.
func (e *Engine) Infer(ctx context.Context, studentID string, skill skills.Skill) (*Result, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.hard)
	defer cancel()

	predictor, err := e.models.Get(skill)
	if err != nil {
		return nil, e.fail(ctx, studentID, skill, start, err)
	}

	var linguistic, behavioral *featurestore.Record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rec, err := e.store.Fetch(gctx, studentID, featurestore.KindLinguistic, time.Time{})
		if err != nil {
			return err
		}
		linguistic = rec
		return nil
	})
	g.Go(func() error {
		rec, err := e.store.Fetch(gctx, studentID, featurestore.KindBehavioral, time.Time{})
		if err != nil {
			return err
		}
		behavioral = rec
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, e.fail(ctx, studentID, skill, start, err)
	}
	if linguistic == nil {
		return nil, e.fail(ctx, studentID, skill, start, &MissingRecordError{StudentID: studentID, Kind: featurestore.KindLinguistic})
	}
	if behavioral == nil {
		return nil, e.fail(ctx, studentID, skill, start, &MissingRecordError{StudentID: studentID, Kind: featurestore.KindBehavioral})
	}

	vec := BuildVector(predictor.Manifest(), skill, linguistic, behavioral)
	out, err := predictor.Predict(vec)
	if err != nil {
		return nil, e.fail(ctx, studentID, skill, start, err)
	}

	conf := ComputeConfidence(out.RawScore, out.MemberOutputs, vec, e.confidence)

	elapsed := time.Since(start)
	latencyMS := float64(elapsed.Microseconds()) / 1e3
	if elapsed > e.soft {
		e.logger.Warn("Inference exceeded soft latency target",
			"student_id", studentID,
			"skill", skill,
			"latency_ms", latencyMS,
			"target_ms", e.soft.Milliseconds())
	}

	e.record(metrics.Record{
		StudentID: studentID,
		Skill:     skill.String(),
		LatencyMS: latencyMS,
		Success:   true,
	})
	observability.Global().RecordInference(ctx, skill.String(), elapsed, "")

	return &Result{
		Prediction: skills.Prediction{
			Skill:             skill,
			RawScore:          out.RawScore,
			Confidence:        conf.Value,
			FeatureImportance: out.Importance,
			ModelVersion:      predictor.Version(),
			LatencyMS:         latencyMS,
		},
		Confidence: conf,
		Linguistic: linguistic,
		Behavioral: behavioral,
		Vector:     vec,
	}, nil
}

func (e *Engine) fail(ctx context.Context, studentID string, skill skills.Skill, start time.Time, err error) error {
	category := Categorize(err)
	e.logger.Error("Inference failed",
		"student_id", studentID,
		"skill", skill,
		"category", string(category),
		"error", err)
	e.record(metrics.Record{
		StudentID:     studentID,
		Skill:         skill.String(),
		LatencyMS:     float64(time.Since(start).Microseconds()) / 1e3,
		Success:       false,
		ErrorCategory: category,
	})
	observability.Global().RecordInference(ctx, skill.String(), time.Since(start), category)
	return err
}

func (e *Engine) record(rec metrics.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), metricsWriteTimeout)
	defer cancel()
	e.sink.Record(ctx, rec)
}
