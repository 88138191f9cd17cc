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

// Package rationale produces the growth-oriented narrative attached to every
// assessment. The primary path prompts an LLM backend under a token budget, a
// shared rate limiter, and a hard wall-clock deadline; any failure on that
// path degrades to a deterministic template, so Generate always returns a
// usable Rationale and never an error.
package rationale

import (
	"context"
	"log/slog"
	"time"

	"github.com/lumen-ed/compass/pkg/config"
	"github.com/lumen-ed/compass/pkg/llm"
	"github.com/lumen-ed/compass/pkg/logger"
	"github.com/lumen-ed/compass/pkg/observability"
	"github.com/lumen-ed/compass/pkg/ratelimit"
	"github.com/lumen-ed/compass/pkg/skills"
	"github.com/lumen-ed/compass/pkg/utils"
)

const (
	// maxResponseTokens caps the completion; the narrative and both lists
	// fit comfortably inside it.
	maxResponseTokens = 512

	// generationTemperature keeps the wording varied without drifting from
	// the requested shape.
	generationTemperature = 0.4
)

// tokenCounter is the slice of utils.TokenCounter the generator needs.
type tokenCounter interface {
	Count(text string) int
}

// Input carries one Generate call's inputs. Assessment must be non-nil.
// Grade is the optional grade band echoed into the prompt. StudentID is for
// log correlation only and never reaches the prompt.
type Input struct {
	StudentID  string
	Assessment *skills.FusedAssessment
	Grade      string
}

// Generator turns fused assessments into rationales.
type Generator struct {
	provider llm.Provider
	limiter  *ratelimit.Limiter
	counter  tokenCounter
	budget   int
	timeout  time.Duration
	logger   *slog.Logger
}

// New builds a Generator. The token counter is derived from the configured
// model so budget checks use the same tokenizer family the backend bills by.
func New(cfg *config.LLMConfig, provider llm.Provider, limiter *ratelimit.Limiter) (*Generator, error) {
	counter, err := utils.NewTokenCounter(cfg.Model)
	if err != nil {
		return nil, err
	}
	return &Generator{
		provider: provider,
		limiter:  limiter,
		counter:  counter,
		budget:   safeBudget(cfg.Model),
		timeout:  cfg.Timeout,
		logger:   logger.WithComponent("rationale"),
	}, nil
}

// Generate produces a rationale for a fused assessment. The LLM path runs
// only when the prompt fits the token budget, the limiter grants a token, the
// call returns inside the deadline, and the response validates; otherwise the
// template answers.
func (g *Generator) Generate(ctx context.Context, in Input) *skills.Rationale {
	a := in.Assessment
	ranked := rankEvidence(a.TopEvidence, a.WeightsSnapshot)

	prompt, k, promptTokens, fits := g.fitPrompt(a, in.Grade, ranked)
	if !fits {
		g.logger.Info("Prompt over token budget, using template",
			"student_id", in.StudentID,
			"skill", a.Skill,
			"prompt_tokens", promptTokens,
			"budget", g.budget)
		return templateRationale(a, ranked)
	}

	res := g.limiter.Acquire()
	if !res.Allowed {
		g.logger.Info("LLM limiter refused, using template",
			"student_id", in.StudentID,
			"skill", a.Skill,
			"limiter_reason", res.Reason,
			"retry_after_s", res.RetryAfterSeconds())
		return templateRationale(a, ranked)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	callStart := time.Now()
	resp, err := g.provider.Generate(ctx, &llm.Request{
		System:      systemPreamble,
		Prompt:      prompt,
		Schema:      responseSchema,
		MaxTokens:   maxResponseTokens,
		Temperature: generationTemperature,
	})
	tokens := 0
	if resp != nil {
		tokens = resp.TotalTokens
	}
	observability.Global().RecordLLMCall(ctx, g.provider.Model(), time.Since(callStart), tokens, err)
	if err != nil {
		g.logger.Warn("LLM call failed, using template",
			"student_id", in.StudentID,
			"skill", a.Skill,
			"error", err)
		return templateRationale(a, ranked)
	}

	rationale, err := parseResponse(resp.Text)
	if err != nil {
		g.logger.Warn("LLM response failed validation, using template",
			"student_id", in.StudentID,
			"skill", a.Skill,
			"error", err)
		return templateRationale(a, ranked)
	}
	rationale.Generator = skills.GeneratorLLM
	rationale.TokensConsumed = resp.TotalTokens

	g.logger.Debug("Rationale generated",
		"student_id", in.StudentID,
		"skill", a.Skill,
		"evidence_items", k,
		"prompt_tokens", promptTokens,
		"tokens_consumed", resp.TotalTokens)
	return rationale
}
