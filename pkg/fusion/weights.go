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

// Package fusion combines the model prediction with raw feature evidence and
// human observations under hot-reloadable per-skill source weights.
//
// The weight document is the single mutable piece of pipeline configuration.
// It lives behind Store: readers snapshot an immutable config with one atomic
// load, writers validate-then-swap, and the backing document (file, consul,
// etcd, or zookeeper) can be watched for external edits.
package fusion

import (
	"math"

	"github.com/lumen-ed/compass/pkg/skills"
)

// Recognized weight keys. A weight map must carry exactly this set.
const (
	SourceMLInference          = "ml_inference"
	SourceLinguisticFeatures   = "linguistic_features"
	SourceBehavioralFeatures   = "behavioral_features"
	SourceConfidenceAdjustment = "confidence_adjustment"
)

// SourceKeys lists the recognized weight keys in canonical order.
var SourceKeys = []string{
	SourceMLInference,
	SourceLinguisticFeatures,
	SourceBehavioralFeatures,
	SourceConfidenceAdjustment,
}

// weightTolerance is the allowed drift of a per-skill weight sum from 1.0.
const weightTolerance = 1e-6

// Config is one complete weight document.
type Config struct {
	// Version is a semantic version string for audit trails.
	Version string `yaml:"version" json:"version"`

	// Description is free text for humans editing the document.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Weights maps every skill to its per-source weights.
	Weights map[skills.Skill]map[string]float64 `yaml:"weights" json:"weights"`
}

// Validate refuses malformed documents. It never mutates: a config that
// fails validation is discarded whole.
func (c *Config) Validate() error {
	if c.Version == "" {
		return &InvalidConfigError{Field: "version", Reason: "required"}
	}
	if len(c.Weights) == 0 {
		return &InvalidConfigError{Field: "weights", Reason: "required"}
	}

	for skill := range c.Weights {
		if !skill.Valid() {
			return &InvalidConfigError{Field: "weights." + skill.String(), Reason: "unknown skill"}
		}
	}

	for _, skill := range skills.All() {
		weights, ok := c.Weights[skill]
		if !ok {
			return &InvalidConfigError{Field: "weights." + skill.String(), Reason: "missing skill"}
		}

		for key := range weights {
			if !recognizedSource(key) {
				return &InvalidConfigError{
					Field:  "weights." + skill.String() + "." + key,
					Reason: "unknown source key",
				}
			}
		}

		var sum float64
		for _, key := range SourceKeys {
			w, ok := weights[key]
			if !ok {
				return &InvalidConfigError{
					Field:  "weights." + skill.String() + "." + key,
					Reason: "missing source key",
				}
			}
			if w < 0 || w > 1 {
				return &InvalidConfigError{
					Field:  "weights." + skill.String() + "." + key,
					Reason: "weight outside [0,1]",
				}
			}
			sum += w
		}
		if math.Abs(sum-1) > weightTolerance {
			return &InvalidConfigError{
				Field:  "weights." + skill.String(),
				Reason: "weights must sum to 1.0",
			}
		}
	}
	return nil
}

// Clone returns a deep copy, so callers can edit without touching the copy
// readers hold.
func (c *Config) Clone() *Config {
	clone := &Config{
		Version:     c.Version,
		Description: c.Description,
		Weights:     make(map[skills.Skill]map[string]float64, len(c.Weights)),
	}
	for skill, weights := range c.Weights {
		clone.Weights[skill] = copyWeights(weights)
	}
	return clone
}

func copyWeights(weights map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(weights))
	for key, w := range weights {
		out[key] = w
	}
	return out
}

func recognizedSource(key string) bool {
	switch key {
	case SourceMLInference, SourceLinguisticFeatures, SourceBehavioralFeatures, SourceConfidenceAdjustment:
		return true
	}
	return false
}

// Default returns the shipped weight profile. Empathy leans on language
// evidence, self-regulation and resilience on behavioral evidence.
func Default() *Config {
	return &Config{
		Version:     "1.0.0",
		Description: "Default per-skill fusion weights",
		Weights: map[skills.Skill]map[string]float64{
			skills.Empathy: {
				SourceMLInference:          0.45,
				SourceLinguisticFeatures:   0.30,
				SourceBehavioralFeatures:   0.15,
				SourceConfidenceAdjustment: 0.10,
			},
			skills.ProblemSolving: {
				SourceMLInference:          0.45,
				SourceLinguisticFeatures:   0.20,
				SourceBehavioralFeatures:   0.25,
				SourceConfidenceAdjustment: 0.10,
			},
			skills.SelfRegulation: {
				SourceMLInference:          0.45,
				SourceLinguisticFeatures:   0.10,
				SourceBehavioralFeatures:   0.35,
				SourceConfidenceAdjustment: 0.10,
			},
			skills.Resilience: {
				SourceMLInference:          0.45,
				SourceLinguisticFeatures:   0.15,
				SourceBehavioralFeatures:   0.30,
				SourceConfidenceAdjustment: 0.10,
			},
		},
	}
}
