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

package config

import (
	"fmt"
	"math"
	"time"
)

// LimiterConfig defines a single dual-window rate limit.
type LimiterConfig struct {
	// CallsPerMinute is the sustained per-minute budget.
	CallsPerMinute float64 `yaml:"calls_per_minute,omitempty" json:"calls_per_minute,omitempty"`

	// CallsPerHour is the sustained per-hour budget.
	CallsPerHour float64 `yaml:"calls_per_hour,omitempty" json:"calls_per_hour,omitempty"`

	// BurstSize allows short bursts above the per-minute rate.
	BurstSize float64 `yaml:"burst_size,omitempty" json:"burst_size,omitempty"`
}

// Validate checks the limiter configuration.
func (c *LimiterConfig) Validate() error {
	if c.CallsPerMinute <= 0 {
		return fmt.Errorf("calls_per_minute must be positive")
	}
	if c.CallsPerHour <= 0 {
		return fmt.Errorf("calls_per_hour must be positive")
	}
	if c.BurstSize < 0 {
		return fmt.Errorf("burst_size must not be negative")
	}
	return nil
}

// RateLimitsConfig configures the service rate limiters.
type RateLimitsConfig struct {
	// LLM limits rationale generation calls to the LLM backend.
	// Default: 50/minute, 500/hour, burst 10.
	LLM *LimiterConfig `yaml:"llm,omitempty" json:"llm,omitempty"`

	// API optionally limits inbound inference requests. Nil disables
	// API-level limiting.
	API *LimiterConfig `yaml:"api,omitempty" json:"api,omitempty"`
}

// SetDefaults applies default values.
func (c *RateLimitsConfig) SetDefaults() {
	if c.LLM == nil {
		c.LLM = &LimiterConfig{
			CallsPerMinute: 50,
			CallsPerHour:   500,
			BurstSize:      10,
		}
	}
}

// Validate checks the rate limit configuration.
func (c *RateLimitsConfig) Validate() error {
	if c.LLM != nil {
		if err := c.LLM.Validate(); err != nil {
			return fmt.Errorf("llm: %w", err)
		}
	}
	if c.API != nil {
		if err := c.API.Validate(); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}
	return nil
}

// ConfidenceConfig tunes the inference confidence estimate.
type ConfidenceConfig struct {
	// SigmaRef is the ensemble spread at which the variance component
	// reaches zero.
	SigmaRef float64 `yaml:"sigma_ref,omitempty" json:"sigma_ref,omitempty"`

	// VarianceWeight, ExtremityWeight, and CompletenessWeight blend the
	// three components. They must sum to 1.
	VarianceWeight     float64 `yaml:"variance_weight,omitempty" json:"variance_weight,omitempty"`
	ExtremityWeight    float64 `yaml:"extremity_weight,omitempty" json:"extremity_weight,omitempty"`
	CompletenessWeight float64 `yaml:"completeness_weight,omitempty" json:"completeness_weight,omitempty"`

	// Degenerate* weights replace the blend when the ensemble spread is
	// effectively zero and the variance component carries no signal.
	DegenerateVarianceWeight     float64 `yaml:"degenerate_variance_weight,omitempty" json:"degenerate_variance_weight,omitempty"`
	DegenerateExtremityWeight    float64 `yaml:"degenerate_extremity_weight,omitempty" json:"degenerate_extremity_weight,omitempty"`
	DegenerateCompletenessWeight float64 `yaml:"degenerate_completeness_weight,omitempty" json:"degenerate_completeness_weight,omitempty"`

	// ClampMin and ClampMax bound the final confidence.
	ClampMin float64 `yaml:"clamp_min,omitempty" json:"clamp_min,omitempty"`
	ClampMax float64 `yaml:"clamp_max,omitempty" json:"clamp_max,omitempty"`
}

// SetDefaults applies default values.
func (c *ConfidenceConfig) SetDefaults() {
	if c.SigmaRef == 0 {
		c.SigmaRef = 0.2
	}
	if c.VarianceWeight == 0 && c.ExtremityWeight == 0 && c.CompletenessWeight == 0 {
		c.VarianceWeight = 0.50
		c.ExtremityWeight = 0.30
		c.CompletenessWeight = 0.20
	}
	if c.DegenerateVarianceWeight == 0 && c.DegenerateExtremityWeight == 0 && c.DegenerateCompletenessWeight == 0 {
		c.DegenerateVarianceWeight = 0.20
		c.DegenerateExtremityWeight = 0.60
		c.DegenerateCompletenessWeight = 0.20
	}
	if c.ClampMin == 0 && c.ClampMax == 0 {
		c.ClampMin = 0.30
		c.ClampMax = 0.95
	}
}

// Validate checks the confidence configuration.
func (c *ConfidenceConfig) Validate() error {
	if c.SigmaRef <= 0 {
		return fmt.Errorf("sigma_ref must be positive")
	}
	sum := c.VarianceWeight + c.ExtremityWeight + c.CompletenessWeight
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("confidence weights must sum to 1, got %g", sum)
	}
	degSum := c.DegenerateVarianceWeight + c.DegenerateExtremityWeight + c.DegenerateCompletenessWeight
	if math.Abs(degSum-1.0) > 1e-6 {
		return fmt.Errorf("degenerate confidence weights must sum to 1, got %g", degSum)
	}
	if c.ClampMin < 0 || c.ClampMax > 1 || c.ClampMin >= c.ClampMax {
		return fmt.Errorf("invalid clamp range [%g, %g]", c.ClampMin, c.ClampMax)
	}
	return nil
}

// PipelineConfig configures inference pipeline timeouts and batching.
type PipelineConfig struct {
	// InferenceSoftTimeout is the per-skill latency target. Exceeding it
	// logs a warning but does not abort.
	InferenceSoftTimeout time.Duration `yaml:"inference_soft_timeout,omitempty" json:"inference_soft_timeout,omitempty"`

	// InferenceHardTimeout aborts a single-skill inference.
	InferenceHardTimeout time.Duration `yaml:"inference_hard_timeout,omitempty" json:"inference_hard_timeout,omitempty"`

	// FusionTimeout bounds each evidence source fetch during fusion.
	FusionTimeout time.Duration `yaml:"fusion_timeout,omitempty" json:"fusion_timeout,omitempty"`

	// BatchTimeout bounds a whole batch request.
	BatchTimeout time.Duration `yaml:"batch_timeout,omitempty" json:"batch_timeout,omitempty"`

	// BatchConcurrency is the worker count for batch dispatch.
	BatchConcurrency int `yaml:"batch_concurrency,omitempty" json:"batch_concurrency,omitempty"`

	// MaxBatchSize caps student ids per batch request.
	MaxBatchSize int `yaml:"max_batch_size,omitempty" json:"max_batch_size,omitempty"`

	// Confidence tunes the confidence estimate.
	Confidence *ConfidenceConfig `yaml:"confidence,omitempty" json:"confidence,omitempty"`
}

// SetDefaults applies default values.
func (c *PipelineConfig) SetDefaults() {
	if c.InferenceSoftTimeout == 0 {
		c.InferenceSoftTimeout = 500 * time.Millisecond
	}
	if c.InferenceHardTimeout == 0 {
		c.InferenceHardTimeout = 2 * time.Second
	}
	if c.FusionTimeout == 0 {
		c.FusionTimeout = time.Second
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = 60 * time.Second
	}
	if c.BatchConcurrency == 0 {
		c.BatchConcurrency = 16
	}
	if c.MaxBatchSize == 0 {
		c.MaxBatchSize = 100
	}
	if c.Confidence == nil {
		c.Confidence = &ConfidenceConfig{}
	}
	c.Confidence.SetDefaults()
}

// Validate checks the pipeline configuration.
func (c *PipelineConfig) Validate() error {
	if c.InferenceSoftTimeout <= 0 || c.InferenceHardTimeout <= 0 {
		return fmt.Errorf("inference timeouts must be positive")
	}
	if c.InferenceSoftTimeout > c.InferenceHardTimeout {
		return fmt.Errorf("inference_soft_timeout must not exceed inference_hard_timeout")
	}
	if c.FusionTimeout <= 0 {
		return fmt.Errorf("fusion_timeout must be positive")
	}
	if c.BatchTimeout <= 0 {
		return fmt.Errorf("batch_timeout must be positive")
	}
	if c.BatchConcurrency <= 0 {
		return fmt.Errorf("batch_concurrency must be positive")
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("max_batch_size must be positive")
	}
	if err := c.Confidence.Validate(); err != nil {
		return fmt.Errorf("confidence: %w", err)
	}
	return nil
}
