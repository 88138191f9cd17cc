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

// Package config defines the compass service configuration.
//
// Configuration is loaded from YAML (or JSON) through a provider, with
// ${VAR} environment expansion, then decoded, defaulted, and validated.
// A handful of well-known environment variables override their sections
// directly so the service can run without a config file at all:
//
//	FEATURE_STORE_URL    feature_store.url
//	METRICS_BACKEND_URL  metrics.backend_url
//	FUSION_CONFIG_PATH   fusion.config_path
//	MODEL_ARTIFACT_ROOT  models.artifact_root
//	LOG_LEVEL            logging.level
//
// Secrets (LLM_API_KEY, SIGNING_KEY) never appear in configuration; they
// are resolved separately at startup.
package config

import (
	"fmt"
	"os"

	"github.com/lumen-ed/compass/pkg/observability"
)

// Config is the root configuration for the compass service.
type Config struct {
	// Server configures the HTTP listener.
	Server *ServerConfig `yaml:"server,omitempty" json:"server,omitempty"`

	// Logging configures structured logging.
	Logging *LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty"`

	// Auth configures bearer-token verification.
	Auth *AuthConfig `yaml:"auth,omitempty" json:"auth,omitempty"`

	// FeatureStore configures the student feature source.
	FeatureStore *FeatureStoreConfig `yaml:"feature_store,omitempty" json:"feature_store,omitempty"`

	// Metrics configures the inference metrics sink.
	Metrics *MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`

	// Fusion configures the fusion weight store.
	Fusion *FusionConfig `yaml:"fusion,omitempty" json:"fusion,omitempty"`

	// Models configures the model artifact registry.
	Models *ModelsConfig `yaml:"models,omitempty" json:"models,omitempty"`

	// LLM configures the rationale generation backend.
	LLM *LLMConfig `yaml:"llm,omitempty" json:"llm,omitempty"`

	// RateLimits configures the per-concern rate limiters.
	RateLimits *RateLimitsConfig `yaml:"rate_limits,omitempty" json:"rate_limits,omitempty"`

	// Pipeline configures inference pipeline timeouts and batch behavior.
	Pipeline *PipelineConfig `yaml:"pipeline,omitempty" json:"pipeline,omitempty"`

	// Observability configures OpenTelemetry metrics export.
	Observability *observability.Config `yaml:"observability,omitempty" json:"observability,omitempty"`
}

// ApplyEnv overrides config fields from well-known environment variables.
// Called after decoding and before defaults so explicit YAML values win
// only when the variable is unset.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("FEATURE_STORE_URL"); v != "" {
		if c.FeatureStore == nil {
			c.FeatureStore = &FeatureStoreConfig{}
		}
		c.FeatureStore.URL = v
	}
	if v := os.Getenv("METRICS_BACKEND_URL"); v != "" {
		if c.Metrics == nil {
			c.Metrics = &MetricsConfig{}
		}
		c.Metrics.BackendURL = v
	}
	if v := os.Getenv("FUSION_CONFIG_PATH"); v != "" {
		if c.Fusion == nil {
			c.Fusion = &FusionConfig{}
		}
		c.Fusion.ConfigPath = v
	}
	if v := os.Getenv("MODEL_ARTIFACT_ROOT"); v != "" {
		if c.Models == nil {
			c.Models = &ModelsConfig{}
		}
		c.Models.ArtifactRoot = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if c.Logging == nil {
			c.Logging = &LoggingConfig{}
		}
		c.Logging.Level = v
	}
}

// SetDefaults applies default values to all sections, allocating any
// that are missing.
func (c *Config) SetDefaults() {
	if c.Server == nil {
		c.Server = &ServerConfig{}
	}
	c.Server.SetDefaults()

	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	c.Logging.SetDefaults()

	if c.Auth == nil {
		c.Auth = &AuthConfig{}
	}
	c.Auth.SetDefaults()

	if c.FeatureStore == nil {
		c.FeatureStore = &FeatureStoreConfig{}
	}
	c.FeatureStore.SetDefaults()

	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{}
	}
	c.Metrics.SetDefaults()

	if c.Fusion == nil {
		c.Fusion = &FusionConfig{}
	}
	c.Fusion.SetDefaults()

	if c.Models == nil {
		c.Models = &ModelsConfig{}
	}
	c.Models.SetDefaults()

	if c.LLM == nil {
		c.LLM = &LLMConfig{}
	}
	c.LLM.SetDefaults()

	if c.RateLimits == nil {
		c.RateLimits = &RateLimitsConfig{}
	}
	c.RateLimits.SetDefaults()

	if c.Pipeline == nil {
		c.Pipeline = &PipelineConfig{}
	}
	c.Pipeline.SetDefaults()

	if c.Observability == nil {
		c.Observability = &observability.Config{}
	}
	c.Observability.SetDefaults()
}

// Validate checks the full configuration for errors.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging validation failed: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth validation failed: %w", err)
	}
	if err := c.FeatureStore.Validate(); err != nil {
		return fmt.Errorf("feature_store validation failed: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics validation failed: %w", err)
	}
	if err := c.Fusion.Validate(); err != nil {
		return fmt.Errorf("fusion validation failed: %w", err)
	}
	if err := c.Models.Validate(); err != nil {
		return fmt.Errorf("models validation failed: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm validation failed: %w", err)
	}
	if err := c.RateLimits.Validate(); err != nil {
		return fmt.Errorf("rate_limits validation failed: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline validation failed: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability validation failed: %w", err)
	}
	return nil
}

// Default returns a fully defaulted configuration built from environment
// variables alone, for running without a config file.
func Default() (*Config, error) {
	cfg := &Config{}
	cfg.ApplyEnv()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

// BoolValue dereferences p, returning def when p is nil.
func BoolValue(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
