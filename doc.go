// Package compass provides a social-emotional skill inference service for K-12
// learning platforms.
//
// Compass evaluates students on four skills (empathy, problem-solving,
// self-regulation, resilience) by assembling previously extracted linguistic and
// behavioral features into per-skill feature vectors, scoring them with
// gradient-boosted regressors, fusing the model output with raw feature evidence
// under hot-reloadable per-skill weights, and generating short growth-oriented
// rationales through an external LLM with token budgeting and a deterministic
// template fallback.
//
// # Quick Start
//
// Install Compass:
//
//	go install github.com/lumen-ed/compass/cmd/compass@latest
//
// Provide the required environment (or a .env file):
//
//	LLM_API_KEY=...
//	SIGNING_KEY=...
//	FEATURE_STORE_URL=postgres://...
//	FUSION_CONFIG_PATH=configs/fusion_weights.yaml
//	MODEL_ARTIFACT_ROOT=models/
//
// Start the server:
//
//	compass serve --config compass.yaml
//
// # Library Usage
//
// Import specific packages:
//
//	import (
//	    "github.com/lumen-ed/compass/pkg/inference"
//	    "github.com/lumen-ed/compass/pkg/fusion"
//	    "github.com/lumen-ed/compass/pkg/batch"
//	)
//
// # Architecture
//
// One student's request flows through three strictly ordered stages:
//
//	feature store → inference (predict + confidence) → fusion (weighted evidence) → rationale
//
// Batch requests wrap the per-student flow under a bounded-concurrency
// dispatcher with per-item failure isolation. Fusion weights, rate limits, and
// the metrics sink cross-cut all stages.
package compass
