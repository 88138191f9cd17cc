package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/invopop/jsonschema"

	"github.com/lumen-ed/compass/pkg/assess"
	"github.com/lumen-ed/compass/pkg/fusion"
	"github.com/lumen-ed/compass/pkg/metrics"
	"github.com/lumen-ed/compass/pkg/skills"
)

const (
	// defaultRecentLimit bounds GET /metrics when no limit is given.
	defaultRecentLimit = 100

	// healthPingTimeout caps the feature store round trip during health
	// checks so a hung upstream cannot stall the probe.
	healthPingTimeout = 2 * time.Second
)

// inferRequest is the optional body of the single-student endpoints. An
// empty body means no teacher observations and no grade adjustment.
type inferRequest struct {
	Grade        string               `json:"grade,omitempty"`
	Observations []assess.Observation `json:"observations,omitempty"`
}

func (req *inferRequest) options() assess.Options {
	return assess.Options{Grade: req.Grade, Observations: req.Observations}
}

// batchRequest is the body of POST /infer/batch. Grade and observations
// apply to every student in the batch.
type batchRequest struct {
	StudentIDs   []string             `json:"student_ids"`
	Grade        string               `json:"grade,omitempty"`
	Observations []assess.Observation `json:"observations,omitempty"`
}

func (req *batchRequest) options() assess.Options {
	return assess.Options{Grade: req.Grade, Observations: req.Observations}
}

// weightsPutRequest replaces one skill's weight map. Persist writes the
// updated document back to the backing file after validation.
type weightsPutRequest struct {
	Weights map[string]float64 `json:"weights"`
	Persist bool               `json:"persist,omitempty"`
}

type skillWeightsResponse struct {
	Skill   skills.Skill       `json:"skill_type"`
	Weights map[string]float64 `json:"weights"`
	Version string             `json:"version"`
}

type metricsResponse struct {
	Count   int              `json:"count"`
	Records []metrics.Record `json:"records"`
}

type healthResponse struct {
	Status        string                  `json:"status"`
	FeatureStore  string                  `json:"feature_store"`
	MetricsMode   metrics.Mode            `json:"metrics_mode"`
	ModelsLoaded  int                     `json:"models_loaded"`
	ModelVersions map[skills.Skill]string `json:"model_versions"`
	LLMKeyPresent bool                    `json:"llm_key_present"`
	Version       string                  `json:"version"`
}

// decodeJSON fills dst from the request body. A completely empty body is
// fine; endpoints that need fields check for them afterwards.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) handleInferAll(w http.ResponseWriter, r *http.Request) {
	var req inferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	studentID := chi.URLParam(r, "student_id")
	assessment, err := s.deps.Assessor.AssessStudent(r.Context(), studentID, nil, req.options())
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assessment)
}

func (s *Server) handleInferSkill(w http.ResponseWriter, r *http.Request) {
	skill, err := skills.Parse(chi.URLParam(r, "skill"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var req inferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	studentID := chi.URLParam(r, "student_id")
	assessment, err := s.deps.Assessor.AssessStudent(r.Context(), studentID, []skills.Skill{skill}, req.options())
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assessment)
}

func (s *Server) handleInferBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if len(req.StudentIDs) == 0 {
		writeError(w, http.StatusBadRequest, "student_ids is required")
		return
	}

	resp, err := s.deps.Batch.InferBatch(r.Context(), req.StudentIDs, req.options())
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWeightsGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Weights.Get())
}

func (s *Server) handleWeightsSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, jsonschema.Reflect(&fusion.Config{}))
}

func (s *Server) handleWeightsSkillGet(w http.ResponseWriter, r *http.Request) {
	skill, err := skills.Parse(chi.URLParam(r, "skill"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	cfg := s.deps.Weights.Get()
	writeJSON(w, http.StatusOK, skillWeightsResponse{
		Skill:   skill,
		Weights: cfg.Weights[skill],
		Version: cfg.Version,
	})
}

func (s *Server) handleWeightsSkillPut(w http.ResponseWriter, r *http.Request) {
	skill, err := skills.Parse(chi.URLParam(r, "skill"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var req weightsPutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if len(req.Weights) == 0 {
		writeError(w, http.StatusBadRequest, "weights is required")
		return
	}

	cfg, err := s.deps.Weights.ReplaceSkill(r.Context(), skill, req.Weights, req.Persist)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleWeightsReload(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Weights.Reload(r.Context()); err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Weights.Get())
}

func (s *Server) handleMetricsRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records := s.deps.Sink.Recent(limit)
	writeJSON(w, http.StatusOK, metricsResponse{Count: len(records), Records: records})
}

func (s *Server) handleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Sink.Summary())
}

// handleHealth reports liveness plus enough dependency state to triage an
// unhealthy instance: feature store reachability, metrics sink mode, and
// loaded model versions. A failed store ping degrades the status to 503 so
// load balancers rotate the instance out.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	resp := healthResponse{
		Status:        "ok",
		FeatureStore:  "ok",
		MetricsMode:   s.deps.Sink.Mode(),
		ModelsLoaded:  s.deps.Models.Count(),
		ModelVersions: s.deps.Models.Versions(),
		LLMKeyPresent: s.deps.LLMKeySet,
		Version:       s.deps.Version,
	}

	status := http.StatusOK
	if err := s.deps.Store.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.FeatureStore = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
