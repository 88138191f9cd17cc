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

// Package server exposes the assessment pipeline over HTTP/JSON: the
// inference endpoints, the fusion weight admin surface, the metrics
// views, and health.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumen-ed/compass/pkg/auth"
	"github.com/lumen-ed/compass/pkg/batch"
	"github.com/lumen-ed/compass/pkg/config"
	"github.com/lumen-ed/compass/pkg/featurestore"
	"github.com/lumen-ed/compass/pkg/fusion"
	"github.com/lumen-ed/compass/pkg/logger"
	"github.com/lumen-ed/compass/pkg/metrics"
	"github.com/lumen-ed/compass/pkg/model"
	"github.com/lumen-ed/compass/pkg/observability"
	"github.com/lumen-ed/compass/pkg/ratelimit"
)

// Deps carries the assembled pipeline services the server exposes. The
// binary wires them once at startup; tests wire them over in-memory
// backends.
type Deps struct {
	// Assessor runs the full per-student pipeline for the single-student
	// endpoints. *assess.Pipeline in production.
	Assessor batch.Assessor

	// Batch dispatches multi-student requests.
	Batch *batch.Dispatcher

	// Weights is the fusion weight store behind the admin surface.
	Weights *fusion.Store

	// Sink serves the recent-inference views.
	Sink *metrics.Sink

	// Store is pinged by the health endpoint.
	Store featurestore.Store

	// Models reports loaded artifact versions on the health endpoint.
	Models *model.Registry

	// Validator is nil when authentication is disabled.
	Validator *auth.Validator

	// APILimiter bounds the fusion write surface. Nil passes everything.
	APILimiter *ratelimit.Limiter

	// LLMKeySet reports whether the rationale backend has a key, for the
	// health endpoint.
	LLMKeySet bool

	// Version is the build version stamped into health responses.
	Version string
}

// Server is the compass HTTP server.
type Server struct {
	cfg    *config.Config
	deps   Deps
	http   *http.Server
	logger *slog.Logger
}

// New assembles the router and the underlying http.Server. The config
// must have been through SetDefaults and Validate.
func New(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger.WithComponent("server"),
	}
	s.http = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      s.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(s.recoverPanics)
	r.Use(corsHeaders(s.cfg.Server.CORS))
	r.Use(auth.Middleware(s.deps.Validator, s.cfg.Auth))

	r.Post("/infer/batch", s.handleInferBatch)
	r.Post("/infer/{student_id}", s.handleInferAll)
	r.Post("/infer/{student_id}/{skill}", s.handleInferSkill)

	r.Route("/fusion/weights", func(r chi.Router) {
		r.Get("/", s.handleWeightsGet)
		r.Get("/schema", s.handleWeightsSchema)
		r.Get("/{skill}", s.handleWeightsSkillGet)

		// Writes are admin-only and share the API limiter; reads are
		// open and unmetered.
		limited := r.With(
			auth.RequireRole("admin"),
			ratelimit.Middleware(s.deps.APILimiter),
		)
		limited.Put("/{skill}", s.handleWeightsSkillPut)
		limited.Post("/reload", s.handleWeightsReload)
	})

	r.Get("/metrics", s.handleMetricsRecent)
	r.Get("/metrics/summary", s.handleMetricsSummary)
	r.Get("/metrics/prometheus", observability.Handler().ServeHTTP)

	r.Get("/health", s.handleHealth)

	return r
}

// Handler returns the routed handler, for tests driving the server
// through httptest.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is cancelled, then drains in-flight requests
// within the configured shutdown timeout. A listener failure returns
// immediately.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening",
			"addr", s.http.Addr,
			"auth_enabled", s.cfg.Auth.IsEnabled())
		if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
