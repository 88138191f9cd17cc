package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	compass "github.com/lumen-ed/compass"
	"github.com/lumen-ed/compass/pkg/assess"
	"github.com/lumen-ed/compass/pkg/auth"
	"github.com/lumen-ed/compass/pkg/batch"
	"github.com/lumen-ed/compass/pkg/config"
	"github.com/lumen-ed/compass/pkg/featurestore"
	"github.com/lumen-ed/compass/pkg/fusion"
	"github.com/lumen-ed/compass/pkg/inference"
	"github.com/lumen-ed/compass/pkg/llm"
	"github.com/lumen-ed/compass/pkg/metrics"
	"github.com/lumen-ed/compass/pkg/model"
	"github.com/lumen-ed/compass/pkg/observability"
	"github.com/lumen-ed/compass/pkg/ratelimit"
	"github.com/lumen-ed/compass/pkg/rationale"
	"github.com/lumen-ed/compass/pkg/secrets"
	"github.com/lumen-ed/compass/pkg/server"
)

// ServeCmd starts the inference service.
type ServeCmd struct {
	Host  string `help:"Interface to bind (overrides config)."`
	Port  int    `help:"Port to listen on (overrides config)."`
	Watch bool   `help:"Watch the fusion weight document and hot-reload on change."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, loader, err := c.loadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	// Secrets gate startup: no LLM key or signing key, no service.
	resolver, err := secrets.NewDefaultResolver()
	if err != nil {
		return fmt.Errorf("failed to build secret resolver: %w", err)
	}
	resolved, err := resolver.Require(ctx, secrets.KeyLLMAPIKey, secrets.KeySigningKey)
	if err != nil {
		return err
	}

	registry, err := model.Load(cfg.Models.ArtifactRoot)
	if err != nil {
		return fmt.Errorf("failed to load model artifacts: %w", err)
	}
	slog.Info("Models loaded", "count", registry.Count(), "versions", registry.Versions())

	weights, err := openWeights(cfg.Fusion.ConfigPath)
	if err != nil {
		return err
	}
	defer weights.Close()
	if c.Watch {
		go func() {
			if err := weights.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Fusion weight watch failed", "error", err)
			}
		}()
	}

	store, err := featurestore.New(cfg.FeatureStore.URL, cfg.FeatureStore.QueryTimeout)
	if err != nil {
		return fmt.Errorf("failed to open feature store: %w", err)
	}
	defer store.Close()
	pingCtx, cancelPing := context.WithTimeout(ctx, 3*time.Second)
	if err := store.Ping(pingCtx); err != nil {
		slog.Warn("Feature store unreachable at startup", "error", err)
	}
	cancelPing()

	// A down metrics backend degrades to memory-only; it never blocks boot.
	var backend metrics.Backend
	if cfg.Metrics.BackendURL != "" {
		backend, err = metrics.NewBackend(cfg.Metrics.BackendURL)
		if err != nil {
			slog.Warn("Metrics backend unavailable, recording in memory only", "error", err)
			backend = nil
		}
	}
	sink := metrics.NewSink(cfg.Metrics.Retention, backend)
	defer sink.Close()

	llmProvider, err := llm.New(cfg.LLM, resolved[secrets.KeyLLMAPIKey])
	if err != nil {
		return fmt.Errorf("failed to build LLM provider: %w", err)
	}

	limiters := ratelimit.NewManager()
	llmLimiter, err := limiters.Configure("llm", ratelimit.Limits{
		CallsPerMinute: cfg.RateLimits.LLM.CallsPerMinute,
		CallsPerHour:   cfg.RateLimits.LLM.CallsPerHour,
		BurstSize:      cfg.RateLimits.LLM.BurstSize,
	})
	if err != nil {
		return fmt.Errorf("failed to configure llm limiter: %w", err)
	}
	var apiLimiter *ratelimit.Limiter
	if cfg.RateLimits.API != nil {
		apiLimiter, err = limiters.Configure("api", ratelimit.Limits{
			CallsPerMinute: cfg.RateLimits.API.CallsPerMinute,
			CallsPerHour:   cfg.RateLimits.API.CallsPerHour,
			BurstSize:      cfg.RateLimits.API.BurstSize,
		})
		if err != nil {
			return fmt.Errorf("failed to configure api limiter: %w", err)
		}
	}

	narrator, err := rationale.New(cfg.LLM, llmProvider, llmLimiter)
	if err != nil {
		return fmt.Errorf("failed to build rationale generator: %w", err)
	}

	engine := inference.New(store, registry, sink, cfg.Pipeline)
	fuser := fusion.NewEngine(weights, registry, cfg.Pipeline)
	pipeline := assess.New(engine, fuser, narrator)
	dispatcher := batch.New(pipeline, cfg.Pipeline)

	cfg.Observability.ServiceVersion = compass.Version
	obs, err := observability.Init(*cfg.Observability)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Observability shutdown failed", "error", err)
		}
	}()

	var validator *auth.Validator
	if cfg.Auth.IsEnabled() {
		validator, err = auth.NewValidator([]byte(resolved[secrets.KeySigningKey]), cfg.Auth.Issuer, cfg.Auth.Audience)
		if err != nil {
			return fmt.Errorf("failed to build token validator: %w", err)
		}
	}

	srv := server.New(cfg, server.Deps{
		Assessor:   pipeline,
		Batch:      dispatcher,
		Weights:    weights,
		Sink:       sink,
		Store:      store,
		Models:     registry,
		Validator:  validator,
		APILimiter: apiLimiter,
		LLMKeySet:  resolved[secrets.KeyLLMAPIKey] != "",
		Version:    compass.Version,
	})

	printStartupInfo(cfg, registry.Count())
	return srv.Run(ctx)
}

// loadConfig loads configuration from the given file, or from environment
// variables alone when no file is specified.
func (c *ServeCmd) loadConfig(ctx context.Context, path string) (*config.Config, *config.Loader, error) {
	if path != "" {
		cfg, loader, err := config.LoadConfigFile(ctx, path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load config: %w", err)
		}
		slog.Info("Loaded configuration", "path", path)
		return cfg, loader, nil
	}

	cfg, err := config.Default()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid environment configuration: %w", err)
	}
	slog.Info("Configuration from environment")
	return cfg, nil, nil
}

// openWeights loads the fusion weight document. A missing local file serves
// the built-in profile so a dev checkout runs without setup; a document that
// exists but fails validation refuses startup.
func openWeights(path string) (*fusion.Store, error) {
	if !strings.Contains(path, "://") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			slog.Warn("Fusion weight document not found, serving built-in defaults", "path", path)
			return fusion.NewStoreWithDefaults(), nil
		}
	}
	weights, err := fusion.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load fusion weights: %w", err)
	}
	return weights, nil
}

func printStartupInfo(cfg *config.Config, modelCount int) {
	addr := cfg.Server.Address()

	fmt.Printf("\n%sCompass inference service ready!%s\n", indigo, ansiReset)
	fmt.Printf("   Inference:   http://%s/infer/{student_id}\n", addr)
	fmt.Printf("   Batch:       http://%s/infer/batch\n", addr)
	fmt.Printf("   Weights:     http://%s/fusion/weights\n", addr)
	fmt.Printf("   Metrics:     http://%s/metrics\n", addr)
	fmt.Printf("   Health:      http://%s/health\n", addr)
	fmt.Println()
	fmt.Printf("   Models:      %d skills\n", modelCount)
	fmt.Printf("   Features:    %s\n", urlScheme(cfg.FeatureStore.URL))
	if cfg.Metrics.BackendURL != "" {
		fmt.Printf("   Metrics DB:  %s (durable)\n", urlScheme(cfg.Metrics.BackendURL))
	} else {
		fmt.Printf("   Metrics DB:  in-memory (not persisted)\n")
	}
	fmt.Printf("   LLM:         %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)
	if cfg.Auth.IsEnabled() {
		fmt.Printf("   Auth:        enabled\n")
	} else {
		fmt.Printf("   Auth:        disabled\n")
	}
	fmt.Println("\nPress Ctrl+C to stop")
}

// urlScheme reports just the scheme of a connection URL. DSNs carry
// credentials, so they never go to stdout whole.
func urlScheme(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "configured"
	}
	return u.Scheme
}
