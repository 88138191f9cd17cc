package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lumen-ed/compass/pkg/config"
	"github.com/lumen-ed/compass/pkg/fusion"
	"github.com/lumen-ed/compass/pkg/model"
)

// ValidateCmd validates the configuration, the fusion weight document, and
// the model artifacts it points at. Exits non-zero when any check fails.
type ValidateCmd struct {
	Config      string `arg:"" optional:"" name:"config" help:"Configuration file path." placeholder:"PATH"`
	Format      string `short:"f" help:"Output format: compact, json." default:"compact" enum:"compact,json"`
	PrintConfig bool   `short:"p" name:"print-config" help:"Print the expanded configuration (defaults applied, env vars resolved)."`
}

// checkResult is one validation check's outcome.
type checkResult struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	path := c.Config
	if path == "" {
		path = cli.Config
	}

	cfg, result := loadForValidation(context.Background(), path)
	results := []checkResult{result}
	if cfg != nil {
		results = append(results,
			checkWeights(cfg.Fusion.ConfigPath),
			checkModels(cfg.Models.ArtifactRoot),
		)
	}

	if err := printChecks(c.Format, results); err != nil {
		return err
	}

	if c.PrintConfig && cfg != nil {
		fmt.Printf("\n# Expanded configuration\n")
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		if err := encoder.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		encoder.Close()
	}
	return nil
}

// loadForValidation loads the config file, or the environment configuration
// when no path is given.
func loadForValidation(ctx context.Context, path string) (*config.Config, checkResult) {
	if path == "" {
		cfg, err := config.Default()
		if err != nil {
			return nil, checkResult{Name: "config (environment)", OK: false, Detail: err.Error()}
		}
		return cfg, checkResult{Name: "config (environment)", OK: true}
	}

	cfg, loader, err := config.LoadConfigFile(ctx, path)
	if err != nil {
		return nil, checkResult{Name: fmt.Sprintf("config (%s)", path), OK: false, Detail: err.Error()}
	}
	loader.Close()
	return cfg, checkResult{Name: fmt.Sprintf("config (%s)", path), OK: true}
}

// checkWeights validates the fusion weight document the way serve loads it.
// A missing local file passes: the service falls back to built-in defaults.
func checkWeights(path string) checkResult {
	name := fmt.Sprintf("fusion weights (%s)", path)
	if !strings.Contains(path, "://") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return checkResult{Name: name, OK: true, Detail: "not found, built-in defaults apply"}
		}
	}

	store, err := fusion.NewStore(path)
	if err != nil {
		return checkResult{Name: name, OK: false, Detail: err.Error()}
	}
	defer store.Close()
	return checkResult{Name: name, OK: true, Detail: fmt.Sprintf("version %s", store.Get().Version)}
}

// checkModels loads the artifact registry, verifying manifest hashes. A
// missing artifact root passes with a note so config-only validation works
// away from the deployment host.
func checkModels(root string) checkResult {
	name := fmt.Sprintf("models (%s)", root)
	if _, err := os.Stat(root); errors.Is(err, os.ErrNotExist) {
		return checkResult{Name: name, OK: true, Detail: "artifact root not found, skipped"}
	}

	registry, err := model.Load(root)
	if err != nil {
		return checkResult{Name: name, OK: false, Detail: err.Error()}
	}
	return checkResult{Name: name, OK: true, Detail: fmt.Sprintf("%d skills loaded", registry.Count())}
}

func printChecks(format string, results []checkResult) error {
	failed := false
	for _, r := range results {
		if !r.OK {
			failed = true
		}
	}

	switch format {
	case "json":
		out := struct {
			Valid  bool          `json:"valid"`
			Checks []checkResult `json:"checks"`
		}{Valid: !failed, Checks: results}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(out); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	default:
		for _, r := range results {
			status := "valid"
			if !r.OK {
				status = "INVALID"
			}
			if r.Detail != "" {
				fmt.Printf("%s: %s (%s)\n", r.Name, status, r.Detail)
			} else {
				fmt.Printf("%s: %s\n", r.Name, status)
			}
		}
	}

	if failed {
		return fmt.Errorf("validation failed")
	}
	return nil
}
