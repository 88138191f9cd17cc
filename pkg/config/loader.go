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
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/lumen-ed/compass/pkg/config/provider"
	"github.com/lumen-ed/compass/pkg/logger"
)

// Loader turns the bytes behind a Provider into validated Config values.
// Every load runs the full chain: decode, env expansion, well-known env
// overrides, defaults, validation. A half-processed Config never escapes.
type Loader struct {
	provider provider.Provider
	onChange func(*Config)
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithOnChange registers a callback for configs reloaded by Watch.
func WithOnChange(fn func(*Config)) LoaderOption {
	return func(l *Loader) {
		l.onChange = fn
	}
}

// NewLoader creates a Loader on top of p.
func NewLoader(p provider.Provider, opts ...LoaderOption) *Loader {
	l := &Loader{provider: p}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the current document and assembles a validated Config.
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	raw, err := l.provider.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	doc, err := parseBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return assemble(doc)
}

// assemble runs a parsed document through expansion, decoding, env
// overrides, defaults, and validation.
func assemble(doc map[string]any) (*Config, error) {
	expanded, ok := expandTree(doc).(map[string]any)
	if !ok {
		expanded = doc
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(expanded); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.ApplyEnv()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Watch blocks on the provider's change signal and reloads on each one,
// handing valid configs to the onChange callback. A reload that fails
// validation is logged and dropped; the previous config stays in effect
// with whoever holds it. Returns when ctx is cancelled.
func (l *Loader) Watch(ctx context.Context) error {
	log := logger.WithComponent("config")

	changes, err := l.provider.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start watching: %w", err)
	}
	if changes == nil {
		log.Info("Config watching not supported by provider", "type", l.provider.Type())
		<-ctx.Done()
		return ctx.Err()
	}

	log.Info("Watching for config changes", "type", l.provider.Type())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			cfg, err := l.Load(ctx)
			if err != nil {
				log.Error("Failed to reload config", "error", err)
				continue
			}
			log.Info("Configuration reloaded")
			if l.onChange != nil {
				l.onChange(cfg)
			}
		}
	}
}

// Close releases the underlying provider.
func (l *Loader) Close() error {
	return l.provider.Close()
}

// Provider exposes the underlying provider.
func (l *Loader) Provider() provider.Provider {
	return l.provider
}

// parseBytes decodes a YAML or JSON document into a map. YAML is a superset
// of JSON, so the JSON branch only matters for documents the YAML parser
// chokes on.
func parseBytes(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse as YAML or JSON: %w", err)
	}
	return doc, nil
}

// envRef matches ${VAR}, ${VAR:-default}, and bare $VAR.
var envRef = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandTree walks a decoded document and expands env references in every
// string it finds, in maps, slices, and scalars alike.
func expandTree(node any) any {
	switch v := node.(type) {
	case string:
		return expandEnvString(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			out[k] = expandTree(child)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = expandTree(child)
		}
		return out
	default:
		return node
	}
}

func expandEnvString(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		if !strings.HasPrefix(ref, "${") {
			return os.Getenv(ref[1:])
		}
		name := ref[2 : len(ref)-1]
		if cut := strings.Index(name, ":-"); cut != -1 {
			if val := os.Getenv(name[:cut]); val != "" {
				return val
			}
			return name[cut+2:]
		}
		return os.Getenv(name)
	})
}

// LoadConfig builds a provider from opts and loads through it. The returned
// Loader keeps the provider open for watching; the caller owns Close.
func LoadConfig(ctx context.Context, opts provider.ProviderConfig) (*Config, *Loader, error) {
	p, err := provider.New(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create provider: %w", err)
	}

	loader := NewLoader(p)
	cfg, err := loader.Load(ctx)
	if err != nil {
		p.Close()
		return nil, nil, err
	}
	return cfg, loader, nil
}

// LoadConfigFile loads from a local file path.
func LoadConfigFile(ctx context.Context, path string) (*Config, *Loader, error) {
	return LoadConfig(ctx, provider.ProviderConfig{
		Type: provider.TypeFile,
		Path: path,
	})
}
