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

package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Resolver resolves secrets through an ordered source chain with a
// process-lifetime cache.
type Resolver struct {
	sources []Source
	logger  *slog.Logger

	mu    sync.RWMutex
	cache map[string]string
}

// NewResolver creates a Resolver consulting sources in order.
func NewResolver(sources ...Source) *Resolver {
	return &Resolver{
		sources: sources,
		logger:  slog.Default().With("component", "secrets"),
		cache:   make(map[string]string),
	}
}

// NewDefaultResolver builds the standard chain: Consul KV when
// CONSUL_HTTP_ADDR is set, then the process environment.
func NewDefaultResolver() (*Resolver, error) {
	var sources []Source

	if addr := os.Getenv("CONSUL_HTTP_ADDR"); addr != "" {
		consul, err := NewConsulSource(addr, DefaultConsulPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to create managed secret source: %w", err)
		}
		sources = append(sources, consul)
	}

	sources = append(sources, EnvSource{})
	return NewResolver(sources...), nil
}

// Resolve returns the value for key, walking the chain until a source
// yields a non-empty value. Source failures are logged and skipped;
// a key absent from every source returns ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, key string) (string, error) {
	r.mu.RLock()
	if v, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return v, nil
	}
	r.mu.RUnlock()

	for _, src := range r.sources {
		v, err := src.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			r.logger.Warn("Secret source failed, trying next",
				"source", src.Name(),
				"key", key,
				"error", err)
			continue
		}

		r.mu.Lock()
		r.cache[key] = v
		r.mu.Unlock()

		r.logger.Debug("Resolved secret", "source", src.Name(), "key", key)
		return v, nil
	}

	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Require resolves all keys, collecting misses into a single
// FatalConfigError so startup reports every missing secret at once.
func (r *Resolver) Require(ctx context.Context, keys ...string) (map[string]string, error) {
	resolved := make(map[string]string, len(keys))
	var missing []string

	for _, key := range keys {
		v, err := r.Resolve(ctx, key)
		if err != nil {
			missing = append(missing, key)
			continue
		}
		resolved[key] = v
	}

	if len(missing) > 0 {
		return nil, &FatalConfigError{Missing: missing}
	}
	return resolved, nil
}

// Invalidate drops a cached value so the next Resolve re-walks the chain.
func (r *Resolver) Invalidate(key string) {
	r.mu.Lock()
	delete(r.cache, key)
	r.mu.Unlock()
}
