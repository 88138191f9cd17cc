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

package fusion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/lumen-ed/compass/pkg/config/provider"
	"github.com/lumen-ed/compass/pkg/logger"
	"github.com/lumen-ed/compass/pkg/skills"
)

// Store serves the active weight config. Reads are a single atomic pointer
// load; writers validate a complete replacement and swap it in, so a reader
// observes either the old document or the new one, never a mix.
type Store struct {
	current atomic.Pointer[Config]

	// mu serializes writers (Set, ReplaceSkill, Reload) so read-modify-write
	// sequences and persistence stay coherent.
	mu       sync.Mutex
	provider provider.Provider
	logger   *slog.Logger
}

// NewStore loads the initial document from path and serves it. path is a
// file path or a consul://, etcd://, zk:// URL.
func NewStore(path string) (*Store, error) {
	pc, err := provider.FromURL(path)
	if err != nil {
		return nil, err
	}
	p, err := provider.New(pc)
	if err != nil {
		return nil, err
	}

	s := &Store{
		provider: p,
		logger:   logger.WithComponent("fusion"),
	}
	if err := s.Reload(context.Background()); err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewStoreWithDefaults serves the built-in profile without a backing
// document. Set and ReplaceSkill work; persistence and Reload do not.
func NewStoreWithDefaults() *Store {
	s := &Store{logger: logger.WithComponent("fusion")}
	s.current.Store(Default())
	return s
}

// Get returns the active config. Callers must treat it as immutable; use
// Clone before editing.
func (s *Store) Get() *Config {
	return s.current.Load()
}

// Set validates and atomically installs a complete replacement config. With
// persist, the document is written to the backing store first; a write
// failure leaves the active config untouched.
func (s *Store) Set(ctx context.Context, cfg *Config, persist bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	clone := cfg.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	if persist {
		if err := s.persistLocked(ctx, clone); err != nil {
			return err
		}
	}
	s.current.Store(clone)
	s.logger.Info("Fusion weights replaced", "version", clone.Version, "persisted", persist)
	return nil
}

// ReplaceSkill swaps one skill's weight map, keeping version and description.
// The read-modify-write runs under the writer lock so concurrent replacements
// cannot lose updates. Returns the installed config.
func (s *Store) ReplaceSkill(ctx context.Context, skill skills.Skill, weights map[string]float64, persist bool) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := s.current.Load().Clone()
	clone.Weights[skill] = copyWeights(weights)
	if err := clone.Validate(); err != nil {
		return nil, err
	}

	if persist {
		if err := s.persistLocked(ctx, clone); err != nil {
			return nil, err
		}
	}
	s.current.Store(clone)
	s.logger.Info("Fusion weights updated", "skill", skill, "persisted", persist)
	return clone, nil
}

// Reload rereads the backing document, validates, and swaps. On any failure
// the current config is retained.
func (s *Store) Reload(ctx context.Context) error {
	if s.provider == nil {
		return fmt.Errorf("no backing document configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.provider.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to read fusion config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return &InvalidConfigError{Field: "document", Reason: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.current.Store(&cfg)
	s.logger.Info("Fusion weights loaded", "version", cfg.Version, "source", s.provider.Type())
	return nil
}

// Watch reloads on backing-document changes until ctx is cancelled. A failed
// reload keeps the current weights and logs.
func (s *Store) Watch(ctx context.Context) error {
	if s.provider == nil {
		return fmt.Errorf("no backing document configured")
	}

	ch, err := s.provider.Watch(ctx)
	if err != nil {
		return err
	}
	if ch == nil {
		return nil
	}

	go func() {
		for range ch {
			if err := s.Reload(ctx); err != nil {
				s.logger.Warn("Fusion config reload failed, keeping current weights", "error", err)
			}
		}
	}()
	return nil
}

func (s *Store) persistLocked(ctx context.Context, cfg *Config) error {
	if s.provider == nil {
		return fmt.Errorf("no backing document configured")
	}
	p, ok := s.provider.(provider.Persister)
	if !ok {
		return fmt.Errorf("%s config source does not support persistence", s.provider.Type())
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode fusion config: %w", err)
	}
	if err := p.Persist(ctx, data); err != nil {
		return fmt.Errorf("failed to persist fusion config: %w", err)
	}
	return nil
}

// Close releases the backing provider, if any.
func (s *Store) Close() error {
	if s.provider == nil {
		return nil
	}
	return s.provider.Close()
}
