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

package model

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lumen-ed/compass/pkg/registry"
	"github.com/lumen-ed/compass/pkg/skills"
)

// indexEntry records the expected hash for one artifact.
type indexEntry struct {
	Path   string `yaml:"path,omitempty"`
	SHA256 string `yaml:"sha256"`
}

// indexFile is the optional integrity index at <root>/index.yaml.
type indexFile struct {
	Artifacts map[string]indexEntry `yaml:"artifacts"`
}

// Registry holds the loaded predictors, keyed by skill and version.
// Read-only after Load; the serve path takes no locks.
type Registry struct {
	root      string
	catalog   *registry.Catalog[*Predictor]
	activeKey map[skills.Skill]string
	logger    *slog.Logger
}

// Load reads every skill's artifact from the artifact root, verifies
// content hashes against index.yaml when present, and registers the
// predictors. Any integrity mismatch aborts with ArtifactIntegrityError.
func Load(root string) (*Registry, error) {
	index, err := readIndex(filepath.Join(root, "index.yaml"))
	if err != nil {
		return nil, err
	}

	r := &Registry{
		root:      root,
		catalog:   registry.New[*Predictor](),
		activeKey: make(map[skills.Skill]string, len(skills.All())),
		logger:    slog.Default().With("component", "model"),
	}

	for _, skill := range skills.All() {
		path := filepath.Join(root, string(skill), "model.yaml")
		if entry, ok := index[string(skill)]; ok && entry.Path != "" {
			path = filepath.Join(root, entry.Path)
		}

		artifact, hash, err := ReadArtifact(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load model for %s: %w", skill, err)
		}
		if artifact.Skill != string(skill) {
			return nil, fmt.Errorf("artifact %s declares skill %s, expected %s", path, artifact.Skill, skill)
		}

		if entry, ok := index[string(skill)]; ok && entry.SHA256 != "" && entry.SHA256 != hash {
			return nil, &ArtifactIntegrityError{
				Skill: string(skill),
				Path:  path,
				Want:  entry.SHA256,
				Got:   hash,
			}
		}

		predictor := NewPredictor(artifact, hash)
		key := fmt.Sprintf("%s@%s", skill, predictor.Version())
		if err := r.catalog.Register(key, predictor); err != nil {
			return nil, fmt.Errorf("failed to register model %s: %w", key, err)
		}
		r.activeKey[skill] = key

		r.logger.Info("Registered model",
			"skill", skill,
			"version", predictor.Version(),
			"features", predictor.Manifest().Len(),
			"members", len(artifact.Ensemble.Members),
			"sha256", hash[:12])
	}

	return r, nil
}

// readIndex parses the integrity index. A missing file is not an error;
// hash verification is simply skipped.
func readIndex(path string) (map[string]indexEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read manifest index %s: %w", path, err)
	}

	var index indexFile
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse manifest index %s: %w", path, err)
	}
	return index.Artifacts, nil
}

// Get returns the active predictor for a skill.
func (r *Registry) Get(skill skills.Skill) (*Predictor, error) {
	key, ok := r.activeKey[skill]
	if !ok {
		return nil, fmt.Errorf("no model registered for skill %s", skill)
	}
	predictor, ok := r.catalog.Get(key)
	if !ok {
		return nil, fmt.Errorf("no model registered for skill %s", skill)
	}
	return predictor, nil
}

// Predict evaluates the active model for a skill.
func (r *Registry) Predict(skill skills.Skill, vec []float64) (*Output, error) {
	predictor, err := r.Get(skill)
	if err != nil {
		return nil, err
	}
	return predictor.Predict(vec)
}

// Count returns the number of loaded models.
func (r *Registry) Count() int {
	return len(r.activeKey)
}

// Versions maps each loaded skill to its model version.
func (r *Registry) Versions() map[skills.Skill]string {
	versions := make(map[skills.Skill]string, len(r.activeKey))
	for skill := range r.activeKey {
		if p, err := r.Get(skill); err == nil {
			versions[skill] = p.Version()
		}
	}
	return versions
}
