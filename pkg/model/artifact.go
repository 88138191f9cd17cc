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

// Package model loads per-skill gradient-boosted ensemble artifacts and
// serves predictions from an in-memory registry.
//
// Artifacts are YAML documents laid out under the artifact root:
//
//	models/
//	  index.yaml                 integrity index (sha256 per artifact)
//	  empathy/model.yaml
//	  problem_solving/model.yaml
//	  self_regulation/model.yaml
//	  resilience/model.yaml
//
// Each artifact carries its feature manifest: the ordered feature names
// the vector must follow, with per-feature reference statistics used by
// evidence normalization (mean/stdev for linguistic features, min/max
// bounds for behavioral features). Artifacts are immutable once loaded;
// replacing a model is a whole-file swap followed by re-registration.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lumen-ed/compass/pkg/skills"
)

// FeatureStat describes one manifest entry: the feature name in vector
// order plus the reference statistics evidence normalization needs.
type FeatureStat struct {
	Name string `yaml:"name"`

	// Mean and Stdev are the linguistic z-score reference statistics.
	Mean  float64 `yaml:"mean,omitempty"`
	Stdev float64 `yaml:"stdev,omitempty"`

	// Min and Max are the behavioral min-max bounds.
	Min float64 `yaml:"min,omitempty"`
	Max float64 `yaml:"max,omitempty"`
}

// Manifest is the ordered feature list for a skill's model.
type Manifest struct {
	Features []FeatureStat `yaml:"features"`

	index map[string]int
}

// Len returns the expected feature vector length.
func (m *Manifest) Len() int {
	return len(m.Features)
}

// Names returns the feature names in vector order.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Features))
	for i, f := range m.Features {
		names[i] = f.Name
	}
	return names
}

// Stat returns the reference statistics for a named feature. Safe for
// concurrent use; the index is built during validation, and manifests
// constructed directly fall back to a scan.
func (m *Manifest) Stat(name string) (FeatureStat, bool) {
	if m.index != nil {
		i, ok := m.index[name]
		if !ok {
			return FeatureStat{}, false
		}
		return m.Features[i], true
	}
	for _, f := range m.Features {
		if f.Name == name {
			return f, true
		}
	}
	return FeatureStat{}, false
}

// Node is one node of a regression tree, stored as a flat array entry.
// Leaf nodes set Leaf; internal nodes route on Feature < Threshold to
// Left, else Right (indexes into the tree's node array).
type Node struct {
	Feature   int      `yaml:"feature,omitempty"`
	Threshold float64  `yaml:"threshold,omitempty"`
	Left      int      `yaml:"left,omitempty"`
	Right     int      `yaml:"right,omitempty"`
	Leaf      *float64 `yaml:"leaf,omitempty"`
}

// Tree is a single regression tree.
type Tree struct {
	Nodes []Node `yaml:"nodes"`
}

// Evaluate walks the tree for the given vector.
func (t *Tree) Evaluate(vec []float64) (float64, error) {
	if len(t.Nodes) == 0 {
		return 0, fmt.Errorf("empty tree")
	}

	i := 0
	// A tree deeper than its node count has a cycle.
	for steps := 0; steps <= len(t.Nodes); steps++ {
		n := t.Nodes[i]
		if n.Leaf != nil {
			return *n.Leaf, nil
		}
		if n.Feature < 0 || n.Feature >= len(vec) {
			return 0, fmt.Errorf("node %d references feature %d outside vector of %d", i, n.Feature, len(vec))
		}
		if vec[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
		if i < 0 || i >= len(t.Nodes) {
			return 0, fmt.Errorf("node reference %d outside tree of %d nodes", i, len(t.Nodes))
		}
	}
	return 0, fmt.Errorf("tree walk exceeded node count, cycle suspected")
}

// Member is one base learner of the ensemble.
type Member struct {
	Trees []Tree `yaml:"trees"`
}

// Ensemble is a gradient-boosted ensemble: each member's output is the
// shared base score plus the sum of its trees.
type Ensemble struct {
	BaseScore float64  `yaml:"base_score"`
	Members   []Member `yaml:"members"`
}

// Artifact is the on-disk model document for one skill.
type Artifact struct {
	Skill    string   `yaml:"skill"`
	Version  string   `yaml:"version"`
	Manifest Manifest `yaml:"manifest"`
	Ensemble Ensemble `yaml:"ensemble"`
}

// ReadArtifact loads and validates an artifact file, returning the
// parsed document and its content hash.
func ReadArtifact(path string) (*Artifact, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read artifact %s: %w", path, err)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	var artifact Artifact
	if err := yaml.Unmarshal(data, &artifact); err != nil {
		return nil, "", fmt.Errorf("failed to parse artifact %s: %w", path, err)
	}

	if err := artifact.validate(); err != nil {
		return nil, "", fmt.Errorf("invalid artifact %s: %w", path, err)
	}

	return &artifact, hash, nil
}

func (a *Artifact) validate() error {
	if _, err := skills.Parse(a.Skill); err != nil {
		return err
	}
	if a.Version == "" {
		return fmt.Errorf("version is required")
	}
	if got := a.Manifest.Len(); got != skills.VectorSize {
		return fmt.Errorf("manifest lists %d features, want %d", got, skills.VectorSize)
	}
	if len(a.Ensemble.Members) == 0 {
		return fmt.Errorf("ensemble has no members")
	}

	seen := make(map[string]int, a.Manifest.Len())
	for i, f := range a.Manifest.Features {
		if f.Name == "" {
			return fmt.Errorf("manifest contains an unnamed feature")
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("manifest lists feature %s twice", f.Name)
		}
		seen[f.Name] = i
	}
	a.Manifest.index = seen

	return nil
}
