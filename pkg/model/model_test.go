package model

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/lumen-ed/compass/pkg/skills"
)

func leaf(v float64) Node {
	return Node{Leaf: &v}
}

// testManifest builds the canonical 26-feature manifest for a skill with
// flat reference statistics.
func testManifest(skill skills.Skill) Manifest {
	var features []FeatureStat
	for _, name := range skills.LinguisticFeatures {
		features = append(features, FeatureStat{Name: name, Mean: 0.5, Stdev: 0.2})
	}
	for _, name := range skills.BehavioralFeatures {
		features = append(features, FeatureStat{Name: name, Min: 0, Max: 1})
	}
	derived, _ := skills.Derived(skill)
	features = append(features, FeatureStat{Name: derived.Name, Mean: 0.25, Stdev: 0.1})
	return Manifest{Features: features}
}

// testArtifact builds a two-member ensemble: one stump splitting on
// feature 0 at 0.5 (±0.1) and one constant tree (+0.05).
func testArtifact(skill skills.Skill, version string) *Artifact {
	return &Artifact{
		Skill:    string(skill),
		Version:  version,
		Manifest: testManifest(skill),
		Ensemble: Ensemble{
			BaseScore: 0.5,
			Members: []Member{
				{Trees: []Tree{{Nodes: []Node{
					{Feature: 0, Threshold: 0.5, Left: 1, Right: 2},
					leaf(-0.1),
					leaf(0.1),
				}}}},
				{Trees: []Tree{{Nodes: []Node{leaf(0.05)}}}},
			},
		},
	}
}

func writeArtifact(t *testing.T, root string, artifact *Artifact) (string, string) {
	t.Helper()

	data, err := yaml.Marshal(artifact)
	if err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(root, artifact.Skill)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "model.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	sum := sha256.Sum256(data)
	return path, hex.EncodeToString(sum[:])
}

func writeAllArtifacts(t *testing.T, root string) map[string]string {
	t.Helper()
	hashes := make(map[string]string)
	for _, skill := range skills.All() {
		_, hash := writeArtifact(t, root, testArtifact(skill, "1.0.0"))
		hashes[string(skill)] = hash
	}
	return hashes
}

func writeIndex(t *testing.T, root string, hashes map[string]string) {
	t.Helper()
	index := indexFile{Artifacts: make(map[string]indexEntry)}
	for skill, hash := range hashes {
		index.Artifacts[skill] = indexEntry{SHA256: hash}
	}
	data, err := yaml.Marshal(index)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "index.yaml"), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestTree_Evaluate(t *testing.T) {
	tree := Tree{Nodes: []Node{
		{Feature: 1, Threshold: 0.5, Left: 1, Right: 2},
		leaf(-0.2),
		{Feature: 0, Threshold: 0.3, Left: 3, Right: 4},
		leaf(0.1),
		leaf(0.3),
	}}

	tests := []struct {
		vec  []float64
		want float64
	}{
		{[]float64{0.0, 0.4}, -0.2}, // low feature 1
		{[]float64{0.1, 0.9}, 0.1},  // high feature 1, low feature 0
		{[]float64{0.5, 0.9}, 0.3},  // high on both
	}

	for _, tt := range tests {
		got, err := tree.Evaluate(tt.vec)
		if err != nil {
			t.Fatalf("Evaluate(%v): %v", tt.vec, err)
		}
		if got != tt.want {
			t.Errorf("Evaluate(%v) = %g, want %g", tt.vec, got, tt.want)
		}
	}
}

func TestTree_EvaluateMalformed(t *testing.T) {
	outOfRange := Tree{Nodes: []Node{{Feature: 99, Threshold: 0.5, Left: 1, Right: 1}, leaf(0)}}
	if _, err := outOfRange.Evaluate([]float64{1, 2}); err == nil {
		t.Error("expected error for out-of-range feature")
	}

	cycle := Tree{Nodes: []Node{
		{Feature: 0, Threshold: 0.5, Left: 1, Right: 1},
		{Feature: 0, Threshold: 0.5, Left: 0, Right: 0},
	}}
	if _, err := cycle.Evaluate([]float64{1}); err == nil {
		t.Error("expected error for cyclic tree")
	}

	empty := Tree{}
	if _, err := empty.Evaluate([]float64{1}); err == nil {
		t.Error("expected error for empty tree")
	}
}

func TestPredictor_Predict(t *testing.T) {
	artifact := testArtifact(skills.Empathy, "1.0.0")
	p := NewPredictor(artifact, "testhash")

	vec := make([]float64, skills.VectorSize)
	vec[0] = 0.8 // routes right: member one = 0.5+0.1, member two = 0.5+0.05

	out, err := p.Predict(vec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(out.MemberOutputs) != 2 {
		t.Fatalf("member outputs = %d, want 2", len(out.MemberOutputs))
	}
	if math.Abs(out.MemberOutputs[0]-0.6) > 1e-9 || math.Abs(out.MemberOutputs[1]-0.55) > 1e-9 {
		t.Errorf("member outputs = %v", out.MemberOutputs)
	}
	if math.Abs(out.RawScore-0.575) > 1e-9 {
		t.Errorf("raw score = %g, want 0.575", out.RawScore)
	}
}

func TestPredictor_RawScoreClamped(t *testing.T) {
	artifact := testArtifact(skills.Empathy, "1.0.0")
	artifact.Ensemble.BaseScore = 1.4
	p := NewPredictor(artifact, "testhash")

	vec := make([]float64, skills.VectorSize)
	out, err := p.Predict(vec)
	if err != nil {
		t.Fatal(err)
	}
	if out.RawScore != 1.0 {
		t.Errorf("raw score = %g, want clamp to 1.0", out.RawScore)
	}

	// Member outputs keep the unclamped values for the confidence math.
	if out.MemberOutputs[0] <= 1.0 {
		t.Errorf("member output should be unclamped, got %g", out.MemberOutputs[0])
	}
}

func TestPredictor_FeatureShapeError(t *testing.T) {
	p := NewPredictor(testArtifact(skills.Empathy, "1.0.0"), "testhash")

	_, err := p.Predict(make([]float64, 7))
	if !IsFeatureShapeError(err) {
		t.Fatalf("expected FeatureShapeError, got %v", err)
	}

	var shape *FeatureShapeError
	if !errors.As(err, &shape) {
		t.Fatal("errors.As failed")
	}
	if shape.Want != skills.VectorSize || shape.Got != 7 {
		t.Errorf("shape = %+v", shape)
	}
}

func TestPredictor_ImportanceSumsToOne(t *testing.T) {
	p := NewPredictor(testArtifact(skills.Empathy, "1.0.0"), "testhash")

	vec := make([]float64, skills.VectorSize)
	out, err := p.Predict(vec)
	if err != nil {
		t.Fatal(err)
	}

	sum := 0.0
	for _, v := range out.Importance {
		sum += v
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("importance sum = %g", sum)
	}

	// The only split is on feature 0, so it carries all the importance.
	if out.Importance[skills.LinguisticFeatures[0]] != 1.0 {
		t.Errorf("importance = %v", out.Importance)
	}
}

func TestPredictor_UniformImportanceWithoutSplits(t *testing.T) {
	artifact := testArtifact(skills.Empathy, "1.0.0")
	artifact.Ensemble.Members = []Member{
		{Trees: []Tree{{Nodes: []Node{leaf(0.1)}}}},
	}
	p := NewPredictor(artifact, "testhash")

	vec := make([]float64, skills.VectorSize)
	out, err := p.Predict(vec)
	if err != nil {
		t.Fatal(err)
	}
	want := 1.0 / float64(skills.VectorSize)
	for name, v := range out.Importance {
		if math.Abs(v-want) > 1e-9 {
			t.Fatalf("importance[%s] = %g, want uniform %g", name, v, want)
		}
	}
}

func TestReadArtifact_Invalid(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name   string
		mutate func(*Artifact)
	}{
		{"unknown skill", func(a *Artifact) { a.Skill = "charisma" }},
		{"missing version", func(a *Artifact) { a.Version = "" }},
		{"short manifest", func(a *Artifact) { a.Manifest.Features = a.Manifest.Features[:10] }},
		{"no members", func(a *Artifact) { a.Ensemble.Members = nil }},
		{"duplicate feature", func(a *Artifact) { a.Manifest.Features[1].Name = a.Manifest.Features[0].Name }},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artifact := testArtifact(skills.Empathy, "1.0.0")
			tt.mutate(artifact)

			data, err := yaml.Marshal(artifact)
			if err != nil {
				t.Fatal(err)
			}
			path := filepath.Join(root, fmt.Sprintf("bad-%d.yaml", i))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				t.Fatal(err)
			}

			if _, _, err := ReadArtifact(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRegistry_Load(t *testing.T) {
	root := t.TempDir()
	hashes := writeAllArtifacts(t, root)
	writeIndex(t, root, hashes)

	r, err := Load(root)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	if r.Count() != len(skills.All()) {
		t.Errorf("count = %d, want %d", r.Count(), len(skills.All()))
	}

	versions := r.Versions()
	for _, skill := range skills.All() {
		if versions[skill] != "1.0.0" {
			t.Errorf("version[%s] = %q", skill, versions[skill])
		}
	}

	vec := make([]float64, skills.VectorSize)
	out, err := r.Predict(skills.Resilience, vec)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if out.RawScore <= 0 {
		t.Errorf("raw score = %g", out.RawScore)
	}
}

func TestRegistry_LoadWithoutIndex(t *testing.T) {
	root := t.TempDir()
	writeAllArtifacts(t, root)

	if _, err := Load(root); err != nil {
		t.Fatalf("load without index should succeed: %v", err)
	}
}

func TestRegistry_IntegrityMismatchAborts(t *testing.T) {
	root := t.TempDir()
	hashes := writeAllArtifacts(t, root)
	hashes[string(skills.Empathy)] = "0000000000000000000000000000000000000000000000000000000000000000"
	writeIndex(t, root, hashes)

	_, err := Load(root)
	if err == nil {
		t.Fatal("expected integrity error")
	}
	if !IsArtifactIntegrityError(err) {
		t.Errorf("expected ArtifactIntegrityError, got %v", err)
	}
}

func TestRegistry_MissingArtifactAborts(t *testing.T) {
	root := t.TempDir()
	// Only empathy present; the other skills are missing.
	writeArtifact(t, root, testArtifact(skills.Empathy, "1.0.0"))

	if _, err := Load(root); err == nil {
		t.Fatal("expected error for missing artifacts")
	}
}

func TestRegistry_SkillMismatchAborts(t *testing.T) {
	root := t.TempDir()
	writeAllArtifacts(t, root)

	// Overwrite the empathy artifact with one declaring another skill.
	artifact := testArtifact(skills.Resilience, "1.0.0")
	data, err := yaml.Marshal(artifact)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(root, string(skills.Empathy), "model.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(root); err == nil {
		t.Fatal("expected error for skill mismatch")
	}
}

func TestManifest_Stat(t *testing.T) {
	m := testManifest(skills.Empathy)

	stat, ok := m.Stat("empathy_markers")
	if !ok {
		t.Fatal("expected stat for empathy_markers")
	}
	if stat.Mean != 0.5 || stat.Stdev != 0.2 {
		t.Errorf("stat = %+v", stat)
	}

	if _, ok := m.Stat("nonexistent"); ok {
		t.Error("expected miss for unknown feature")
	}
}
