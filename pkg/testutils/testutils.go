// Package testutils provides testing utilities for the compass pipeline.
package testutils

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lumen-ed/compass/pkg/featurestore"
	"github.com/lumen-ed/compass/pkg/model"
	"github.com/lumen-ed/compass/pkg/skills"
)

// TestManifest returns a full manifest for a skill: linguistic features with
// mean 0.5 and stdev 0.2, behavioral features bounded to [0,1], plus the
// skill's derived feature
func TestManifest(skill skills.Skill) model.Manifest {
	features := make([]model.FeatureStat, 0, skills.VectorSize)
	for _, name := range skills.LinguisticFeatures {
		features = append(features, model.FeatureStat{Name: name, Mean: 0.5, Stdev: 0.2})
	}
	for _, name := range skills.BehavioralFeatures {
		features = append(features, model.FeatureStat{Name: name, Min: 0, Max: 1})
	}
	derived, _ := skills.Derived(skill)
	features = append(features, model.FeatureStat{Name: derived.Name, Mean: 0.5, Stdev: 0.2})
	return model.Manifest{Features: features}
}

// TestArtifact returns a valid artifact whose two constant-leaf members
// produce 0.6 and 0.4: raw score 0.5 with population spread 0.1
func TestArtifact(skill skills.Skill) model.Artifact {
	up, down := 0.1, -0.1
	return model.Artifact{
		Skill:    skill.String(),
		Version:  "1.0.0",
		Manifest: TestManifest(skill),
		Ensemble: model.Ensemble{
			BaseScore: 0.5,
			Members: []model.Member{
				{Trees: []model.Tree{{Nodes: []model.Node{{Leaf: &up}}}}},
				{Trees: []model.Tree{{Nodes: []model.Node{{Leaf: &down}}}}},
			},
		},
	}
}

// WriteModelRoot lays out one TestArtifact per skill under root, the way a
// deployed artifact directory looks without an integrity index
func WriteModelRoot(root string) error {
	for _, skill := range skills.All() {
		artifact := TestArtifact(skill)
		data, err := yaml.Marshal(&artifact)
		if err != nil {
			return err
		}
		dir := filepath.Join(root, skill.String())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, "model.yaml"), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// TestRecords returns fully populated linguistic and behavioral records for
// a student. Linguistic fields read 0.1 except positive_sentiment (0.8) and
// social_processes (0.5); behavioral fields read 0.5 except
// task_completion_rate (0.9)
func TestRecords(studentID string) (*featurestore.Record, *featurestore.Record) {
	linguistic := make(map[string]float64, len(skills.LinguisticFeatures))
	for _, name := range skills.LinguisticFeatures {
		linguistic[name] = 0.1
	}
	linguistic["positive_sentiment"] = 0.8
	linguistic["social_processes"] = 0.5

	behavioral := make(map[string]float64, len(skills.BehavioralFeatures))
	for _, name := range skills.BehavioralFeatures {
		behavioral[name] = 0.5
	}
	behavioral["task_completion_rate"] = 0.9

	now := time.Now()
	return &featurestore.Record{
			StudentID:  studentID,
			Kind:       featurestore.KindLinguistic,
			Features:   linguistic,
			CapturedAt: now,
			Provenance: "essay:42",
		}, &featurestore.Record{
			StudentID:  studentID,
			Kind:       featurestore.KindBehavioral,
			Features:   behavioral,
			CapturedAt: now,
			Provenance: "activity:7",
		}
}
