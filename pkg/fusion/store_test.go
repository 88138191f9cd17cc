package fusion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lumen-ed/compass/pkg/skills"
)

func writeConfigFile(t *testing.T, cfg *Config) string {
	t.Helper()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "weights.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestStore_LoadAndGet(t *testing.T) {
	path := writeConfigFile(t, Default())

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer s.Close()

	got := s.Get()
	if got.Version != "1.0.0" {
		t.Errorf("version = %q, want 1.0.0", got.Version)
	}
	if w := got.Weights[skills.Empathy][SourceMLInference]; w != 0.45 {
		t.Errorf("empathy ml_inference weight = %v, want 0.45", w)
	}
}

func TestStore_SetRejectsInvalidAndRetainsCurrent(t *testing.T) {
	s := NewStoreWithDefaults()

	bad := Default()
	bad.Weights[skills.Empathy][SourceMLInference] = 0.9

	err := s.Set(context.Background(), bad, false)
	if !IsInvalidConfigError(err) {
		t.Fatalf("Set with broken sum returned %v, want InvalidConfigError", err)
	}
	if w := s.Get().Weights[skills.Empathy][SourceMLInference]; w != 0.45 {
		t.Errorf("active weight changed to %v after rejected Set", w)
	}
}

func TestStore_SetDetachesFromCaller(t *testing.T) {
	s := NewStoreWithDefaults()

	next := Default()
	next.Version = "2.0.0"
	if err := s.Set(context.Background(), next, false); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Mutating the caller's document must not reach readers.
	next.Weights[skills.Empathy][SourceMLInference] = 0.99
	if w := s.Get().Weights[skills.Empathy][SourceMLInference]; w != 0.45 {
		t.Errorf("active weight = %v, caller mutation leaked in", w)
	}
}

func TestStore_SetPersistRoundTrip(t *testing.T) {
	path := writeConfigFile(t, Default())

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer s.Close()

	next := Default()
	next.Version = "1.1.0"
	if err := s.Set(context.Background(), next, true); err != nil {
		t.Fatalf("Set with persist failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read persisted config: %v", err)
	}
	var onDisk Config
	if err := yaml.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("persisted config does not parse: %v", err)
	}
	if onDisk.Version != "1.1.0" {
		t.Errorf("persisted version = %q, want 1.1.0", onDisk.Version)
	}
	if err := onDisk.Validate(); err != nil {
		t.Errorf("persisted config invalid: %v", err)
	}

	// A fresh store over the same document sees the update.
	s2, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore over persisted file failed: %v", err)
	}
	defer s2.Close()
	if got := s2.Get().Version; got != "1.1.0" {
		t.Errorf("reloaded version = %q, want 1.1.0", got)
	}
}

func TestStore_PersistWithoutBackingDocument(t *testing.T) {
	s := NewStoreWithDefaults()

	next := Default()
	next.Version = "9.9.9"
	if err := s.Set(context.Background(), next, true); err == nil {
		t.Fatal("Set with persist succeeded without a backing document")
	}
	if got := s.Get().Version; got != "1.0.0" {
		t.Errorf("active version = %q after failed persist, want 1.0.0", got)
	}
}

func TestStore_ReplaceSkill(t *testing.T) {
	s := NewStoreWithDefaults()

	installed, err := s.ReplaceSkill(context.Background(), skills.Empathy, map[string]float64{
		SourceMLInference:          0.25,
		SourceLinguisticFeatures:   0.25,
		SourceBehavioralFeatures:   0.25,
		SourceConfidenceAdjustment: 0.25,
	}, false)
	if err != nil {
		t.Fatalf("ReplaceSkill failed: %v", err)
	}

	if w := installed.Weights[skills.Empathy][SourceMLInference]; w != 0.25 {
		t.Errorf("installed empathy ml_inference = %v, want 0.25", w)
	}
	if w := s.Get().Weights[skills.Empathy][SourceLinguisticFeatures]; w != 0.25 {
		t.Errorf("active empathy linguistic_features = %v, want 0.25", w)
	}
	if w := s.Get().Weights[skills.ProblemSolving][SourceMLInference]; w != 0.45 {
		t.Errorf("problem_solving disturbed by empathy replacement: %v", w)
	}
}

func TestStore_ReplaceSkillRejectsBadSum(t *testing.T) {
	s := NewStoreWithDefaults()

	_, err := s.ReplaceSkill(context.Background(), skills.Empathy, map[string]float64{
		SourceMLInference:          0.5,
		SourceLinguisticFeatures:   0.5,
		SourceBehavioralFeatures:   0.5,
		SourceConfidenceAdjustment: 0.5,
	}, false)
	if !IsInvalidConfigError(err) {
		t.Fatalf("ReplaceSkill returned %v, want InvalidConfigError", err)
	}
	if w := s.Get().Weights[skills.Empathy][SourceMLInference]; w != 0.45 {
		t.Errorf("active weight changed to %v after rejected replacement", w)
	}
}

func TestStore_ReloadPicksUpChanges(t *testing.T) {
	path := writeConfigFile(t, Default())

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer s.Close()

	next := Default()
	next.Version = "2.0.0"
	data, err := yaml.Marshal(next)
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if got := s.Get().Version; got != "2.0.0" {
		t.Errorf("version after reload = %q, want 2.0.0", got)
	}
}

func TestStore_ReloadUnchangedContent(t *testing.T) {
	path := writeConfigFile(t, Default())

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer s.Close()

	before := s.Get()
	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	after := s.Get()

	if after.Version != before.Version {
		t.Errorf("version changed across no-op reload: %q to %q", before.Version, after.Version)
	}
	if !reflect.DeepEqual(after.Weights, before.Weights) {
		t.Errorf("weights changed across no-op reload")
	}
}

func TestStore_ReloadKeepsCurrentOnFailure(t *testing.T) {
	path := writeConfigFile(t, Default())

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer s.Close()

	tests := []struct {
		name    string
		content string
	}{
		{"not yaml", ":::"},
		{"fails validation", "version: \"2.0.0\"\nweights: {}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("failed to rewrite config: %v", err)
			}
			if err := s.Reload(context.Background()); err == nil {
				t.Fatal("Reload of broken document succeeded")
			}
			if got := s.Get().Version; got != "1.0.0" {
				t.Errorf("active version = %q after failed reload, want 1.0.0", got)
			}
		})
	}
}

func TestStore_WatchReloadsOnRewrite(t *testing.T) {
	path := writeConfigFile(t, Default())

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Watch(ctx); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	next := Default()
	next.Version = "3.0.0"
	data, err := yaml.Marshal(next)
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if s.Get().Version == "3.0.0" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("watch did not pick up rewrite, version still %q", s.Get().Version)
}

func TestStore_ConcurrentSetAndGet(t *testing.T) {
	s := NewStoreWithDefaults()

	a := Default()
	a.Version = "a"
	b := Default()
	b.Version = "b"
	b.Weights[skills.Empathy] = map[string]float64{
		SourceMLInference:          0.25,
		SourceLinguisticFeatures:   0.25,
		SourceBehavioralFeatures:   0.25,
		SourceConfidenceAdjustment: 0.25,
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfg := a
			if i%2 == 1 {
				cfg = b
			}
			for j := 0; j < 25; j++ {
				if err := s.Set(context.Background(), cfg, false); err != nil {
					t.Errorf("Set failed: %v", err)
					return
				}
			}
		}(i)
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				got := s.Get()
				// Readers must never observe a half-applied document.
				if err := got.Validate(); err != nil {
					t.Errorf("reader observed invalid config: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if v := s.Get().Version; v != "a" && v != "b" {
		t.Errorf("final version = %q, want a or b", v)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:   "default is valid",
			mutate: func(*Config) {},
		},
		{
			name:      "missing version",
			mutate:    func(c *Config) { c.Version = "" },
			wantField: "version",
		},
		{
			name:      "missing weights",
			mutate:    func(c *Config) { c.Weights = nil },
			wantField: "weights",
		},
		{
			name: "unknown skill",
			mutate: func(c *Config) {
				c.Weights[skills.Skill("grit")] = copyWeights(c.Weights[skills.Empathy])
			},
			wantField: "weights.grit",
		},
		{
			name:      "missing skill",
			mutate:    func(c *Config) { delete(c.Weights, skills.Resilience) },
			wantField: "weights.resilience",
		},
		{
			name:      "unknown source key",
			mutate:    func(c *Config) { c.Weights[skills.Empathy]["vibes"] = 0 },
			wantField: "weights.empathy.vibes",
		},
		{
			name:      "missing source key",
			mutate:    func(c *Config) { delete(c.Weights[skills.Empathy], SourceMLInference) },
			wantField: "weights.empathy.ml_inference",
		},
		{
			name: "negative weight",
			mutate: func(c *Config) {
				c.Weights[skills.Empathy][SourceMLInference] = -0.1
				c.Weights[skills.Empathy][SourceConfidenceAdjustment] = 0.65
			},
			wantField: "weights.empathy.ml_inference",
		},
		{
			name:      "sum off by more than tolerance",
			mutate:    func(c *Config) { c.Weights[skills.Empathy][SourceMLInference] = 0.46 },
			wantField: "weights.empathy",
		},
		{
			name:   "sum within tolerance",
			mutate: func(c *Config) { c.Weights[skills.Empathy][SourceMLInference] = 0.45 + 1e-9 },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate failed: %v", err)
				}
				return
			}

			var invalid *InvalidConfigError
			if !errors.As(err, &invalid) {
				t.Fatalf("Validate returned %v, want InvalidConfigError", err)
			}
			if invalid.Field != tt.wantField {
				t.Errorf("field = %q, want %q", invalid.Field, tt.wantField)
			}
		})
	}
}

func TestConfig_CloneIsDeep(t *testing.T) {
	orig := Default()
	clone := orig.Clone()

	clone.Weights[skills.Empathy][SourceMLInference] = 0.99
	if w := orig.Weights[skills.Empathy][SourceMLInference]; w != 0.45 {
		t.Errorf("original weight = %v after clone mutation, want 0.45", w)
	}
}
