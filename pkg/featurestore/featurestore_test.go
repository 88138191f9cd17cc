package featurestore

import (
	"context"
	"testing"
	"time"

	"github.com/lumen-ed/compass/pkg/skills"
)

func TestMemoryStore_FetchLatest(t *testing.T) {
	s := NewMemoryStore(false)
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	s.Put(&Record{
		StudentID:  "s1",
		Kind:       KindLinguistic,
		Features:   map[string]float64{"empathy_markers": 0.2},
		CapturedAt: base,
	})
	s.Put(&Record{
		StudentID:  "s1",
		Kind:       KindLinguistic,
		Features:   map[string]float64{"empathy_markers": 0.8},
		CapturedAt: base.Add(time.Hour),
	})

	r, err := s.Fetch(context.Background(), "s1", KindLinguistic, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if r == nil {
		t.Fatal("expected record")
	}
	if r.Features["empathy_markers"] != 0.8 {
		t.Errorf("fetched %g, want newest 0.8", r.Features["empathy_markers"])
	}
}

func TestMemoryStore_FetchAsOf(t *testing.T) {
	s := NewMemoryStore(false)
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	s.Put(&Record{StudentID: "s1", Kind: KindBehavioral, Features: map[string]float64{"retry_count": 1}, CapturedAt: base})
	s.Put(&Record{StudentID: "s1", Kind: KindBehavioral, Features: map[string]float64{"retry_count": 5}, CapturedAt: base.Add(2 * time.Hour)})

	r, err := s.Fetch(context.Background(), "s1", KindBehavioral, base.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if r.Features["retry_count"] != 1 {
		t.Errorf("as-of fetch returned %g, want 1", r.Features["retry_count"])
	}
}

func TestMemoryStore_MissingStudentReturnsNil(t *testing.T) {
	s := NewMemoryStore(false)

	r, err := s.Fetch(context.Background(), "ghost", KindLinguistic, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if r != nil {
		t.Errorf("expected nil record, got %+v", r)
	}
}

func TestMemoryStore_SyntheticIsDeterministic(t *testing.T) {
	s := NewMemoryStore(true)

	a, err := s.Fetch(context.Background(), "s42", KindLinguistic, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Fetch(context.Background(), "s42", KindLinguistic, time.Time{})
	if err != nil {
		t.Fatal(err)
	}

	if a == nil || b == nil {
		t.Fatal("synthetic mode should always return a record")
	}
	if len(a.Features) != len(skills.LinguisticFeatures) {
		t.Errorf("synthetic linguistic record has %d features, want %d", len(a.Features), len(skills.LinguisticFeatures))
	}
	for name, v := range a.Features {
		if b.Features[name] != v {
			t.Errorf("feature %s differs between fetches: %g vs %g", name, v, b.Features[name])
		}
	}

	behavioral, err := s.Fetch(context.Background(), "s42", KindBehavioral, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(behavioral.Features) != len(skills.BehavioralFeatures) {
		t.Errorf("synthetic behavioral record has %d features, want %d", len(behavioral.Features), len(skills.BehavioralFeatures))
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := NewMemoryStore(false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Fetch(ctx, "s1", KindLinguistic, time.Time{})
	if !IsUpstreamError(err) {
		t.Errorf("expected UpstreamError, got %v", err)
	}
}

func TestNew_SchemeRouting(t *testing.T) {
	s, err := New("memory://", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("expected MemoryStore, got %T", s)
	}

	syn, err := New("memory://synthetic", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if !syn.(*MemoryStore).synthetic {
		t.Error("expected synthetic mode")
	}

	if _, err := New("carrier-pigeon://host", time.Second); err == nil {
		t.Error("expected error for unknown scheme")
	}
	if _, err := New("", time.Second); err == nil {
		t.Error("expected error for empty URL")
	}
}
