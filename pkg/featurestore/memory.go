package featurestore

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/lumen-ed/compass/pkg/skills"
)

// MemoryStore is an in-process feature store for tests and local
// development. With synthetic mode on, students without records get
// deterministic generated features instead of nil.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string][]*Record
	synthetic bool
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore(synthetic bool) *MemoryStore {
	return &MemoryStore{
		records:   make(map[string][]*Record),
		synthetic: synthetic,
	}
}

func key(studentID string, kind Kind) string {
	return studentID + "|" + string(kind)
}

// Put stores a record. Records accumulate; Fetch picks the newest.
func (s *MemoryStore) Put(record *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(record.StudentID, record.Kind)
	s.records[k] = append(s.records[k], record)
}

// Fetch returns the most recent record at or before asOf.
func (s *MemoryStore) Fetch(ctx context.Context, studentID string, kind Kind, asOf time.Time) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &UpstreamError{Op: "fetch", Err: err}
	}

	s.mu.RLock()
	candidates := s.records[key(studentID, kind)]
	var best *Record
	for _, r := range candidates {
		if !asOf.IsZero() && r.CapturedAt.After(asOf) {
			continue
		}
		if best == nil || r.CapturedAt.After(best.CapturedAt) {
			best = r
		}
	}
	s.mu.RUnlock()

	if best == nil && s.synthetic {
		return synthesize(studentID, kind), nil
	}
	return best, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// synthesize builds a deterministic plausible record so the service can
// be exercised end-to-end without a real feature pipeline.
func synthesize(studentID string, kind Kind) *Record {
	h := fnv.New64a()
	h.Write([]byte(studentID))
	h.Write([]byte(kind))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	features := make(map[string]float64)
	switch kind {
	case KindLinguistic:
		for _, name := range skills.LinguisticFeatures {
			switch name {
			case "word_count":
				features[name] = float64(20 + rng.Intn(280))
			case "unique_word_count":
				features[name] = float64(15 + rng.Intn(150))
			case "avg_sentence_length":
				features[name] = 5 + rng.Float64()*15
			case "noun_count", "verb_count", "adj_count", "adv_count":
				features[name] = float64(rng.Intn(40))
			case "readability_score", "syntactic_complexity":
				features[name] = rng.Float64() * 10
			default:
				features[name] = rng.Float64()
			}
		}
	case KindBehavioral:
		for _, name := range skills.BehavioralFeatures {
			switch name {
			case "retry_count":
				features[name] = float64(rng.Intn(8))
			case "focus_duration":
				features[name] = rng.Float64() * 30
			case "event_count":
				features[name] = float64(10 + rng.Intn(90))
			default:
				features[name] = rng.Float64()
			}
		}
	}

	return &Record{
		StudentID:  studentID,
		Kind:       kind,
		Features:   features,
		CapturedAt: time.Now().UTC(),
		Provenance: fmt.Sprintf("synthetic:%s", studentID),
	}
}

var _ Store = (*MemoryStore)(nil)
