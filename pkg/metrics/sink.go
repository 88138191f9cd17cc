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

// Package metrics records every inference attempt in a bounded time-indexed
// store and exposes recency and summary views over the retained window.
//
// The sink always appends to an in-memory ring sized at the retention cap;
// when a durable backend is configured, appends are mirrored to it. If the
// backend fails at any point the sink degrades to memory-only operation with
// a single warning and never surfaces backend errors to callers.
package metrics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"
)

// DefaultRetention is the maximum number of records the sink keeps.
const DefaultRetention = 10000

// trimEvery controls how many durable appends happen between backend trims.
const trimEvery = 100

// Sink is the process-wide metrics recorder.
type Sink struct {
	retention int
	ring      *ring
	backend   Backend

	degraded atomic.Bool
	warnOnce sync.Once
	appends  atomic.Int64

	logger *slog.Logger
}

// NewSink creates a sink retaining up to retention records. backend may be
// nil for memory-only operation. When a backend is present its most recent
// records warm the in-memory window so summaries survive restarts.
func NewSink(retention int, backend Backend) *Sink {
	if retention <= 0 {
		retention = DefaultRetention
	}

	s := &Sink{
		retention: retention,
		ring:      newRing(retention),
		backend:   backend,
		logger:    slog.Default().With("component", "metrics"),
	}

	if backend != nil {
		s.warmFromBackend()
	}

	return s
}

func (s *Sink) warmFromBackend() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	records, err := s.backend.Recent(ctx, s.retention)
	if err != nil {
		s.degrade(err)
		return
	}

	// Recent returns newest first; replay oldest first to preserve order.
	for i := len(records) - 1; i >= 0; i-- {
		s.ring.Append(records[i])
	}
	s.logger.Info("Warmed metrics window from durable backend", "records", len(records))
}

// Record appends one record. It never returns an error; durable backend
// failures flip the sink to memory-only mode.
func (s *Sink) Record(ctx context.Context, rec Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	s.ring.Append(rec)

	if s.backend == nil || s.degraded.Load() {
		return
	}

	if err := s.backend.Append(ctx, rec); err != nil {
		s.degrade(err)
		return
	}

	if s.appends.Add(1)%trimEvery == 0 {
		if err := s.backend.Trim(ctx, s.retention); err != nil {
			s.degrade(err)
		}
	}
}

func (s *Sink) degrade(err error) {
	s.degraded.Store(true)
	s.warnOnce.Do(func() {
		s.logger.Warn("Metrics backend unavailable, continuing in-memory only", "error", err)
	})
}

// Recent returns up to limit records, newest first.
func (s *Sink) Recent(limit int) []Record {
	return s.ring.NewestFirst(limit)
}

// Summary aggregates the retained window.
func (s *Sink) Summary() Summary {
	records := s.ring.NewestFirst(0)

	summary := Summary{Total: len(records)}
	if len(records) == 0 {
		return summary
	}

	latencies := make([]float64, len(records))
	for i, rec := range records {
		latencies[i] = rec.LatencyMS
		if rec.Success {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}

	summary.AvgLatencyMS = stat.Mean(latencies, nil)

	sort.Float64s(latencies)
	summary.P95LatencyMS = stat.Quantile(0.95, stat.Empirical, latencies, nil)

	summary.SuccessRate = float64(summary.Successful) / float64(summary.Total)
	return summary
}

// Mode reports where records are currently persisted.
func (s *Sink) Mode() Mode {
	switch {
	case s.backend == nil:
		return ModeMemory
	case s.degraded.Load():
		return ModeDegraded
	default:
		return ModeDurable
	}
}

// Close releases the durable backend, if any.
func (s *Sink) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}
