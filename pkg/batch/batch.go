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

// Package batch fans the per-student assessment pipeline across a bounded
// worker pool. Items fail independently: one student's error becomes an
// error-tagged slot in the result array and never touches a neighbor. The
// batch deadline cancels whatever is still queued or in flight; those items
// come back tagged deadline_exceeded.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lumen-ed/compass/pkg/assess"
	"github.com/lumen-ed/compass/pkg/config"
	"github.com/lumen-ed/compass/pkg/inference"
	"github.com/lumen-ed/compass/pkg/logger"
	"github.com/lumen-ed/compass/pkg/observability"
	"github.com/lumen-ed/compass/pkg/skills"
)

// Status tags one slot of the result array.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is one student's slot, at the same index the id held in the
// request.
type Result struct {
	StudentID     string                   `json:"student_id"`
	Status        Status                   `json:"status"`
	Skills        []assess.SkillAssessment `json:"skills,omitempty"`
	ErrorMessage  string                   `json:"error_message,omitempty"`
	ErrorCategory skills.ErrorCategory     `json:"error_category,omitempty"`
}

// Response is the batch envelope.
type Response struct {
	TotalStudents int       `json:"total_students"`
	Successful    int       `json:"successful"`
	Failed        int       `json:"failed"`
	Results       []Result  `json:"results"`
	TotalTimeMS   float64   `json:"total_time_ms"`
	Timestamp     time.Time `json:"timestamp"`
}

// SizeError rejects an oversized batch before any per-item work starts.
type SizeError struct {
	Count int
	Limit int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("batch of %d students exceeds the limit of %d", e.Count, e.Limit)
}

// IsSizeError reports whether err is a SizeError.
func IsSizeError(err error) bool {
	var size *SizeError
	return errors.As(err, &size)
}

// Assessor runs the full pipeline for one student. *assess.Pipeline is the
// production implementation.
type Assessor interface {
	AssessStudent(ctx context.Context, studentID string, requested []skills.Skill, opts assess.Options) (*assess.StudentAssessment, error)
}

// Dispatcher runs batches. The size cap is the only admission boundary;
// everything admitted queues on the semaphore.
type Dispatcher struct {
	assessor    Assessor
	maxSize     int
	concurrency int64
	timeout     time.Duration
	logger      *slog.Logger
}

// New builds a Dispatcher from a pipeline configuration that has been
// through SetDefaults and Validate.
func New(assessor Assessor, cfg *config.PipelineConfig) *Dispatcher {
	return &Dispatcher{
		assessor:    assessor,
		maxSize:     cfg.MaxBatchSize,
		concurrency: int64(cfg.BatchConcurrency),
		timeout:     cfg.BatchTimeout,
		logger:      logger.WithComponent("batch"),
	}
}

// InferBatch assesses every id under the worker ceiling and the batch
// deadline. The result array preserves input order; the only call-level
// failure is an oversized batch.
func (d *Dispatcher) InferBatch(ctx context.Context, studentIDs []string, opts assess.Options) (*Response, error) {
	if len(studentIDs) > d.maxSize {
		return nil, &SizeError{Count: len(studentIDs), Limit: d.maxSize}
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	results := make([]Result, len(studentIDs))
	sem := semaphore.NewWeighted(d.concurrency)
	var wg sync.WaitGroup
	for i, id := range studentIDs {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Deadline fired while this item was still queued.
			results[i] = errorResult(id, err)
			continue
		}
		wg.Add(1)
		go func(slot int, studentID string) {
			defer wg.Done()
			defer sem.Release(1)
			results[slot] = d.assessOne(ctx, studentID, opts)
		}(i, id)
	}
	wg.Wait()

	resp := &Response{
		TotalStudents: len(studentIDs),
		Results:       results,
		TotalTimeMS:   float64(time.Since(start).Microseconds()) / 1e3,
		Timestamp:     time.Now().UTC(),
	}
	for _, r := range results {
		if r.Status == StatusSuccess {
			resp.Successful++
		} else {
			resp.Failed++
		}
	}

	d.logger.Info("Batch complete",
		"total_students", resp.TotalStudents,
		"successful", resp.Successful,
		"failed", resp.Failed,
		"total_ms", resp.TotalTimeMS)
	observability.Global().RecordBatch(ctx, resp.TotalStudents, time.Since(start))
	return resp, nil
}

func (d *Dispatcher) assessOne(ctx context.Context, studentID string, opts assess.Options) Result {
	sa, err := d.assessor.AssessStudent(ctx, studentID, nil, opts)
	if err != nil {
		return errorResult(studentID, err)
	}
	return Result{
		StudentID: studentID,
		Status:    StatusSuccess,
		Skills:    sa.Skills,
	}
}

func errorResult(studentID string, err error) Result {
	return Result{
		StudentID:     studentID,
		Status:        StatusError,
		ErrorMessage:  err.Error(),
		ErrorCategory: inference.Categorize(err),
	}
}
