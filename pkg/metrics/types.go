package metrics

import (
	"time"

	"github.com/lumen-ed/compass/pkg/skills"
)

// Record captures one inference attempt, successful or not.
type Record struct {
	StudentID     string               `json:"student_id"`
	Skill         string               `json:"skill,omitempty"`
	LatencyMS     float64              `json:"latency_ms"`
	Success       bool                 `json:"success"`
	ErrorCategory skills.ErrorCategory `json:"error_category,omitempty"`
	Timestamp     time.Time            `json:"timestamp"`
}

// Summary aggregates the retained window.
type Summary struct {
	Total        int     `json:"total"`
	Successful   int     `json:"successful"`
	Failed       int     `json:"failed"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
	P95LatencyMS float64 `json:"p95_latency_ms"`
	SuccessRate  float64 `json:"success_rate"`
}

// Mode describes where records are being persisted.
type Mode string

const (
	// ModeMemory means no durable backend was configured.
	ModeMemory Mode = "memory"
	// ModeDurable means records are mirrored to the durable backend.
	ModeDurable Mode = "durable"
	// ModeDegraded means the durable backend failed and the sink fell back
	// to memory only.
	ModeDegraded Mode = "degraded"
)
