package ratelimit

import (
	"fmt"
	"time"
)

// Window identifies which bucket a usage entry describes.
type Window string

const (
	WindowMinute Window = "minute"
	WindowHour   Window = "hour"
)

// Limits configures one named limiter.
type Limits struct {
	CallsPerMinute float64 `json:"calls_per_minute"`
	CallsPerHour   float64 `json:"calls_per_hour"`
	BurstSize      float64 `json:"burst_size"`
}

// Validate checks the limits for internal consistency.
func (l Limits) Validate() error {
	if l.CallsPerMinute <= 0 {
		return fmt.Errorf("calls_per_minute must be positive, got %v", l.CallsPerMinute)
	}
	if l.CallsPerHour <= 0 {
		return fmt.Errorf("calls_per_hour must be positive, got %v", l.CallsPerHour)
	}
	if l.BurstSize < 0 {
		return fmt.Errorf("burst_size must not be negative, got %v", l.BurstSize)
	}
	return nil
}

// Usage is a point-in-time snapshot of one bucket.
type Usage struct {
	Window    Window  `json:"window"`
	Remaining float64 `json:"remaining"`
	Capacity  float64 `json:"capacity"`
}

// Result reports the outcome of an acquire attempt.
type Result struct {
	Allowed    bool          `json:"allowed"`
	Reason     string        `json:"reason,omitempty"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Usages     []Usage       `json:"usages"`
}

// RetryAfterSeconds returns the wait in seconds, rounded up to whole seconds
// for use in Retry-After headers.
func (r *Result) RetryAfterSeconds() int {
	if r.RetryAfter <= 0 {
		return 0
	}
	secs := int(r.RetryAfter / time.Second)
	if r.RetryAfter%time.Second > 0 {
		secs++
	}
	return secs
}
