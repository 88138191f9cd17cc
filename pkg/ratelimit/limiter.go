package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// bucket is a continuously refilling token bucket. All methods assume the
// owning limiter's lock is held.
type bucket struct {
	window       Window
	capacity     float64
	refillPerSec float64
	tokens       float64
	last         time.Time
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.refillPerSec
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.last = now
}

// timeToToken returns how long until the bucket holds at least one token,
// assuming no further consumption. Zero when a token is already available.
func (b *bucket) timeToToken() time.Duration {
	if b.tokens >= 1 {
		return 0
	}
	deficit := 1 - b.tokens
	return time.Duration(deficit / b.refillPerSec * float64(time.Second))
}

func (b *bucket) usage() Usage {
	return Usage{
		Window:    b.window,
		Remaining: b.tokens,
		Capacity:  b.capacity,
	}
}

// Limiter enforces a dual-bucket rate on a single named resource.
type Limiter struct {
	name string

	mu     sync.Mutex
	minute bucket
	hour   bucket

	// now is replaceable in tests
	now func() time.Time
}

// New creates a limiter from validated limits. Both buckets start full, so a
// burst of up to max(calls_per_minute, burst_size) acquires is available
// immediately.
func New(name string, limits Limits) (*Limiter, error) {
	if name == "" {
		return nil, fmt.Errorf("limiter name cannot be empty")
	}
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("invalid limits for %q: %w", name, err)
	}

	minuteCap := limits.CallsPerMinute
	if limits.BurstSize > minuteCap {
		minuteCap = limits.BurstSize
	}

	start := time.Now()
	return &Limiter{
		name: name,
		minute: bucket{
			window:       WindowMinute,
			capacity:     minuteCap,
			refillPerSec: limits.CallsPerMinute / 60,
			tokens:       minuteCap,
			last:         start,
		},
		hour: bucket{
			window:       WindowHour,
			capacity:     limits.CallsPerHour,
			refillPerSec: limits.CallsPerHour / 3600,
			tokens:       limits.CallsPerHour,
			last:         start,
		},
		now: time.Now,
	}, nil
}

// Name returns the limiter's name.
func (l *Limiter) Name() string {
	return l.name
}

// Acquire takes one token from both buckets if both hold at least one.
// It never blocks; a refused acquire carries the wait until both buckets
// would hold a token again.
func (l *Limiter) Acquire() *Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.minute.refill(now)
	l.hour.refill(now)

	if l.minute.tokens >= 1 && l.hour.tokens >= 1 {
		l.minute.tokens--
		l.hour.tokens--
		return &Result{
			Allowed: true,
			Usages:  []Usage{l.minute.usage(), l.hour.usage()},
		}
	}

	retry := l.minute.timeToToken()
	reason := fmt.Sprintf("%s: minute budget exhausted", l.name)
	if hourWait := l.hour.timeToToken(); hourWait > retry {
		retry = hourWait
		reason = fmt.Sprintf("%s: hour budget exhausted", l.name)
	}

	return &Result{
		Allowed:    false,
		Reason:     reason,
		RetryAfter: retry,
		Usages:     []Usage{l.minute.usage(), l.hour.usage()},
	}
}

// Snapshot reports current bucket levels without consuming tokens.
func (l *Limiter) Snapshot() []Usage {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.minute.refill(now)
	l.hour.refill(now)
	return []Usage{l.minute.usage(), l.hour.usage()}
}
