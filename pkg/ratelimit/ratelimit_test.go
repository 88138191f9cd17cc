package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// fakeClock drives limiter time deterministically.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.current
}

func (c *fakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestLimiter(t *testing.T, limits Limits) (*Limiter, *fakeClock) {
	t.Helper()

	limiter, err := New("test", limits)
	if err != nil {
		t.Fatalf("failed to create limiter: %v", err)
	}

	clock := &fakeClock{current: time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)}
	limiter.now = clock.Now
	limiter.minute.last = clock.current
	limiter.hour.last = clock.current
	return limiter, clock
}

func TestLimits_Validate(t *testing.T) {
	tests := []struct {
		name    string
		limits  Limits
		wantErr bool
	}{
		{"valid", Limits{CallsPerMinute: 50, CallsPerHour: 500, BurstSize: 10}, false},
		{"zero burst", Limits{CallsPerMinute: 50, CallsPerHour: 500}, false},
		{"zero cpm", Limits{CallsPerHour: 500}, true},
		{"negative cpm", Limits{CallsPerMinute: -1, CallsPerHour: 500}, true},
		{"zero cph", Limits{CallsPerMinute: 50}, true},
		{"negative burst", Limits{CallsPerMinute: 50, CallsPerHour: 500, BurstSize: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.limits.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLimiter_MinuteBucketExhaustion(t *testing.T) {
	limiter, _ := newTestLimiter(t, Limits{CallsPerMinute: 50, CallsPerHour: 500, BurstSize: 10})

	// Minute capacity is max(50, 10) = 50; all 50 acquires pass back to back.
	for i := 0; i < 50; i++ {
		result := limiter.Acquire()
		if !result.Allowed {
			t.Fatalf("acquire %d refused: %s", i+1, result.Reason)
		}
	}

	result := limiter.Acquire()
	if result.Allowed {
		t.Fatal("51st acquire should be refused")
	}
	if result.RetryAfter <= 0 {
		t.Errorf("expected positive RetryAfter, got %v", result.RetryAfter)
	}
	// One token at 50/min refills in 1.2s.
	if result.RetryAfter > 1300*time.Millisecond {
		t.Errorf("RetryAfter = %v, expected about 1.2s", result.RetryAfter)
	}
}

func TestLimiter_ContinuousRefill(t *testing.T) {
	limiter, clock := newTestLimiter(t, Limits{CallsPerMinute: 60, CallsPerHour: 3600})

	// Drain the minute bucket.
	for i := 0; i < 60; i++ {
		if result := limiter.Acquire(); !result.Allowed {
			t.Fatalf("acquire %d refused", i+1)
		}
	}
	if result := limiter.Acquire(); result.Allowed {
		t.Fatal("expected refusal after drain")
	}

	// 60/min refills one token per second; half a second is not enough.
	clock.Advance(500 * time.Millisecond)
	if result := limiter.Acquire(); result.Allowed {
		t.Fatal("expected refusal after 0.5s, fractional token only")
	}

	clock.Advance(600 * time.Millisecond)
	if result := limiter.Acquire(); !result.Allowed {
		t.Fatalf("expected success after 1.1s of refill: %s", result.Reason)
	}

	// The token was spent; the next immediate acquire fails again.
	if result := limiter.Acquire(); result.Allowed {
		t.Fatal("expected refusal immediately after spending refilled token")
	}
}

func TestLimiter_HourBucket(t *testing.T) {
	limiter, _ := newTestLimiter(t, Limits{CallsPerMinute: 60, CallsPerHour: 2})

	for i := 0; i < 2; i++ {
		if result := limiter.Acquire(); !result.Allowed {
			t.Fatalf("acquire %d refused", i+1)
		}
	}

	result := limiter.Acquire()
	if result.Allowed {
		t.Fatal("third acquire should hit the hour budget")
	}

	// One token at 2/hour refills in 30 minutes; RetryAfter takes the
	// larger of the two bucket waits.
	want := 30 * time.Minute
	if diff := result.RetryAfter - want; diff < -time.Second || diff > time.Second {
		t.Errorf("RetryAfter = %v, want about %v", result.RetryAfter, want)
	}
}

func TestLimiter_BurstExtendsMinuteCapacity(t *testing.T) {
	limiter, _ := newTestLimiter(t, Limits{CallsPerMinute: 5, CallsPerHour: 100, BurstSize: 10})

	for i := 0; i < 10; i++ {
		if result := limiter.Acquire(); !result.Allowed {
			t.Fatalf("burst acquire %d refused", i+1)
		}
	}
	if result := limiter.Acquire(); result.Allowed {
		t.Fatal("acquire beyond burst capacity should be refused")
	}
}

func TestLimiter_SteadyStateRate(t *testing.T) {
	limiter, clock := newTestLimiter(t, Limits{CallsPerMinute: 30, CallsPerHour: 10000})

	// Drain the initial burst so only refill remains.
	for limiter.Acquire().Allowed {
	}

	// Attempt once a second for two minutes; 30/min refill admits half.
	allowed := 0
	for i := 0; i < 120; i++ {
		clock.Advance(time.Second)
		if limiter.Acquire().Allowed {
			allowed++
		}
	}

	if allowed < 58 || allowed > 61 {
		t.Errorf("allowed %d of 120 attempts, want about 60 at 30/min", allowed)
	}
}

func TestLimiter_SnapshotDoesNotConsume(t *testing.T) {
	limiter, _ := newTestLimiter(t, Limits{CallsPerMinute: 10, CallsPerHour: 100})

	before := limiter.Snapshot()
	after := limiter.Snapshot()
	if before[0].Remaining != after[0].Remaining {
		t.Errorf("Snapshot consumed tokens: %v then %v", before[0].Remaining, after[0].Remaining)
	}
	if !limiter.Acquire().Allowed {
		t.Fatal("acquire refused on full bucket")
	}
	if got := limiter.Snapshot()[0].Remaining; got >= before[0].Remaining {
		t.Errorf("expected remaining to drop after acquire, got %v", got)
	}
}

func TestManager(t *testing.T) {
	manager := NewManager()

	if _, err := manager.Get("llm"); err == nil {
		t.Fatal("expected error for unregistered limiter")
	}

	if _, err := manager.Configure("llm", Limits{CallsPerMinute: 50, CallsPerHour: 500, BurstSize: 10}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	limiter, err := manager.Get("llm")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if limiter.Name() != "llm" {
		t.Errorf("limiter name = %s, want llm", limiter.Name())
	}

	if _, err := manager.Configure("bad", Limits{}); err == nil {
		t.Fatal("expected error for invalid limits")
	}

	snapshot := manager.Snapshot()
	if _, ok := snapshot["llm"]; !ok {
		t.Error("Snapshot missing llm limiter")
	}
}

func TestMiddleware(t *testing.T) {
	limiter, _ := newTestLimiter(t, Limits{CallsPerMinute: 1, CallsPerHour: 1})

	handler := Middleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodPut, "/fusion/weights/empathy", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodPut, "/fusion/weights/empathy", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on refusal")
	}
}

func TestRateLimitError(t *testing.T) {
	result := &Result{Allowed: false, Reason: "llm: minute budget exhausted"}
	err := NewRateLimitError(result)

	if !IsRateLimitError(err) {
		t.Error("IsRateLimitError should recognize RateLimitError")
	}
	if err.Error() != result.Reason {
		t.Errorf("Error() = %q, want %q", err.Error(), result.Reason)
	}
	if IsRateLimitError(nil) {
		t.Error("IsRateLimitError(nil) should be false")
	}
}
