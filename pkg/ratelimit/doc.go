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

// Package ratelimit provides named dual token-bucket rate limiters.
//
// Each limiter holds two buckets, one sized by calls-per-minute and one by
// calls-per-hour, both refilling continuously at their stated rate
// (fractional tokens, not step refill). An acquire succeeds only when both
// buckets hold at least one token; on success both are decremented. Bursts
// are modeled by letting the minute bucket's capacity grow to
// max(calls_per_minute, burst_size) while the refill rate stays at
// calls_per_minute/60 per second.
//
// Acquire never sleeps. A refused acquire reports how long the caller would
// have to wait for both buckets to hold a token again; callers choose to
// block, reject, or fall back.
//
// # Basic Usage
//
//	limiter, err := ratelimit.New("llm", ratelimit.Limits{
//	    CallsPerMinute: 50,
//	    CallsPerHour:   500,
//	    BurstSize:      10,
//	})
//
//	result := limiter.Acquire()
//	if !result.Allowed {
//	    // fall back; result.RetryAfter says when to try again
//	}
package ratelimit
