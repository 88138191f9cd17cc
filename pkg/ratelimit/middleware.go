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

package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// Middleware enforces the given limiter on every request it wraps.
// Refused requests get a 429 with a Retry-After header and a JSON body.
// A nil limiter passes everything through.
func Middleware(limiter *Limiter) func(http.Handler) http.Handler {
	if limiter == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := limiter.Acquire()
			if result.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			slog.Warn("Request rate limited",
				"limiter", limiter.Name(),
				"path", r.URL.Path,
				"retry_after", result.RetryAfter)

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfterSeconds()))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"error":               result.Reason,
				"retry_after_seconds": result.RetryAfterSeconds(),
			})
		})
	}
}
