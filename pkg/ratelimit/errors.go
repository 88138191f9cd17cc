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

import "errors"

// ErrRateLimited is the sentinel behind every refusal; callers match it with
// errors.Is no matter how the refusal was produced.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitError carries the refusal details alongside the sentinel.
type RateLimitError struct {
	Message string
	Result  *Result
}

func (e *RateLimitError) Error() string {
	return e.Message
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// NewRateLimitError wraps a refused Result, preferring its reason as the
// message when one is present.
func NewRateLimitError(result *Result) *RateLimitError {
	e := &RateLimitError{Message: ErrRateLimited.Error(), Result: result}
	if result != nil && result.Reason != "" {
		e.Message = result.Reason
	}
	return e
}

// IsRateLimitError reports whether err is a refusal. RateLimitError unwraps
// to the sentinel, so one errors.Is covers both forms.
func IsRateLimitError(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
