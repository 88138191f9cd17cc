package httpclient

import (
	"net/http"
	"strconv"
	"time"
)

// headerInt reads a base-10 integer header into dst, leaving it untouched
// when the header is absent or malformed.
func headerInt(headers http.Header, name string, dst *int) {
	if v := headers.Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// retryAfterSeconds reads Retry-After as a second count. The HTTP-date form
// is ignored; none of the supported providers send it.
func retryAfterSeconds(headers http.Header) time.Duration {
	if v := headers.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}

// ParseAnthropicHeaders extracts rate-limit info from Anthropic responses.
// Reset headers carry RFC3339 timestamps.
func ParseAnthropicHeaders(headers http.Header) RateLimitInfo {
	info := RateLimitInfo{RetryAfter: retryAfterSeconds(headers)}

	for _, name := range []string{
		"anthropic-ratelimit-input-tokens-reset",
		"anthropic-ratelimit-output-tokens-reset",
		"anthropic-ratelimit-requests-reset",
	} {
		if v := headers.Get(name); v != "" {
			if reset, err := time.Parse(time.RFC3339, v); err == nil {
				info.ResetTime = reset.Unix()
				break
			}
		}
	}

	headerInt(headers, "anthropic-ratelimit-requests-remaining", &info.RequestsRemaining)
	headerInt(headers, "anthropic-ratelimit-input-tokens-remaining", &info.InputTokensRemaining)
	headerInt(headers, "anthropic-ratelimit-output-tokens-remaining", &info.OutputTokensRemaining)

	return info
}

// ParseOpenAIHeaders extracts rate-limit info from OpenAI responses. Reset
// headers carry unix timestamps.
func ParseOpenAIHeaders(headers http.Header) RateLimitInfo {
	info := RateLimitInfo{RetryAfter: retryAfterSeconds(headers)}

	for _, name := range []string{
		"x-ratelimit-reset-tokens",
		"x-ratelimit-reset-requests",
	} {
		if v := headers.Get(name); v != "" {
			if reset, err := strconv.ParseInt(v, 10, 64); err == nil {
				info.ResetTime = reset
				break
			}
		}
	}

	headerInt(headers, "x-ratelimit-remaining-requests", &info.RequestsRemaining)
	headerInt(headers, "x-ratelimit-remaining-tokens", &info.TokensRemaining)

	return info
}

// ParseGeminiHeaders extracts rate-limit info from Gemini responses, which
// only advertise Retry-After.
func ParseGeminiHeaders(headers http.Header) RateLimitInfo {
	return RateLimitInfo{RetryAfter: retryAfterSeconds(headers)}
}
