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

// Package llm implements the rationale generation backends.
//
// Each provider performs a single structured completion: a system
// preamble plus a user prompt, with a JSON schema the response is
// expected to match. OpenAI and Anthropic are hand-rolled over the
// retrying client in pkg/httpclient; Gemini goes through the official
// genai SDK, which carries its own transport.
package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/lumen-ed/compass/pkg/config"
	"github.com/lumen-ed/compass/pkg/httpclient"
)

// Request describes a single structured completion.
type Request struct {
	// System is the system preamble.
	System string

	// Prompt is the user message body.
	Prompt string

	// Schema is the JSON schema the response must match. Providers
	// with native structured output enforce it; Anthropic receives it
	// as a system instruction.
	Schema map[string]any

	// MaxTokens bounds the completion length. Zero means the
	// provider's default.
	MaxTokens int

	// Temperature controls sampling randomness.
	Temperature float64
}

// Response is a provider-normalized completion.
type Response struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Provider is implemented by each generation backend.
type Provider interface {
	// Name returns the provider identifier (openai, anthropic, gemini).
	Name() string

	// Model returns the configured model identifier.
	Model() string

	// Generate performs one completion. Cancellation and deadlines
	// come from ctx; the caller owns the deadline policy.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Close releases provider resources.
	Close() error
}

// New constructs the provider selected by cfg. The API key is resolved
// from the LLM_API_KEY secret at startup, never from the config
// document.
func New(cfg *config.LLMConfig, apiKey string) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("llm config cannot be nil")
	}

	switch cfg.Provider {
	case config.LLMProviderOpenAI:
		return NewOpenAI(cfg, apiKey)
	case config.LLMProviderAnthropic:
		return NewAnthropic(cfg, apiKey)
	case config.LLMProviderGemini:
		return NewGemini(cfg, apiKey)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q (supported: openai, anthropic, gemini)", cfg.Provider)
	}
}

// newHTTPClient builds the retrying HTTP client shared by the
// hand-rolled providers.
func newHTTPClient(cfg *config.LLMConfig, parser httpclient.RateLimitHeaderParser) *httpclient.Client {
	opts := []httpclient.Option{
		httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		httpclient.WithMaxRetries(cfg.MaxRetries),
		httpclient.WithHeaderParser(parser),
	}

	if cfg.InsecureSkipVerify || cfg.CACertificate != "" {
		opts = append(opts, httpclient.WithTLSConfig(&httpclient.TLSConfig{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			CACertificate:      cfg.CACertificate,
		}))
	}

	return httpclient.New(opts...)
}
