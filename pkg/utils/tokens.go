// Package utils provides small helpers shared across the service.
package utils

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// fallbackEncoding approximates models tiktoken does not know. cl100k_base is
// the GPT-4 family encoding and stays within a few percent of the Claude and
// Gemini tokenizers, close enough for budget checks that already reserve
// headroom.
const fallbackEncoding = "cl100k_base"

// Loading an encoding parses a sizable BPE table, so instances are shared
// process-wide. The cache only grows and reads dominate, the sync.Map case.
var encodings sync.Map

// TokenCounter counts text the way a specific model's tokenizer would.
// Counters are cheap to create and safe for concurrent use.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

// NewTokenCounter builds a counter for model, falling back to cl100k_base
// when the model has no registered encoding.
func NewTokenCounter(model string) (*TokenCounter, error) {
	encoding, err := loadEncoding(model)
	if err != nil {
		return nil, err
	}
	return &TokenCounter{encoding: encoding, model: model}, nil
}

func loadEncoding(model string) (*tiktoken.Tiktoken, error) {
	if cached, ok := encodings.Load(model); ok {
		return cached.(*tiktoken.Tiktoken), nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("load encoding for %q: %w", model, err)
		}
	}

	shared, _ := encodings.LoadOrStore(model, encoding)
	return shared.(*tiktoken.Tiktoken), nil
}

// Count returns the token count for text.
func (tc *TokenCounter) Count(text string) int {
	return len(tc.encoding.Encode(text, nil, nil))
}

// Model returns the model the counter was built for.
func (tc *TokenCounter) Model() string {
	return tc.model
}
