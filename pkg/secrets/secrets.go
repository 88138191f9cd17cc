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

// Package secrets resolves credentials through an ordered source chain.
//
// Sources are consulted in order until one returns a non-empty value:
// a managed secret store first (Consul KV, when configured), then the
// process environment. Resolved values are cached for the lifetime of
// the process.
//
// The service requires LLM_API_KEY and SIGNING_KEY at startup; when
// either is absent from every source, resolution fails with a
// FatalConfigError and the process exits.
package secrets

import (
	"context"
	"os"
)

// Well-known secret names required at startup.
const (
	KeyLLMAPIKey  = "LLM_API_KEY"
	KeySigningKey = "SIGNING_KEY"
)

// Source supplies secret values by name.
type Source interface {
	// Name identifies the source for logging.
	Name() string

	// Get returns the value for key. Absent keys return ErrNotFound;
	// any other error means the source itself failed.
	Get(ctx context.Context, key string) (string, error)
}

// EnvSource reads secrets from the process environment.
type EnvSource struct{}

// Name returns "env".
func (EnvSource) Name() string {
	return "env"
}

// Get looks the key up with os.Getenv. Empty values count as absent.
func (EnvSource) Get(ctx context.Context, key string) (string, error) {
	if v := os.Getenv(key); v != "" {
		return v, nil
	}
	return "", ErrNotFound
}
