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

package secrets

import (
	"context"
	"fmt"
	"path"

	"github.com/hashicorp/consul/api"
)

// DefaultConsulPrefix is the KV prefix managed secrets live under.
const DefaultConsulPrefix = "compass/secrets"

// ConsulSource reads secrets from Consul KV under a prefix, so a key
// like LLM_API_KEY maps to compass/secrets/LLM_API_KEY.
type ConsulSource struct {
	kv     *api.KV
	prefix string
}

// NewConsulSource creates a Consul-backed secret source. An empty addr
// falls back to the client defaults (CONSUL_HTTP_ADDR et al.).
func NewConsulSource(addr, prefix string) (*ConsulSource, error) {
	cfg := api.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	if prefix == "" {
		prefix = DefaultConsulPrefix
	}

	return &ConsulSource{
		kv:     client.KV(),
		prefix: prefix,
	}, nil
}

// Name returns "consul".
func (s *ConsulSource) Name() string {
	return "consul"
}

// Get reads the key from Consul KV.
func (s *ConsulSource) Get(ctx context.Context, key string) (string, error) {
	opts := (&api.QueryOptions{}).WithContext(ctx)

	pair, _, err := s.kv.Get(path.Join(s.prefix, key), opts)
	if err != nil {
		return "", fmt.Errorf("consul get %s: %w", key, err)
	}
	if pair == nil || len(pair.Value) == 0 {
		return "", ErrNotFound
	}
	return string(pair.Value), nil
}
