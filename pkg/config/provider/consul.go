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

package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/consul/api"
)

// watchWait bounds each Consul blocking query.
const watchWait = 5 * time.Minute

// ConsulProvider loads config from a Consul KV key and watches it with
// blocking queries.
type ConsulProvider struct {
	kv  *api.KV
	key string

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
}

// NewConsulProvider creates a provider backed by Consul KV.
func NewConsulProvider(endpoints []string, key string) (*ConsulProvider, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("consul provider requires at least one endpoint")
	}
	if key == "" {
		return nil, fmt.Errorf("consul provider requires a key")
	}

	cfg := api.DefaultConfig()
	cfg.Address = endpoints[0]

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	return &ConsulProvider{
		kv:  client.KV(),
		key: key,
	}, nil
}

// Type returns TypeConsul.
func (p *ConsulProvider) Type() Type {
	return TypeConsul
}

// Load reads the config value from Consul.
func (p *ConsulProvider) Load(ctx context.Context) ([]byte, error) {
	opts := (&api.QueryOptions{}).WithContext(ctx)

	pair, _, err := p.kv.Get(p.key, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read consul key %s: %w", p.key, err)
	}
	if pair == nil {
		return nil, fmt.Errorf("consul key %s not found", p.key)
	}
	return pair.Value, nil
}

// Watch polls the key with Consul blocking queries and signals when the
// modify index advances.
func (p *ConsulProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("provider is closed")
	}

	ctx, p.cancel = context.WithCancel(ctx)
	ch := make(chan struct{}, 1)

	go p.watchLoop(ctx, ch)

	slog.Info("Watching consul key", "key", p.key)
	return ch, nil
}

func (p *ConsulProvider) watchLoop(ctx context.Context, ch chan<- struct{}) {
	defer close(ch)

	var index uint64
	for {
		if ctx.Err() != nil {
			return
		}

		opts := (&api.QueryOptions{
			WaitIndex: index,
			WaitTime:  watchWait,
		}).WithContext(ctx)

		pair, meta, err := p.kv.Get(p.key, opts)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("Consul watch error", "key", p.key, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		// Consul indexes can move backwards on leader changes; reset.
		if meta.LastIndex < index {
			index = 0
			continue
		}

		if meta.LastIndex != index {
			if index != 0 && pair != nil {
				select {
				case ch <- struct{}{}:
					slog.Debug("Consul key changed", "key", p.key)
				default:
				}
			}
			index = meta.LastIndex
		}
	}
}

// Persist writes the document back to the Consul key.
func (p *ConsulProvider) Persist(ctx context.Context, data []byte) error {
	opts := (&api.WriteOptions{}).WithContext(ctx)

	if _, err := p.kv.Put(&api.KVPair{Key: p.key, Value: data}, opts); err != nil {
		return fmt.Errorf("failed to write consul key %s: %w", p.key, err)
	}
	return nil
}

// Close stops watching.
func (p *ConsulProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	return nil
}

var (
	_ Provider  = (*ConsulProvider)(nil)
	_ Persister = (*ConsulProvider)(nil)
)
