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

// Package provider abstracts where configuration documents live.
//
// A Provider hands the loader raw bytes and, when the source supports it,
// signals rewrites so the service can hot-reload. File, consul, etcd, and
// zookeeper sources ship in-tree.
package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Type names a config source kind.
type Type string

const (
	TypeFile      Type = "file"
	TypeConsul    Type = "consul"
	TypeEtcd      Type = "etcd"
	TypeZookeeper Type = "zookeeper"
)

var typeNames = map[string]Type{
	"":          TypeFile,
	"file":      TypeFile,
	"consul":    TypeConsul,
	"etcd":      TypeEtcd,
	"zk":        TypeZookeeper,
	"zookeeper": TypeZookeeper,
}

// ParseType maps a scheme or flag value to a Type. Empty input selects the
// file source; "zk" works as zookeeper shorthand.
func ParseType(s string) (Type, error) {
	if t, ok := typeNames[s]; ok {
		return t, nil
	}
	return "", fmt.Errorf("unknown provider type: %s", s)
}

// Provider is a single config document source. Implementations must be safe
// for concurrent use.
type Provider interface {
	// Type identifies the source kind for log lines and error text.
	Type() Type

	// Load fetches the current document bytes.
	Load(ctx context.Context) ([]byte, error)

	// Watch signals on the returned channel every time the document
	// changes, until ctx is cancelled. Sources that cannot watch return
	// a nil channel and no error.
	Watch(ctx context.Context) (<-chan struct{}, error)

	// Close stops any watch machinery and releases connections.
	Close() error
}

// Persister is the optional write-back side of a source. All four built-in
// providers implement it; it stays separate from Provider so read-only
// sources remain possible.
type Persister interface {
	// Persist atomically replaces the backing document with data.
	Persist(ctx context.Context, data []byte) error
}

// ProviderConfig selects and addresses a source.
type ProviderConfig struct {
	Type      Type     // source kind; empty means file
	Path      string   // file path or key path within the source
	Endpoints []string // remote endpoints for consul, etcd, and zookeeper
}

// New builds the provider that ProviderConfig describes.
func New(opts ProviderConfig) (Provider, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	switch opts.Type {
	case TypeFile, "":
		return NewFileProvider(opts.Path)
	case TypeConsul:
		return NewConsulProvider(opts.Endpoints, opts.Path)
	case TypeEtcd:
		return NewEtcdProvider(opts.Endpoints, opts.Path)
	case TypeZookeeper:
		return NewZookeeperProvider(opts.Endpoints, opts.Path)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", opts.Type)
	}
}

// FromURL builds a ProviderConfig from a path or URL.
//
// Plain paths (and file:// URLs) select the file source. Remote sources use
// the scheme to pick the provider and the URL path as the key:
//
//	consul://localhost:8500/compass/fusion_weights
//	etcd://localhost:2379/compass/fusion_weights
//	zk://localhost:2181/compass/fusion_weights
func FromURL(raw string) (ProviderConfig, error) {
	if raw == "" {
		return ProviderConfig{}, fmt.Errorf("config path is empty")
	}
	if !strings.Contains(raw, "://") {
		return ProviderConfig{Type: TypeFile, Path: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ProviderConfig{}, fmt.Errorf("invalid config URL %s: %w", raw, err)
	}
	t, err := ParseType(u.Scheme)
	if err != nil {
		return ProviderConfig{}, fmt.Errorf("unsupported config scheme %q", u.Scheme)
	}

	pc := ProviderConfig{Type: t, Path: u.Path, Endpoints: []string{u.Host}}
	switch t {
	case TypeFile:
		pc.Endpoints = nil
	case TypeConsul, TypeEtcd:
		// Key paths in consul and etcd drop the leading slash; zookeeper
		// paths keep theirs.
		pc.Path = strings.TrimPrefix(u.Path, "/")
	}
	return pc, nil
}
