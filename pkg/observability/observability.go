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

// Package observability exports pipeline metrics through OpenTelemetry to a
// Prometheus endpoint. It is a separate layer from pkg/metrics: the sink
// holds per-request records the API serves back, this package aggregates
// counters and histograms for scrapers.
//
// Stages report through the process-global recorder so instrumentation does
// not thread through every constructor; with no provider initialized the
// recorder is a no-op.
package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const meterName = "compass"

// Config configures the metrics layer. It lives under the observability key
// of the service configuration.
type Config struct {
	// Enabled turns the meter provider and Prometheus exposition on.
	// Default: true
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// ServiceName identifies this service in the exported resource.
	// Default: "compass"
	ServiceName string `yaml:"service_name,omitempty" json:"service_name,omitempty"`

	// ServiceVersion is stamped by the binary at startup, not configured.
	ServiceVersion string `yaml:"-" json:"-"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}
	if c.ServiceName == "" {
		c.ServiceName = "compass"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("observability service_name is required")
	}
	return nil
}

// Provider owns the meter provider backing the global recorder.
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
}

// Init builds the Prometheus exporter and meter provider, registers the
// pipeline instruments, and installs them as the global recorder. With the
// layer disabled it installs the no-op recorder and returns a Provider
// whose Shutdown does nothing.
func Init(cfg Config) (*Provider, error) {
	cfg.SetDefaults()
	if !*cfg.Enabled {
		SetGlobal(nil)
		return &Provider{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	recorder, err := newRecorder(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	SetGlobal(recorder)

	return &Provider{meterProvider: mp}, nil
}

// Handler serves the Prometheus exposition format. The otel exporter
// registers against the default prometheus registry, so the stock promhttp
// handler sees everything.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	SetGlobal(nil)
	if p.meterProvider == nil {
		return nil
	}
	return p.meterProvider.Shutdown(ctx)
}
