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

package config

import (
	"fmt"
	"time"
)

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Host and Port form the bind address, 0.0.0.0:8080 by default.
	Host string `yaml:"host,omitempty" json:"host,omitempty"`
	Port int    `yaml:"port,omitempty" json:"port,omitempty"`

	// ReadTimeout bounds reading the full request including body.
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`

	// WriteTimeout bounds writing the response. Must exceed the batch
	// deadline or long batch requests are cut off mid-response.
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`

	// ShutdownTimeout bounds graceful shutdown on SIGINT/SIGTERM.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty" json:"shutdown_timeout,omitempty"`

	// CORS settings for browser clients. Nil picks up permissive defaults.
	CORS *CORSConfig `yaml:"cors,omitempty" json:"cors,omitempty"`
}

// CORSConfig lists the origins, methods, and headers the server accepts
// in cross-origin requests.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins,omitempty" json:"allowed_origins,omitempty"`
	AllowedMethods []string `yaml:"allowed_methods,omitempty" json:"allowed_methods,omitempty"`
	AllowedHeaders []string `yaml:"allowed_headers,omitempty" json:"allowed_headers,omitempty"`
}

// SetDefaults applies default values.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		// Batch inference holds the connection for up to its deadline.
		c.WriteTimeout = 90 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.CORS == nil {
		c.CORS = &CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		}
	}
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// Address returns the host:port bind address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level,omitempty" json:"level,omitempty"`

	// Format selects the handler: "simple", "verbose", or "json".
	Format string `yaml:"format,omitempty" json:"format,omitempty"`

	// Output is a file path; empty means stderr.
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// SetDefaults applies default values.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

// Validate checks the logging configuration.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid level %q (valid: debug, info, warn, error)", c.Level)
	}

	switch c.Format {
	case "simple", "verbose", "json":
	default:
		return fmt.Errorf("invalid format %q (valid: simple, verbose, json)", c.Format)
	}

	return nil
}

// AuthConfig governs JWT verification on the API surface.
//
// Tokens are verified with HMAC-SHA256 against the SIGNING_KEY secret
// resolved at startup. Authentication is disabled by default; when
// enabled, all endpoints except the excluded paths require a valid
// bearer token.
type AuthConfig struct {
	// Enabled turns bearer-token verification on. Off by default.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Issuer, when set, must match the token's iss claim.
	Issuer string `yaml:"issuer,omitempty" json:"issuer,omitempty"`

	// Audience, when set, must match the token's aud claim.
	Audience string `yaml:"audience,omitempty" json:"audience,omitempty"`

	// ExcludedPaths bypass token checks entirely. Defaults to /health
	// so probes need no credentials.
	ExcludedPaths []string `yaml:"excluded_paths,omitempty" json:"excluded_paths,omitempty"`

	// RequireAuth decides whether a request without a token gets a 401
	// or passes through anonymously. Unset resolves to the value of
	// Enabled.
	RequireAuth *bool `yaml:"require_auth,omitempty" json:"require_auth,omitempty"`
}

// SetDefaults applies default values.
func (c *AuthConfig) SetDefaults() {
	if len(c.ExcludedPaths) == 0 {
		c.ExcludedPaths = []string{"/health"}
	}

	if c.RequireAuth == nil && c.Enabled {
		c.RequireAuth = BoolPtr(true)
	}
}

// Validate checks the auth configuration.
func (c *AuthConfig) Validate() error {
	return nil
}

// IsEnabled reports whether authentication is turned on. Safe to call
// on a nil receiver.
func (c *AuthConfig) IsEnabled() bool {
	return c != nil && c.Enabled
}

// IsRequireAuth reports whether requests without a token are rejected.
func (c *AuthConfig) IsRequireAuth() bool {
	if c.RequireAuth == nil {
		return c.Enabled
	}
	return *c.RequireAuth
}
