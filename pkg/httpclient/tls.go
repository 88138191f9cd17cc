package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
)

// TLSConfig carries transport TLS overrides for self-hosted LLM gateways:
// a private CA bundle, or verification skip for dev setups.
type TLSConfig struct {
	InsecureSkipVerify bool
	CACertificate      string // path to a PEM CA bundle
}

// NewTransport builds an http.Transport honoring the TLS overrides.
func NewTransport(config *TLSConfig) (*http.Transport, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{},
	}
	if config == nil {
		return transport, nil
	}

	if config.CACertificate != "" {
		caCert, err := readCACertificate(config.CACertificate)
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig.RootCAs = caCert
	}
	if config.InsecureSkipVerify {
		transport.TLSClientConfig.InsecureSkipVerify = true
	}

	return transport, nil
}

// WithTLSConfig applies TLS overrides to the underlying client. An invalid
// CA bundle is logged and the default transport kept; failing closed here
// would take rationale generation down for a config typo.
func WithTLSConfig(config *TLSConfig) Option {
	return func(c *Client) {
		if config == nil {
			return
		}
		transport, err := NewTransport(config)
		if err != nil {
			c.logger.Warn("Failed to configure TLS, using default transport", "error", err)
			return
		}
		if c.client == nil {
			c.client = &http.Client{}
		}
		c.client.Transport = transport
	}
}

func readCACertificate(path string) (*x509.CertPool, error) {
	caCert, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate from %s: %w", path, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate from %s", path)
	}
	return pool, nil
}
