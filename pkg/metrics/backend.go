package metrics

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Backend is a durable, time-indexed record store. All implementations must
// tolerate concurrent appends.
type Backend interface {
	Append(ctx context.Context, rec Record) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)
	// Trim drops everything but the newest keep records.
	Trim(ctx context.Context, keep int) error
	Ping(ctx context.Context) error
	Close() error
}

// NewBackend constructs a backend from a URL. Recognized schemes:
// postgres://, mysql://, sqlite://, redis://. An empty URL means no durable
// backend.
func NewBackend(rawURL string) (Backend, error) {
	if rawURL == "" {
		return nil, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid metrics backend url: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		return newSQLBackend("postgres", rawURL)
	case "mysql":
		return newSQLBackend("mysql", mysqlDSN(u))
	case "sqlite", "sqlite3":
		return newSQLBackend("sqlite", sqlitePath(u))
	case "redis", "rediss":
		return newRedisBackend(rawURL)
	default:
		return nil, fmt.Errorf("unsupported metrics backend scheme: %q", u.Scheme)
	}
}

// mysqlDSN converts a mysql:// URL into the DSN form the driver expects:
// user:pass@tcp(host:port)/dbname?parseTime=true
func mysqlDSN(u *url.URL) string {
	var b strings.Builder
	if u.User != nil {
		b.WriteString(u.User.Username())
		if pass, ok := u.User.Password(); ok {
			b.WriteString(":")
			b.WriteString(pass)
		}
		b.WriteString("@")
	}
	b.WriteString("tcp(")
	b.WriteString(u.Host)
	b.WriteString(")")
	b.WriteString(u.Path)

	query := u.Query()
	query.Set("parseTime", "true")
	b.WriteString("?")
	b.WriteString(query.Encode())
	return b.String()
}

// sqlitePath extracts the file path from a sqlite:// URL.
func sqlitePath(u *url.URL) string {
	if u.Opaque != "" {
		return u.Opaque
	}
	path := u.Path
	if u.Host != "" {
		// sqlite://relative/path parses the first segment as a host
		path = u.Host + path
	}
	return path
}
