package featurestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// postgresStore reads feature records from Postgres. The features column
// is JSONB written by the extraction pipelines.
type postgresStore struct {
	db           *sql.DB
	queryTimeout time.Duration
}

func newPostgresStore(dsn string, queryTimeout time.Duration) (*postgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open feature store: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping feature store: %w", err)
	}

	return &postgresStore{
		db:           db,
		queryTimeout: queryTimeout,
	}, nil
}

func (s *postgresStore) Fetch(ctx context.Context, studentID string, kind Kind, asOf time.Time) (*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `
		SELECT features, captured_at, provenance
		FROM student_features
		WHERE student_id = $1 AND kind = $2`
	args := []any{studentID, string(kind)}

	if !asOf.IsZero() {
		query += ` AND captured_at <= $3`
		args = append(args, asOf)
	}
	query += ` ORDER BY captured_at DESC LIMIT 1`

	var (
		raw        []byte
		capturedAt time.Time
		provenance sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&raw, &capturedAt, &provenance)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &UpstreamError{Op: "fetch", Err: err}
	}

	features := make(map[string]float64)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &features); err != nil {
			return nil, &UpstreamError{Op: "decode", Err: err}
		}
	}

	return &Record{
		StudentID:  studentID,
		Kind:       kind,
		Features:   features,
		CapturedAt: capturedAt,
		Provenance: provenance.String,
	}, nil
}

func (s *postgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &UpstreamError{Op: "ping", Err: err}
	}
	return nil
}

func (s *postgresStore) Close() error {
	return s.db.Close()
}
