package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumen-ed/compass/pkg/skills"

	// Database drivers
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// sqlBackend stores records in PostgreSQL, MySQL, or SQLite via database/sql.
type sqlBackend struct {
	db      *sql.DB
	dialect string // "postgres", "mysql", or "sqlite"
}

const (
	// Schema shared by all three dialects; ids are app-generated so there is
	// no autoincrement divergence.
	createMetricsTableSQL = `
CREATE TABLE IF NOT EXISTS inference_metrics (
    id VARCHAR(36) PRIMARY KEY,
    student_id VARCHAR(255) NOT NULL,
    skill VARCHAR(50),
    latency_ms DOUBLE PRECISION NOT NULL,
    success BOOLEAN NOT NULL,
    error_category VARCHAR(50),
    recorded_at TIMESTAMP NOT NULL
)`

	createMetricsIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_inference_metrics_recorded_at ON inference_metrics(recorded_at)`

	// MySQL has no IF NOT EXISTS for indexes; duplicates are tolerated.
	createMetricsIndexMySQL = `
CREATE INDEX idx_inference_metrics_recorded_at ON inference_metrics(recorded_at)`
)

func newSQLBackend(dialect, dsn string) (*sqlBackend, error) {
	driverName := dialect
	if driverName == "sqlite" {
		driverName = "sqlite3"
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open metrics database: %w", err)
	}

	// SQLite only supports one writer at a time. A single connection
	// serializes access and prevents "database is locked" errors.
	if driverName == "sqlite3" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping metrics database: %w", err)
	}

	b := &sqlBackend{db: db, dialect: dialect}
	if err := b.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *sqlBackend) initSchema(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, createMetricsTableSQL); err != nil {
		return fmt.Errorf("failed to create metrics table: %w", err)
	}

	indexSQL := createMetricsIndexSQL
	if b.dialect == "mysql" {
		indexSQL = createMetricsIndexMySQL
	}
	if _, err := b.db.ExecContext(ctx, indexSQL); err != nil {
		if b.dialect == "mysql" && strings.Contains(err.Error(), "Duplicate key name") {
			return nil
		}
		return fmt.Errorf("failed to create metrics index: %w", err)
	}
	return nil
}

// rebind converts ? placeholders to $N for postgres.
func (b *sqlBackend) rebind(query string) string {
	if b.dialect != "postgres" {
		return query
	}
	var out strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			out.WriteString("$" + strconv.Itoa(n))
			continue
		}
		out.WriteRune(ch)
	}
	return out.String()
}

func (b *sqlBackend) Append(ctx context.Context, rec Record) error {
	query := b.rebind(`
INSERT INTO inference_metrics (id, student_id, skill, latency_ms, success, error_category, recorded_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`)

	var skill, category sql.NullString
	if rec.Skill != "" {
		skill = sql.NullString{String: rec.Skill, Valid: true}
	}
	if rec.ErrorCategory != "" {
		category = sql.NullString{String: string(rec.ErrorCategory), Valid: true}
	}

	_, err := b.db.ExecContext(ctx, query,
		uuid.New().String(), rec.StudentID, skill,
		rec.LatencyMS, rec.Success, category, rec.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert metrics record: %w", err)
	}
	return nil
}

func (b *sqlBackend) Recent(ctx context.Context, limit int) ([]Record, error) {
	query := b.rebind(`
SELECT student_id, skill, latency_ms, success, error_category, recorded_at
FROM inference_metrics
ORDER BY recorded_at DESC, id DESC
LIMIT ?`)

	rows, err := b.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var skill, category sql.NullString
		if err := rows.Scan(&rec.StudentID, &skill, &rec.LatencyMS, &rec.Success, &category, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan metrics record: %w", err)
		}
		rec.Skill = skill.String
		rec.ErrorCategory = skills.ErrorCategory(category.String)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (b *sqlBackend) Trim(ctx context.Context, keep int) error {
	// The derived-table wrapper keeps MySQL happy about deleting from a
	// table referenced in a subquery.
	query := b.rebind(`
DELETE FROM inference_metrics
WHERE id NOT IN (
    SELECT id FROM (
        SELECT id FROM inference_metrics ORDER BY recorded_at DESC, id DESC LIMIT ?
    ) newest
)`)

	if _, err := b.db.ExecContext(ctx, query, keep); err != nil {
		return fmt.Errorf("failed to trim metrics records: %w", err)
	}
	return nil
}

func (b *sqlBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *sqlBackend) Close() error {
	return b.db.Close()
}
