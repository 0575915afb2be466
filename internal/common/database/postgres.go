// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"placement-engine/internal/common/config"

	_ "github.com/lib/pq"
)

// Record tables. Every entity is stored as a jsonb document keyed by id.
const (
	TableStudents        = "students"
	TableRepresentatives = "representatives"
	TableStaff           = "staff"
	TableOpportunities   = "opportunities"
	TableApplications    = "applications"
	TableWithdrawals     = "withdrawal_requests"
	TableAuditLog        = "audit_log"
)

var recordTables = []string{
	TableStudents,
	TableRepresentatives,
	TableStaff,
	TableOpportunities,
	TableApplications,
	TableWithdrawals,
}

// PostgresClient wraps the SQL database connection
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres creates a new PostgreSQL client
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Ping tests the database connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// EnsureSchema creates the record and audit tables if they are missing.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	for _, table := range recordTables {
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, table)
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
	}

	auditStmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id            BIGSERIAL PRIMARY KEY,
		event_type    TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id   TEXT NOT NULL,
		actor_id      TEXT,
		details       JSONB,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`, TableAuditLog)
	if _, err := c.DB.ExecContext(ctx, auditStmt); err != nil {
		return fmt.Errorf("create table %s: %w", TableAuditLog, err)
	}
	return nil
}
