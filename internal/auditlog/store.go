// Package auditlog persists authorization decisions to SQLite or Postgres so
// operators can review who was denied and why after the fact. It records the
// same coarse facts as the structured log: no command payloads, no chat text.
package auditlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/dresos/duckbot/internal/auth"
	"github.com/dresos/duckbot/internal/logging"
)

// SQLWriter persists audit entries. It implements auth.Recorder: a write
// failure is logged but never blocks the authorization decision itself.
type SQLWriter struct {
	db      *sql.DB
	dialect string
}

// NewSQLiteWriter opens (or creates) a SQLite-backed audit log.
func NewSQLiteWriter(dsn string) (*SQLWriter, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "duckbot-audit.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite audit log: %w", err)
	}
	w := &SQLWriter{db: db, dialect: "sqlite"}
	if err := w.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

// NewPostgresWriter opens a Postgres-backed audit log.
func NewPostgresWriter(dsn string) (*SQLWriter, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres audit log: %w", err)
	}
	w := &SQLWriter{db: db, dialect: "postgres"}
	if err := w.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *SQLWriter) init() error {
	if err := w.db.Ping(); err != nil {
		return fmt.Errorf("ping %s audit log: %w", w.dialect, err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS audit_log (
	id INTEGER PRIMARY KEY,
	audit_id TEXT NOT NULL,
	caller_id INTEGER NOT NULL,
	required_role TEXT NOT NULL,
	allowed INTEGER NOT NULL,
	reason TEXT NOT NULL,
	decided_at TIMESTAMP NOT NULL
);`

	if w.dialect == "postgres" {
		ddl = `
CREATE TABLE IF NOT EXISTS audit_log (
	id BIGSERIAL PRIMARY KEY,
	audit_id TEXT NOT NULL,
	caller_id BIGINT NOT NULL,
	required_role TEXT NOT NULL,
	allowed BOOLEAN NOT NULL,
	reason TEXT NOT NULL,
	decided_at TIMESTAMPTZ NOT NULL
);`
	}

	if _, err := w.db.Exec(ddl); err != nil {
		return fmt.Errorf("initialize audit log schema: %w", err)
	}
	return nil
}

// Record implements auth.Recorder.
func (w *SQLWriter) Record(ctx context.Context, e auth.Entry) {
	if err := w.write(ctx, e); err != nil {
		logging.FromContext(ctx).Error("audit log write failed", "error", err.Error())
	}
}

func (w *SQLWriter) write(ctx context.Context, e auth.Entry) error {
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	query := `INSERT INTO audit_log(audit_id, caller_id, required_role, allowed, reason, decided_at)
	VALUES(?, ?, ?, ?, ?, ?)`
	if w.dialect == "postgres" {
		query = `INSERT INTO audit_log(audit_id, caller_id, required_role, allowed, reason, decided_at)
		VALUES($1, $2, $3, $4, $5, $6)`
	}

	_, err := w.db.ExecContext(ctx, query,
		e.ID,
		e.CallerID,
		e.Required.String(),
		e.Allowed,
		string(e.Reason),
		at,
	)
	if err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

// Record is one persisted audit row as returned by Recent.
type Record struct {
	AuditID      string    `json:"audit_id"`
	CallerID     int64     `json:"caller_id"`
	RequiredRole string    `json:"required_role"`
	Allowed      bool      `json:"allowed"`
	Reason       string    `json:"reason"`
	DecidedAt    time.Time `json:"decided_at"`
}

// Recent returns the latest limit entries, newest first.
func (w *SQLWriter) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT audit_id, caller_id, required_role, allowed, reason, decided_at
	FROM audit_log ORDER BY id DESC LIMIT ?`
	if w.dialect == "postgres" {
		query = `SELECT audit_id, caller_id, required_role, allowed, reason, decided_at
		FROM audit_log ORDER BY id DESC LIMIT $1`
	}

	rows, err := w.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	out := make([]Record, 0, limit)
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.AuditID, &r.CallerID, &r.RequiredRole, &r.Allowed, &r.Reason, &r.DecidedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (w *SQLWriter) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}
