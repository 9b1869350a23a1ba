package blacklist

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	// Register Postgres SQL driver.
	_ "github.com/lib/pq"
	// Register SQLite SQL driver.
	_ "modernc.org/sqlite"

	"github.com/dresos/duckbot/internal/metrics"
)

type sqlDialect string

const (
	dialectSQLite   sqlDialect = "sqlite"
	dialectPostgres sqlDialect = "postgres"
)

// SQLStore persists the blacklist in SQL backends (SQLite or Postgres) so it
// survives restarts. Mutations rely on the database for serialization.
type SQLStore struct {
	db      *sql.DB
	dialect sqlDialect
}

// NewSQLiteStore creates a SQLite-backed blacklist.
// dsn can be a file path (e.g. /var/lib/duckbot/blacklist.db) or SQLite DSN.
func NewSQLiteStore(dsn string) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "duckbot-blacklist.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite blacklist store: %w", err)
	}
	store := &SQLStore{db: db, dialect: dialectSQLite}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStore creates a Postgres-backed blacklist.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres blacklist store: %w", err)
	}
	store := &SQLStore{db: db, dialect: dialectPostgres}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLStore) init() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("ping %s blacklist store: %w", s.dialect, err)
	}

	var ddl string
	switch s.dialect {
	case dialectPostgres:
		ddl = `
CREATE TABLE IF NOT EXISTS blacklist (
	caller_id BIGINT PRIMARY KEY,
	seq BIGSERIAL,
	added_at TIMESTAMPTZ NOT NULL
);`
	default:
		ddl = `
CREATE TABLE IF NOT EXISTS blacklist (
	caller_id INTEGER PRIMARY KEY,
	seq INTEGER,
	added_at DATETIME NOT NULL
);`
	}

	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("initialize %s blacklist schema: %w", s.dialect, err)
	}
	s.refreshSizeGauge()
	return nil
}

// Add inserts caller_id. Adding an already-present id is a no-op.
func (s *SQLStore) Add(id int64) error {
	var q string
	switch s.dialect {
	case dialectPostgres:
		q = `INSERT INTO blacklist(caller_id, added_at) VALUES($1, $2) ON CONFLICT (caller_id) DO NOTHING`
	default:
		q = `INSERT INTO blacklist(caller_id, seq, added_at)
VALUES(?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM blacklist), ?)
ON CONFLICT (caller_id) DO NOTHING`
	}
	if _, err := s.db.Exec(q, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("blacklist add: %w", err)
	}
	s.refreshSizeGauge()
	return nil
}

// Remove deletes caller_id. Removing an absent id is a no-op.
func (s *SQLStore) Remove(id int64) error {
	q := s.bind(`DELETE FROM blacklist WHERE caller_id = ?`)
	if _, err := s.db.Exec(q, id); err != nil {
		return fmt.Errorf("blacklist remove: %w", err)
	}
	s.refreshSizeGauge()
	return nil
}

// Contains reports whether caller_id is blacklisted.
func (s *SQLStore) Contains(id int64) (bool, error) {
	q := s.bind(`SELECT 1 FROM blacklist WHERE caller_id = ?`)
	var one int
	err := s.db.QueryRow(q, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("blacklist contains: %w", err)
	}
	return true, nil
}

// List returns all blacklisted ids in insertion order.
func (s *SQLStore) List() ([]int64, error) {
	rows, err := s.db.Query(`SELECT caller_id FROM blacklist ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("blacklist list: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("blacklist list scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the underlying database handle.
func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) refreshSizeGauge() {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM blacklist`).Scan(&n); err == nil {
		metrics.BlacklistSize.Set(float64(n))
	}
}

func (s *SQLStore) bind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var (
		b      strings.Builder
		argNum = 1
	)
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteString(fmt.Sprintf("$%d", argNum))
			argNum++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
