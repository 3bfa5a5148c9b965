// Package audit implements an append-only log of every lifecycle and
// router mutation command the gateway executes (SPEC_FULL.md §12,
// supplementing §6.4 "persisted state" with an audit trail the
// distilled spec didn't call for but the teacher treats as a hard
// requirement for anything that mutates state).
//
// Grounded on kubilitics-backend/internal/audit/audit.go's
// CreateEntry/RequestInfo/ActionFromRequest shape and
// internal/models/audit_log.go's AuditLogEntry, narrowed from the
// teacher's cluster/resource/user domain to the gateway's
// service/virtualServer/flag domain, and persisted with
// modernc.org/sqlite + jmoiron/sqlx (this gateway's chosen pure-Go
// SQLite driver, in place of the teacher's cgo mattn/go-sqlite3) rather
// than in-memory, so the trail survives a restart (spec §6.4).
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Entry is one recorded mutation command (spec §12 "audit log of
// lifecycle/router mutation commands"). Append-only: no Update or Delete
// method exists on Store.
type Entry struct {
	ID            string    `db:"id"`
	Timestamp     time.Time `db:"timestamp"`
	Action        string    `db:"action"`
	ServiceName   string    `db:"service_name"`
	VirtualServer string    `db:"virtual_server"`
	StatusCode    int       `db:"status_code"`
	RequestIP     string    `db:"request_ip"`
	Details       string    `db:"details"`
}

// Store persists Entries to a local SQLite database.
type Store struct {
	db *sqlx.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id TEXT PRIMARY KEY,
	timestamp DATETIME NOT NULL,
	action TEXT NOT NULL,
	service_name TEXT,
	virtual_server TEXT,
	status_code INTEGER,
	request_ip TEXT,
	details TEXT
);
CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_log_service_name ON audit_log(service_name);
`

// Open connects to (and migrates) the audit database at dbPath.
func Open(dbPath string) (*Store, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect audit db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite + WAL: one writer, matches the teacher's append-only-from-one-path usage
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// Record appends e to the log, assigning an ID/Timestamp if unset.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	const query = `INSERT INTO audit_log
		(id, timestamp, action, service_name, virtual_server, status_code, request_ip, details)
		VALUES (:id, :timestamp, :action, :service_name, :virtual_server, :status_code, :request_ip, :details)`
	_, err := s.db.NamedExecContext(ctx, query, e)
	return err
}

// Filter narrows a List query; zero-valued fields are unconstrained.
type Filter struct {
	Action      string
	ServiceName string
	Since       time.Time
	Limit       int
}

// List returns entries matching filter, most recent first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `SELECT id, timestamp, action, service_name, virtual_server, status_code, request_ip, details
		FROM audit_log WHERE 1=1`
	args := []any{}
	if filter.Action != "" {
		query += " AND action = ?"
		args = append(args, filter.Action)
	}
	if filter.ServiceName != "" {
		query += " AND service_name = ?"
		args = append(args, filter.ServiceName)
	}
	if !filter.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.Since)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	var entries []Entry
	if err := s.db.SelectContext(ctx, &entries, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	return entries, nil
}
