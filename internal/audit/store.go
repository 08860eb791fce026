package audit

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS console_audit_log (
	id          UUID PRIMARY KEY,
	action      TEXT NOT NULL,
	severity    TEXT NOT NULL,
	entry_id    TEXT,
	session_id  TEXT,
	ip_address  INET,
	user_agent  TEXT,
	detail      TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS console_audit_log_created_at_idx ON console_audit_log (created_at);
`

const insertSQL = `
INSERT INTO console_audit_log
	(id, action, severity, entry_id, session_id, ip_address, user_agent, detail, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const recentSQL = `
SELECT id::text, action, severity, COALESCE(entry_id, ''), COALESCE(session_id, ''),
	COALESCE(host(ip_address), ''), COALESCE(user_agent, ''), COALESCE(detail, ''), created_at
FROM console_audit_log
ORDER BY created_at DESC
LIMIT $1`

const purgeSQL = `DELETE FROM console_audit_log WHERE created_at < $1`

// Store is a PostgreSQL-backed Recorder and Lister.
type Store struct {
	db DB
}

// NewStore wraps a pool or any DB implementation.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the audit table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("audit schema: %w", err)
	}
	return nil
}

// Record inserts ev.
func (s *Store) Record(ctx context.Context, ev Event) error {
	ev = Complete(ev)
	_, err := s.db.Exec(ctx, insertSQL,
		ev.ID,
		string(ev.Action),
		string(ev.Severity),
		toPgText(ev.EntryID),
		toPgText(ev.SessionID),
		toInet(ev.IPAddress),
		toPgText(ev.UserAgent),
		toPgText(ev.Detail),
		ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	return nil
}

// Recent returns the newest events first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, recentSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var ev Event
		var action, severity string
		if err := rows.Scan(&ev.ID, &action, &severity, &ev.EntryID, &ev.SessionID,
			&ev.IPAddress, &ev.UserAgent, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.Action = Action(action)
		ev.Severity = Severity(severity)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Purge deletes events older than retention and returns how many went.
func (s *Store) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx, purgeSQL, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("purge audit events: %w", err)
	}
	return tag.RowsAffected(), nil
}

// StartRetention purges old events now and then every interval until ctx
// is cancelled. Failures are logged, never fatal.
func (s *Store) StartRetention(ctx context.Context, retention, interval time.Duration) {
	slog.Info("audit retention started", "retention", retention, "interval", interval)

	s.runPurge(ctx, retention)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("audit retention stopped")
			return
		case <-ticker.C:
			s.runPurge(ctx, retention)
		}
	}
}

func (s *Store) runPurge(ctx context.Context, retention time.Duration) {
	start := time.Now()
	purged, err := s.Purge(ctx, retention)
	if err != nil {
		slog.Error("audit purge failed", "error", err)
		return
	}
	slog.Info("purged audit events",
		"events_purged", purged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func toPgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// toInet returns nil for empty or unparsable addresses so the column is NULL.
func toInet(s string) *netip.Addr {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		if ap, apErr := netip.ParseAddrPort(s); apErr == nil {
			a := ap.Addr()
			return &a
		}
		return nil
	}
	return &addr
}
