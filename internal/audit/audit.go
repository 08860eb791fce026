// Package audit records console mutations (saves, deletes, admin access).
//
// Events go to PostgreSQL when a database is configured and to the
// structured log otherwise. Old rows are purged by a retention job.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Action is the kind of audited operation.
type Action string

const (
	ActionEntrySave    Action = "entry_save"
	ActionEntryDelete  Action = "entry_delete"
	ActionTokenIssued  Action = "token_issued"
	ActionSessionOpen  Action = "session_open"
	ActionDeleteFailed Action = "entry_delete_failed"
)

// Severity ranks actions for review.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// severityOf returns the severity recorded for an action.
func severityOf(a Action) Severity {
	switch a {
	case ActionEntryDelete:
		return SeverityHigh
	case ActionEntrySave, ActionTokenIssued:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Event is one audit row.
type Event struct {
	ID        string    `json:"id"`
	Action    Action    `json:"action"`
	Severity  Severity  `json:"severity"`
	EntryID   string    `json:"entryId,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Recorder persists events.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Lister reads recent events back.
type Lister interface {
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// Complete fills ID, Severity and CreatedAt when unset.
func Complete(ev Event) Event {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Severity == "" {
		ev.Severity = severityOf(ev.Action)
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	return ev
}

// LogRecorder writes events to slog. Used when no database is configured.
type LogRecorder struct {
	Logger *slog.Logger
}

// Record logs ev at info level.
func (r LogRecorder) Record(ctx context.Context, ev Event) error {
	ev = Complete(ev)
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "audit",
		"audit_id", ev.ID,
		"action", ev.Action,
		"severity", ev.Severity,
		"entry_id", ev.EntryID,
		"session_id", ev.SessionID,
		"ip", ev.IPAddress,
		"detail", ev.Detail,
	)
	return nil
}
