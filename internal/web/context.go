package web

import (
	"net"
	"net/http"

	"github.com/JonMunkholm/kbconsole/internal/audit"
	"github.com/JonMunkholm/kbconsole/internal/logging"
)

// auditEvent builds an event carrying the request metadata: client IP (after
// TrustedRealIP), user agent and session id.
func auditEvent(r *http.Request, action audit.Action, entryID, detail string) audit.Event {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return audit.Event{
		Action:    action,
		EntryID:   entryID,
		SessionID: logging.SessionID(r.Context()),
		IPAddress: ip,
		UserAgent: r.Header.Get("User-Agent"),
		Detail:    detail,
	}
}

// record writes an audit event. Failures are logged, never returned: an
// audit outage must not block the operator.
func (s *Server) record(r *http.Request, ev audit.Event) {
	if err := s.audit.Record(r.Context(), ev); err != nil {
		logging.FromContext(r.Context()).Error("audit record failed",
			"action", ev.Action,
			"entry_id", ev.EntryID,
			"error", err,
		)
	}
}
