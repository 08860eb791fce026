package web

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/kbconsole/internal/audit"
	"github.com/JonMunkholm/kbconsole/internal/console"
	"github.com/JonMunkholm/kbconsole/internal/logging"
	"github.com/JonMunkholm/kbconsole/internal/web/templates"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// handleGenerateToken issues a one-time admin link.
func (s *Server) handleGenerateToken(w http.ResponseWriter, r *http.Request) {
	tok := s.tokens.Issue()
	s.record(r, auditEvent(r, audit.ActionTokenIssued, "", ""))

	link := strings.TrimRight(s.cfg.Server.BaseURL(), "/") + "/admin/" + tok
	writeJSON(w, r, http.StatusOK, map[string]string{"admin_url": link})
}

// handleAdminLink redeems a one-time token, opens a session and sends the
// operator to the console.
func (s *Server) handleAdminLink(w http.ResponseWriter, r *http.Request) {
	if !s.tokens.Redeem(chi.URLParam(r, "token")) {
		logging.FromContext(r.Context()).Warn("admin link rejected", "ip", r.RemoteAddr)
		s.render(w, r, http.StatusForbidden, templates.MessagePage("Admin access", console.UserMessage{
			Message: "This admin link is invalid or has already been used",
			Action:  "Request a new admin link",
			Code:    "SES002",
		}))
		return
	}

	sess := s.openSession(w)
	r = r.WithContext(withSession(r.Context(), sess))
	s.record(r, auditEvent(r, audit.ActionSessionOpen, "", ""))
	logging.FromContext(r.Context()).Info("admin session opened")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleAuditList returns recent audit events, newest first.
func (s *Server) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if s.auditLog == nil {
		writeJSON(w, r, http.StatusOK, []audit.Event{})
		return
	}

	limit := parseIntParam(r, "limit", defaultAuditLimit)
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	events, err := s.auditLog.Recent(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, r, http.StatusOK, events)
}

// handleHealth reports liveness and a few gauges.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":        "ok",
		"sessions":      s.sessions.Len(),
		"admin_tokens":  s.tokens.Len(),
		"saves_active":  s.limiter.Active(),
		"saves_allowed": s.limiter.Capacity(),
	})
}

// handleFile streams an entry's attachment from the backend.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	file, err := s.backend.OpenFile(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer file.Body.Close()

	if file.ContentType != "" {
		w.Header().Set("Content-Type", file.ContentType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	if file.Disposition != "" {
		w.Header().Set("Content-Disposition", file.Disposition)
	}
	if file.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(file.ContentLength, 10))
	}
	if _, err := io.Copy(w, file.Body); err != nil {
		logging.WithFields(r.Context(), "entry_id", id).Warn("file stream interrupted", "error", err)
	}
}

// parseIntParam parses a positive integer query parameter with a default.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
