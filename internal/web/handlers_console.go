package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/kbconsole/internal/audit"
	"github.com/JonMunkholm/kbconsole/internal/console"
	"github.com/JonMunkholm/kbconsole/internal/logging"
	"github.com/JonMunkholm/kbconsole/internal/web/templates"
)

// multipartMemory is how much of a save form is held in memory before
// spilling to temp files.
const multipartMemory = 8 << 20

var errBadForm = errors.New("malformed form")

// render writes c as an HTML response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render failed", "error", err)
	}
}

// renderTable answers a console fragment request with the current table.
func (s *Server) renderTable(w http.ResponseWriter, r *http.Request, ctl *console.Controller) {
	s.render(w, r, http.StatusOK, templates.Table(ctl.Snapshot()))
}

// ensureLoaded loads the store on first use of a session.
func ensureLoaded(r *http.Request, ctl *console.Controller) error {
	if !ctl.Snapshot().LoadedAt.IsZero() {
		return nil
	}
	return ctl.Load(r.Context())
}

// handleIndex renders the console. A failed load still renders the page, with
// an empty table and the error shown above it.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.pageSession(w, r)
	if !ok {
		s.render(w, r, http.StatusUnauthorized, templates.MessagePage("Admin access", userMessage(ErrSessionRequired)))
		return
	}
	r = r.WithContext(withSession(r.Context(), sess))

	data := templates.PageData{}
	if err := ensureLoaded(r, sess.Controller); err != nil {
		logging.FromContext(r.Context()).Error("initial load failed", "error", err)
		msg := userMessage(err)
		data.Alert = &msg
	}
	data.Snapshot = sess.Controller.Snapshot()
	s.render(w, r, http.StatusOK, templates.Page(data))
}

// handleEditPage renders the standalone edit view for /edit/{id}.
func (s *Server) handleEditPage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.pageSession(w, r)
	if !ok {
		s.render(w, r, http.StatusUnauthorized, templates.MessagePage("Admin access", userMessage(ErrSessionRequired)))
		return
	}
	r = r.WithContext(withSession(r.Context(), sess))

	if err := ensureLoaded(r, sess.Controller); err != nil {
		logging.FromContext(r.Context()).Error("load for edit failed", "error", err)
		s.render(w, r, statusFor(err), templates.MessagePage("Edit entry", userMessage(err)))
		return
	}

	entry, err := sess.Controller.Entry(chi.URLParam(r, "id"))
	if err != nil {
		s.render(w, r, statusFor(err), templates.MessagePage("Edit entry", userMessage(err)))
		return
	}
	s.render(w, r, http.StatusOK, templates.EditPage(entry))
}

// handleRows applies the search query.
func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	ctl := sessionFrom(r.Context()).Controller
	ctl.Search(r.URL.Query().Get("q"))
	s.renderTable(w, r, ctl)
}

// handleSort toggles the sort key named in the path.
func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	ctl := sessionFrom(r.Context()).Controller
	field, err := console.ParseField(chi.URLParam(r, "field"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := ctl.ToggleSort(field); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.renderTable(w, r, ctl)
}

// handleReload refetches every entry from the backend.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	ctl := sessionFrom(r.Context()).Controller
	if err := ctl.Load(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.renderTable(w, r, ctl)
}

// handleForm returns an empty entry form.
func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, templates.EntryForm(nil))
}

// handleEntryForm returns the form populated from the store.
func (s *Server) handleEntryForm(w http.ResponseWriter, r *http.Request) {
	ctl := sessionFrom(r.Context()).Controller
	entry, err := ctl.Entry(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, templates.EntryForm(&entry))
}

// handleDelete deletes on the backend, then re-renders the table. A failed
// delete leaves the table as it was.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctl := sessionFrom(r.Context()).Controller
	id := chi.URLParam(r, "id")

	if err := ctl.Delete(r.Context(), id); err != nil {
		s.record(r, auditEvent(r, audit.ActionDeleteFailed, id, err.Error()))
		s.respondError(w, r, err)
		return
	}

	s.record(r, auditEvent(r, audit.ActionEntryDelete, id, ""))
	logging.WithFields(r.Context(), "entry_id", id).Info("entry deleted")
	s.renderTable(w, r, ctl)
}

// handleSave forwards the multipart save form to the backend.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	ctl := sessionFrom(r.Context()).Controller

	req, err := s.parseSaveForm(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	err = ctl.Save(r.Context(), req)
	if err != nil && !errors.Is(err, console.ErrSavedNotReloaded) {
		s.respondError(w, r, err)
		return
	}

	detail := ""
	if req.File != nil {
		detail = "attachment: " + req.File.Filename
	}
	s.record(r, auditEvent(r, audit.ActionEntrySave, req.ID, detail))
	logger := logging.WithFields(r.Context(), "entry_id", req.ID)
	logger.Info("entry saved", "has_file", req.File != nil)

	if err != nil {
		// The save went through; only the reload failed.
		logger.Warn("reload after save failed", "error", err)
		s.render(w, r, http.StatusOK, templates.TableWithWarning(ctl.Snapshot(), userMessage(err)))
		return
	}
	s.renderTable(w, r, ctl)
}

// parseSaveForm reads the save form. The body is capped at the configured
// attachment size plus room for the text fields.
func (s *Server) parseSaveForm(w http.ResponseWriter, r *http.Request) (console.SaveRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Save.MaxFileSize+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return console.SaveRequest{}, err
		}
		return console.SaveRequest{}, fmt.Errorf("%w: %v", errBadForm, err)
	}

	req := console.SaveRequest{
		ID:       r.FormValue("id"),
		Question: r.FormValue("question"),
		Answer:   r.FormValue("answer"),
		Tags:     r.FormValue("tags"),
		Notes:    r.FormValue("notes"),
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return req, nil
	case err != nil:
		return req, fmt.Errorf("%w: %v", errBadForm, err)
	}
	defer file.Close()

	if header.Size > s.cfg.Save.MaxFileSize {
		return req, &http.MaxBytesError{Limit: s.cfg.Save.MaxFileSize}
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return req, fmt.Errorf("read attachment: %w", err)
	}
	if len(data) > 0 {
		req.File = &console.Attachment{Filename: header.Filename, Data: data}
	}
	return req, nil
}
