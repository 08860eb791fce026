package web

// errors.go provides unified error response handling for the web layer.
//
// Errors are logged with full technical detail and the request id, then
// returned as a user message with an action and a code. Console fragment
// requests get an alert fragment the script drops into #alerts; API clients
// get JSON.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/kbconsole/internal/console"
	"github.com/JonMunkholm/kbconsole/internal/logging"
	"github.com/JonMunkholm/kbconsole/internal/web/templates"
)

// ErrorResponse is the JSON body of an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes the mapped user message with the status
// chosen by statusFor.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := userMessage(err)

	logger := logging.FromContext(r.Context())
	log := logger.Warn
	if status >= http.StatusInternalServerError {
		log = logger.Error
	}
	log("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	if wantsJSON(r) {
		respondErrorJSON(w, msg, status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); err != nil {
		logger.Error("render error alert", "error", err)
	}
}

func respondErrorJSON(w http.ResponseWriter, msg console.UserMessage, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// userMessage extends console.MapError with the errors only the web layer
// produces.
func userMessage(err error) console.UserMessage {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, ErrSessionRequired):
		return console.UserMessage{
			Message: "Your admin session has expired",
			Action:  "Request a new admin link",
			Code:    "SES001",
		}
	case errors.As(err, &tooLarge):
		return console.UserMessage{
			Message: "The attachment is too large",
			Action:  "Choose a smaller file",
			Code:    "SAV002",
		}
	case errors.Is(err, errBadForm):
		return console.UserMessage{
			Message: "The form could not be read",
			Action:  "Reload the page and submit again",
			Code:    "VAL002",
		}
	}
	return console.MapError(err)
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var (
		fieldErr *console.FieldError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.Is(err, ErrSessionRequired):
		return http.StatusUnauthorized
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &fieldErr), errors.Is(err, console.ErrUnknownField), errors.Is(err, errBadForm):
		return http.StatusBadRequest
	case errors.Is(err, console.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, console.ErrTooManySaves):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, console.ErrBackendRejected), errors.Is(err, console.ErrBackendUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
