package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEntryNotFound is returned when an id is not in the store or the
	// backend answers 404.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrUnknownField is returned for a sort field outside Fields.
	ErrUnknownField = errors.New("unknown sort field")

	// ErrBackendRejected is returned when the backend answers non-2xx.
	ErrBackendRejected = errors.New("backend rejected request")

	// ErrBackendUnavailable wraps transport failures.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrSavedNotReloaded is returned when a save succeeded but the reload
	// after it did not. The save must not be retried.
	ErrSavedNotReloaded = errors.New("entry saved, reload failed")
)

// FieldError reports a missing required form field.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("required field %q is empty", e.Field)
}

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

// errorMapping pairs a sentinel with its user message. Checked with errors.Is
// in order, before the string patterns.
type errorMapping struct {
	target error
	msg    UserMessage
}

var sentinelMappings = []errorMapping{
	{ErrSavedNotReloaded, UserMessage{
		Message: "The entry was saved but the list could not be refreshed",
		Action:  "Press Reload to see the latest entries",
		Code:    "SAV003",
	}},
	{ErrEntryNotFound, UserMessage{
		Message: "The entry no longer exists",
		Action:  "Reload the list and try again",
		Code:    "ENT001",
	}},
	{ErrTooManySaves, UserMessage{
		Message: "Too many saves in progress",
		Action:  "Wait a moment and submit again",
		Code:    "SAV001",
	}},
	{ErrUnknownField, UserMessage{
		Message: "That column cannot be sorted",
		Action:  "Pick one of the table columns",
		Code:    "SRT001",
	}},
	{ErrBackendRejected, UserMessage{
		Message: "The knowledge base rejected the request",
		Action:  "Check the entry and try again",
		Code:    "API001",
	}},
	{ErrBackendUnavailable, UserMessage{
		Message: "Unable to reach the knowledge base",
		Action:  "Please try again in a few moments",
		Code:    "NET001",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "The request timed out",
		Action:  "Please try again",
		Code:    "NET002",
	}},
	{context.Canceled, UserMessage{
		Message: "The request was cancelled",
		Action:  "Please try again",
		Code:    "NET003",
	}},
}

// errorPatterns catch errors that arrive without a sentinel, matched
// case-insensitively with strings.Contains. First match wins.
var errorPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{"connection refused", UserMessage{
		Message: "Unable to reach the knowledge base",
		Action:  "Please try again in a few moments",
		Code:    "NET001",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again",
	Code:    "ERR000",
}

// MapError converts a technical error into a user message.
func MapError(err error) UserMessage {
	if err == nil {
		return defaultMessage
	}

	var fe *FieldError
	if errors.As(err, &fe) {
		return UserMessage{
			Message: fmt.Sprintf("The %s field is required", fe.Field),
			Action:  "Fill in the field and save again",
			Code:    "VAL001",
		}
	}

	for _, m := range sentinelMappings {
		if errors.Is(err, m.target) {
			return m.msg
		}
	}

	lower := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(lower, p.pattern) {
			return p.msg
		}
	}
	return defaultMessage
}
