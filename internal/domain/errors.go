package domain

import (
	"errors"
	"sort"
	"strings"
)

// Kind classifies errors for the transport layer.
type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindBadRequest     Kind = "bad_request"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
)

// Error is a classified failure with optional field-level detail.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// NewValidationError returns a bad request carrying per-field messages.
func NewValidationError(fields map[string]string) *Error {
	return &Error{Kind: KindBadRequest, Message: "validation failed", Fields: fields}
}

// KindOf extracts the classification of err, if any.
func KindOf(err error) (Kind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

var (
	// ErrUnauthenticated is returned when no valid caller identity is present.
	ErrUnauthenticated = NewError(KindAuthentication, "authentication required")
	// ErrForbidden covers role and ownership mismatches.
	ErrForbidden = NewError(KindAuthorization, "forbidden")
	// ErrOutsideWindow is returned for start/submit outside the admission window.
	ErrOutsideWindow = NewError(KindAuthorization, "test is not open")
	// ErrAttemptCompleted is returned for any action on a completed attempt.
	ErrAttemptCompleted = NewError(KindAuthorization, "attempt already completed")
	// ErrTestStarted is returned for structural edits after the window opened.
	ErrTestStarted = NewError(KindAuthorization, "test already started")
	// ErrPaymentRequired is returned when a paid test has no payment on file.
	ErrPaymentRequired = NewError(KindAuthorization, "payment required")

	ErrTestNotFound      = NewError(KindNotFound, "test not found")
	ErrQuestionNotFound  = NewError(KindNotFound, "question not found")
	ErrAttemptNotFound   = NewError(KindNotFound, "attempt not found")
	ErrPaymentNotFound   = NewError(KindNotFound, "payment not found")
	ErrSessionNotFound   = NewError(KindNotFound, "session not found")
	ErrCandidateNotFound = NewError(KindNotFound, "candidate not found")
	ErrOrderNotFound     = NewError(KindNotFound, "order not found")

	// ErrContactMissing is returned when the candidate has no phone number on file.
	ErrContactMissing = NewError(KindConflict, "contact number missing")
	ErrPaymentExists  = NewError(KindConflict, "payment already exists")
	ErrGrantExists    = NewError(KindConflict, "grant already exists for candidate")
	ErrSessionExists  = NewError(KindConflict, "session year already exists")

	// ErrPaymentNotRequired is returned when ordering a free test.
	ErrPaymentNotRequired = NewError(KindConflict, "test does not require payment")

	// ErrDuplicate is what storage adapters return when a uniqueness constraint rejects a write.
	ErrDuplicate = NewError(KindConflict, "duplicate record")

	ErrEmptyAnswers = NewValidationError(map[string]string{"answers": "must contain at least one answer"})
)
