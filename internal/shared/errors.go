package shared

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks input rejected before any state change.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden indicates the caller lacks the role for the action.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidState indicates a workflow transition that is not allowed.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrDuplicate indicates a unique constraint was hit.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// SafeError carries a message that may be shown to end users as is.
type SafeError interface {
	error
	UserMessage() string
}

// UserSafeMessage renders err for display without leaking internals.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var safe SafeError
	if errors.As(err, &safe) {
		return safe.UserMessage()
	}
	switch {
	case errors.Is(err, ErrValidation):
		return validationDetail(err)
	case errors.Is(err, ErrNotFound):
		return "The requested record could not be found."
	case errors.Is(err, ErrForbidden):
		return "You are not allowed to perform this action."
	case errors.Is(err, ErrInvalidState):
		return stateDetail(err)
	case errors.Is(err, ErrDuplicate):
		return "A record with the same value already exists."
	case errors.Is(err, ErrIdempotencyConflict):
		return "This form was already submitted."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid username or password."
	default:
		return "Something went wrong. Please try again."
	}
}

// validationDetail strips the sentinel prefix from "validation failed: ..." messages.
func validationDetail(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, ErrValidation.Error()+": "); idx >= 0 {
		return capitalize(msg[idx+len(ErrValidation.Error())+2:])
	}
	return "Please correct the highlighted fields."
}

func stateDetail(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, ErrInvalidState.Error()+": "); idx >= 0 {
		return capitalize(msg[idx+len(ErrInvalidState.Error())+2:])
	}
	return "This action is not allowed in the current state."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
