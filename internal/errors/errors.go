package errors

import "fmt"

// ErrorCode represents a Drift error code.
type ErrorCode string

const (
	ErrInvalidRequest       ErrorCode = "INVALID_REQUEST"       // 400
	ErrNotFound             ErrorCode = "NOT_FOUND"             // 404
	ErrSessionClosed        ErrorCode = "SESSION_CLOSED"        // 409
	ErrEmptySession         ErrorCode = "EMPTY_SESSION"         // 422
	ErrProfileCorrupt       ErrorCode = "PROFILE_CORRUPT"       // 500
	ErrInferenceUnavailable ErrorCode = "INFERENCE_UNAVAILABLE" // 503
	ErrInternal             ErrorCode = "INTERNAL"              // 500
)

// DriftError represents a structured error with code, status, and details.
type DriftError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *DriftError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *DriftError {
	return &DriftError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing record.
func NewNotFound(identifier string) *DriftError {
	return &DriftError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewSessionClosed creates a 409 error for writes against an already-closed session.
func NewSessionClosed(sessionID string) *DriftError {
	return &DriftError{
		Code:    ErrSessionClosed,
		Status:  409,
		Message: fmt.Sprintf("session already closed: %s", sessionID),
		Details: map[string]any{"session_id": sessionID},
	}
}

// NewEmptySession creates a 422 error for sessions with no recorded events.
func NewEmptySession(sessionID string) *DriftError {
	return &DriftError{
		Code:    ErrEmptySession,
		Status:  422,
		Message: fmt.Sprintf("session has no events: %s", sessionID),
		Details: map[string]any{"session_id": sessionID},
	}
}

// NewProfileCorrupt creates a 500 error for a profile record that failed
// structural validation and could not be repaired.
func NewProfileCorrupt(reason string) *DriftError {
	return &DriftError{
		Code:    ErrProfileCorrupt,
		Status:  500,
		Message: fmt.Sprintf("profile record failed validation: %s", reason),
		Details: map[string]any{"reason": reason},
	}
}

// NewInferenceUnavailable creates a 503 error for a halted inference resource.
func NewInferenceUnavailable(msg string) *DriftError {
	return &DriftError{
		Code:    ErrInferenceUnavailable,
		Status:  503,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *DriftError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &DriftError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a DriftError with the given code.
func Is(err error, code ErrorCode) bool {
	if dErr, ok := err.(*DriftError); ok {
		return dErr.Code == code
	}
	return false
}
