package errors

import (
	"fmt"
)

// Code represents the category of an operator-facing failure
type Code string

const (
	// CodePrecondition indicates a missing external dependency or an unmet prerequisite
	CodePrecondition Code = "PRECONDITION"

	// CodeResourceExhausted indicates no free port could be found in the probe window
	CodeResourceExhausted Code = "RESOURCE_EXHAUSTED"

	// CodeRetrieval indicates a status or command call returned empty or unparseable output
	CodeRetrieval Code = "RETRIEVAL"

	// CodeValidation indicates invalid operator input
	CodeValidation Code = "VALIDATION"

	// CodeDegraded indicates a capability is unavailable and a fallback is in effect
	CodeDegraded Code = "DEGRADED"

	// CodeCommand indicates an external command failed
	CodeCommand Code = "COMMAND"

	// CodeConfig indicates configuration errors
	CodeConfig Code = "CONFIG"
)

// Error is a coded error carrying the failing operation and its cause
type Error struct {
	Code    Code                   `json:"code"`
	Op      string                 `json:"op,omitempty"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// New creates a new Error
func New(code Code, op, message string) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// Newf creates a new Error with a formatted message
func Newf(code Code, op, format string, args ...interface{}) *Error {
	return New(code, op, fmt.Sprintf(format, args...))
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithCause attaches the underlying error
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsFatal reports whether the error must halt the calling operation.
// Retrieval errors only affect the current poll and degradations are warnings.
func (e *Error) IsFatal() bool {
	switch e.Code {
	case CodeRetrieval, CodeDegraded:
		return false
	default:
		return true
	}
}
