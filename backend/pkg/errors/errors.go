package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeOracle represents topic oracle (extraction LLM) errors
	ErrorTypeOracle ErrorType = "oracle"
	// ErrorTypeStorage represents database errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeLLM represents chat/judge LLM errors
	ErrorTypeLLM ErrorType = "llm"
	// ErrorTypeAuth represents authentication errors
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Auth errors

// ErrUserExists is returned when registering a username that is taken
var ErrUserExists = NewBaseError(ErrorTypeAuth, "user already exists", nil)

// ErrInvalidCredentials is returned when a login attempt fails
var ErrInvalidCredentials = NewBaseError(ErrorTypeAuth, "invalid credentials", nil)

// Storage errors

// ErrMessageNotFound is returned when no message matches the given criteria
var ErrMessageNotFound = NewBaseError(ErrorTypeStorage, "message not found", nil)

// NewStorageError wraps a database error; storage failures are fatal to the
// calling operation and must be surfaced, never swallowed.
func NewStorageError(op string, err error) *BaseError {
	return NewBaseError(ErrorTypeStorage, op, err)
}

// Oracle errors

// ErrOracleResponseInvalid is returned when the oracle output cannot be
// interpreted as a list of topic candidates even after tolerant parsing.
var ErrOracleResponseInvalid = NewBaseError(ErrorTypeOracle, "oracle returned unparseable response", nil)

// NewOracleError wraps a failure from the extraction oracle
func NewOracleError(message string, err error) *BaseError {
	return NewBaseError(ErrorTypeOracle, message, err)
}

// Is re-exports errors.Is so callers need only one errors import
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// IsType reports whether err (or anything it wraps) carries the given type
func IsType(err error, t ErrorType) bool {
	var base *BaseError
	if errors.As(err, &base) {
		return base.Type == t
	}
	return false
}
