package common

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error taxonomy. Use errors.Is against these marks; never compare messages.
var (
	ErrSourceRead   = errors.New("source read failure")
	ErrGeneration   = errors.New("generation failure")
	ErrParse        = errors.New("parse failure")
	ErrPersistence  = errors.New("persistence failure")
	ErrInvalidInput = errors.New("invalid input")
)

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// SourceReadError marks a loader or naming-convention failure for one file.
func SourceReadError(path string, err error) error {
	return errors.Mark(errors.Wrapf(err, "read %s", path), ErrSourceRead)
}

// GenerationError marks a failed call to the text-generation service.
func GenerationError(err error) error {
	return errors.Mark(errors.Wrap(err, "generate"), ErrGeneration)
}

// ParseError marks a response that could not be turned into a valid record.
func ParseError(err error) error {
	return errors.Mark(errors.Wrap(err, "parse response"), ErrParse)
}

// PersistenceError marks a failure to open or append to the output store.
func PersistenceError(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), ErrPersistence)
}

// InvalidInputError marks a bad flag or configuration value.
func InvalidInputError(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidInput)
}

// IsRetryable reports whether another round trip might produce a different outcome.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrGeneration) || errors.Is(err, ErrParse)
}
