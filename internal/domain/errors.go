package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeValidation         ErrorType = "validation"
	ErrorTypeConfiguration      ErrorType = "configuration"
	ErrorTypeRasterization      ErrorType = "rasterization"
	ErrorTypeExtraction         ErrorType = "extraction"
	ErrorTypeRender             ErrorType = "render"
	ErrorTypeBackendUnavailable ErrorType = "backend_unavailable"
	ErrorTypeIO                 ErrorType = "io"
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Fatal reports whether an error of this type must abort the whole run.
func (e *DomainError) Fatal() bool {
	return e.Type == ErrorTypeConfiguration || e.Type == ErrorTypeBackendUnavailable
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func ConfigurationError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfiguration, message, err)
}

func RasterizationError(message string, err error) *DomainError {
	return NewError(ErrorTypeRasterization, message, err)
}

func ExtractionError(message string, err error) *DomainError {
	return NewError(ErrorTypeExtraction, message, err)
}

func RenderError(message string, err error) *DomainError {
	return NewError(ErrorTypeRender, message, err)
}

func BackendUnavailableError(message string, err error) *DomainError {
	return NewError(ErrorTypeBackendUnavailable, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

// IsType reports whether err, or any error it wraps, is a DomainError of type t.
func IsType(err error, t ErrorType) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type == t
	}
	return false
}

// IsFatal reports whether err carries a run-fatal domain error.
func IsFatal(err error) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Fatal()
	}
	return false
}
