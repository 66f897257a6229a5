package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeAlreadyExists     = "ALREADY_EXISTS"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeInvalidOperation  = "INVALID_OPERATION"
	ErrCodeExtraction        = "EXTRACTION_FAILED"
	ErrCodeIndex             = "INDEX_FAILED"
	ErrCodeBrokerUnavailable = "BROKER_UNAVAILABLE"
	ErrCodeAttemptSuperseded = "ATTEMPT_SUPERSEDED"
)

// Validation errors
var (
	ErrInvalidResourceType   = NewDomainError(ErrCodeValidation, "invalid resource type")
	ErrInvalidStorageKind    = NewDomainError(ErrCodeValidation, "invalid storage kind")
	ErrInvalidResourceStatus = NewDomainError(ErrCodeValidation, "invalid resource status")
	ErrInvalidDispatchMode   = NewDomainError(ErrCodeValidation, "invalid dispatch mode")
	ErrMissingRequiredField  = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmptyQuery            = NewDomainError(ErrCodeValidation, "search query cannot be empty")
)

// Not found errors
var (
	ErrResourceNotFound   = NewDomainError(ErrCodeNotFound, "resource not found")
	ErrTranscriptNotFound = NewDomainError(ErrCodeNotFound, "transcript not found")
)

// Already exists errors
var (
	ErrResourceAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "resource already exists")
)

// Operation errors
var (
	ErrAttemptSuperseded    = NewDomainError(ErrCodeAttemptSuperseded, "processing attempt superseded")
	ErrStorageOperationFail = NewDomainError(ErrCodeInternalError, "storage operation failed")
)

// NewExtractionError reports a fatal extraction failure (missing source or
// unsupported format).
func NewExtractionError(message string, cause error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeExtraction, message, cause)
}

// NewIndexError reports an embedding backend or vector store failure.
func NewIndexError(message string, cause error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeIndex, message, cause)
}

// NewBrokerUnavailableError reports that the task broker could not be reached
// at dispatch time.
func NewBrokerUnavailableError(cause error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeBrokerUnavailable, "processing service unavailable", cause)
}

// HasCode reports whether any DomainError in err's chain carries code.
func HasCode(err error, code string) bool {
	var de *DomainError
	for err != nil {
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}
