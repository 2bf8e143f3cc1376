package shared

import (
	"errors"
	"maps"
)

// ErrorKind groups domain errors into the categories callers map to responses
type ErrorKind string

const (
	KindValidation          ErrorKind = "VALIDATION"
	KindInvalidState        ErrorKind = "INVALID_STATE"
	KindBusinessRule        ErrorKind = "BUSINESS_RULE"
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindConcurrencyConflict ErrorKind = "CONCURRENCY_CONFLICT"
)

// DomainError represents a domain-level error
type DomainError struct {
	Kind    ErrorKind      `json:"kind"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches on Code when the target carries one, otherwise on Kind.
// This lets errors.Is(err, ErrInvalidState) match every invalid-state error.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if t.Code != "" {
		return e.Code == t.Code
	}
	return e.Kind == t.Kind
}

// WithDetail returns a copy of the error carrying an extra diagnostic field
func (e *DomainError) WithDetail(key string, value any) *DomainError {
	details := make(map[string]any, len(e.Details)+1)
	maps.Copy(details, e.Details)
	details[key] = value
	return &DomainError{Kind: e.Kind, Code: e.Code, Message: e.Message, Details: details}
}

// NewDomainError creates a new domain error
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

func NewValidationError(code, message string) *DomainError {
	return NewDomainError(KindValidation, code, message)
}

func NewInvalidStateError(code, message string) *DomainError {
	return NewDomainError(KindInvalidState, code, message)
}

func NewBusinessRuleError(code, message string) *DomainError {
	return NewDomainError(KindBusinessRule, code, message)
}

func NewNotFoundError(code, message string) *DomainError {
	return NewDomainError(KindNotFound, code, message)
}

func NewConcurrencyError(code, message string) *DomainError {
	return NewDomainError(KindConcurrencyConflict, code, message)
}

// Kind sentinels. They carry no code, so errors.Is matches any error of the kind.
var (
	ErrValidation          = &DomainError{Kind: KindValidation, Message: "Invalid input provided"}
	ErrInvalidState        = &DomainError{Kind: KindInvalidState, Message: "Operation not allowed in current state"}
	ErrBusinessRule        = &DomainError{Kind: KindBusinessRule, Message: "Business rule violated"}
	ErrNotFound            = &DomainError{Kind: KindNotFound, Message: "Resource not found"}
	ErrConcurrencyConflict = &DomainError{Kind: KindConcurrencyConflict, Message: "Resource was modified by another process"}
)

// IsKind reports whether err wraps a DomainError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// AsDomainError unwraps err to a DomainError when possible
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	ok := errors.As(err, &de)
	return de, ok
}
