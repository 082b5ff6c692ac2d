package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeNotFound represents an absent entity (404)
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeConflict represents a duplicate name (409)
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeValidation represents an empty or malformed input (400)
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeStoreUnavailable represents lost connectivity to the graph store
	ErrorTypeStoreUnavailable ErrorType = "store_unavailable"
	// ErrorTypeConstraint represents a store-level constraint violation
	ErrorTypeConstraint ErrorType = "constraint_violation"
	// ErrorTypeQuery represents a malformed query; always a programmer error
	ErrorTypeQuery ErrorType = "query"
	// ErrorTypeStore represents any other infrastructure fault
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeUpstream represents a failure of an outbound HTTP fetch
	ErrorTypeUpstream ErrorType = "upstream"
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

// User-input errors

// ErrNotFound is returned when a node, edge, group or plan does not exist
type ErrNotFound struct {
	*BaseError
	Entity string
	Key    string
}

func NewNotFound(entity, key string) *ErrNotFound {
	return &ErrNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("%s not found: %s", entity, key), nil),
		Entity:    entity,
		Key:       key,
	}
}

// ErrConflict is returned when a name already exists
type ErrConflict struct {
	*BaseError
	Entity string
	Key    string
}

func NewConflict(entity, key string) *ErrConflict {
	return &ErrConflict{
		BaseError: NewBaseError(ErrorTypeConflict, fmt.Sprintf("%s name already exists: %s", entity, key), nil),
		Entity:    entity,
		Key:       key,
	}
}

// ErrValidation is returned when a required field is empty or malformed
type ErrValidation struct {
	*BaseError
	Field  string
	Reason string
}

func NewValidation(field, reason string) *ErrValidation {
	return &ErrValidation{
		BaseError: NewBaseError(ErrorTypeValidation, fmt.Sprintf("invalid %s: %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// Store errors

// ErrStoreUnavailable is returned when the graph store cannot be reached
type ErrStoreUnavailable struct {
	*BaseError
}

func NewStoreUnavailable(err error) *ErrStoreUnavailable {
	return &ErrStoreUnavailable{
		BaseError: NewBaseError(ErrorTypeStoreUnavailable, "graph store unavailable", err),
	}
}

// ErrConstraintViolation is returned when a write breaks a schema constraint
type ErrConstraintViolation struct {
	*BaseError
}

func NewConstraintViolation(err error) *ErrConstraintViolation {
	return &ErrConstraintViolation{
		BaseError: NewBaseError(ErrorTypeConstraint, "constraint violation", err),
	}
}

// ErrQuery is returned when the store rejects a statement
type ErrQuery struct {
	*BaseError
	Query string
}

func NewQueryError(query string, err error) *ErrQuery {
	return &ErrQuery{
		BaseError: NewBaseError(ErrorTypeQuery, "query failed", err),
		Query:     query,
	}
}

// ErrStoreFailure is the generic failure a service reports for any
// infrastructure fault; the wrapped error keeps the original message for logs
type ErrStoreFailure struct {
	*BaseError
	Operation string
}

func NewStoreFailure(operation string, err error) *ErrStoreFailure {
	return &ErrStoreFailure{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("%s failed", operation), err),
		Operation: operation,
	}
}

// ErrUpstream is returned when an outbound fetch fails
type ErrUpstream struct {
	*BaseError
	URL string
}

func NewUpstream(url string, err error) *ErrUpstream {
	return &ErrUpstream{
		BaseError: NewBaseError(ErrorTypeUpstream, fmt.Sprintf("fetch failed: %s", url), err),
		URL:       url,
	}
}

// Config Errors

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

type baser interface {
	base() *BaseError
}

func (e *BaseError) base() *BaseError {
	return e
}

// TypeOf returns the type of the outermost BaseError in the chain, or "" if none
func TypeOf(err error) ErrorType {
	var b baser
	if stderrors.As(err, &b) {
		return b.base().Type
	}
	return ""
}

// IsErrorType checks if an error, or anything it wraps, is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		var b baser
		if !stderrors.As(err, &b) {
			return false
		}
		if b.base().Type == errType {
			return true
		}
		err = b.base().Err
	}
	return false
}

// IsNotFound reports whether err is (or wraps) a not-found error
func IsNotFound(err error) bool { return IsErrorType(err, ErrorTypeNotFound) }

// IsConflict reports whether err is (or wraps) a conflict error
func IsConflict(err error) bool { return IsErrorType(err, ErrorTypeConflict) }

// IsValidation reports whether err is (or wraps) a validation error
func IsValidation(err error) bool { return IsErrorType(err, ErrorTypeValidation) }

// IsConstraintViolation reports whether err is (or wraps) a constraint violation
func IsConstraintViolation(err error) bool { return IsErrorType(err, ErrorTypeConstraint) }

// IsStoreUnavailable reports whether err is (or wraps) a connectivity failure
func IsStoreUnavailable(err error) bool { return IsErrorType(err, ErrorTypeStoreUnavailable) }

// HTTPStatus maps an error to the status the HTTP layer should return.
// Only user-input errors get a specific status; everything else is a 500.
func HTTPStatus(err error) int {
	switch TypeOf(err) {
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns a message safe to show to end users. Infrastructure
// errors collapse to a generic text; the original goes to the logs.
func PublicMessage(err error) string {
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	var b baser
	if stderrors.As(err, &b) {
		return b.base().Message
	}
	return err.Error()
}
