package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind string

const (
	KindValidation         Kind = "VALIDATION_ERROR"
	KindNotFound           Kind = "NOT_FOUND"
	KindCapacityExceeded   Kind = "CAPACITY_EXCEEDED"
	KindDecisionFinalized  Kind = "DECISION_FINALIZED"
	KindUnauthenticated    Kind = "UNAUTHORIZED"
	KindForbidden          Kind = "FORBIDDEN"
	KindAllocationConflict Kind = "ALLOCATION_CONFLICT"
	KindInternal           Kind = "INTERNAL"
)

// Sentinels for errors.Is checks.
var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrCapacityExceeded   = &Error{Kind: KindCapacityExceeded}
	ErrDecisionFinalized  = &Error{Kind: KindDecisionFinalized}
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrAllocationConflict = &Error{Kind: KindAllocationConflict}
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a typed failure carrying a Kind and a caller-facing message.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is matches any *Error with the same Kind, so wrapped errors compare equal to the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation reports a single invalid field.
func Validation(field, message string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: field + ": " + message,
		Fields:  []FieldError{{Field: field, Message: message}},
	}
}

// ValidationFields reports several invalid fields at once.
func ValidationFields(msg string, fields []FieldError) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

func NotFound(entity, id string) *Error {
	return New(KindNotFound, "%s %s not found", entity, id)
}

func CapacityExceeded(format string, args ...any) *Error {
	return New(KindCapacityExceeded, format, args...)
}

func DecisionFinalized(rfqID string) *Error {
	return New(KindDecisionFinalized, "decision for rfq %s is finalized", rfqID)
}

func Unauthenticated() *Error {
	return New(KindUnauthenticated, "authentication required")
}

func Forbidden(action string) *Error {
	return New(KindForbidden, "not permitted to %s", action)
}

func AllocationConflict(format string, args ...any) *Error {
	return New(KindAllocationConflict, format, args...)
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to the HTTP status the transport should answer with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindCapacityExceeded, KindDecisionFinalized:
		return http.StatusConflict
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindAllocationConflict:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the machine-readable code sent to clients for err.
func Code(err error) string {
	return string(KindOf(err))
}
