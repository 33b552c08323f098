package services

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindValidation   ErrorKind = "value_error"
	KindConflict     ErrorKind = "conflict"
	KindForbidden    ErrorKind = "forbidden"
	KindUnauthorized ErrorKind = "unauthorized"
	// KindIntegrity marks corrupted stored data, e.g. an unknown target tag
	// or an association pointing at a row that no longer exists.
	KindIntegrity ErrorKind = "integrity_fault"
	KindInternal  ErrorKind = "internal"
)

// ServiceError is the error type returned by every service operation that
// fails for a domain reason. Loc names the offending input, as in
// {"loc": ["body", "email"], "msg": ..., "type": ...}.
type ServiceError struct {
	Kind    ErrorKind
	Loc     []string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels below, so errors.Is(err, ErrNotFound) works
// for any not-found error.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	if t.Message == "" {
		return t.Kind == e.Kind
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

var (
	ErrNotFound     = &ServiceError{Kind: KindNotFound}
	ErrValidation   = &ServiceError{Kind: KindValidation}
	ErrConflict     = &ServiceError{Kind: KindConflict}
	ErrForbidden    = &ServiceError{Kind: KindForbidden}
	ErrUnauthorized = &ServiceError{Kind: KindUnauthorized}
	ErrIntegrity    = &ServiceError{Kind: KindIntegrity}
	ErrInternal     = &ServiceError{Kind: KindInternal}
)

func NotFound(loc, msg string) *ServiceError {
	return &ServiceError{Kind: KindNotFound, Loc: splitLoc(loc), Message: msg}
}

func Validation(loc, msg string) *ServiceError {
	return &ServiceError{Kind: KindValidation, Loc: splitLoc(loc), Message: msg}
}

func Conflict(loc, msg string) *ServiceError {
	return &ServiceError{Kind: KindConflict, Loc: splitLoc(loc), Message: msg}
}

func Forbidden(msg string) *ServiceError {
	return &ServiceError{Kind: KindForbidden, Message: msg}
}

func Unauthorized(msg string) *ServiceError {
	return &ServiceError{Kind: KindUnauthorized, Message: msg}
}

func Integrity(msg string, err error) *ServiceError {
	return &ServiceError{Kind: KindIntegrity, Message: msg, Err: err}
}

func Internal(msg string, err error) *ServiceError {
	return &ServiceError{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the kind of a ServiceError anywhere in err's chain, or
// KindInternal for anything else.
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

func splitLoc(loc string) []string {
	if loc == "" {
		return nil
	}
	return strings.Split(loc, ".")
}
