package services

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrNotEligible      = errors.New("not eligible")
	ErrConflict         = errors.New("conflict")
	ErrNotFound         = errors.New("not found")
	ErrExternalDegraded = errors.New("external service degraded")
)

// ServiceError carries a user-facing message and classifies as one of the
// sentinel kinds above through errors.Is.
type ServiceError struct {
	Kind    error
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ServiceError) Is(target error) bool {
	return e != nil && e.Kind == target
}

func (e *ServiceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func validationErr(format string, args ...any) error {
	return &ServiceError{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func notEligibleErr(format string, args ...any) error {
	return &ServiceError{Kind: ErrNotEligible, Message: fmt.Sprintf(format, args...)}
}

func conflictErr(format string, args ...any) error {
	return &ServiceError{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

func notFoundErr(format string, args ...any) error {
	return &ServiceError{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func degradedErr(service string, err error) error {
	return &ServiceError{Kind: ErrExternalDegraded, Message: service + " unavailable", Err: err}
}

// ErrorKind returns the short classification used in API responses.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrNotEligible):
		return "NotEligible"
	case errors.Is(err, ErrConflict):
		return "Conflict"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrExternalDegraded):
		return "ExternalServiceDegraded"
	default:
		return "InternalError"
	}
}

// PublicMessage returns the message safe to show to a caller. Internal errors
// are reduced to a generic message; the detail belongs in the log.
func PublicMessage(err error) string {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Message
	}
	if ErrorKind(err) != "InternalError" {
		return err.Error()
	}
	return "internal error"
}
