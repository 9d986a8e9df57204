package domain

import (
	"errors"
	"fmt"
)

const (
	ErrorTypeValidation   = "validation"
	ErrorTypeNotFound     = "not_found"
	ErrorTypeForbidden    = "forbidden"
	ErrorTypeUnauthorized = "unauthorized"
	ErrorTypeConflict     = "conflict"
	ErrorTypeInternal     = "internal"
)

var (
	ErrRentalNotFound       = errors.New("rental not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidPeriod        = errors.New("invalid period")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrReservationContended = errors.New("reservation contended")
	ErrStaleRental          = errors.New("rental was modified concurrently")
)

// AppError is an error with a category the transport layer can map to a status code
type AppError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another AppError by type, or the wrapped error otherwise
func (e *AppError) Is(target error) bool {
	if target == nil {
		return false
	}
	if appErr, ok := target.(*AppError); ok {
		return e.Type == appErr.Type
	}
	return errors.Is(e.Err, target)
}

func NewValidation(message string) *AppError {
	return &AppError{Type: ErrorTypeValidation, Message: message}
}

func NewNotFound(message string) *AppError {
	return &AppError{Type: ErrorTypeNotFound, Message: message}
}

func NewForbidden(message string) *AppError {
	return &AppError{Type: ErrorTypeForbidden, Message: message, Err: ErrForbidden}
}

func NewUnauthorized(message string) *AppError {
	return &AppError{Type: ErrorTypeUnauthorized, Message: message}
}

func NewConflict(message string) *AppError {
	return &AppError{Type: ErrorTypeConflict, Message: message}
}

func NewInternal(message string) *AppError {
	return &AppError{Type: ErrorTypeInternal, Message: message}
}

// Wrap attaches a message to err. An AppError keeps its type, anything else becomes internal.
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{Type: appErr.Type, Message: message, Err: err}
	}
	return &AppError{Type: ErrorTypeInternal, Message: message, Err: err}
}

// NotFoundFrom returns a not-found AppError for one of the not-found sentinels
func NotFoundFrom(sentinel error, id string) *AppError {
	return &AppError{Type: ErrorTypeNotFound, Message: fmt.Sprintf("%s: %s", sentinel.Error(), id), Err: sentinel}
}

// StaleFrom reports a write based on an outdated copy of the rental
func StaleFrom(id string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Message: fmt.Sprintf("rental %s was changed by another request, please reload and retry", id),
		Err:     ErrStaleRental,
	}
}

func IsValidation(err error) bool   { return hasErrorType(err, ErrorTypeValidation) }
func IsNotFound(err error) bool     { return hasErrorType(err, ErrorTypeNotFound) }
func IsForbidden(err error) bool    { return hasErrorType(err, ErrorTypeForbidden) }
func IsUnauthorized(err error) bool { return hasErrorType(err, ErrorTypeUnauthorized) }
func IsConflict(err error) bool     { return hasErrorType(err, ErrorTypeConflict) }

func hasErrorType(err error, errorType string) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// ErrorType returns the AppError category of err, or internal for anything else
func ErrorType(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}
