package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so sentinel comparisons survive Clone and Wrap.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e != nil && e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors. The first block is the enrollment engine's contention
// taxonomy: all of these are expected outcomes of normal concurrent use, not
// faults.
var (
	ErrDuplicateApplication = New("DUPLICATE_APPLICATION", http.StatusConflict, "a pending application already exists for this institution")
	ErrAlreadyEnrolled      = New("ALREADY_ENROLLED", http.StatusConflict, "student is already enrolled in another institution")
	ErrApplicationVanished  = New("APPLICATION_VANISHED", http.StatusNotFound, "application no longer exists (it may have been processed by another institution)")
	ErrRegistrationReviewed = New("REGISTRATION_REVIEWED", http.StatusConflict, "registration has already been reviewed")

	ErrNotFound         = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict         = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation       = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrStoreUnavailable = New("STORE_UNAVAILABLE", http.StatusServiceUnavailable, "storage unavailable, retry the request")
	ErrInternal         = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss        = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// AlreadyEnrolled builds an ALREADY_ENROLLED error naming the institution
// that holds the student's active enrollment.
func AlreadyEnrolled(institutionName string) *Error {
	if institutionName == "" {
		institutionName = "another institution"
	}
	return Clone(ErrAlreadyEnrolled, fmt.Sprintf("student is already enrolled in %s", institutionName))
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
