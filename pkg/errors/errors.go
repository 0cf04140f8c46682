package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by every AppError.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeConflict           = "CONFLICT"
	CodeNotFound           = "NOT_FOUND"
	CodeForbidden          = "FORBIDDEN"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`

	parent *AppError
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Field)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel an error was derived from via WrapAppError
func (e *AppError) Is(target error) bool {
	return e.parent != nil && target == error(e.parent)
}

// NewAppError creates a new AppError
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Validation creates a 400 error naming the offending input field
func Validation(field, message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Field:   field,
		Status:  http.StatusBadRequest,
	}
}

// Unauthorized creates a 401 error
func Unauthorized(message string, err error) *AppError {
	return NewAppError(CodeUnauthorized, message, http.StatusUnauthorized, err)
}

// Forbidden creates a 403 error
func Forbidden(message string, err error) *AppError {
	return NewAppError(CodeForbidden, message, http.StatusForbidden, err)
}

// NotFound creates a 404 error
func NotFound(message string, err error) *AppError {
	return NewAppError(CodeNotFound, message, http.StatusNotFound, err)
}

// Conflict creates a 409 error
func Conflict(message string, err error) *AppError {
	return NewAppError(CodeConflict, message, http.StatusConflict, err)
}

// Internal creates a 500 error. Storage failures surface through it.
func Internal(message string, err error) *AppError {
	return NewAppError(CodeInternal, message, http.StatusInternalServerError, err)
}

// ServiceUnavailable creates a 503 error
func ServiceUnavailable(message string, err error) *AppError {
	return NewAppError(CodeServiceUnavailable, message, http.StatusServiceUnavailable, err)
}

// Domain-specific errors

var (
	ErrUserNotFound    = NotFound("User not found", nil)
	ErrRideNotFound    = NotFound("Ride not found", nil)
	ErrCarNotFound     = NotFound("Car not found", nil)
	ErrRequestNotFound = NotFound("Passenger request not found", nil)
	ErrReviewNotFound  = NotFound("Review not found", nil)

	ErrOwnRide            = Conflict("Cannot ride your own ride", nil)
	ErrDuplicateRequest   = Conflict("A request for this ride already exists", nil)
	ErrRideFull           = Conflict("Ride has no free seats", nil)
	ErrRequestDecided     = Conflict("Passenger request was already decided", nil)
	ErrCapacityBelowSeats = Conflict("Capacity is below the number of accepted passengers", nil)
	ErrPlacesBelowRide    = Conflict("A ride using this car needs more passenger places", nil)
	ErrDuplicateCar       = Conflict("This car is already registered", nil)
	ErrDuplicateUser      = Conflict("Username is already taken", nil)
	ErrDuplicateReview    = Conflict("Review already exists", nil)
	ErrReviewNotAllowed   = Forbidden("No completed ride links these users", nil)
	ErrNotRideDriver      = Forbidden("Only the driver can change this ride", nil)
	ErrNotRequestRider    = Forbidden("Only the requesting rider can withdraw", nil)
	ErrNotCarOwner        = Forbidden("Car belongs to another user", nil)
	ErrAnonymous          = Unauthorized("An acting user is required", nil)

	ErrGeocoding = ServiceUnavailable("Location lookup failed", nil)
)

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError attempts to convert an error to AppError
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	// Return generic internal error if not an AppError
	return Internal("An unexpected error occurred", err)
}

// HasCode reports whether err is an AppError carrying code
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapAppError copies a sentinel AppError attaching cause. The copy still
// matches the sentinel through errors.Is.
func WrapAppError(appErr *AppError, cause error) *AppError {
	if appErr == nil {
		return nil
	}
	return &AppError{
		Code:    appErr.Code,
		Message: appErr.Message,
		Field:   appErr.Field,
		Status:  appErr.Status,
		Err:     cause,
		parent:  appErr,
	}
}

// Storage passes AppErrors through and turns anything else into a generic
// 500 carrying the cause.
func Storage(err error) error {
	if err == nil || IsAppError(err) {
		return err
	}
	return Internal("Storage failure", err)
}
