package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Draw pipeline error codes. Every code except AUDIT_PERSISTENCE_ERROR aborts
// a draw before any winners exist.
const (
	CodeConfiguration      = "CONFIGURATION_ERROR"
	CodeInvalidWeight      = "INVALID_WEIGHT"
	CodeNoPositiveWeight   = "NO_POSITIVE_WEIGHT"
	CodeUniqueKeyMissing   = "UNIQUE_KEY_MISSING"
	CodeAuditPersistence   = "AUDIT_PERSISTENCE_ERROR"
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeInternal           = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

var (
	ErrConfiguration      = NewError(CodeConfiguration, "invalid draw configuration", http.StatusBadRequest)
	ErrInvalidWeight      = NewError(CodeInvalidWeight, "invalid weight", http.StatusUnprocessableEntity)
	ErrNoPositiveWeight   = NewError(CodeNoPositiveWeight, "no candidate has a positive weight", http.StatusUnprocessableEntity)
	ErrUniqueKeyMissing   = NewError(CodeUniqueKeyMissing, "unique key column not found in population", http.StatusBadRequest)
	ErrAuditPersistence   = NewError(CodeAuditPersistence, "failed to persist audit record", http.StatusInternalServerError)
	ErrValidation         = NewError(CodeValidation, "validation failed", http.StatusBadRequest)
	ErrNotFound           = NewError(CodeNotFound, "resource not found", http.StatusNotFound)
	ErrInternal           = NewError(CodeInternal, "internal server error", http.StatusInternalServerError)
	ErrServiceUnavailable = NewError(CodeServiceUnavailable, "service unavailable", http.StatusServiceUnavailable)
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type FatalError interface {
	error
	IsFatal() bool
}

type Error struct {
	Code      string
	Message   string
	Status    int
	Details   map[string]interface{}
	Cause     error
	retryable *bool
}

func NewError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	msg := e.Message

	if len(e.Details) > 0 {
		if detailMsg, ok := e.Details["message"].(string); ok && detailMsg != "" {
			msg = detailMsg
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Code so errors.Is(err, ErrConfiguration) works for any
// derived copy.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func (e *Error) IsRetryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	if e.Cause != nil {
		var retryableErr RetryableError
		if errors.As(e.Cause, &retryableErr) {
			return retryableErr.IsRetryable()
		}
	}
	return e.Code == CodeServiceUnavailable
}

// IsFatal reports whether the draw must be aborted. Audit persistence is the
// only non-fatal failure: winners exist, they are just unaudited.
func (e *Error) IsFatal() bool {
	if e.retryable != nil {
		return !*e.retryable
	}
	return e.Code != CodeAuditPersistence && e.Code != CodeServiceUnavailable
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

func (e *Error) WithMessage(format string, args ...interface{}) *Error {
	return e.WithDetail("message", fmt.Sprintf(format, args...))
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	err.Details = details
	return &err
}

func (e *Error) WithDetails(details map[string]interface{}) *Error {
	err := *e
	err.Details = details
	return &err
}

func (e *Error) AsRetryable() *Error {
	err := *e
	retryable := true
	err.retryable = &retryable
	return &err
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

func hasCode(err error, code string) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func IsConfiguration(err error) bool    { return hasCode(err, CodeConfiguration) }
func IsInvalidWeight(err error) bool    { return hasCode(err, CodeInvalidWeight) }
func IsNoPositiveWeight(err error) bool { return hasCode(err, CodeNoPositiveWeight) }
func IsUniqueKeyMissing(err error) bool { return hasCode(err, CodeUniqueKeyMissing) }
func IsAuditPersistence(err error) bool { return hasCode(err, CodeAuditPersistence) }
func IsNotFound(err error) bool         { return hasCode(err, CodeNotFound) }
func IsValidation(err error) bool       { return hasCode(err, CodeValidation) }

func ToHTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// ErrorResponse is the JSON body returned for failed API calls.
type ErrorResponse struct {
	Error     string                 `json:"error"`
	ErrorCode string                 `json:"error_code"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

func ToErrorResponse(err error) ErrorResponse {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal.WithCause(err)
	}

	response := ErrorResponse{
		Error:     appErr.Error(),
		ErrorCode: appErr.Code,
	}

	if len(appErr.Details) > 0 {
		response.Details = appErr.Details
	}

	return response
}
