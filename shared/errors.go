package shared

import (
	"errors"
	"net/http"
)

const (
	CodeValidationError       = "VALIDATION_ERROR"
	CodeInsufficientCredits   = "INSUFFICIENT_CREDITS"
	CodeRateLimitExceeded     = "RATE_LIMIT_EXCEEDED"
	CodeProviderSubmitFailed  = "PROVIDER_SUBMIT_FAILED"
	CodeProviderPollFailed    = "PROVIDER_POLL_FAILED"
	CodeTimeout               = "TIMEOUT"
	CodeStorageTransferFailed = "STORAGE_TRANSFER_FAILED"
	CodeNotFound              = "NOT_FOUND"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeConflict              = "CONFLICT"
	CodeInternalError         = "INTERNAL_ERROR"
)

// AppError carries an HTTP status, a machine-checkable code and a short
// human-readable message through the service layer up to the fiber error handler.
type AppError struct {
	StatusCode int         `json:"-"`
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Err        error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(statusCode int, code, message string, err error) *AppError {
	return &AppError{StatusCode: statusCode, Code: code, Message: message, Err: err}
}

func NewBadRequestError(err error, message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeValidationError, message, err)
}

func NewUnauthorizedError(err error, message string) *AppError {
	return NewAppError(http.StatusUnauthorized, CodeUnauthorized, message, err)
}

func NewForbiddenError(message string) *AppError {
	return NewAppError(http.StatusForbidden, CodeForbidden, message, nil)
}

func NewNotFoundError(message string) *AppError {
	return NewAppError(http.StatusNotFound, CodeNotFound, message, nil)
}

func NewConflictError(err error, message string) *AppError {
	return NewAppError(http.StatusConflict, CodeConflict, message, err)
}

func NewInsufficientCreditsError(message string) *AppError {
	return NewAppError(http.StatusPaymentRequired, CodeInsufficientCredits, message, nil)
}

// NewRateLimitError reports a blocked identifier. resetTime is the
// human-readable estimate rounded to the nearest minute.
func NewRateLimitError(message, resetTime string) *AppError {
	return &AppError{
		StatusCode: http.StatusTooManyRequests,
		Code:       CodeRateLimitExceeded,
		Message:    message,
		Data:       map[string]string{"reset_time": resetTime},
	}
}

func NewProviderSubmitError(err error, message string) *AppError {
	return NewAppError(http.StatusBadGateway, CodeProviderSubmitFailed, message, err)
}

func NewInternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeInternalError, "Internal Server Error", err)
}

// GetAppError unwraps err down to an *AppError if one is present.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
