package utils

import (
	"fmt"
	"net/http"
)

// AppError is an expected, user-facing failure. Its message is safe to send
// to the client as is.
type AppError struct {
	StatusCode int
	Status     string
	Message    string
}

func NewAppError(message string, statusCode int) *AppError {
	status := "error"
	if statusCode >= 400 && statusCode < 500 {
		status = "fail"
	}
	return &AppError{StatusCode: statusCode, Status: status, Message: message}
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

func BadRequest(message string) *AppError   { return NewAppError(message, http.StatusBadRequest) }
func Unauthorized(message string) *AppError { return NewAppError(message, http.StatusUnauthorized) }
func Forbidden(message string) *AppError    { return NewAppError(message, http.StatusForbidden) }
func NotFound(message string) *AppError     { return NewAppError(message, http.StatusNotFound) }
func Conflict(message string) *AppError     { return NewAppError(message, http.StatusConflict) }
