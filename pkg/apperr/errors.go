package apperr

import (
	"errors"
	"fmt"
)

// AppError ошибка с кодом, который уходит клиенту в событии error
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// Unauthenticated плохой или просроченный токен
func Unauthenticated(msg string) error {
	return New(CodeUnauthenticated, msg)
}

// PermissionDenied пользователь авторизован, но не участник комнаты
func PermissionDenied(msg string) error {
	return New(CodePermissionDenied, msg)
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

func InvalidArgument(msg string) error {
	return New(CodeInvalidArgument, msg)
}

// Integrity нарушение ограничения в базе. Такого быть не должно, поэтому это INTERNAL.
func Integrity(msg string, cause error) error {
	return Wrap(CodeInternal, msg, cause)
}

func Internal(msg string, cause error) error {
	return Wrap(CodeInternal, msg, cause)
}

// CodeOf возвращает код ошибки; для чужих ошибок INTERNAL
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
