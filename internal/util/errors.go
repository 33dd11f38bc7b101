package util

import (
	"errors"
	"net/http"
)

// AppError 业务错误，携带 HTTP 状态码，由控制器统一映射成响应
type AppError struct {
	Code    int
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

func NewValidationError(message string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: message}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: message}
}

func NewConflictError(message string) *AppError {
	return &AppError{Code: http.StatusConflict, Message: message}
}

// NewDependencyError 外部依赖（存储/PDF/邮件）失败
func NewDependencyError(message string) *AppError {
	return &AppError{Code: http.StatusBadGateway, Message: message}
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func IsValidation(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == http.StatusBadRequest
}

func IsNotFound(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == http.StatusNotFound
}

func IsConflict(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == http.StatusConflict
}

func IsDependency(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == http.StatusBadGateway
}
