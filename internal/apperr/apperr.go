package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// 引擎内的统一错误分类。校验错误在发起网络请求前返回；
// 权限与传输错误只有在调用返回后才能确定。
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
)

// ValidationError 本地校验失败，不产生网络请求
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TransportError 网络或服务端失败，不再细分
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport: %s: status %d", e.Op, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// FromStatus 将网关 HTTP 状态码映射到错误分类
func FromStatus(op string, status int) error {
	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	case http.StatusForbidden:
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	default:
		return &TransportError{Op: op, Status: status}
	}
}

// FromNetErr 包装传输层错误（超时、连接失败等）
func FromNetErr(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}
