package xbreaker

import (
	"errors"
	"fmt"
)

// ErrNilFunc 操作函数为 nil
var ErrNilFunc = errors.New("xbreaker: function cannot be nil")

// BreakerError 熔断器拒绝调用时返回的错误
type BreakerError struct {
	Err   error // ErrOpenState 或 ErrTooManyRequests
	Name  string
	State State
}

func (e *BreakerError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("breaker %s: %v", e.Name, e.Err)
	}
	return e.Err.Error()
}

func (e *BreakerError) Unwrap() error {
	return e.Err
}

// wrapBreakerError 只包装本熔断器直接返回的 sentinel，
// 状态从错误推导，不再查询 State()。
func wrapBreakerError(err error, name string) error {
	if err == nil {
		return nil
	}
	var be *BreakerError
	if errors.As(err, &be) {
		return err
	}
	switch err { //nolint:errorlint // 只匹配本熔断器直接返回的 sentinel
	case ErrOpenState:
		return &BreakerError{Err: err, Name: name, State: StateOpen}
	case ErrTooManyRequests:
		return &BreakerError{Err: err, Name: name, State: StateHalfOpen}
	}
	return err
}

// IsOpen 熔断器打开
func IsOpen(err error) bool {
	return errors.Is(err, ErrOpenState)
}

// IsTooManyRequests 半开状态请求过多
func IsTooManyRequests(err error) bool {
	return errors.Is(err, ErrTooManyRequests)
}

// IsBreakerError 熔断器拒绝了调用，可用于与上游错误区分
func IsBreakerError(err error) bool {
	return IsOpen(err) || IsTooManyRequests(err)
}
