package xbreaker

import "github.com/sony/gobreaker/v2"

type (
	// Counts 统计计数，用于熔断判定
	Counts = gobreaker.Counts

	// State 熔断器状态
	State = gobreaker.State
)

const (
	// StateClosed 正常放行
	StateClosed = gobreaker.StateClosed

	// StateHalfOpen 放行有限请求探测恢复
	StateHalfOpen = gobreaker.StateHalfOpen

	// StateOpen 直接失败
	StateOpen = gobreaker.StateOpen
)

var (
	// ErrTooManyRequests 半开状态下请求过多
	ErrTooManyRequests = gobreaker.ErrTooManyRequests

	// ErrOpenState 熔断器处于打开状态
	ErrOpenState = gobreaker.ErrOpenState
)
