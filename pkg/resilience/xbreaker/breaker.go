package xbreaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/xgate/pkg/observability/xlog"
)

// Breaker 熔断器
type Breaker struct {
	name        string
	tripPolicy  TripPolicy
	timeout     time.Duration
	interval    time.Duration
	maxRequests uint32
	logger      xlog.Logger
	onChange    func(name string, from, to State)

	cb *gobreaker.CircuitBreaker[any]
}

// Option 熔断器选项
type Option func(*Breaker)

// WithTripPolicy 熔断策略，默认连续失败 5 次
func WithTripPolicy(p TripPolicy) Option {
	return func(b *Breaker) {
		if p != nil {
			b.tripPolicy = p
		}
	}
}

// WithTimeout Open 转为 HalfOpen 的等待时间，默认 30 秒
func WithTimeout(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithInterval Closed 状态下清零计数的周期，0 表示不清零
func WithInterval(d time.Duration) Option {
	return func(b *Breaker) {
		if d >= 0 {
			b.interval = d
		}
	}
}

// WithMaxRequests HalfOpen 状态下放行的请求数，默认 1
func WithMaxRequests(n uint32) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.maxRequests = n
		}
	}
}

// WithLogger 状态变化写入日志
func WithLogger(logger xlog.Logger) Option {
	return func(b *Breaker) {
		b.logger = logger
	}
}

// WithOnStateChange 状态变化回调
func WithOnStateChange(f func(name string, from, to State)) Option {
	return func(b *Breaker) {
		b.onChange = f
	}
}

// NewBreaker 创建熔断器
func NewBreaker(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:        name,
		tripPolicy:  NewConsecutiveFailures(5),
		timeout:     30 * time.Second,
		maxRequests: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        b.name,
		MaxRequests: b.maxRequests,
		Interval:    b.interval,
		Timeout:     b.timeout,
		ReadyToTrip: b.tripPolicy.ReadyToTrip,
		// 调用方取消不代表上游故障
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: b.stateChanged,
	})
	return b
}

func (b *Breaker) stateChanged(name string, from, to State) {
	if b.logger != nil {
		b.logger.Warn(context.Background(), "breaker state changed",
			slog.String("breaker", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	}
	if b.onChange != nil {
		b.onChange(name, from, to)
	}
}

// Do 在熔断器保护下执行 fn
//
// ctx 已结束时直接返回 ctx 错误，fn 不执行。
func (b *Breaker) Do(ctx context.Context, fn func() error) error {
	if fn == nil {
		return ErrNilFunc
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return wrapBreakerError(err, b.name)
}

// Name 熔断器名称
func (b *Breaker) Name() string { return b.name }

// State 当前状态
func (b *Breaker) State() State { return b.cb.State() }

// Counts 当前计数
func (b *Breaker) Counts() Counts { return b.cb.Counts() }
