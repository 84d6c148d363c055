package xconn

import "context"

// Completion 写入完成信号，由执行实际写入的阶段调用；可以为 nil
type Completion func(error)

// Next 拦截器之后的下一阶段
type Next interface {
	Read(ctx context.Context, msg any) error
	Write(ctx context.Context, msg any, done Completion) error
	Flush(ctx context.Context) error
}

// Handler 内层处理器，例如请求/响应日志
//
// 实现必须调用 next 才能让消息继续传递。同一 Conn 上的调用不会并发。
type Handler interface {
	Read(ctx context.Context, c *Conn, msg any, next Next) error
	Write(ctx context.Context, c *Conn, msg any, done Completion, next Next) error
	Flush(ctx context.Context, c *Conn, next Next) error
}

// Interceptor 在每次回调周围恢复连接快照
type Interceptor struct {
	delegate Delegate
}

// New 创建拦截器
func New(d Delegate) *Interceptor {
	return &Interceptor{delegate: d}
}

// Delegate 返回内层处理器变体
func (i *Interceptor) Delegate() Delegate {
	return i.delegate
}

// OnRead 恢复快照后处理入站消息
func (i *Interceptor) OnRead(ctx context.Context, c *Conn, msg any, next Next) error {
	scope := c.Snapshot().Restore(ctx)
	defer scope.Close()

	if h, ok := i.delegate.Handler(); ok {
		return h.Read(scope.Context(), c, msg, next)
	}
	return next.Read(scope.Context(), msg)
}

// OnWrite 恢复快照后处理出站消息，done 原样传递
func (i *Interceptor) OnWrite(ctx context.Context, c *Conn, msg any, done Completion, next Next) error {
	scope := c.Snapshot().Restore(ctx)
	defer scope.Close()

	if h, ok := i.delegate.Handler(); ok {
		return h.Write(scope.Context(), c, msg, done, next)
	}
	return next.Write(scope.Context(), msg, done)
}

// OnFlush 恢复快照后刷新
func (i *Interceptor) OnFlush(ctx context.Context, c *Conn, next Next) error {
	scope := c.Snapshot().Restore(ctx)
	defer scope.Close()

	if h, ok := i.delegate.Handler(); ok {
		return h.Flush(scope.Context(), c, next)
	}
	return next.Flush(scope.Context())
}

// ChainFactory 为一个 Conn 构建拦截链
type ChainFactory func(c *Conn) *Interceptor

// Passthrough 未配置 ChainFactory 时使用的拦截链
func Passthrough(*Conn) *Interceptor {
	return New(None())
}

// NextFuncs 用函数组装 Next，nil 字段表示直接成功
type NextFuncs struct {
	ReadFunc  func(ctx context.Context, msg any) error
	WriteFunc func(ctx context.Context, msg any, done Completion) error
	FlushFunc func(ctx context.Context) error
}

var _ Next = NextFuncs{}

// Read 调用 ReadFunc，未设置时返回 nil
func (n NextFuncs) Read(ctx context.Context, msg any) error {
	if n.ReadFunc == nil {
		return nil
	}
	return n.ReadFunc(ctx, msg)
}

// Write 调用 WriteFunc，未设置时以 nil 通知 done 并返回 nil
func (n NextFuncs) Write(ctx context.Context, msg any, done Completion) error {
	if n.WriteFunc == nil {
		if done != nil {
			done(nil)
		}
		return nil
	}
	return n.WriteFunc(ctx, msg, done)
}

// Flush 调用 FlushFunc，未设置时返回 nil
func (n NextFuncs) Flush(ctx context.Context) error {
	if n.FlushFunc == nil {
		return nil
	}
	return n.FlushFunc(ctx)
}
