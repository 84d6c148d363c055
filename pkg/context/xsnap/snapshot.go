package xsnap

import (
	"context"
	"sync/atomic"
	"time"
)

// Snapshot 某一时刻的 context 值集合
//
// 只保留值链，不保留取消信号。Snapshot 创建后不可变，可以被多个回调并发恢复。
type Snapshot struct {
	values     context.Context
	capturedAt time.Time
	active     atomic.Int32
}

// Capture 捕获 ctx 当前的全部值
//
// ctx 为 nil 时返回一个空快照，恢复空快照等价于不做任何事。
func Capture(ctx context.Context) *Snapshot {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Snapshot{
		values:     context.WithoutCancel(ctx),
		capturedAt: time.Now(),
	}
}

// Value 直接从快照中读取值，nil 快照返回 nil
func (s *Snapshot) Value(key any) any {
	if s == nil {
		return nil
	}
	return s.values.Value(key)
}

// CapturedAt 返回捕获时间
func (s *Snapshot) CapturedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.capturedAt
}

// Active 返回当前尚未释放的 Scope 数量
func (s *Snapshot) Active() int {
	if s == nil {
		return 0
	}
	return int(s.active.Load())
}

// Restore 把快照叠加到 base 上，返回必须 Close 的 Scope
//
// nil 快照同样返回有效的 Scope，其 Context 就是 base。
// base 为 nil 时使用 context.Background()。
func (s *Snapshot) Restore(base context.Context) *Scope {
	if base == nil {
		base = context.Background()
	}
	sc := &Scope{snap: s}
	if s == nil {
		sc.ctx = base
		return sc
	}
	s.active.Add(1)
	sc.ctx = &restoredContext{Context: base, scope: sc}
	return sc
}

// Scope 一次恢复的作用域
type Scope struct {
	snap   *Snapshot
	ctx    context.Context
	closed atomic.Bool
}

// Context 返回作用域内可见的 context
func (sc *Scope) Context() context.Context {
	return sc.ctx
}

// Close 释放作用域，可重复调用
func (sc *Scope) Close() {
	if !sc.closed.CompareAndSwap(false, true) {
		return
	}
	if sc.snap != nil {
		sc.snap.active.Add(-1)
	}
}

// Closed 报告作用域是否已释放
func (sc *Scope) Closed() bool {
	return sc.closed.Load()
}

// restoredContext 值查找先命中快照，取消语义来自 base
type restoredContext struct {
	context.Context
	scope *Scope
}

func (c *restoredContext) Value(key any) any {
	if !c.scope.closed.Load() {
		if v := c.scope.snap.values.Value(key); v != nil {
			return v
		}
	}
	return c.Context.Value(key)
}
