// Package xsnap 提供请求上下文快照：在某一时刻捕获 context 中的全部值，
// 之后在任意 goroutine 上的回调里重新装载。
//
// # 背景
//
// 网关的读、写、刷新回调可能运行在与请求 goroutine 不同的 goroutine 上
// （ReverseProxy 的定时 flush、Transport 的写循环等），这些回调拿到的 context
// 不携带请求的追踪信息。xsnap 把"当时的上下文"显式保存为 Snapshot，
// 由连接状态持有，回调时通过 Restore 叠加到回调自己的 context 上。
//
// # 使用方式
//
//	snap := xsnap.Capture(r.Context())
//	slot.Store(snap)
//
//	// 之后在任意回调中：
//	scope := slot.Load().Restore(ctx)
//	defer scope.Close()
//	doWork(scope.Context())
//
// # 语义
//
//   - Value 查找优先命中快照，其次命中回调自己的 context
//   - Deadline/Done/Err 始终来自回调自己的 context，快照不会带入已结束请求的取消信号
//   - Scope.Close 之后，该 Scope 派生的 context 不再看到快照中的值
//   - 不同快照之间没有共享状态，恢复 A 不会让 B 的值可见
package xsnap
