// Package xrun 管理网关进程的生命周期，基于 errgroup。
//
// 任一服务返回错误、收到终止信号或父 context 取消时，
// 所有服务的 ctx 被取消并等待退出。收到信号时 Run 返回 *SignalError，
// 可用 errors.Is(err, ErrSignal) 判断。
//
//	err := xrun.RunWithOptions(ctx, []xrun.Option{xrun.WithLogger(logger)},
//	    xrun.HTTPServer(srv, 10*time.Second),
//	)
//
// HTTPServer 在 ctx 取消后调用 Shutdown，等待在途请求完成。
package xrun
