package xtrace

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xgate/pkg/context/xctx"
)

// SyncContext 把 span 的 traceId/spanId/flags 写入 xctx
//
// 日志 EnrichHandler 只读取 xctx，入站装饰创建 server span 后调用本函数。
// 无效 span 或 nil ctx 原样返回。
func SyncContext(ctx context.Context, sc trace.SpanContext) context.Context {
	if ctx == nil || !sc.IsValid() {
		return ctx
	}
	next, err := xctx.WithTrace(ctx, xctx.Trace{
		TraceID:    sc.TraceID().String(),
		SpanID:     sc.SpanID().String(),
		TraceFlags: sc.TraceFlags().String(),
	})
	if err != nil {
		return ctx
	}
	return next
}
