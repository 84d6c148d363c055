package xtrace

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xgate/pkg/context/xsnap"
)

// Source 追踪上下文来源
//
// 实现必须可被任意 goroutine 上的回调并发使用。
type Source interface {
	// CurrentSpan 返回 ctx 中的活动 span，不存在时第二个返回值为 false
	CurrentSpan(ctx context.Context) (trace.SpanContext, bool)

	// Capture 把 ctx 捕获为可在其他回调中恢复的快照
	Capture(ctx context.Context) *xsnap.Snapshot
}

// NewSource 返回基于 OpenTelemetry context 的 Source
func NewSource() Source {
	return otelSource{}
}

type otelSource struct{}

func (otelSource) CurrentSpan(ctx context.Context) (trace.SpanContext, bool) {
	if ctx == nil {
		return trace.SpanContext{}, false
	}
	sc := trace.SpanContextFromContext(ctx)
	return sc, sc.IsValid()
}

func (otelSource) Capture(ctx context.Context) *xsnap.Snapshot {
	return xsnap.Capture(ctx)
}

// FormatSpanContext 以 "<traceId>/<spanId>" 输出 span 上下文
func FormatSpanContext(sc trace.SpanContext) string {
	return sc.TraceID().String() + "/" + sc.SpanID().String()
}
