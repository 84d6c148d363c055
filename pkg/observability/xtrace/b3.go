package xtrace

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xgate/pkg/context/xctx"
)

var errInvalidB3 = errors.New("xtrace: invalid b3 header")

// B3 Zipkin B3 多头传播器
//
// Inject 写出 X-B3-TraceId、X-B3-SpanId、X-B3-Sampled，
// span 有父级时写出 X-B3-ParentSpanId。父级来自 sdk span 的 Parent()，
// 非 sdk span 回退读取 xctx.ParentSpanID。
//
// Extract 同时接受多头格式与单头 b3 格式，单头优先。
// 未携带采样决策时按已采样处理。
type B3 struct{}

var _ propagation.TextMapPropagator = B3{}

// Inject 把 ctx 中的 span 写入 carrier，无效 span 不写任何头
func (B3) Inject(ctx context.Context, carrier propagation.TextMapCarrier) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return
	}
	carrier.Set(HeaderB3TraceID, sc.TraceID().String())
	carrier.Set(HeaderB3SpanID, sc.SpanID().String())
	if sc.IsSampled() {
		carrier.Set(HeaderB3Sampled, "1")
	} else {
		carrier.Set(HeaderB3Sampled, "0")
	}
	if parent := parentSpanID(ctx, sc); parent != "" {
		carrier.Set(HeaderB3ParentSpanID, parent)
	}
}

func parentSpanID(ctx context.Context, sc trace.SpanContext) string {
	if ro, ok := trace.SpanFromContext(ctx).(sdktrace.ReadOnlySpan); ok {
		if p := ro.Parent(); p.SpanID().IsValid() {
			return p.SpanID().String()
		}
	}
	if p := xctx.ParentSpanID(ctx); p != "" && p != sc.SpanID().String() {
		return p
	}
	return ""
}

// Extract 从 carrier 读取 B3 头，解析失败时原样返回 ctx
func (B3) Extract(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	var (
		sc  trace.SpanContext
		err error
	)
	if single := carrier.Get(HeaderB3Single); single != "" {
		sc, err = parseB3Single(single)
	} else {
		sc, err = parseB3Multi(
			carrier.Get(HeaderB3TraceID),
			carrier.Get(HeaderB3SpanID),
			carrier.Get(HeaderB3Sampled),
			carrier.Get(HeaderB3Flags),
		)
	}
	if err != nil || !sc.IsValid() {
		return ctx
	}
	return trace.ContextWithRemoteSpanContext(ctx, sc)
}

// Fields 返回 B3 使用的全部头名
func (B3) Fields() []string {
	return []string{
		HeaderB3TraceID,
		HeaderB3SpanID,
		HeaderB3ParentSpanID,
		HeaderB3Sampled,
		HeaderB3Flags,
		HeaderB3Single,
	}
}

func parseB3Multi(traceID, spanID, sampled, flags string) (trace.SpanContext, error) {
	if traceID == "" || spanID == "" {
		return trace.SpanContext{}, errInvalidB3
	}
	sampledFlag, err := parseB3Sampled(sampled)
	if err != nil {
		return trace.SpanContext{}, err
	}
	if flags == "1" {
		sampledFlag = true
	}
	return buildB3SpanContext(traceID, spanID, sampledFlag)
}

// parseB3Single 解析 {TraceId}-{SpanId}[-{SamplingState}[-{ParentSpanId}]]
//
// 只有采样状态（如 "0"）的单头不携带 ID，视为无效。
func parseB3Single(v string) (trace.SpanContext, error) {
	parts := strings.Split(strings.TrimSpace(v), "-")
	if len(parts) < 2 || len(parts) > 4 {
		return trace.SpanContext{}, errInvalidB3
	}
	sampled := true
	if len(parts) >= 3 {
		switch parts[2] {
		case "1", "d":
			sampled = true
		case "0":
			sampled = false
		default:
			return trace.SpanContext{}, errInvalidB3
		}
	}
	return buildB3SpanContext(parts[0], parts[1], sampled)
}

func parseB3Sampled(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "1", "true", "d":
		return true, nil
	case "0", "false":
		return false, nil
	default:
		return false, errInvalidB3
	}
}

func buildB3SpanContext(traceID, spanID string, sampled bool) (trace.SpanContext, error) {
	traceID = strings.ToLower(strings.TrimSpace(traceID))
	spanID = strings.ToLower(strings.TrimSpace(spanID))

	// 64 位 trace ID 左侧补零到 128 位
	if len(traceID) == 16 {
		traceID = strings.Repeat("0", 16) + traceID
	}
	tid, err := trace.TraceIDFromHex(traceID)
	if err != nil {
		return trace.SpanContext{}, errInvalidB3
	}
	sid, err := trace.SpanIDFromHex(spanID)
	if err != nil {
		return trace.SpanContext{}, errInvalidB3
	}

	var tf trace.TraceFlags
	if sampled {
		tf = trace.FlagsSampled
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: tf,
		Remote:     true,
	}), nil
}
