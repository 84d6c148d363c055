package xctx

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

// =============================================================================
// ID 格式常量（遵循 W3C Trace Context 规范）
// =============================================================================

const (
	// TraceIDSize W3C 规范: 128-bit (16 bytes) -> 32 hex chars
	TraceIDSize = 16

	// SpanIDSize W3C 规范: 64-bit (8 bytes) -> 16 hex chars
	SpanIDSize = 8
)

// =============================================================================
// 日志属性 Key 常量
// =============================================================================

const (
	KeyTraceID       = "traceId"
	KeySpanID        = "spanId"
	KeyParentSpanID  = "parentId"
	KeyTraceFlags    = "traceFlags"
	KeyRequestID     = "requestId"
	KeyCorrelationID = "correlationId"

	// traceFieldCount 追踪字段数量（用于 slog 属性预分配）
	traceFieldCount = 6
)

const (
	keyTraceID       = contextKey("xctx:traceId")
	keySpanID        = contextKey("xctx:spanId")
	keyParentSpanID  = contextKey("xctx:parentId")
	keyTraceFlags    = contextKey("xctx:traceFlags")
	keyRequestID     = contextKey("xctx:requestId")
	keyCorrelationID = contextKey("xctx:correlationId")
)

// withString 是所有 WithXxx 的公共实现
func withString(ctx context.Context, key contextKey, v string) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, key, v), nil
}

// stringValue 是所有 Xxx 读取函数的公共实现
func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// WithTraceID 将 trace ID 注入 context
//
// 如果 ctx 为 nil，返回 ErrNilContext。
func WithTraceID(ctx context.Context, traceID string) (context.Context, error) {
	return withString(ctx, keyTraceID, traceID)
}

// TraceID 从 context 提取 trace ID，不存在返回空字符串
func TraceID(ctx context.Context) string {
	return stringValue(ctx, keyTraceID)
}

// WithSpanID 将 span ID 注入 context
func WithSpanID(ctx context.Context, spanID string) (context.Context, error) {
	return withString(ctx, keySpanID, spanID)
}

// SpanID 从 context 提取 span ID，不存在返回空字符串
func SpanID(ctx context.Context) string {
	return stringValue(ctx, keySpanID)
}

// WithParentSpanID 注入父 span ID
//
// 客户端装饰在创建出站 span 前记录当前 span 作为父级，
// B3 传播器据此写出 X-B3-ParentSpanId。
func WithParentSpanID(ctx context.Context, spanID string) (context.Context, error) {
	return withString(ctx, keyParentSpanID, spanID)
}

// ParentSpanID 从 context 提取父 span ID，不存在返回空字符串
func ParentSpanID(ctx context.Context) string {
	return stringValue(ctx, keyParentSpanID)
}

// WithTraceFlags 将 trace flags 注入 context
//
// 格式: 2 位十六进制字符串（"01" 表示已采样，"00" 表示未采样）
func WithTraceFlags(ctx context.Context, flags string) (context.Context, error) {
	return withString(ctx, keyTraceFlags, flags)
}

// TraceFlags 从 context 提取 trace flags，不存在返回空字符串
func TraceFlags(ctx context.Context) string {
	return stringValue(ctx, keyTraceFlags)
}

// WithRequestID 将 request ID 注入 context
func WithRequestID(ctx context.Context, requestID string) (context.Context, error) {
	return withString(ctx, keyRequestID, requestID)
}

// RequestID 从 context 提取 request ID，不存在返回空字符串
func RequestID(ctx context.Context) string {
	return stringValue(ctx, keyRequestID)
}

// =============================================================================
// Require 函数
// =============================================================================

// RequireTraceID 从 context 获取 trace ID，不存在则返回 ErrMissingTraceID。
func RequireTraceID(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	v := TraceID(ctx)
	if v == "" {
		return "", ErrMissingTraceID
	}
	return v, nil
}

// RequireSpanID 从 context 获取 span ID，不存在则返回 ErrMissingSpanID。
func RequireSpanID(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	v := SpanID(ctx)
	if v == "" {
		return "", ErrMissingSpanID
	}
	return v, nil
}

// =============================================================================
// ID 生成
// =============================================================================

// GenerateTraceID 生成 32 位小写十六进制 trace ID
//
// 全零 ID 在 W3C 规范中无效，生成到全零时重试。
func GenerateTraceID() string {
	return generateHex(TraceIDSize)
}

// GenerateSpanID 生成 16 位小写十六进制 span ID
func GenerateSpanID() string {
	return generateHex(SpanIDSize)
}

func generateHex(size int) string {
	buf := make([]byte, size)
	for {
		// crypto/rand.Read 在 Go 1.24+ 上不会返回错误
		_, _ = rand.Read(buf)
		if !allZero(buf) {
			return hex.EncodeToString(buf)
		}
	}
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// EnsureTrace 确保 context 中存在 trace ID 和 span ID
//
// 已存在的字段保持不变，缺失的字段自动生成。
// 用于没有 otel span 的路径（例如未装饰的服务间调用）。
func EnsureTrace(ctx context.Context) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if TraceID(ctx) == "" {
		ctx = context.WithValue(ctx, keyTraceID, GenerateTraceID())
	}
	if SpanID(ctx) == "" {
		ctx = context.WithValue(ctx, keySpanID, GenerateSpanID())
	}
	return ctx, nil
}

// =============================================================================
// Trace 结构体
// =============================================================================

// Trace 追踪信息的批量视图
type Trace struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	TraceFlags   string
	RequestID    string
}

// GetTrace 从 context 批量读取追踪字段
func GetTrace(ctx context.Context) Trace {
	return Trace{
		TraceID:      TraceID(ctx),
		SpanID:       SpanID(ctx),
		ParentSpanID: ParentSpanID(ctx),
		TraceFlags:   TraceFlags(ctx),
		RequestID:    RequestID(ctx),
	}
}

// IsComplete 检查 trace ID 和 span ID 是否都存在
func (t Trace) IsComplete() bool {
	return t.TraceID != "" && t.SpanID != ""
}

// Validate 校验必需字段，缺失时返回对应错误
func (t Trace) Validate() error {
	if t.TraceID == "" {
		return ErrMissingTraceID
	}
	if t.SpanID == "" {
		return ErrMissingSpanID
	}
	return nil
}

// WithTrace 将 Trace 的非空字段批量写入 context
func WithTrace(ctx context.Context, t Trace) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	ctx = applyOptional(ctx, keyTraceID, t.TraceID)
	ctx = applyOptional(ctx, keySpanID, t.SpanID)
	ctx = applyOptional(ctx, keyParentSpanID, t.ParentSpanID)
	ctx = applyOptional(ctx, keyTraceFlags, t.TraceFlags)
	ctx = applyOptional(ctx, keyRequestID, t.RequestID)
	return ctx, nil
}

func applyOptional(ctx context.Context, key contextKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}
