package xctx

import "errors"

// contextKey 包私有的 context key 类型，字符串值便于调试时识别
type contextKey string

var (
	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xctx: nil context")

	// ErrMissingTraceID traceId 缺失
	ErrMissingTraceID = errors.New("xctx: missing traceId")

	// ErrMissingSpanID spanId 缺失
	ErrMissingSpanID = errors.New("xctx: missing spanId")

	// ErrMissingCorrelationID correlationId 缺失
	ErrMissingCorrelationID = errors.New("xctx: missing correlationId")
)
