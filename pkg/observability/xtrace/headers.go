package xtrace

// HTTP Header 名称
const (
	HeaderTraceparent = "traceparent"
	HeaderTracestate  = "tracestate"

	HeaderB3TraceID      = "X-B3-TraceId"
	HeaderB3SpanID       = "X-B3-SpanId"
	HeaderB3ParentSpanID = "X-B3-ParentSpanId"
	HeaderB3Sampled      = "X-B3-Sampled"
	HeaderB3Flags        = "X-B3-Flags"
	HeaderB3Single       = "b3"

	HeaderRequestID = "X-Request-ID"
)
