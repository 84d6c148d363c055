// Package xtrace 是网关的追踪上下文来源，基于 OpenTelemetry。
//
// # 职责
//
//   - Source：回答"当前是否有活动 span"，并把当前 context 捕获为 xsnap.Snapshot
//   - NewTracerProvider：创建 sdk TracerProvider（父级优先 + 比例采样）
//   - Propagator：W3C traceparent/tracestate、baggage、B3 多头组合传播器
//   - Tracing：入站与出站的追踪装饰
//
// # 装饰顺序
//
// 追踪装饰必须先于 xconn 拦截器生效：
//
//	ServerMiddleware → xconn.ServerPipeline → 业务 handler
//	Transport        → xconn.Transport      → http.Transport
//
// 这样拦截器捕获快照时，context 中已经有本次请求的 span。
//
// # 出站头
//
// 每个出站请求都会携带：
//
//	traceparent: 00-<traceId>-<spanId>-<flags>
//	X-B3-TraceId / X-B3-SpanId / X-B3-Sampled / X-B3-ParentSpanId
//
// 出站请求在独立的 client span 中发出，ParentSpanId 即入站 server span。
// 日志字段 spanId 始终是 server span，保证同一请求的所有日志一致。
package xtrace
