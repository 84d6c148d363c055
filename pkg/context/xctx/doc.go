// Package xctx 提供网关请求上下文中的追踪字段存取。
//
// # 核心功能
//
// 追踪信息（Trace）- 分布式追踪：
//   - traceId       : 追踪标识（W3C 规范，128-bit）
//   - spanId        : 跨度标识（W3C 规范，64-bit）
//   - parentId      : 父跨度标识（出站 B3 头 X-B3-ParentSpanId 的来源）
//   - traceFlags    : 追踪标志（采样决策）
//   - requestId     : 请求标识（入站 X-Request-ID）
//   - correlationId : 日志关联标识（由 xcorr 计算，每个入站请求一次）
//
// 日志字段名沿用 MDC 风格的驼峰写法（traceId/spanId），与下游日志平台的查询字段一致。
//
// # 命名约定
//
//	WithXxx(ctx, value)    - 注入：将 value 写入 context
//	Xxx(ctx)               - 读取：从 context 读取值，缺失时返回零值
//	RequireXxx(ctx)        - 强制读取：值必须存在，缺失时返回错误
//	EnsureXxx(ctx)         - 确保存在：若已存在则返回，否则自动生成
//
// # 与 OpenTelemetry 的关系
//
// xctx 只保存字符串形式的字段，不依赖 otel。otel span 由 xtrace 创建，
// 并通过 xtrace.SyncContext 同步到 xctx，日志 EnrichHandler 只需读取 xctx。
package xctx
