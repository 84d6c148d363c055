// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展
//   - xtrace: 追踪上下文来源、HTTP 入站/出站装饰、B3 传播
//   - xcorr: 请求关联 ID 解析
//   - xwirelog: 请求/响应 logbook 记录
//   - xmetrics: HTTP 请求指标，基于 OpenTelemetry Metrics
//   - xrotate: 日志文件轮转
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 自动从 context 中提取追踪信息注入日志
//   - 支持动态级别控制
package observability
