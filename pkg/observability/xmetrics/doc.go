// Package xmetrics 记录网关的 HTTP 请求指标，基于 OpenTelemetry Metrics。
//
// 指标：
//
//	xgate.http.server.requests  入站请求数（counter）
//	xgate.http.server.duration  入站请求耗时，秒（histogram）
//	xgate.http.client.requests  出站请求数（counter）
//	xgate.http.client.duration  出站请求耗时，秒（histogram）
//
// 属性：http.request.method、http.response.status_code、outcome（ok/error），
// 出站指标另带 server.address。
//
// 默认使用 otel 全局 MeterProvider，未配置时为 noop。
package xmetrics
