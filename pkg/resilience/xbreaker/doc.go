// Package xbreaker 为上游调用提供熔断，基于 sony/gobreaker/v2。
//
// Breaker 统计失败并按 TripPolicy 打开；打开期间调用立即失败，
// 返回的错误可用 IsOpen / IsBreakerError 判断。
//
// Transport 把熔断器装在 http.RoundTripper 上：传输错误与 5xx 响应计为失败，
// 调用方主动取消不计入。网关把熔断错误映射为 503。
package xbreaker
