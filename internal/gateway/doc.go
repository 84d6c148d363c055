// Package gateway 组装 xgate 边缘服务：路由、授权、请求头过滤、问答控制器，
// 以及访问日志、业务日志、指标与可选的上游熔断。
//
// 追踪装饰与连接拦截管道由 xinstrument.Composer 提供，
// 入站与出站使用同一个 Composer，请求/响应日志开关在 New 时确定。
package gateway
