// Package xinstrument 组装入站与出站的拦截链。
//
// 启动时根据唯一的开关（请求/响应日志是否开启，默认关闭）选择分支，
// 之后不再按请求判断：
//
//	开启：xconn.New(xconn.Wrap(logbook.ServerHandler()))
//	关闭：xconn.New(xconn.None())
//
// 两个分支都安装拦截器，追踪上下文与请求日志开关无关。
//
// # 装饰顺序
//
// 追踪装饰在外层，拦截器在内层：
//
//	入站：Tracing.ServerMiddleware → xconn.Server.Handler → next
//	出站：Tracing.Transport → xconn.Client.Transport → http.Transport
//
// 拦截器捕获快照时，本次请求（或出站调用）的 span 已经存在。
//
// # 配置错误
//
// 开启日志但缺少追踪来源或 Logbook 属于启动期致命错误，New 返回
// [ErrTraceSourceRequired] 或 [ErrLogbookRequired]。
package xinstrument
