// Package xconn 在连接的读、写、刷新回调周围恢复该连接的 context 快照。
//
// # 背景
//
// 同一个请求产生的日志与出站调用分散在不同的回调中执行：
// 入站请求读取、响应写出（可能来自 ReverseProxy 的刷新定时器 goroutine）、
// 出站请求写出（http.Transport 的 writeLoop goroutine）、出站响应读取。
// goroutine 与请求并不一一对应，因此不能依赖"当前 goroutine"携带 context。
//
// xconn 把快照显式保存在每个连接的 [Conn] 上，每次回调通过
// [Interceptor] 作用域恢复，回调结束必定释放。
//
// # 拦截器
//
// [Interceptor] 有三个入口，结构相同：
//
//	OnRead(ctx, c, msg, next)
//	OnWrite(ctx, c, msg, done, next)
//	OnFlush(ctx, c, next)
//
// 先恢复 c 的快照，然后交给内层 [Handler]，或在没有内层 Handler 时直接转发给 next。
// 内层 Handler 以 [Delegate] 标签变体表达：[None] 或 [Wrap]。
// 两种情况都会恢复快照，应用日志不依赖请求日志是否开启。
//
// 错误与 panic 原样向上传递，作用域在任何退出路径上都会释放。
//
// # 服务端
//
// [Server] 通过 http.Server.ConnContext 为每个 TCP 连接创建 Conn 与拦截链，
// ConnState 在连接关闭时丢弃快照。[Server.Handler] 是请求管道：
//
//	WriteHeader → OnWrite(*http.Response)
//	Write       → OnWrite([]byte)
//	Flush       → OnFlush
//
// # 客户端
//
// [Client.DialContext] 为每个出站连接创建 Conn，[Client.Transport] 借助
// net/http/httptrace 在获得连接时捕获快照并执行 OnWrite(*http.Request)，
// 请求写完时执行 OnFlush，响应头到达后执行 OnRead(*http.Response)。
//
// # 多路复用
//
// 一个 Conn 上的回调严格有序、不会并发。HTTP/2 在一个连接上并发多个流时，
// 每个并发交换使用从连接派生的临时 Conn，快照互不覆盖。
package xconn
