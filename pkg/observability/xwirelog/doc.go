// Package xwirelog 记录代理的请求与响应（logbook）。
//
// 作为 xconn 的内层处理器工作，每次代理往返产生四条日志：
//
//	Incoming Request   入站请求到达（服务端 Read）
//	Outgoing Request   转发到后端（客户端 Write）
//	Incoming Response  后端响应头到达（客户端 Read）
//	Outgoing Response  响应写回调用方（服务端 Write）
//
// 消息文本是兼容约定，测试与日志检索依赖它们，不要修改。
//
// 每条日志带 logger=logbook 与关联 ID（correlation）。
// 关联 ID 在入站请求到达时解析一次，并写入请求 context 供后续日志使用。
// traceId/spanId 由 xlog.EnrichHandler 从拦截器恢复的快照中读取。
//
// 日志失败不会影响请求：只有下一阶段的错误会被返回。
package xwirelog
