// Package xcorr 为每个入站请求解析关联 ID（correlation ID）。
//
// # 规则
//
// 存在活动 span 时返回 "<traceId>/<spanId>"（小写十六进制），
// 同一 span 内重复解析得到相同结果。
//
// 不存在活动 span 时走回退路径：依次读取 X-Correlation-ID、X-Request-ID，
// 都不存在时由 xid.NewCorrelationID 生成。回退路径只在请求早于追踪装饰到达时出现，
// 例如服务间直连调用或未安装装饰的 handler。
//
// Resolve 不返回错误，也不会 panic：追踪来源内部出错时使用回退值。
//
// # 用法
//
//	r := xcorr.New(xtrace.NewSource())
//	id := r.Resolve(req)
package xcorr
