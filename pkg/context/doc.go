// Package context 提供请求上下文相关的子包。
//
// 子包列表：
//   - xctx: Context 增强，注入/提取 traceId、spanId、parentSpanId、关联 ID
//   - xsnap: 上下文快照，捕获后在其他回调中恢复
//
// 设计原则：
//   - 所有上下文信息通过 context.Context 传递，不使用全局变量
//   - 快照恢复有作用域，关闭后回到恢复前的状态
//   - 支持 W3C Trace Context 标准
package context
